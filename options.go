package resourceboard

import (
	"errors"
	"log/slog"
	"strings"
	"time"
)

// storageKind selects the backend opened by New.
type storageKind int

const (
	storageMemory storageKind = iota
	storageCustom
	storageFile
	storagePostgres
)

// boardConfig holds mutable state during Board construction.
type boardConfig struct {
	title           string
	pollingInterval time.Duration
	fetchTimeout    time.Duration
	port            int
	maxConcurrency  int
	logger          *slog.Logger
	callbacks       []func(Observation)
	seeds           []Seed
	location        *time.Location

	storage     storageKind
	custom      Storage
	storagePath string
	storageDSN  string
	storageKey  string
}

// Option is a function that configures a [Board] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*boardConfig) error

// WithPollingInterval sets how often each resource is fetched.
//
// Every resource is fetched once on registration and then on this fixed
// interval. Defaults to 10 seconds if not specified.
//
// Returns an error if the duration is zero or negative.
func WithPollingInterval(d time.Duration) Option {
	return func(cfg *boardConfig) error {
		if d <= 0 {
			return errors.New("polling interval must be positive")
		}
		cfg.pollingInterval = d
		return nil
	}
}

// WithFetchTimeout bounds every fetch. Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithFetchTimeout(d time.Duration) Option {
	return func(cfg *boardConfig) error {
		if d <= 0 {
			return errors.New("fetch timeout must be positive")
		}
		cfg.fetchTimeout = d
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server.
//
// The dashboard UI and API will be available at http://localhost:<port>.
// Defaults to 8080 if not specified.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *boardConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithMaxConcurrency sets the maximum number of fetches in flight across all
// resources. Defaults to 10 if not specified.
//
// Returns an error if the value is zero or negative.
func WithMaxConcurrency(n int) Option {
	return func(cfg *boardConfig) error {
		if n <= 0 {
			return errors.New("max concurrency must be positive")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Board instance.
//
// If not specified, [slog.Default] is used.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
//	b, err := resourceboard.New(resourceboard.WithLogger(logger))
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *boardConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and header.
//
// If not specified, defaults to "ResourceBoard".
func WithTitle(title string) Option {
	return func(cfg *boardConfig) error {
		cfg.title = title
		return nil
	}
}

// WithObservationCallback registers a function to be called after every
// completed fetch, once the outcome has been recorded.
//
// Multiple callbacks run in registration order. Callbacks are invoked
// synchronously from a single goroutine, so they must not block; dispatch
// slow work to a separate goroutine. Panics are recovered and logged.
//
// Results for resources removed while their fetch was in flight are dropped
// and never reach callbacks.
//
// Nil callbacks are silently ignored.
func WithObservationCallback(cb func(Observation)) Option {
	return func(cfg *boardConfig) error {
		if cb == nil {
			return nil
		}
		cfg.callbacks = append(cfg.callbacks, cb)
		return nil
	}
}

// WithSeed registers a resource when storage holds no resources yet.
//
// Seeds are ignored once storage has been populated, so a restart does not
// re-create resources the operator deleted.
//
// Example:
//
//	b, err := resourceboard.New(
//	    resourceboard.WithSeed("Things", "http://localhost:1337/api/things"),
//	    resourceboard.WithSeed("Files", "http://localhost:1337/api/upload/files"),
//	)
//
// Returns an error if name or url is empty.
func WithSeed(name, url string) Option {
	return func(cfg *boardConfig) error {
		name, url = strings.TrimSpace(name), strings.TrimSpace(url)
		if name == "" {
			return errors.New("seed name cannot be empty")
		}
		if url == "" {
			return errors.New("seed url cannot be empty")
		}
		cfg.seeds = append(cfg.seeds, Seed{Name: name, URL: url})
		return nil
	}
}

// WithStorage persists the resource list in s. The board takes ownership
// and closes s on [Board.Close].
//
// Returns an error if s is nil.
func WithStorage(s Storage) Option {
	return func(cfg *boardConfig) error {
		if s == nil {
			return errors.New("storage cannot be nil")
		}
		cfg.storage, cfg.custom = storageCustom, s
		return nil
	}
}

// WithFileStorage persists the resource list as a JSON file in dir, which is
// created if missing.
//
// Returns an error if dir is empty.
func WithFileStorage(dir string) Option {
	return func(cfg *boardConfig) error {
		if strings.TrimSpace(dir) == "" {
			return errors.New("storage directory cannot be empty")
		}
		cfg.storage, cfg.storagePath = storageFile, dir
		return nil
	}
}

// WithPostgresStorage persists the resource list in PostgreSQL. The table is
// created on first use.
//
// Returns an error if dsn is empty.
func WithPostgresStorage(dsn string) Option {
	return func(cfg *boardConfig) error {
		if strings.TrimSpace(dsn) == "" {
			return errors.New("postgres dsn cannot be empty")
		}
		cfg.storage, cfg.storageDSN = storagePostgres, dsn
		return nil
	}
}

// WithStorageKey sets the storage slot holding the resource list. Defaults
// to "resourceboard.resources".
//
// Returns an error if key is empty.
func WithStorageKey(key string) Option {
	return func(cfg *boardConfig) error {
		if strings.TrimSpace(key) == "" {
			return errors.New("storage key cannot be empty")
		}
		cfg.storageKey = key
		return nil
	}
}

// WithDateLocation sets the time zone used to render timestamp cells.
// Defaults to [time.Local].
//
// Returns an error if loc is nil.
func WithDateLocation(loc *time.Location) Option {
	return func(cfg *boardConfig) error {
		if loc == nil {
			return errors.New("date location cannot be nil")
		}
		cfg.location = loc
		return nil
	}
}

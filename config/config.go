// Package config provides YAML configuration parsing for ResourceBoard.
//
// This package enables running ResourceBoard as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Strapi Content
//	port: 8080
//	poll_interval: 10s
//	fetch_timeout: 5s
//
//	storage:
//	  driver: file
//	  path: ./data
//
//	resources:
//	  - name: Things
//	    url: ${STRAPI_URL:-http://localhost:1337}/api/things
//
//	grids:
//	  - name: Collections
//	    url_template: "http://localhost:1337/api/{{.collection}}"
//	    dimensions:
//	      collection: [articles, authors]
//
// Resources and grids seed an empty store. Once storage holds resources,
// they are managed from the dashboard and the seeds are ignored.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort         = 8080
	defaultPollInterval = 10 * time.Second

	// minPollInterval prevents accidental DoS of resources with overly
	// aggressive polling.
	minPollInterval = 1 * time.Second

	maxFetchTimeout = 5 * time.Minute
)

// Storage drivers accepted in [StorageConfig.Driver].
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// Config is the root configuration structure for ResourceBoard.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "ResourceBoard" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// PollInterval is the time between fetches of each resource.
	// Accepts duration strings like "10s", "1m", "500ms".
	// Defaults to 10s.
	PollInterval Duration `yaml:"poll_interval"`

	// FetchTimeout bounds every fetch. Defaults to 10s.
	FetchTimeout Duration `yaml:"fetch_timeout"`

	// MaxConcurrency bounds simultaneous fetches. Defaults to 10.
	MaxConcurrency int `yaml:"max_concurrency"`

	// Storage selects where the resource list is persisted.
	Storage StorageConfig `yaml:"storage"`

	// Resources are registered when storage holds none.
	Resources []ResourceConfig `yaml:"resources"`

	// Grids expand via cartesian product into seed resources.
	Grids []GridConfig `yaml:"grids"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Driver is "memory" (default), "file" or "postgres".
	Driver string `yaml:"driver"`

	// Path is the data directory for the file driver.
	Path string `yaml:"path"`

	// DSN is the connection string for the postgres driver.
	// Supports environment variable substitution.
	DSN string `yaml:"dsn"`

	// Key names the slot holding the resource list.
	Key string `yaml:"key"`
}

// ResourceConfig defines a single seed resource.
type ResourceConfig struct {
	// Name is the display name shown in the dashboard.
	Name string `yaml:"name"`

	// URL is the REST endpoint to poll.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`
}

// GridConfig defines a resource grid that expands via cartesian product.
//
// For example, with dimensions {collection: [articles, authors], locale: [en, fr]},
// the grid expands to 4 resources.
type GridConfig struct {
	// Name is the base name for generated resources.
	Name string `yaml:"name"`

	// URLTemplate is a Go template for generating resource URLs.
	// Dimension keys are available as template variables: {{.collection}}
	// Supports environment variable substitution in the template.
	URLTemplate string `yaml:"url_template"`

	// Dimensions maps dimension names to their possible values.
	Dimensions map[string][]string `yaml:"dimensions"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in resource URLs, grid templates and
// storage settings. Defaults are applied for Port (8080), PollInterval (10s)
// and the storage driver (memory).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(defaultPollInterval)
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverMemory
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}
	if c.FetchTimeout != 0 {
		if c.FetchTimeout.Duration() < 0 {
			return fmt.Errorf("fetch_timeout cannot be negative, got %s", c.FetchTimeout.Duration())
		}
		if c.FetchTimeout.Duration() > maxFetchTimeout {
			return fmt.Errorf("fetch_timeout must not exceed %s, got %s", maxFetchTimeout, c.FetchTimeout.Duration())
		}
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency cannot be negative, got %d", c.MaxConcurrency)
	}

	if err := c.Storage.expandAndValidate(); err != nil {
		return err
	}

	for i := range c.Resources {
		r := &c.Resources[i]

		if strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf("resources[%d]: name is required", i)
		}

		if r.URL == "" {
			return fmt.Errorf("resources[%d] (%s): url is required", i, r.Name)
		}
		expanded, err := expandEnvVars(r.URL)
		if err != nil {
			return fmt.Errorf("resources[%d] (%s): url: %w", i, r.Name, err)
		}
		r.URL = expanded

		if err := validateURL(r.URL); err != nil {
			return fmt.Errorf("resources[%d] (%s): %w", i, r.Name, err)
		}
	}

	for i := range c.Grids {
		g := &c.Grids[i]

		if strings.TrimSpace(g.Name) == "" {
			return fmt.Errorf("grids[%d]: name is required", i)
		}

		if g.URLTemplate == "" {
			return fmt.Errorf("grids[%d] (%s): url_template is required", i, g.Name)
		}
		expanded, err := expandEnvVars(g.URLTemplate)
		if err != nil {
			return fmt.Errorf("grids[%d] (%s): url_template: %w", i, g.Name, err)
		}
		g.URLTemplate = expanded

		// fail fast before the builder tries to use an invalid template
		if _, err := template.New("").Parse(g.URLTemplate); err != nil {
			return fmt.Errorf("grids[%d] (%s): invalid url_template: %w", i, g.Name, err)
		}

		if len(g.Dimensions) == 0 {
			return fmt.Errorf("grids[%d] (%s): at least one dimension is required", i, g.Name)
		}
		for dimName, dimValues := range g.Dimensions {
			if len(dimValues) == 0 {
				return fmt.Errorf("grids[%d] (%s): dimension %q has no values", i, g.Name, dimName)
			}
			seen := make(map[string]struct{}, len(dimValues))
			for _, v := range dimValues {
				if _, exists := seen[v]; exists {
					return fmt.Errorf("grids[%d] (%s): dimension %q has duplicate value %q", i, g.Name, dimName, v)
				}
				seen[v] = struct{}{}
			}
		}
	}

	return nil
}

func (s *StorageConfig) expandAndValidate() error {
	switch s.Driver {
	case DriverMemory:
	case DriverFile:
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("storage: driver %q requires a path", s.Driver)
		}
		expanded, err := expandEnvVars(s.Path)
		if err != nil {
			return fmt.Errorf("storage: path: %w", err)
		}
		s.Path = expanded
	case DriverPostgres:
		if strings.TrimSpace(s.DSN) == "" {
			return fmt.Errorf("storage: driver %q requires a dsn", s.Driver)
		}
		expanded, err := expandEnvVars(s.DSN)
		if err != nil {
			return fmt.Errorf("storage: dsn: %w", err)
		}
		s.DSN = expanded
	default:
		return fmt.Errorf("storage: unknown driver %q (expected memory, file or postgres)", s.Driver)
	}
	return nil
}

// validateURL requires an absolute http or https URL.
func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme == "" {
		return errors.New("url must have a scheme (http:// or https://)")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("url must have a host")
	}
	return nil
}

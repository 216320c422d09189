package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"text/template"

	"github.com/jpalmerr/resourceboard"
)

// BuildSeeds converts parsed configuration into SDK seeds.
//
// Direct resources come first, in file order, followed by the expansion of
// every grid. Grid dimensions are expanded via cartesian product.
func BuildSeeds(cfg *Config) ([]resourceboard.Seed, error) {
	var seeds []resourceboard.Seed

	for _, rc := range cfg.Resources {
		seeds = append(seeds, resourceboard.Seed{Name: rc.Name, URL: rc.URL})
	}

	for _, gc := range cfg.Grids {
		gridSeeds, err := buildGridSeeds(gc)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, gridSeeds...)
	}

	return seeds, nil
}

// BuildOptions converts parsed configuration into the SDK options that
// construct a matching [resourceboard.Board].
func BuildOptions(cfg *Config) ([]resourceboard.Option, error) {
	opts := []resourceboard.Option{
		resourceboard.WithTitle(cfg.Title),
		resourceboard.WithPort(cfg.Port),
		resourceboard.WithPollingInterval(cfg.PollInterval.Duration()),
	}

	if cfg.FetchTimeout != 0 {
		opts = append(opts, resourceboard.WithFetchTimeout(cfg.FetchTimeout.Duration()))
	}
	if cfg.MaxConcurrency > 0 {
		opts = append(opts, resourceboard.WithMaxConcurrency(cfg.MaxConcurrency))
	}

	switch cfg.Storage.Driver {
	case DriverFile:
		opts = append(opts, resourceboard.WithFileStorage(cfg.Storage.Path))
	case DriverPostgres:
		opts = append(opts, resourceboard.WithPostgresStorage(cfg.Storage.DSN))
	}
	if cfg.Storage.Key != "" {
		opts = append(opts, resourceboard.WithStorageKey(cfg.Storage.Key))
	}

	seeds, err := BuildSeeds(cfg)
	if err != nil {
		return nil, err
	}
	for _, s := range seeds {
		opts = append(opts, resourceboard.WithSeed(s.Name, s.URL))
	}

	return opts, nil
}

// buildGridSeeds expands a GridConfig into multiple seeds via cartesian product.
func buildGridSeeds(gc GridConfig) ([]resourceboard.Seed, error) {
	// use missingkey=error to fail fast on missing template variables
	tmpl, err := template.New("url").Option("missingkey=error").Parse(gc.URLTemplate)
	if err != nil {
		return nil, err
	}

	var seeds []resourceboard.Seed
	for _, combo := range cartesianProduct(gc.Dimensions) {
		var buf strings.Builder
		if err := tmpl.Execute(&buf, urlEncodeMap(combo)); err != nil {
			return nil, fmt.Errorf("grid (%s) with dimensions %v: template execution failed: %w", gc.Name, combo, err)
		}

		rawURL := buf.String()
		if err := validateURL(rawURL); err != nil {
			return nil, fmt.Errorf("grid (%s) with dimensions %v: %w", gc.Name, combo, err)
		}

		seeds = append(seeds, resourceboard.Seed{
			Name: formatGridName(gc.Name, combo),
			URL:  rawURL,
		})
	}

	return seeds, nil
}

// urlEncodeMap returns a new map with all values URL-encoded.
func urlEncodeMap(m map[string]string) map[string]string {
	result := make(map[string]string, len(m))
	for k, v := range m {
		result[k] = url.QueryEscape(v)
	}
	return result
}

// formatGridName creates a name in the format "Base (v1/v2)".
// Values are ordered by sorted keys for consistent naming.
func formatGridName(baseName string, combo map[string]string) string {
	parts := make([]string, 0, len(combo))
	for _, k := range sortedKeys(combo) {
		parts = append(parts, combo[k])
	}
	return fmt.Sprintf("%s (%s)", baseName, strings.Join(parts, "/"))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// cartesianProduct generates all combinations of dimension values.
// Keys are sorted alphabetically for deterministic output.
// Values maintain their original slice order.
//
// Example:
//
//	Input:  {"x": ["a","b"], "y": ["1","2"]}
//	Output: [{"x":"a","y":"1"}, {"x":"a","y":"2"}, {"x":"b","y":"1"}, {"x":"b","y":"2"}]
func cartesianProduct(dimensions map[string][]string) []map[string]string {
	if len(dimensions) == 0 {
		return nil
	}

	// start with single empty combination
	result := []map[string]string{{}}

	for _, key := range sortedKeys(dimensions) {
		values := dimensions[key]
		var newResult []map[string]string

		for _, combo := range result {
			for _, val := range values {
				// copy existing combo and add new dimension
				newCombo := make(map[string]string, len(combo)+1)
				for k, v := range combo {
					newCombo[k] = v
				}
				newCombo[key] = val
				newResult = append(newResult, newCombo)
			}
		}
		result = newResult
	}

	return result
}

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Overrides carries command line values applied on top of the file. Zero values leave the file setting alone.
type Overrides struct {
	Backend     string
	Debug       bool
	LogFile     string
	Watch       bool
	Concurrency int
}

// Load loads configuration with priority: defaults < file < overrides. An empty path skips the file.
//
// Parameters:
//   - path: the YAML file to read, may be empty
//   - overrides: the command line overrides
//
// Returns:
//   - *Config: the merged and validated config
//   - error: an error if the file could not be read or the result is invalid
func Load(path string, overrides Overrides) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	overrides.apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func (o Overrides) apply(cfg *Config) {
	if o.Backend != "" {
		cfg.Backend.Type = o.Backend
	}
	if o.Debug {
		cfg.Logging.Level = "debug"
	}
	if o.LogFile != "" {
		cfg.Logging.LogFile = o.LogFile
	}
	if o.Watch {
		cfg.Loader.Watch = true
	}
	if o.Concurrency > 0 {
		cfg.Loader.MaxConcurrency = o.Concurrency
	}
}

// Save writes cfg to path, creating the parent directory if needed.
//
// Parameters:
//   - cfg: the config to write
//   - path: the destination file
//
// Returns:
//   - error: an error if the file could not be written
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

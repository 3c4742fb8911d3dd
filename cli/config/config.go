package config

import (
	"errors"
	"fmt"
	"slices"
	"time"
	_ "time/tzdata" // names.timezone must resolve on hosts without a zoneinfo database

	"github.com/pithecene-io/sluice/form"
	"github.com/pithecene-io/sluice/log"
	"github.com/pithecene-io/sluice/policy"
	"github.com/pithecene-io/sluice/transfer"
)

// Defaults applied when neither the config file nor a flag sets a value.
const (
	DefaultStorageBackend = "fs"
	DefaultStoragePath    = "./uploads"
	DefaultLogLevel       = "info"
)

// Storage backends.
var storageBackends = []string{"fs", "lode", "s3"}

// Adapter types. Empty means no adapter.
var adapterTypes = []string{"", "webhook", "redis"}

// Config represents a sluice.yaml configuration file.
// All values are optional and act as defaults for command flags.
// CLI flags always override config values.
type Config struct {
	Storage  StorageConfig `yaml:"storage"`
	Limits   LimitsConfig  `yaml:"limits"`
	Names    NamesConfig   `yaml:"names"`
	Journal  string        `yaml:"journal"`
	Manifest string        `yaml:"manifest"`
	Adapter  AdapterConfig `yaml:"adapter"`
	Log      LogConfig     `yaml:"log"`
}

// StorageConfig selects where uploaded file bodies are written.
type StorageConfig struct {
	// Backend is fs, lode or s3. Default fs.
	Backend string `yaml:"backend"`
	// Path is the upload directory for fs and lode, or bucket[/prefix] for s3.
	Path string `yaml:"path"`
	// Prefix is a key prefix inside the store.
	Prefix      string `yaml:"prefix"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// LimitsConfig holds decoder limits. Zero values select the decoder defaults.
type LimitsConfig struct {
	Window         int `yaml:"window"`
	BoundaryMax    int `yaml:"boundary_max"`
	LineMax        int `yaml:"line_max"`
	MaxHeaderLines int `yaml:"max_header_lines"`
	MaxParts       int `yaml:"max_parts"`
	FieldMax       int `yaml:"field_max"`
}

// NamesConfig configures stored name derivation.
type NamesConfig struct {
	// Denylist lists extensions to rewrite. Omitted selects the default
	// list; an explicit empty list disables rewriting.
	Denylist    []string `yaml:"denylist"`
	Replacement string   `yaml:"replacement"`
	// Timezone is the IANA zone of the timestamp prefix. Default UTC.
	Timezone string `yaml:"timezone"`
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
	Backoff Duration          `yaml:"backoff,omitempty"`
}

// LogConfig holds logging defaults.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// ApplyDefaults fills unset values with the command defaults.
func (c *Config) ApplyDefaults() {
	if c.Storage.Backend == "" {
		c.Storage.Backend = DefaultStorageBackend
	}
	if c.Storage.Path == "" && c.Storage.Backend != "s3" {
		c.Storage.Path = DefaultStoragePath
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// Validate checks value ranges and enumerations. It reports every problem
// found, joined.
func (c *Config) Validate() error {
	var errs []error
	if c.Storage.Backend != "" && !slices.Contains(storageBackends, c.Storage.Backend) {
		errs = append(errs, fmt.Errorf("storage.backend must be one of %v, got %q", storageBackends, c.Storage.Backend))
	}
	if c.Storage.Backend == "s3" && c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path (bucket[/prefix]) is required for the s3 backend"))
	}
	if !slices.Contains(adapterTypes, c.Adapter.Type) {
		errs = append(errs, fmt.Errorf("adapter.type must be webhook or redis, got %q", c.Adapter.Type))
	}
	if c.Adapter.Type != "" && c.Adapter.URL == "" {
		errs = append(errs, fmt.Errorf("adapter.url is required for adapter type %s", c.Adapter.Type))
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		errs = append(errs, fmt.Errorf("adapter.retries must be >= 0, got %d", *c.Adapter.Retries))
	}
	if c.Limits.FieldMax < 0 {
		errs = append(errs, fmt.Errorf("limits.field_max must be >= 0, got %d", c.Limits.FieldMax))
	}
	if err := c.FormConfig().WithDefaults().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("limits: %w", err))
	}
	if c.Names.Timezone != "" {
		if _, err := time.LoadLocation(c.Names.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("names.timezone: %w", err))
		}
	}
	if c.Log.Level != "" {
		if _, err := log.ParseLevel(c.Log.Level); err != nil {
			errs = append(errs, fmt.Errorf("log.level: %w", err))
		}
	}
	return errors.Join(errs...)
}

// FormConfig returns the decoder limits.
func (c *Config) FormConfig() form.Config {
	return form.Config{
		Transfer: transfer.Config{
			WindowSize:  c.Limits.Window,
			BoundaryMax: c.Limits.BoundaryMax,
		},
		LineMax:        c.Limits.LineMax,
		MaxHeaderLines: c.Limits.MaxHeaderLines,
		MaxParts:       c.Limits.MaxParts,
	}
}

// NameConfig returns the name policy configuration.
func (c *Config) NameConfig() (policy.NameConfig, error) {
	cfg := policy.NameConfig{
		Denylist:    c.Names.Denylist,
		Replacement: c.Names.Replacement,
	}
	if c.Names.Timezone != "" {
		loc, err := time.LoadLocation(c.Names.Timezone)
		if err != nil {
			return cfg, fmt.Errorf("names.timezone: %w", err)
		}
		cfg.Location = loc
	}
	return cfg, nil
}

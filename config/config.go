package config

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Config configures a reflection cache and its logger.
type Config struct {
	DefaultNamespace string          `json:"default_namespace" yaml:"default_namespace"`
	Shards           int             `json:"shards" yaml:"shards"`
	Converter        ConverterConfig `json:"converter" yaml:"converter"`
	Warmup           bool            `json:"warmup" yaml:"warmup"`
	Log              LogConfig       `json:"log" yaml:"log"`
}

// ConverterConfig defines parameter conversion settings.
type ConverterConfig struct {
	CacheSize   int      `json:"cache_size" yaml:"cache_size"`
	TimeLayouts []string `json:"time_layouts,omitempty" yaml:"time_layouts,omitempty"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // auto, console or json
}

const (
	FormatAuto    = "auto"
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		DefaultNamespace: "main",
		Shards:           16,
		Converter:        ConverterConfig{CacheSize: 1024},
		Log:              LogConfig{Level: "info", Format: FormatAuto},
	}
}

// Load reads and validates a YAML file. Keys missing from the file keep
// their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes YAML content over Default. The path is used only for error
// messages.
func Parse(data []byte, path string) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error

	if c.Shards < 0 {
		err = multierr.Append(err, fmt.Errorf("shards must not be negative: %d", c.Shards))
	}
	if c.Converter.CacheSize < 0 {
		err = multierr.Append(err, fmt.Errorf("converter cache_size must not be negative: %d", c.Converter.CacheSize))
	}
	for i, layout := range c.Converter.TimeLayouts {
		if strings.TrimSpace(layout) == "" {
			err = multierr.Append(err, fmt.Errorf("converter time_layouts[%d] is empty", i))
		}
	}
	if c.DefaultNamespace == "" || strings.ContainsAny(c.DefaultNamespace, " \t") {
		err = multierr.Append(err, fmt.Errorf("invalid default_namespace: %q", c.DefaultNamespace))
	}
	if _, lerr := parseLevel(c.Log.Level); lerr != nil {
		err = multierr.Append(err, lerr)
	}
	switch c.Log.Format {
	case "", FormatAuto, FormatConsole, FormatJSON:
	default:
		err = multierr.Append(err, fmt.Errorf("invalid log format: %s", c.Log.Format))
	}

	return err
}

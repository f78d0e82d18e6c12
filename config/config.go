// Package config holds the process configuration, read from a TOML file.
package config

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"mit.edu/dsg/planopt/iterative"
	"mit.edu/dsg/planopt/logger"
)

const (
	// DefaultConnector is the catalog name the memory connector is
	// registered under.
	DefaultConnector = "memory"
)

// Config represents the configuration format for the planopt binary.
type Config struct {
	Optimizer Optimizer     `toml:"optimizer"`
	Logging   logger.Config `toml:"logging"`
	Catalog   Catalog       `toml:"catalog"`
}

// Optimizer bounds every optimization.
type Optimizer struct {
	MaxPasses     int      `toml:"max-passes"`
	Timeout       Duration `toml:"timeout"`
	DisabledRules []string `toml:"disabled-rules"`
}

// Catalog locates the table metadata.
type Catalog struct {
	// Dir holds catalog.json. An empty Dir keeps the catalog in memory.
	Dir       string `toml:"dir"`
	Connector string `toml:"connector"`
}

// NewConfig returns a new instance of Config with defaults.
func NewConfig() *Config {
	c := &Config{}
	c.Optimizer.MaxPasses = iterative.DefaultMaxPasses
	c.Logging = logger.NewConfig()
	c.Catalog.Connector = DefaultConnector
	return c
}

// Validate returns an error if the config is invalid.
func (c *Config) Validate() error {
	if c.Optimizer.MaxPasses <= 0 {
		return errors.Newf("optimizer max-passes must be positive, got %d", c.Optimizer.MaxPasses)
	}
	if c.Optimizer.Timeout < 0 {
		return errors.Newf("optimizer timeout must not be negative, got %s", c.Optimizer.Timeout)
	}
	if c.Catalog.Connector == "" {
		return errors.New("catalog connector must be set")
	}
	return nil
}

// IterativeConfig returns the optimizer settings in the form the optimizer
// takes them.
func (c *Config) IterativeConfig() iterative.Config {
	return iterative.Config{
		MaxPasses:     c.Optimizer.MaxPasses,
		Timeout:       time.Duration(c.Optimizer.Timeout),
		DisabledRules: append([]string(nil), c.Optimizer.DisabledRules...),
	}
}

// ParseConfigFile parses a configuration file at a given path.
func ParseConfigFile(path string) (*Config, error) {
	c := NewConfig()

	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return c, c.Validate()
}

// ParseConfig parses a configuration string into a config object.
func ParseConfig(s string) (*Config, error) {
	c := NewConfig()

	if _, err := toml.Decode(s, c); err != nil {
		return nil, err
	}
	return c, c.Validate()
}

// Duration is a TOML wrapper type for time.Duration.
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalText parses a TOML value into a duration value.
func (d *Duration) UnmarshalText(text []byte) error {
	// Ignore if there is no value set.
	if len(text) == 0 {
		return nil
	}

	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

// MarshalText converts a duration to a string for encoding toml.
func (d Duration) MarshalText() (text []byte, err error) {
	return []byte(d.String()), nil
}

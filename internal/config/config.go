package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config defines configuration for the turbodl CLI. It mirrors
// turbodl.Config's shape but stays independent of it: this struct exists
// to be assembled from a config file, environment variables, and flags
// before a single turbodl.Config is built from the result.
type Config struct {
	URL          string        `yaml:"url"`
	DestFile     string        `yaml:"dest_file"`
	ChunkSize    int64         `yaml:"chunk_size"`
	Concurrency  int           `yaml:"concurrency"`
	RetryCount   int           `yaml:"retry_count"`
	CanBeResumed bool          `yaml:"can_be_resumed"`
	FillFileByte byte          `yaml:"fill_file_byte"`
	Progress     bool          `yaml:"progress"`
	Debug        bool          `yaml:"debug"`
	StateTimeout time.Duration `yaml:"state_timeout"`
}

// Default returns a Config with the documented defaults.
func Default() Config {
	return Config{
		ChunkSize:    16 * 1024 * 1024,
		Concurrency:  4,
		RetryCount:   10,
		CanBeResumed: true,
		Progress:     true,
		StateTimeout: 30 * time.Second,
	}
}

// yamlConfig mirrors Config but with a string ChunkSize, so config files
// can write "256MiB" instead of a raw byte count. CanBeResumed and Progress
// are pointers so an omitted key can be told apart from an explicit false;
// either would otherwise unmarshal to the same zero value and silently
// override Default()'s true, the inverse of the CanBeResumed truthiness bug
// spec.md's Open Question 3 is about.
type yamlConfig struct {
	URL          string `yaml:"url"`
	DestFile     string `yaml:"dest_file"`
	ChunkSize    string `yaml:"chunk_size"`
	Concurrency  int    `yaml:"concurrency"`
	RetryCount   int    `yaml:"retry_count"`
	CanBeResumed *bool  `yaml:"can_be_resumed"`
	FillFileByte int    `yaml:"fill_file_byte"`
	Progress     *bool  `yaml:"progress"`
	Debug        bool   `yaml:"debug"`
	StateTimeout string `yaml:"state_timeout"`
}

// LoadFromFile loads configuration from a YAML file, layered on top of
// Default.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.URL != "" {
		cfg.URL = yc.URL
	}
	if yc.DestFile != "" {
		cfg.DestFile = yc.DestFile
	}
	if yc.ChunkSize != "" {
		size, err := humanize.ParseBytes(yc.ChunkSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse chunk_size: %w", err)
		}
		cfg.ChunkSize = int64(size)
	}
	if yc.Concurrency != 0 {
		cfg.Concurrency = yc.Concurrency
	}
	if yc.RetryCount != 0 {
		cfg.RetryCount = yc.RetryCount
	}
	if yc.CanBeResumed != nil {
		cfg.CanBeResumed = *yc.CanBeResumed
	}
	if yc.FillFileByte != 0 {
		cfg.FillFileByte = byte(yc.FillFileByte)
	}
	if yc.Progress != nil {
		cfg.Progress = *yc.Progress
	}
	cfg.Debug = yc.Debug
	if yc.StateTimeout != "" {
		d, err := time.ParseDuration(yc.StateTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse state_timeout: %w", err)
		}
		cfg.StateTimeout = d
	}

	return cfg, nil
}

// LoadFromEnv overlays environment variables, prefixed TURBODL_, onto c.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("TURBODL_URL"); v != "" {
		c.URL = v
	}
	if v := os.Getenv("TURBODL_DEST_FILE"); v != "" {
		c.DestFile = v
	}
	if v := os.Getenv("TURBODL_CHUNK_SIZE"); v != "" {
		size, err := humanize.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse TURBODL_CHUNK_SIZE: %w", err)
		}
		c.ChunkSize = int64(size)
	}
	if v := os.Getenv("TURBODL_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse TURBODL_CONCURRENCY: %w", err)
		}
		c.Concurrency = n
	}
	if v := os.Getenv("TURBODL_RETRY_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse TURBODL_RETRY_COUNT: %w", err)
		}
		c.RetryCount = n
	}
	if v := os.Getenv("TURBODL_CAN_BE_RESUMED"); v != "" {
		c.CanBeResumed = v == "true" || v == "1"
	}
	if v := os.Getenv("TURBODL_PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}
	if v := os.Getenv("TURBODL_DEBUG"); v != "" {
		c.Debug = v == "true" || v == "1"
	}
	if v := os.Getenv("TURBODL_STATE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse TURBODL_STATE_TIMEOUT: %w", err)
		}
		c.StateTimeout = d
	}
	return nil
}

// Validate validates the configuration ahead of building a turbodl.Config
// from it.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("config: url is required")
	}
	if c.DestFile == "" {
		return errors.New("config: dest_file is required")
	}
	if c.Concurrency <= 0 {
		return errors.New("config: concurrency must be positive")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: chunk_size must be positive")
	}
	if c.RetryCount < 0 {
		return errors.New("config: retry_count must not be negative")
	}
	return nil
}

// Merge merges string/numeric override values into c, returning a new
// Config. A zero value in override leaves the corresponding field in c
// untouched. Merge deliberately does NOT carry this same zero-value
// convention for CanBeResumed, Progress, or Debug: those are plain bools
// with no unset state, so a caller wiring explicit --no-resume /
// --no-progress flags must assign them directly rather than going through
// Merge, or the explicit "false" would be indistinguishable from "not
// set" and silently lost.
func (c Config) Merge(override Config) Config {
	if override.URL != "" {
		c.URL = override.URL
	}
	if override.DestFile != "" {
		c.DestFile = override.DestFile
	}
	if override.ChunkSize != 0 {
		c.ChunkSize = override.ChunkSize
	}
	if override.Concurrency != 0 {
		c.Concurrency = override.Concurrency
	}
	if override.RetryCount != 0 {
		c.RetryCount = override.RetryCount
	}
	if override.FillFileByte != 0 {
		c.FillFileByte = override.FillFileByte
	}
	if override.StateTimeout != 0 {
		c.StateTimeout = override.StateTimeout
	}
	return c
}

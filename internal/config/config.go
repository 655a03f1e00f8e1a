// Package config handles configuration loading and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the daemon.
type Config struct {
	// DBPath is where the SQLite file lives. The viewer process opens
	// the same file, so it must be a stable location.
	DBPath string `yaml:"db_path"`

	// PollIntervalMS is how often the foreground window / idle state is
	// sampled. Must be greater than zero.
	PollIntervalMS int `yaml:"poll_interval_ms"`

	// IdleThresholdSeconds is how long without input before a sample is
	// reported as idle. Consumed by the monitor, not the recorder.
	IdleThresholdSeconds int `yaml:"idle_threshold_seconds"`

	// RotateSegmentEverySeconds bounds how long a single open segment can
	// grow before it is flushed and reopened. Zero disables rotation.
	RotateSegmentEverySeconds int `yaml:"rotate_segment_every_seconds"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/tmp"
	}

	return &Config{
		DBPath:                    filepath.Join(home, ".local", "share", "timelit", "timelit.db"),
		PollIntervalMS:            1000,
		IdleThresholdSeconds:      300,
		RotateSegmentEverySeconds: 10,
	}
}

// Load loads configuration from the default path, falling back to defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, cfg.Validate()
	}

	configPaths := []string{
		filepath.Join(home, ".config", "timelit", "config.yaml"),
		filepath.Join(home, ".local", "share", "timelit", "config.yaml"),
	}

	for _, path := range configPaths {
		if err := loadFromFile(cfg, path); err == nil {
			break
		}
	}

	return cfg, cfg.Validate()
}

// loadFromFile reads a YAML config file and merges it into cfg.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	cfg.DBPath = expandTilde(cfg.DBPath)
	return nil
}

// Validate checks that the configuration can actually drive the daemon.
// Invalid configuration is fatal at startup, never at runtime.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if c.PollIntervalMS <= 0 {
		return fmt.Errorf("poll_interval_ms must be greater than zero, got %d", c.PollIntervalMS)
	}
	if c.IdleThresholdSeconds <= 0 {
		return fmt.Errorf("idle_threshold_seconds must be greater than zero, got %d", c.IdleThresholdSeconds)
	}
	if c.RotateSegmentEverySeconds < 0 {
		return fmt.Errorf("rotate_segment_every_seconds must not be negative, got %d", c.RotateSegmentEverySeconds)
	}
	return nil
}

// PollInterval returns the sampling interval as a time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// IdleThreshold returns the idle threshold as a time.Duration.
func (c *Config) IdleThreshold() time.Duration {
	return time.Duration(c.IdleThresholdSeconds) * time.Second
}

// RotateSegmentEvery returns the rotation interval as a time.Duration.
// Zero means rotation is disabled.
func (c *Config) RotateSegmentEvery() time.Duration {
	return time.Duration(c.RotateSegmentEverySeconds) * time.Second
}

// Save writes the current config to disk.
func (c *Config) Save() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configDir := filepath.Join(home, ".config", "timelit")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(configDir, "config.yaml"), data, 0600)
}

// expandTilde expands ~ to the user's home directory.
func expandTilde(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

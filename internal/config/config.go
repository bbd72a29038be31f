// Package config loads the ush configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all ush configuration.
type Config struct {
	// Prompt follows the working directory on every prompt line.
	Prompt string `yaml:"prompt"`

	// History
	HistoryFile  string `yaml:"history_file"`
	HistoryLimit int    `yaml:"history_limit"`

	// Optional modules loaded after the core builtins, in order.
	Modules []string `yaml:"modules"`

	Resolver ResolverConfig `yaml:"resolver"`
	Log      LogConfig      `yaml:"log"`
}

// ResolverConfig configures command lookup.
type ResolverConfig struct {
	// RequireExecutable only accepts regular files with an execute bit.
	RequireExecutable bool `yaml:"require_executable"`
}

// LogConfig configures the diagnostic logger.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // empty means stderr
}

var validLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".ush_history")
	}

	return &Config{
		Prompt:       "ush >> ",
		HistoryFile:  historyFile,
		HistoryLimit: 500,
		Modules:      []string{"jobcontrol", "sample"},
		Log: LogConfig{
			Level: "error",
		},
	}
}

// DefaultPath is $HOME/.ush.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ush.yaml"
	}
	return filepath.Join(home, ".ush.yaml")
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("USH_PROMPT"); v != "" {
		c.Prompt = v
	}
	if v := os.Getenv("USH_HISTORY_FILE"); v != "" {
		c.HistoryFile = v
	}
	if v := os.Getenv("USH_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks values that cannot be fixed up silently.
func (c *Config) Validate() error {
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("invalid history_limit %d", c.HistoryLimit)
	}
	seen := make(map[string]bool, len(c.Modules))
	for _, m := range c.Modules {
		if seen[m] {
			return fmt.Errorf("module %q listed twice", m)
		}
		seen[m] = true
	}
	return nil
}

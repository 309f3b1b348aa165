// Package config loads journal-cli settings from an optional YAML file and
// JOURNAL_* environment variables.
package config

import (
	"fmt"
	"os"

	"github.com/gookit/validate"
	"github.com/spf13/viper"
)

const (
	// DefaultFile is the journal path used when nothing else is configured.
	DefaultFile = "journal.json"

	// DefaultLogLevel keeps diagnostics quiet during interactive use.
	DefaultLogLevel = "warn"
)

// Config holds the settings for one run.
type Config struct {
	File     string `mapstructure:"file" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required|in:debug,info,warn,error,disabled"`
}

// Load reads the config file at path, if any, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("file", DefaultFile)
	v.SetDefault("log_level", DefaultLogLevel)

	v.BindEnv("file", "JOURNAL_FILE")
	v.BindEnv("log_level", "JOURNAL_LOG_LEVEL")

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	return &conf, nil
}

// Validate checks the config values.
func (c *Config) Validate() error {
	v := validate.Struct(c)
	if !v.Validate() {
		return fmt.Errorf("invalid config: %s", v.Errors.One())
	}
	return nil
}

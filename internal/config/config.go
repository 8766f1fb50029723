// Package config loads scheduler settings from ward.yaml with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings is the runtime configuration of a ward session.
type Settings struct {
	// Interactive reports whether confirmations can be answered by a human.
	Interactive bool `mapstructure:"interactive"`

	// Color toggles ANSI output for diffs and prompts.
	Color bool `mapstructure:"color"`

	// Workspace is the root directory file tools operate under.
	Workspace string `mapstructure:"workspace"`

	// RulesPath is the persisted policy rule file.
	RulesPath string `mapstructure:"rules_path"`

	// DefaultTimeout bounds a single tool execution.
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`

	// ToolTimeouts overrides DefaultTimeout per tool name.
	ToolTimeouts map[string]time.Duration `mapstructure:"tool_timeouts"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
}

func defaults() Settings {
	home, _ := os.UserHomeDir()
	return Settings{
		Interactive:    true,
		Color:          true,
		Workspace:      ".",
		RulesPath:      filepath.Join(home, ".ward", "rules.yaml"),
		DefaultTimeout: 2 * time.Minute,
		LogLevel:       "info",
	}
}

// Load reads ward.yaml from path (or, when path is empty, from the current
// directory and $HOME/.ward) and applies WARD_* environment overrides.
// A missing config file is not an error; defaults apply.
func Load(path string) (Settings, error) {
	v := viper.New()
	v.SetConfigName("ward")
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".ward"))
		}
	}

	v.SetEnvPrefix("WARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaults()
	v.SetDefault("interactive", def.Interactive)
	v.SetDefault("color", def.Color)
	v.SetDefault("workspace", def.Workspace)
	v.SetDefault("rules_path", def.RulesPath)
	v.SetDefault("default_timeout", def.DefaultTimeout)
	v.SetDefault("log_level", def.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return Settings{}, fmt.Errorf("failed to read config: %w", err)
		}
		// Missing config file, run on defaults and env.
	}

	cfg := def
	if err := v.Unmarshal(&cfg); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = def.DefaultTimeout
	}
	if cfg.Workspace == "" {
		cfg.Workspace = "."
	}
	return cfg, nil
}

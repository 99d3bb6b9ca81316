// Package config loads binscope settings from file, environment and flags.
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

// File and environment names
const (
	FileName  = "binscope"
	EnvPrefix = "BINSCOPE"
)

// LogConfig defines the logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// AnalysisConfig defines the analysis parameters
type AnalysisConfig struct {
	ToolsDir string `mapstructure:"tools_dir"`
	Workers  int    `mapstructure:"workers"`
	// MaxIPAFileSize bounds each extracted archive entry, in bytes
	MaxIPAFileSize int64 `mapstructure:"max_ipa_file_size"`
}

// StringsConfig defines string extraction limits
type StringsConfig struct {
	MinLength int `mapstructure:"min_length"`
	MaxCount  int `mapstructure:"max_count"`
}

// ClassDumpConfig defines the class dump tool settings
type ClassDumpConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// RulesConfig selects and authenticates the rule corpus
type RulesConfig struct {
	Path          string `mapstructure:"path"`
	SignaturePath string `mapstructure:"signature_path"`
	KeyringPath   string `mapstructure:"keyring_path"`
	SHA256        string `mapstructure:"sha256"`
}

// Config is the top-level configuration struct
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Strings   StringsConfig   `mapstructure:"strings"`
	ClassDump ClassDumpConfig `mapstructure:"class_dump"`
	Rules     RulesConfig     `mapstructure:"rules"`

	// File is the config file that was read, empty when none was found
	File string `mapstructure:"-"`
}

// SetDefaults registers the default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("analysis.tools_dir", "")
	v.SetDefault("analysis.workers", 4)
	v.SetDefault("analysis.max_ipa_file_size", int64(4<<30))
	v.SetDefault("strings.min_length", 4)
	v.SetDefault("strings.max_count", 50000)
	v.SetDefault("class_dump.timeout", 2*time.Minute)
	v.SetDefault("rules.path", "")
	v.SetDefault("rules.signature_path", "")
	v.SetDefault("rules.keyring_path", "")
	v.SetDefault("rules.sha256", "")
}

// New returns a viper instance with defaults, environment binding and the
// config search path set up. An explicit file overrides the search path.
func New(file string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		return v
	}

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, "."+FileName))
	}
	return v
}

// Load reads the configuration. A missing config file in the search path is
// not an error; a missing explicit file is.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Analysis.Workers < 1 {
		return fmt.Errorf("analysis.workers must be at least 1, got %d", c.Analysis.Workers)
	}
	if c.Strings.MinLength < 1 {
		return fmt.Errorf("strings.min_length must be at least 1, got %d", c.Strings.MinLength)
	}
	if c.Strings.MaxCount < 1 {
		return fmt.Errorf("strings.max_count must be at least 1, got %d", c.Strings.MaxCount)
	}
	if c.ClassDump.Timeout <= 0 {
		return fmt.Errorf("class_dump.timeout must be positive, got %s", c.ClassDump.Timeout)
	}
	if c.Rules.SignaturePath != "" && c.Rules.Path == "" {
		return fmt.Errorf("rules.signature_path requires rules.path")
	}
	if c.Rules.SHA256 != "" && c.Rules.Path == "" {
		return fmt.Errorf("rules.sha256 requires rules.path")
	}
	if c.Rules.SignaturePath != "" && c.Rules.KeyringPath == "" {
		return fmt.Errorf("rules.signature_path requires rules.keyring_path")
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"

	"github.com/go-tangra/go-tangra-sbom/internal/logging"
)

// Output formats.
const (
	FormatText   = "text"
	FormatJSON   = "json"
	FormatYAML   = "yaml"
	FormatSQLite = "sqlite"
)

var validFormats = map[string]bool{
	FormatText:   true,
	FormatJSON:   true,
	FormatYAML:   true,
	FormatSQLite: true,
}

var validDetailLevels = map[string]bool{
	"mini":  true,
	"basic": true,
	"full":  true,
}

// Config holds the inventory run configuration.
type Config struct {
	Format      string        `mapstructure:"format"`
	Output      string        `mapstructure:"output"`
	LogLevel    string        `mapstructure:"log_level"`
	LogFormat   string        `mapstructure:"log_format"`
	ToolTimeout time.Duration `mapstructure:"tool_timeout"`
	Darwin      DarwinConfig  `mapstructure:"darwin"`
	Windows     WindowsConfig `mapstructure:"windows"`
}

// DarwinConfig tunes the system_profiler invocation.
type DarwinConfig struct {
	DetailLevel string `mapstructure:"detail_level"`
}

// WindowsConfig tunes registry enumeration and driver version lookups.
type WindowsConfig struct {
	IncludeCurrentUser bool `mapstructure:"include_current_user"`
	VersionWorkers     int  `mapstructure:"version_workers"`
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Format:    FormatText,
		LogLevel:  "info",
		LogFormat: "text",
		Darwin:    DarwinConfig{DetailLevel: "full"},
		Windows:   WindowsConfig{VersionWorkers: 4},
	}
}

// Load reads configuration from file and environment. With an empty
// cfgFile the standard locations are searched and a missing file is not
// an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("sbom")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/sbom")
	}

	d := Default()
	v.SetDefault("format", d.Format)
	v.SetDefault("output", d.Output)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("tool_timeout", d.ToolTimeout)
	v.SetDefault("darwin.detail_level", d.Darwin.DetailLevel)
	v.SetDefault("windows.include_current_user", d.Windows.IncludeCurrentUser)
	v.SetDefault("windows.version_workers", d.Windows.VersionWorkers)

	v.SetEnvPrefix("SBOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate reports every invalid setting at once. A non-positive worker
// count is clamped to 1 rather than rejected.
func (c *Config) Validate() error {
	var result *multierror.Error

	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	if !validFormats[c.Format] {
		result = multierror.Append(result, fmt.Errorf("format %q is not one of text, json, yaml, sqlite", c.Format))
	}
	if c.Format == FormatSQLite && c.Output == "" {
		result = multierror.Append(result, errors.New("format sqlite requires an output path"))
	}

	result = c.appendLoggingErrors(result)

	if c.ToolTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("tool_timeout %s is negative", c.ToolTimeout))
	}

	if !validDetailLevels[c.Darwin.DetailLevel] {
		result = multierror.Append(result, fmt.Errorf("darwin.detail_level %q is not one of mini, basic, full", c.Darwin.DetailLevel))
	}

	if c.Windows.VersionWorkers < 1 {
		c.Windows.VersionWorkers = 1
	}

	return result.ErrorOrNil()
}

// ValidateLogging checks only the logging settings. Commands that read an
// existing archive use it since they never collect or write a snapshot.
func (c *Config) ValidateLogging() error {
	return c.appendLoggingErrors(nil).ErrorOrNil()
}

func (c *Config) appendLoggingErrors(result *multierror.Error) *multierror.Error {
	if !logging.ValidLevel(c.LogLevel) {
		result = multierror.Append(result, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		result = multierror.Append(result, fmt.Errorf("log_format %q is not one of text, json", c.LogFormat))
	}
	return result
}

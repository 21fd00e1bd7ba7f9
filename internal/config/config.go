// Package config provides configuration management for sfcpreview using
// Viper for loading from files, environment variables, and command-line
// flags.
//
// The configuration system supports YAML files (.sfcpreview.yml),
// environment variable overrides with the SFCPREVIEW_ prefix, defaults and
// validation. It covers server settings, the component root, preview
// generation and development options like hot reload and the error overlay.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	previewerrors "github.com/conneroisu/sfcpreview/internal/errors"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "SFCPREVIEW"

// FileName is the base name of the project configuration file.
const FileName = ".sfcpreview"

type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server" json:"server"`
	Components  ComponentsConfig  `mapstructure:"components" yaml:"components" json:"components"`
	Preview     PreviewConfig     `mapstructure:"preview" yaml:"preview" json:"preview"`
	Development DevelopmentConfig `mapstructure:"development" yaml:"development" json:"development"`
	Log         LogConfig         `mapstructure:"log" yaml:"log" json:"log"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port" yaml:"port" json:"port"`
	Host           string   `mapstructure:"host" yaml:"host" json:"host"`
	Open           bool     `mapstructure:"open" yaml:"open" json:"open"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
	Environment    string   `mapstructure:"environment" yaml:"environment" json:"environment"`
}

type ComponentsConfig struct {
	Root            string   `mapstructure:"root" yaml:"root" json:"root"`
	Extension       string   `mapstructure:"extension" yaml:"extension" json:"extension"`
	CompanionSuffix string   `mapstructure:"companion_suffix" yaml:"companion_suffix" json:"companion_suffix"`
	ExcludePatterns []string `mapstructure:"exclude_patterns" yaml:"exclude_patterns" json:"exclude_patterns"`
}

type PreviewConfig struct {
	ShellDir        string        `mapstructure:"shell_dir" yaml:"shell_dir" json:"shell_dir"`
	SetupFiles      []string      `mapstructure:"setup_files" yaml:"setup_files" json:"setup_files"`
	CacheSize       int           `mapstructure:"cache_size" yaml:"cache_size" json:"cache_size"`
	AnalysisTimeout time.Duration `mapstructure:"analysis_timeout" yaml:"analysis_timeout" json:"analysis_timeout"`
	DefaultDevice   string        `mapstructure:"default_device" yaml:"default_device" json:"default_device"`
	ScanWorkers     int           `mapstructure:"scan_workers" yaml:"scan_workers" json:"scan_workers"`
}

type DevelopmentConfig struct {
	HotReload    bool          `mapstructure:"hot_reload" yaml:"hot_reload" json:"hot_reload"`
	ErrorOverlay bool          `mapstructure:"error_overlay" yaml:"error_overlay" json:"error_overlay"`
	Debounce     time.Duration `mapstructure:"debounce" yaml:"debounce" json:"debounce"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

var defaults = map[string]interface{}{
	"server.port":                 3000,
	"server.host":                 "localhost",
	"server.open":                 false,
	"server.allowed_origins":      []string{},
	"server.environment":          "development",
	"components.root":             ".",
	"components.extension":        ".vue",
	"components.companion_suffix": ".p",
	"components.exclude_patterns": []string{"node_modules", ".git"},
	"preview.shell_dir":           "",
	"preview.setup_files":         []string{"preview.ts", "preview.js"},
	"preview.cache_size":          512,
	"preview.analysis_timeout":    2 * time.Second,
	"preview.default_device":      "freeform",
	"preview.scan_workers":        4,
	"development.hot_reload":      true,
	"development.error_overlay":   true,
	"development.debounce":        100 * time.Millisecond,
	"log.level":                   "info",
	"log.format":                  "text",
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// Default returns the configuration with every default applied.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		// defaults are static, a failure here is a programming error
		panic(fmt.Sprintf("config: decode defaults: %v", err))
	}
	return &config
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v, applying defaults for unset
// keys, and validates it.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, previewerrors.NewConfigError(previewerrors.ErrCodeConfigInvalid, "decode configuration: "+err.Error())
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

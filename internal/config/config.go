// Package config loads weft's CLI configuration with Viper from a
// .weft.yml file, WEFT_ environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	weferrors "github.com/conneroisu/weft/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g. WEFT_SERVER_PORT.
const EnvPrefix = "WEFT"

// FileName is the configuration file looked up in the working directory.
const FileName = ".weft"

type Config struct {
	Templates TemplatesConfig `mapstructure:"templates" yaml:"templates" json:"templates"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server" json:"server"`
	Watch     WatchConfig     `mapstructure:"watch" yaml:"watch" json:"watch"`
	Log       LogConfig       `mapstructure:"log" yaml:"log" json:"log"`
}

type TemplatesConfig struct {
	RootDir         string   `mapstructure:"root_dir" yaml:"root_dir" json:"root_dir"`
	ScanPaths       []string `mapstructure:"scan_paths" yaml:"scan_paths" json:"scan_paths"`
	Extensions      []string `mapstructure:"extensions" yaml:"extensions" json:"extensions"`
	ExcludePatterns []string `mapstructure:"exclude_patterns" yaml:"exclude_patterns" json:"exclude_patterns"`
	Selector        string   `mapstructure:"selector" yaml:"selector" json:"selector"`
	Strict          bool     `mapstructure:"strict" yaml:"strict" json:"strict"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host" json:"host"`
	Port int    `mapstructure:"port" yaml:"port" json:"port"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce" json:"debounce"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// Defaults.
var (
	DefaultScanPaths       = []string{"."}
	DefaultExtensions      = []string{".html", ".htm"}
	DefaultExcludePatterns = []string{"*.bak", "node_modules", ".git"}
)

// Keys lists every configuration key.
var Keys = []string{
	"templates.root_dir",
	"templates.scan_paths",
	"templates.extensions",
	"templates.exclude_patterns",
	"templates.selector",
	"templates.strict",
	"server.host",
	"server.port",
	"watch.debounce",
	"log.level",
	"log.format",
}

const (
	DefaultHost     = "localhost"
	DefaultPort     = 8080
	DefaultDebounce = 300 * time.Millisecond
)

// Init points the global Viper instance at cfgFile, or at .weft.yml in the
// working directory when cfgFile is empty, and enables WEFT_ environment
// overrides. A missing default file is not an error.
func Init(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(FileName)
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Unmarshal only sees environment keys Viper already knows about.
	for _, key := range Keys {
		if err := viper.BindEnv(key); err != nil {
			return weferrors.NewConfigError(weferrors.ErrCodeConfigInvalid, "binding environment for "+key, err)
		}
	}
	// The root directory is also reachable as WEFT_ROOT_DIR.
	if err := viper.BindEnv("templates.root_dir", EnvPrefix+"_TEMPLATES_ROOT_DIR", EnvPrefix+"_ROOT_DIR"); err != nil {
		return weferrors.NewConfigError(weferrors.ErrCodeConfigInvalid, "binding root dir environment", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return weferrors.NewConfigError(weferrors.ErrCodeConfigInvalid, "reading config file", err)
	}

	return nil
}

// Load builds a Config from the global Viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom builds a Config from v, applying defaults for unset keys and
// validating the result.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, weferrors.NewConfigError(weferrors.ErrCodeConfigInvalid, "decoding configuration", err)
	}

	// Slices set through flags or env arrive as comma-joined strings.
	if v.IsSet("templates.scan_paths") && len(config.Templates.ScanPaths) == 0 {
		config.Templates.ScanPaths = v.GetStringSlice("templates.scan_paths")
	}
	if v.IsSet("templates.extensions") && len(config.Templates.Extensions) == 0 {
		config.Templates.Extensions = v.GetStringSlice("templates.extensions")
	}
	if v.IsSet("templates.exclude_patterns") && len(config.Templates.ExcludePatterns) == 0 {
		config.Templates.ExcludePatterns = v.GetStringSlice("templates.exclude_patterns")
	}

	applyDefaults(&config, v)

	if err := validateConfig(&config); err != nil {
		return nil, weferrors.NewConfigError(weferrors.ErrCodeConfigInvalid, "invalid configuration", err)
	}

	return &config, nil
}

func applyDefaults(config *Config, v *viper.Viper) {
	if len(config.Templates.ScanPaths) == 0 {
		config.Templates.ScanPaths = append([]string(nil), DefaultScanPaths...)
	}
	if len(config.Templates.Extensions) == 0 {
		config.Templates.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if !v.IsSet("templates.exclude_patterns") && len(config.Templates.ExcludePatterns) == 0 {
		config.Templates.ExcludePatterns = append([]string(nil), DefaultExcludePatterns...)
	}
	for i, ext := range config.Templates.Extensions {
		if !strings.HasPrefix(ext, ".") {
			config.Templates.Extensions[i] = "." + ext
		}
	}

	if config.Server.Host == "" {
		config.Server.Host = DefaultHost
	}
	if !v.IsSet("server.port") {
		config.Server.Port = DefaultPort
	}

	if config.Watch.Debounce == 0 {
		config.Watch.Debounce = DefaultDebounce
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateTemplatesConfig(&config.Templates); err != nil {
		return fmt.Errorf("templates config: %w", err)
	}

	if config.Watch.Debounce < 0 {
		return fmt.Errorf("watch config: negative debounce %s", config.Watch.Debounce)
	}

	switch config.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log config: unknown format %q", config.Log.Format)
	}

	return nil
}

func validateServerConfig(config *ServerConfig) error {
	// 0 asks the OS for a free port.
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if strings.ContainsAny(config.Host, ";&|$`()<>\"'\\ ") {
		return fmt.Errorf("host %q contains invalid characters", config.Host)
	}

	return nil
}

func validateTemplatesConfig(config *TemplatesConfig) error {
	for _, path := range config.ScanPaths {
		if err := validatePath(path); err != nil {
			return fmt.Errorf("invalid scan path %q: %w", path, err)
		}
	}

	for _, pattern := range config.ExcludePatterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}

	return nil
}

func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	if strings.ContainsAny(path, ";&|$`<>\"'") {
		return fmt.Errorf("path contains invalid characters")
	}

	return nil
}

// Package config handles application configuration using Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"moduletsx/pkg/modules"
	"moduletsx/pkg/syntax"
	"moduletsx/pkg/units"
)

const (
	// AppName is the application name.
	AppName = "moduletsx"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "moduletsx"
	// EnvPrefix prefixes environment overrides, e.g. MODULETSX_CDN_BASE.
	EnvPrefix = "MODULETSX"
)

// ErrInvalidConfig is wrapped by every validation error
var ErrInvalidConfig = errors.New("invalid config")

type (
	// Config is the complete application configuration
	Config struct {
		CDN       CDNConfig       `mapstructure:"cdn"`
		JSX       JSXConfig       `mapstructure:"jsx"`
		Units     UnitsConfig     `mapstructure:"units"`
		Fetch     FetchConfig     `mapstructure:"fetch"`
		Server    ServerConfig    `mapstructure:"server"`
		Log       LogConfig       `mapstructure:"log"`
		ImportMap ImportMapConfig `mapstructure:"importmap"`
	}

	// CDNConfig locates package and node library builds
	CDNConfig struct {
		Base     string `mapstructure:"base"`
		NodeLibs string `mapstructure:"nodelibs"`
	}

	// JSXConfig selects the classic JSX runtime
	JSXConfig struct {
		Runtime  string `mapstructure:"runtime"`
		Factory  string `mapstructure:"factory"`
		Fragment string `mapstructure:"fragment"`
	}

	// UnitsConfig configures unit identifiers
	UnitsConfig struct {
		Prefix string `mapstructure:"prefix"`
	}

	// FetchConfig configures the HTTP fetcher
	FetchConfig struct {
		Timeout        time.Duration `mapstructure:"timeout"`
		Retries        int           `mapstructure:"retries"`
		MaxConcurrency int           `mapstructure:"max_concurrency"`
	}

	// ServerConfig configures `moduletsx serve`
	ServerConfig struct {
		Addr string `mapstructure:"addr"`
		Root string `mapstructure:"root"`
	}

	// LogConfig configures logging
	LogConfig struct {
		Level string `mapstructure:"level"`
	}

	// ImportMapConfig lists import maps merged after the document's own
	ImportMapConfig struct {
		Files []string `mapstructure:"files"`
	}
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		CDN: CDNConfig{
			Base:     "https://esm.sh/",
			NodeLibs: "https://raw.esm.sh/@jspm/core/nodelibs/browser/",
		},
		JSX: JSXConfig{
			Runtime:  "react",
			Factory:  "React.createElement",
			Fragment: "React.Fragment",
		},
		Units: UnitsConfig{Prefix: units.DefaultPrefix},
		Fetch: FetchConfig{
			Timeout:        30 * time.Second,
			Retries:        2,
			MaxConcurrency: 16,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8808",
			Root: ".",
		},
		Log:       LogConfig{Level: "info"},
		ImportMap: ImportMapConfig{Files: []string{}},
	}
}

// New returns a Viper instance carrying the defaults and reading
// MODULETSX_* environment overrides. Flags can be bound to it before Load.
func New() *viper.Viper {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("cdn.base", defaults.CDN.Base)
	v.SetDefault("cdn.nodelibs", defaults.CDN.NodeLibs)
	v.SetDefault("jsx.runtime", defaults.JSX.Runtime)
	v.SetDefault("jsx.factory", defaults.JSX.Factory)
	v.SetDefault("jsx.fragment", defaults.JSX.Fragment)
	v.SetDefault("units.prefix", defaults.Units.Prefix)
	v.SetDefault("fetch.timeout", defaults.Fetch.Timeout)
	v.SetDefault("fetch.retries", defaults.Fetch.Retries)
	v.SetDefault("fetch.max_concurrency", defaults.Fetch.MaxConcurrency)
	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("server.root", defaults.Server.Root)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("importmap.files", defaults.ImportMap.Files)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration. When path is empty, a moduletsx.{yaml,toml,json}
// in the current directory is used if present; defaults apply otherwise.
func Load(v *viper.Viper, path string) (*Config, string, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigFileName)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, "", fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, v.ConfigFileUsed(), nil
}

// Validate checks values that the decoder cannot
func (c *Config) Validate() error {
	var errs []error
	for key, raw := range map[string]string{"cdn.base": c.CDN.Base, "cdn.nodelibs": c.CDN.NodeLibs} {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || !strings.HasSuffix(u.Path, "/") {
			errs = append(errs, fmt.Errorf("%w: %s must be an absolute URL ending in '/', got %q", ErrInvalidConfig, key, raw))
		}
	}
	if c.JSX.Runtime == "" || c.JSX.Factory == "" {
		errs = append(errs, fmt.Errorf("%w: jsx.runtime and jsx.factory are required", ErrInvalidConfig))
	}
	if c.Fetch.Retries < 0 {
		errs = append(errs, fmt.Errorf("%w: fetch.retries must not be negative", ErrInvalidConfig))
	}
	if c.Fetch.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("%w: fetch.max_concurrency must not be negative", ErrInvalidConfig))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err))
	}
	return errors.Join(errs...)
}

// Modules returns the transformer configuration
func (c *Config) Modules() *modules.Config {
	identifier, _, _ := strings.Cut(c.JSX.Factory, ".")
	return &modules.Config{
		CDNBase:              c.CDN.Base,
		NodeLibsBase:         c.CDN.NodeLibs,
		Runtime:              syntax.Runtime{Identifier: identifier, Package: c.JSX.Runtime},
		JSXFactory:           c.JSX.Factory,
		JSXFragment:          c.JSX.Fragment,
		MaxConcurrentFetches: c.Fetch.MaxConcurrency,
	}
}

// LogLevel returns the configured log level
func (c *Config) LogLevel() log.Level {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// ImportMaps reads the extra import map files
func (c *Config) ImportMaps() ([][]byte, error) {
	tables := make([][]byte, 0, len(c.ImportMap.Files))
	for _, path := range c.ImportMap.Files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read import map: %w", err)
		}
		tables = append(tables, data)
	}
	return tables, nil
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.CDN.Base != "https://esm.sh/" {
		t.Errorf("expected default CDN base to be https://esm.sh/, got %s", cfg.CDN.Base)
	}
	if cfg.JSX.Runtime != "react" {
		t.Errorf("expected default JSX runtime to be react, got %s", cfg.JSX.Runtime)
	}
	if cfg.Fetch.Timeout != 30*time.Second {
		t.Errorf("expected default fetch timeout to be 30s, got %s", cfg.Fetch.Timeout)
	}
	if cfg.Server.Addr != "127.0.0.1:8808" {
		t.Errorf("expected default server address to be 127.0.0.1:8808, got %s", cfg.Server.Addr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to be valid, got %v", err)
	}
}

func TestLoadWithoutConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, used, err := Load(New(), "")
	require.NoError(t, err)
	assert.Empty(t, used)

	defaults := DefaultConfig()
	assert.Equal(t, defaults.CDN, cfg.CDN)
	assert.Equal(t, defaults.JSX, cfg.JSX)
	assert.Equal(t, defaults.Units, cfg.Units)
	assert.Equal(t, defaults.Fetch, cfg.Fetch)
	assert.Equal(t, defaults.Server, cfg.Server)
	assert.Equal(t, defaults.Log, cfg.Log)
	assert.Empty(t, cfg.ImportMap.Files)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "moduletsx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cdn:
  base: https://cdn.example/
jsx:
  runtime: preact
  factory: h
  fragment: Fragment
fetch:
  timeout: 5s
  retries: 0
importmap:
  files:
    - maps/a.json
    - maps/b.json
`), 0o644))

	cfg, used, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, "https://cdn.example/", cfg.CDN.Base)
	assert.Equal(t, "https://raw.esm.sh/@jspm/core/nodelibs/browser/", cfg.CDN.NodeLibs)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 0, cfg.Fetch.Retries)
	assert.Equal(t, []string{"maps/a.json", "maps/b.json"}, cfg.ImportMap.Files)

	mc := cfg.Modules()
	assert.Equal(t, "h", mc.Runtime.Identifier)
	assert.Equal(t, "preact", mc.Runtime.Package)
	assert.Equal(t, "Fragment", mc.JSXFragment)
}

func TestLoadDiscoversFileInWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "moduletsx.json"), []byte(`{"server": {"addr": ":9000"}}`), 0o644))
	t.Chdir(dir)

	cfg, used, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "moduletsx.json", filepath.Base(used))
	assert.Equal(t, ":9000", cfg.Server.Addr)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MODULETSX_CDN_BASE", "https://mirror.example/")
	t.Setenv("MODULETSX_FETCH_MAX_CONCURRENCY", "3")
	t.Setenv("MODULETSX_LOG_LEVEL", "debug")

	cfg, _, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example/", cfg.CDN.Base)
	assert.Equal(t, 3, cfg.Fetch.MaxConcurrency)
	assert.Equal(t, log.DebugLevel, cfg.LogLevel())
}

func TestMissingExplicitFile(t *testing.T) {
	_, _, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"relative CDN", func(c *Config) { c.CDN.Base = "/cdn/" }},
		{"CDN without trailing slash", func(c *Config) { c.CDN.Base = "https://esm.sh" }},
		{"bad node libs", func(c *Config) { c.CDN.NodeLibs = "nodelibs" }},
		{"missing factory", func(c *Config) { c.JSX.Factory = "" }},
		{"negative retries", func(c *Config) { c.Fetch.Retries = -1 }},
		{"negative concurrency", func(c *Config) { c.Fetch.MaxConcurrency = -2 }},
		{"unknown log level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestImportMaps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "map.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"imports": {}}`), 0o644))

	cfg := DefaultConfig()
	cfg.ImportMap.Files = []string{path}
	tables, err := cfg.ImportMaps()
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.JSONEq(t, `{"imports": {}}`, string(tables[0]))

	cfg.ImportMap.Files = append(cfg.ImportMap.Files, filepath.Join(dir, "missing.json"))
	_, err = cfg.ImportMaps()
	assert.Error(t, err)
}

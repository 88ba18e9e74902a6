package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	vp := cfg.ViewportFor()
	assert.Equal(t, 300.0, vp.Width)
	assert.Equal(t, 400.0, vp.Height)
	assert.Equal(t, "cropData", cfg.Store.Key)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadWithEnv(filepath.Join(t.TempDir(), "nope.yaml"), noEnv)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
viewport:
  width: 600
output:
  format: png
log_level: debug
`), 0644))

	cfg, err := LoadWithEnv(path, noEnv)
	require.NoError(t, err)
	assert.Equal(t, 600.0, cfg.Viewport.Width)
	assert.Equal(t, 800.0, cfg.ViewportFor().Height)
	assert.Equal(t, "png", cfg.Output.Format)
	assert.Equal(t, 90, cfg.Output.Quality)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_EnvOverrides(t *testing.T) {
	cfg, err := LoadWithEnv("", envMap(map[string]string{
		"CROPPER_STORE_BACKEND":  "file",
		"CROPPER_STORE_PATH":     "/tmp/sessions",
		"CROPPER_OUTPUT_QUALITY": "75",
		"CROPPER_MAX_SCALE":      "8",
		"CROPPER_LOG_LEVEL":      "WARN",
		"CROPPER_HTTP_TIMEOUT":   "1m30s",
	}))
	require.NoError(t, err)
	assert.Equal(t, BackendFile, cfg.Store.Backend)
	assert.Equal(t, "/tmp/sessions", cfg.Store.Path)
	assert.Equal(t, 75, cfg.Output.Quality)
	assert.Equal(t, 8.0, cfg.Gesture.MaxScale)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 90*time.Second, cfg.HTTPTimeout())
}

func TestLoad_BadEnvValue(t *testing.T) {
	_, err := LoadWithEnv("", envMap(map[string]string{"CROPPER_OUTPUT_QUALITY": "high"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CROPPER_OUTPUT_QUALITY")
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("viewport: [unclosed"), 0644))

	_, err := LoadWithEnv(path, noEnv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero width", func(c *Config) { c.Viewport.Width = 0 }},
		{"inverted scale range", func(c *Config) { c.Gesture.MinScale, c.Gesture.MaxScale = 4, 2 }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }},
		{"empty key", func(c *Config) { c.Store.Key = "" }},
		{"negative max entries", func(c *Config) { c.Store.MaxEntries = -1 }},
		{"unknown format", func(c *Config) { c.Output.Format = "gif" }},
		{"quality out of range", func(c *Config) { c.Output.Quality = 101 }},
		{"unknown interpolator", func(c *Config) { c.Output.Interpolator = "lanczos" }},
		{"bad timeout", func(c *Config) { c.Source.HTTPTimeout = "soon" }},
		{"unknown log level", func(c *Config) { c.LogLevel = "trace" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestSave_And_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Viewport.Width = 450
	cfg.Store.Backend = BackendMemory
	cfg.Output.Interpolator = "catmullrom"
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadWithEnv(path, noEnv)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestStorePath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")

	cfg := Default()
	p, err := cfg.StorePath()
	require.NoError(t, err)
	assert.Equal(t, "/data/cropper/sessions.db", p)

	cfg.Store.Backend = BackendFile
	p, err = cfg.StorePath()
	require.NoError(t, err)
	assert.Equal(t, "/data/cropper/sessions", p)

	cfg.Store.Path = "/elsewhere"
	p, _ = cfg.StorePath()
	assert.Equal(t, "/elsewhere", p)
}

func TestLoadDotEnv(t *testing.T) {
	const name = "CROPPER_DOTENV_TEST_VALUE"
	t.Cleanup(func() { os.Unsetenv(name) })

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(name+"=from-dotenv\n"), 0644))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), envFile))
	assert.Equal(t, "from-dotenv", os.Getenv(name))
}

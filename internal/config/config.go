// Package config loads cropper settings from YAML, .env files and
// CROPPER_* environment variables.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cropper/internal/crop"
	"github.com/roach88/cropper/internal/geometry"
	"github.com/roach88/cropper/internal/render"
	"github.com/roach88/cropper/internal/store"
)

//go:embed schema.cue
var schemaSource string

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CROPPER_"

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// Config is the full cropper configuration.
type Config struct {
	Viewport ViewportConfig  `yaml:"viewport" json:"viewport"`
	Gesture  geometry.Limits `yaml:"gesture" json:"gesture"`
	Store    StoreConfig     `yaml:"store" json:"store"`
	Output   OutputConfig    `yaml:"output" json:"output"`
	Source   SourceConfig    `yaml:"source" json:"source"`
	LogLevel string          `yaml:"log_level" json:"log_level"`
}

type ViewportConfig struct {
	Width        float64 `yaml:"width" json:"width"`
	AspectWidth  float64 `yaml:"aspect_width" json:"aspect_width"`
	AspectHeight float64 `yaml:"aspect_height" json:"aspect_height"`
}

// StoreConfig selects the session backend. An empty Path resolves to a
// location under DataDir.
type StoreConfig struct {
	Backend    string `yaml:"backend" json:"backend"`
	Path       string `yaml:"path" json:"path"`
	Key        string `yaml:"key" json:"key"`
	MaxEntries int    `yaml:"max_entries" json:"max_entries"`
}

type OutputConfig struct {
	Dir          string `yaml:"dir" json:"dir"`
	Format       string `yaml:"format" json:"format"`
	Quality      int    `yaml:"quality" json:"quality"`
	Interpolator string `yaml:"interpolator" json:"interpolator"`
}

type SourceConfig struct {
	HTTPTimeout string `yaml:"http_timeout" json:"http_timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Viewport: ViewportConfig{
			Width:        300,
			AspectWidth:  crop.DefaultAspectWidth,
			AspectHeight: crop.DefaultAspectHeight,
		},
		Gesture: geometry.DefaultLimits(),
		Store: StoreConfig{
			Backend: BackendSQLite,
			Key:     store.DefaultKey,
		},
		Output: OutputConfig{
			Dir:          ".",
			Format:       string(render.FormatJPEG),
			Quality:      render.DefaultQuality,
			Interpolator: string(render.InterpolatorBilinear),
		},
		Source: SourceConfig{
			HTTPTimeout: "30s",
		},
		LogLevel: "info",
	}
}

// Load reads the YAML file at path over the defaults, applies CROPPER_*
// environment overrides and validates the result. A missing file is not an
// error.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Debug("config file not found, using defaults", "path", path)
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration against the embedded CUE schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}

	value := schema.Unify(ctx.Encode(c))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ViewportFor returns the crop window for the configured width and aspect.
func (c *Config) ViewportFor() crop.Viewport {
	return crop.NewViewportWithAspect(c.Viewport.Width, c.Viewport.AspectWidth, c.Viewport.AspectHeight)
}

// HTTPTimeout returns the parsed source timeout.
func (c *Config) HTTPTimeout() time.Duration {
	d, err := time.ParseDuration(c.Source.HTTPTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StorePath returns Store.Path, or the default location for the backend.
func (c *Config) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	if c.Store.Backend == BackendFile {
		return filepath.Join(dir, "sessions"), nil
	}
	return filepath.Join(dir, "sessions.db"), nil
}

// DataDir returns the cropper data directory, following XDG_DATA_HOME.
func DataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "cropper"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "cropper"), nil
}

// DefaultPath returns the config file location, following XDG_CONFIG_HOME.
func DefaultPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cropper", "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "cropper", "config.yaml"), nil
}

type envBinding struct {
	name  string
	apply func(c *Config, v string) error
}

var envBindings = []envBinding{
	{"VIEWPORT_WIDTH", func(c *Config, v string) error { return parseFloat(v, &c.Viewport.Width) }},
	{"MIN_SCALE", func(c *Config, v string) error { return parseFloat(v, &c.Gesture.MinScale) }},
	{"MAX_SCALE", func(c *Config, v string) error { return parseFloat(v, &c.Gesture.MaxScale) }},
	{"STORE_BACKEND", func(c *Config, v string) error { c.Store.Backend = v; return nil }},
	{"STORE_PATH", func(c *Config, v string) error { c.Store.Path = v; return nil }},
	{"STORE_KEY", func(c *Config, v string) error { c.Store.Key = v; return nil }},
	{"STORE_MAX_ENTRIES", func(c *Config, v string) error { return parseInt(v, &c.Store.MaxEntries) }},
	{"OUTPUT_DIR", func(c *Config, v string) error { c.Output.Dir = v; return nil }},
	{"OUTPUT_FORMAT", func(c *Config, v string) error { c.Output.Format = strings.ToLower(v); return nil }},
	{"OUTPUT_QUALITY", func(c *Config, v string) error { return parseInt(v, &c.Output.Quality) }},
	{"INTERPOLATOR", func(c *Config, v string) error { c.Output.Interpolator = strings.ToLower(v); return nil }},
	{"HTTP_TIMEOUT", func(c *Config, v string) error { c.Source.HTTPTimeout = v; return nil }},
	{"LOG_LEVEL", func(c *Config, v string) error { c.LogLevel = strings.ToLower(v); return nil }},
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for _, b := range envBindings {
		v, ok := lookup(EnvPrefix + b.name)
		if !ok || v == "" {
			continue
		}
		if err := b.apply(c, v); err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, b.name, err)
		}
	}
	return nil
}

func parseFloat(s string, dst *float64) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func parseInt(s string, dst *int) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

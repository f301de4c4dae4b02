// Package config handles gokernel.toml configuration.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "gokernel.toml"

// Config holds every tunable of the kernel.
type Config struct {
	Display DisplayConfig `toml:"display"`
	Engine  EngineConfig  `toml:"engine"`
	History HistoryConfig `toml:"history"`
	Log     LogConfig     `toml:"log"`
}

// DisplayConfig controls how values are rendered.
type DisplayConfig struct {
	// Preference is "plain" or "latex"
	Preference string `toml:"preference"`
}

// EngineConfig configures the interpreter.
type EngineConfig struct {
	MaxCallStackSize int `toml:"max-call-stack-size"`

	// IncludePaths are searched by %load; the working directory is always last
	IncludePaths []string `toml:"include-paths"`

	// Preload lists scripts run once at startup and after every %reset
	Preload []string `toml:"preload"`

	// DisableFS hides the read-only fs global from cells
	DisableFS bool `toml:"disable-fs"`
}

// HistoryConfig configures the history database.
type HistoryConfig struct {
	Disabled bool   `toml:"disabled"`
	Path     string `toml:"path"`
}

// LogConfig configures the kernel's own diagnostics.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Display: DisplayConfig{Preference: "plain"},
		Engine:  EngineConfig{MaxCallStackSize: 1024},
		History: HistoryConfig{Path: defaultHistoryPath()},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "gokernel", "history.db")
	}
	return filepath.Join(home, ".gokernel", "history.db")
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Display.Preference != "" {
		c.Display.Preference = source.Display.Preference
	}

	if source.Engine.MaxCallStackSize > 0 {
		c.Engine.MaxCallStackSize = source.Engine.MaxCallStackSize
	}
	if len(source.Engine.IncludePaths) > 0 {
		c.Engine.IncludePaths = source.Engine.IncludePaths
	}
	if len(source.Engine.Preload) > 0 {
		c.Engine.Preload = source.Engine.Preload
	}
	if source.Engine.DisableFS {
		c.Engine.DisableFS = true
	}

	if source.History.Disabled {
		c.History.Disabled = true
	}
	if source.History.Path != "" {
		c.History.Path = source.History.Path
	}

	if source.Log.Level != "" {
		c.Log.Level = source.Log.Level
	}
	if source.Log.Format != "" {
		c.Log.Format = source.Log.Format
	}
}

// Load parses the TOML file at path and merges it over the defaults.
// Relative paths inside the file are resolved against its directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var loaded Config
	if err := toml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	loaded.resolve(dir)

	cfg := Default()
	cfg.Merge(&loaded)
	return &cfg, nil
}

// FindAndLoad walks up from startDir looking for gokernel.toml. When none
// is found it returns the defaults.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			cfg := Default()
			return &cfg, nil
		}
		dir = parent
	}
}

func (c *Config) resolve(dir string) {
	abs := func(p string) string {
		if p == "" || p == ":memory:" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i, p := range c.Engine.IncludePaths {
		c.Engine.IncludePaths[i] = abs(p)
	}
	for i, p := range c.Engine.Preload {
		c.Engine.Preload[i] = abs(p)
	}
	c.History.Path = abs(c.History.Path)
}

// SlogLevel maps Log.Level to a slog level, defaulting to info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the kernel's logger writing to w.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

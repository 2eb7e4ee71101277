// Package config manages peregrine configuration.
//
// Configuration is resolved in four layers, each overriding the one
// before it:
//
//  1. Hardcoded defaults (NewConfig)
//  2. User config (~/.config/peregrine/config.yaml)
//  3. Project config (.peregrine.yaml at the workspace root)
//  4. Environment variables (PEREGRINE_*)
//
// Exclude patterns are the one additive key: project and user patterns
// extend the defaults instead of replacing them, so adding an exclusion
// never silently re-includes node_modules.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Version int `yaml:"version" json:"version"`

	Paths PathsConfig `yaml:"paths" json:"paths"`
	Index IndexConfig `yaml:"index" json:"index"`
	Store StoreConfig `yaml:"store" json:"store"`
	Log   LogConfig   `yaml:"log" json:"log"`
	Watch WatchConfig `yaml:"watch" json:"watch"`
	Shell ShellConfig `yaml:"shell" json:"shell"`
}

// PathsConfig controls which files the indexer visits.
type PathsConfig struct {
	// Exclude holds ignore patterns (gitignore dialect) applied across
	// the whole workspace, on top of per-directory .peregrineignore
	// files. Loaded patterns append to the defaults.
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// IndexConfig controls content extraction.
type IndexConfig struct {
	// MaxFileSizeMB caps keyword extraction per file, in megabytes.
	// Larger files are still tracked by name and mod time.
	MaxFileSizeMB int `yaml:"max_file_size_mb" json:"max_file_size_mb"`
}

// StoreConfig selects the snapshot backend.
type StoreConfig struct {
	// Backend is "sqlite" or "file". Empty means sqlite unless an
	// existing snapshot file says otherwise.
	Backend string `yaml:"backend" json:"backend"`
}

// LogConfig controls the slog file handler.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
	// File overrides the default log path under .peregrine/logs.
	File string `yaml:"file,omitempty" json:"file,omitempty"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	// Debounce is how long to coalesce filesystem events before
	// reindexing, as a Go duration string.
	Debounce string `yaml:"debounce" json:"debounce"`
}

// ShellConfig controls the interactive shell.
type ShellConfig struct {
	HistorySize int `yaml:"history_size" json:"history_size"`
}

// defaultExcludePatterns keep VCS metadata, dependency trees and OS cruft
// out of every index. Project config appends to this list.
var defaultExcludePatterns = []string{
	".git/",
	".svn/",
	".hg/",
	"node_modules/",
	"__pycache__/",
	".DS_Store",
	"Thumbs.db",
	"*.swp",
	"*~",
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Exclude: append([]string{}, defaultExcludePatterns...),
		},
		Index: IndexConfig{
			MaxFileSizeMB: 10,
		},
		Store: StoreConfig{
			Backend: "sqlite",
		},
		Log: LogConfig{
			Level: "info",
		},
		Watch: WatchConfig{
			Debounce: "500ms",
		},
		Shell: ShellConfig{
			HistorySize: 1000,
		},
	}
}

// MaxFileSize returns the extraction cap in bytes.
func (c *Config) MaxFileSize() int64 {
	return int64(c.Index.MaxFileSizeMB) * 1024 * 1024
}

// DebounceDuration parses the watch debounce. Call Validate first; an
// unparseable value falls back to the default here rather than panicking.
func (c *Config) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// GetUserConfigDir returns the user-level config directory,
// honoring XDG_CONFIG_HOME.
func GetUserConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "peregrine")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "peregrine")
	}
	return filepath.Join(home, ".config", "peregrine")
}

// GetUserConfigPath returns the user-level config file path.
func GetUserConfigPath() string {
	return filepath.Join(GetUserConfigDir(), "config.yaml")
}

// UserConfigExists reports whether a user-level config file is present.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load resolves configuration for the workspace rooted at dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadUserConfig(); err != nil {
		return nil, fmt.Errorf("load user config: %w", err)
	}
	if err := cfg.loadProjectConfig(dir); err != nil {
		return nil, fmt.Errorf("load project config: %w", err)
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadUserConfig merges ~/.config/peregrine/config.yaml if it exists.
func (c *Config) loadUserConfig() error {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil
	}
	return c.loadYAML(path)
}

// loadProjectConfig merges .peregrine.yaml (or .yml) from dir if present.
func (c *Config) loadProjectConfig(dir string) error {
	for _, name := range []string{".peregrine.yaml", ".peregrine.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	c.mergeWith(&loaded)
	return nil
}

// mergeWith overlays non-zero fields from other onto c. Exclude patterns
// append instead of replacing.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if len(other.Paths.Exclude) > 0 {
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}
	if other.Index.MaxFileSizeMB != 0 {
		c.Index.MaxFileSizeMB = other.Index.MaxFileSizeMB
	}
	if other.Store.Backend != "" {
		c.Store.Backend = other.Store.Backend
	}
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.File != "" {
		c.Log.File = other.Log.File
	}
	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if other.Shell.HistorySize != 0 {
		c.Shell.HistorySize = other.Shell.HistorySize
	}
}

// applyEnvOverrides applies PEREGRINE_* environment variables. Values that
// fail to parse are ignored so a broken shell profile cannot brick the CLI.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PEREGRINE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("PEREGRINE_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("PEREGRINE_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("PEREGRINE_MAX_FILE_SIZE_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.MaxFileSizeMB = n
		}
	}
	if v := os.Getenv("PEREGRINE_WATCH_DEBOUNCE"); v != "" {
		if _, err := time.ParseDuration(v); err == nil {
			c.Watch.Debounce = v
		}
	}
	if v := os.Getenv("PEREGRINE_SHELL_HISTORY_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Shell.HistorySize = n
		}
	}
	if v := os.Getenv("PEREGRINE_EXCLUDE"); v != "" {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.Paths.Exclude = append(c.Paths.Exclude, p)
			}
		}
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validBackends = map[string]bool{
	"":       true, // resolved by store.DetectBackend
	"sqlite": true,
	"file":   true,
}

// Validate checks the resolved configuration for values the rest of the
// program cannot work with.
func (c *Config) Validate() error {
	if !validBackends[c.Store.Backend] {
		return fmt.Errorf("store.backend: unknown backend %q (valid options: sqlite, file)", c.Store.Backend)
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("log.level: unknown level %q (valid options: debug, info, warn, error)", c.Log.Level)
	}
	if c.Index.MaxFileSizeMB <= 0 {
		return fmt.Errorf("index.max_file_size_mb must be positive, got %d", c.Index.MaxFileSizeMB)
	}
	if d, err := time.ParseDuration(c.Watch.Debounce); err != nil {
		return fmt.Errorf("watch.debounce: %w", err)
	} else if d <= 0 {
		return fmt.Errorf("watch.debounce must be positive, got %s", c.Watch.Debounce)
	}
	if c.Shell.HistorySize < 0 {
		return fmt.Errorf("shell.history_size must not be negative, got %d", c.Shell.HistorySize)
	}
	return nil
}

// WriteYAML writes the configuration to path as YAML.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

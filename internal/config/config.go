// Package config loads editor settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the editor's runtime settings.
type Config struct {
	DataDir          string        `yaml:"dataDir"`
	DBPath           string        `yaml:"dbPath"`
	TemplatesDir     string        `yaml:"templatesDir"`
	BlockTypesFile   string        `yaml:"blockTypesFile"`
	AutosaveInterval time.Duration `yaml:"autosaveInterval"`
	AutosaveKeep     int           `yaml:"autosaveKeep"`
	PruneSchedule    string        `yaml:"pruneSchedule"`
	PruneMaxAge      time.Duration `yaml:"pruneMaxAge"`
	WatchTemplates   bool          `yaml:"watchTemplates"`
}

// Default returns the settings used when no file overrides them.
func Default() Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".local", "share", "blockeditor")
	return Config{
		DataDir:          dataDir,
		DBPath:           filepath.Join(dataDir, "editor.db"),
		TemplatesDir:     filepath.Join(dataDir, "templates"),
		AutosaveInterval: 10 * time.Second,
		AutosaveKeep:     5,
		PruneSchedule:    "@hourly",
		PruneMaxAge:      7 * 24 * time.Hour,
		WatchTemplates:   true,
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// Paths left empty after decoding are derived from DataDir.
func Load(path string) (Config, error) {
	cfg := Default()
	defaultDataDir := cfg.DataDir

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if cfg.DataDir != defaultDataDir {
		def := Default()
		if cfg.DBPath == def.DBPath {
			cfg.DBPath = filepath.Join(cfg.DataDir, "editor.db")
		}
		if cfg.TemplatesDir == def.TemplatesDir {
			cfg.TemplatesDir = filepath.Join(cfg.DataDir, "templates")
		}
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the editor cannot run with.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("config: dbPath is required")
	}
	if c.AutosaveInterval <= 0 {
		return fmt.Errorf("config: autosaveInterval must be positive, got %s", c.AutosaveInterval)
	}
	if c.AutosaveKeep < 1 {
		return fmt.Errorf("config: autosaveKeep must be at least 1, got %d", c.AutosaveKeep)
	}
	return nil
}

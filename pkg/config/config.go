package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all configuration for recall-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// The database key must only come from the environment.
type Config struct {
	// Server configuration
	Transport string `yaml:"transport" env:"RECALL_TRANSPORT" env-default:"stdio"`
	BindAddr  string `yaml:"bind_addr" env:"RECALL_BIND_ADDR" env-default:"127.0.0.1"`
	Port      string `yaml:"port" env:"RECALL_PORT" env-default:"3443"`
	LogLevel  string `yaml:"log_level" env:"RECALL_LOG_LEVEL" env-default:"info"`
	Version   string `yaml:"-"` // Set at load time, not from config

	// Activity database configuration
	Store StoreConfig `yaml:"store"`

	// Search defaults
	Search SearchConfig `yaml:"search"`

	// Screen capture deduplication
	Dedupe DedupeConfig `yaml:"dedupe"`
}

// StoreConfig locates and unlocks the encrypted activity database.
type StoreConfig struct {
	// Path is the encrypted SQLite database file. Defaults to the
	// recorder's standard location under the user's home directory.
	Path string `yaml:"path" env:"RECALL_DB_PATH" env-default:""`

	// Key unlocks the database. Secret - not in YAML.
	Key string `yaml:"-" env:"RECALL_DB_KEY"`

	// Timezone interprets zone-less timestamps in the database, as an
	// IANA name. Empty means the process-local zone.
	Timezone string `yaml:"timezone" env:"RECALL_TIMEZONE" env-default:""`

	// MediaRoot is the directory holding audio snippets and screen
	// capture chunks. Empty disables media path resolution.
	MediaRoot string `yaml:"media_root" env:"RECALL_MEDIA_ROOT" env-default:""`
}

// SearchConfig holds defaults for search and range operations.
type SearchConfig struct {
	// DefaultWindow is the lookback used when a call gives no time range.
	DefaultWindow string `yaml:"default_window" env:"RECALL_SEARCH_DEFAULT_WINDOW" env-default:"7d"`
	// ContextWords is the transcript context on each side of a hit.
	ContextWords int `yaml:"context_words" env:"RECALL_SEARCH_CONTEXT_WORDS" env-default:"3"`
	// ContextChars is the screen text context on each side of a hit.
	ContextChars int `yaml:"context_chars" env:"RECALL_SEARCH_CONTEXT_CHARS" env-default:"200"`
	// Limit caps results per source.
	Limit int `yaml:"limit" env:"RECALL_SEARCH_LIMIT" env-default:"100"`
}

// DedupeConfig tunes near-duplicate screen collapsing.
type DedupeConfig struct {
	// Threshold is the similarity above which consecutive captures are
	// considered the same content.
	Threshold float64 `yaml:"threshold" env:"RECALL_DEDUPE_THRESHOLD" env-default:"0.92"`
}

// defaultStorePath is where the recorder keeps its database on macOS.
func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home,
		"Library", "Application Support", "com.memoryvault.MemoryVault", "db-enc.sqlite3")
}

// Load reads configuration from config.yaml with environment variable
// overrides. A .env in the working directory and ~/.recall.env are loaded
// into the environment first, existing variables winning. The version
// parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	loadDotenv()

	cfg := &Config{Version: version}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = defaultStorePath()
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotenv merges .env files into the environment without overriding
// variables that are already set.
func loadDotenv() {
	_ = godotenv.Load()
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".recall.env"))
	}
}

func (c *Config) validate() error {
	if c.Store.Path == "" {
		return errors.New("store path is not set (RECALL_DB_PATH)")
	}
	if c.Store.Key == "" {
		return errors.New("database key is not set (RECALL_DB_KEY)")
	}
	switch c.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("unknown transport %q (want stdio or http)", c.Transport)
	}
	if c.Store.Timezone != "" {
		if _, err := time.LoadLocation(c.Store.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Store.Timezone, err)
		}
	}
	return nil
}

// Location returns the configured timezone, or the process-local zone when
// none is set.
func (c *Config) Location() *time.Location {
	if c.Store.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Store.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ListenAddr returns the HTTP listen address.
func (c *Config) ListenAddr() string {
	return c.BindAddr + ":" + c.Port
}

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all agentlens configuration.
type Config struct {
	General GeneralConfig `toml:"general"`
	Cache   CacheConfig   `toml:"cache"`
	Server  ServerConfig  `toml:"server"`
	Pricing PricingConfig `toml:"pricing"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	ClaudeDir             string `toml:"claude_dir,omitempty"`
	CodexDir              string `toml:"codex_dir,omitempty"`
	TimezoneOffsetMinutes int    `toml:"timezone_offset_minutes"`
}

// CacheConfig bounds the memory cache and startup warming.
type CacheConfig struct {
	MaxProjects     int    `toml:"max_projects"`
	MaxMBPerProject int    `toml:"max_mb_per_project"`
	WarmOnStartup   int    `toml:"warm_on_startup"`
	BackfillLimit   int    `toml:"backfill_limit"`
	Dir             string `toml:"dir,omitempty"`
}

// ServerConfig holds dashboard server settings.
type ServerConfig struct {
	Addr string `toml:"addr,omitempty"`
}

// PricingConfig holds pricing table settings.
type PricingConfig struct {
	URL string `toml:"url,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Cache: CacheConfig{
			MaxProjects:     5,
			MaxMBPerProject: 500,
			WarmOnStartup:   3,
			BackfillLimit:   5,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8021",
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "agentlens")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "agentlens")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// CacheDir returns the configured cache directory, defaulting to an
// XDG-compliant location.
func (c Config) CacheDir() string {
	if c.Cache.Dir != "" {
		return c.Cache.Dir
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "agentlens")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "agentlens")
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}

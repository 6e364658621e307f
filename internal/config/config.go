package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents ~/.imsg/config.toml.
type Config struct {
	ChatDB         string         `toml:"chat_db"`
	AddressBookDir string         `toml:"address_book_dir"`
	Sync           SyncConfig     `toml:"sync"`
	Contacts       ContactsConfig `toml:"contacts"`
	Log            LogConfig      `toml:"log"`
}

type SyncConfig struct {
	PollInterval  Duration `toml:"poll_interval"`
	MaxMessages   int      `toml:"max_messages"`
	WatchFS       bool     `toml:"watch_fs"`
	OtherServices bool     `toml:"other_services"`
}

type ContactsConfig struct {
	MaxConcurrent int      `toml:"max_concurrent"`
	RetryAfter    Duration `toml:"retry_after"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a time.Duration that reads and writes as "250ms" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists.
// Empty paths are filled in by the caller from internal/paths.
func Default() *Config {
	return &Config{
		Sync: SyncConfig{
			PollInterval: Duration{250 * time.Millisecond},
			MaxMessages:  500,
			WatchFS:      true,
		},
		Contacts: ContactsConfig{
			MaxConcurrent: 4,
			RetryAfter:    Duration{5 * time.Minute},
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads config from the given path. Returns error if the file is missing.
// Keys absent from the file keep their Default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate rejects values the sync loop and cache cannot run with.
func (c *Config) Validate() error {
	if c.Sync.PollInterval.Duration <= 0 {
		return fmt.Errorf("sync.poll_interval must be positive, got %s", c.Sync.PollInterval)
	}
	if c.Sync.MaxMessages <= 0 {
		return fmt.Errorf("sync.max_messages must be positive, got %d", c.Sync.MaxMessages)
	}
	if c.Contacts.MaxConcurrent <= 0 {
		return fmt.Errorf("contacts.max_concurrent must be positive, got %d", c.Contacts.MaxConcurrent)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

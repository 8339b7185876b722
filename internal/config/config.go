// Package config loads storysync configuration from a config file, the
// environment and built-in defaults, in decreasing order of precedence:
//
//	STORYSYNC_* environment variables   (STORYSYNC_SYNC_INTERVAL=5m)
//	storysync.yaml / storysync.toml      (--config, else data dir, else cwd)
//	defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "STORYSYNC"

// Config is the effective configuration.
type Config struct {
	DataDir   string          `mapstructure:"data_dir" yaml:"data_dir"`
	Sync      SyncConfig      `mapstructure:"sync" yaml:"sync"`
	Status    StatusConfig    `mapstructure:"status" yaml:"status"`
	Notify    NotifyConfig    `mapstructure:"notify" yaml:"notify"`
	Remote    RemoteConfig    `mapstructure:"remote" yaml:"remote"`
	Dashboard DashboardConfig `mapstructure:"dashboard" yaml:"dashboard"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-" yaml:"-"`
}

// SyncConfig controls when syncs may run.
type SyncConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	WiFiOnly bool          `mapstructure:"wifi_only" yaml:"wifi_only"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	Budget   time.Duration `mapstructure:"budget" yaml:"budget"`
}

// StatusConfig controls remote status probing.
type StatusConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// NotifyConfig controls change signal handling.
type NotifyConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// RemoteConfig locates the remote record store.
type RemoteConfig struct {
	URL  string `mapstructure:"url" yaml:"url"`
	Zone string `mapstructure:"zone" yaml:"zone"`
}

// DashboardConfig controls the WebSocket dashboard.
type DashboardConfig struct {
	// Port 0 disables the dashboard.
	Port int `mapstructure:"port" yaml:"port"`
}

// LogConfig controls the process log.
type LogConfig struct {
	// File, if set, receives a copy of the log, rotated by size.
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
}

// DefaultDataDir returns ~/.storysync, or .storysync if the home directory
// is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".storysync"
	}
	return filepath.Join(home, ".storysync")
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("sync.enabled", true)
	v.SetDefault("sync.wifi_only", false)
	v.SetDefault("sync.interval", 15*time.Minute)
	v.SetDefault("sync.budget", 30*time.Second)
	v.SetDefault("status.interval", time.Minute)
	v.SetDefault("notify.debounce", 500*time.Millisecond)
	v.SetDefault("remote.url", "redis://localhost:6379/0")
	v.SetDefault("remote.zone", "StoryZone")
	v.SetDefault("dashboard.port", 0)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
}

// New returns a viper instance with defaults and environment overrides
// registered but no file read yet.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration.
//
// If path is set, that file must exist. Otherwise storysync.{yaml,toml,...}
// is looked up in the data directory and then the working directory; not
// finding one is fine.
func Load(path string) (*Config, error) {
	return LoadFrom(New(), path)
}

// LoadFrom reads the configuration into v, which may already carry flag
// bindings or overrides.
func LoadFrom(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("storysync")
		v.AddConfigPath(v.GetString("data_dir"))
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("data_dir cannot be empty"))
	}
	if c.Sync.Interval <= 0 {
		errs = append(errs, fmt.Errorf("sync.interval must be positive, got %s", c.Sync.Interval))
	}
	if c.Sync.Budget <= 0 {
		errs = append(errs, fmt.Errorf("sync.budget must be positive, got %s", c.Sync.Budget))
	}
	if c.Status.Interval <= 0 {
		errs = append(errs, fmt.Errorf("status.interval must be positive, got %s", c.Status.Interval))
	}
	if c.Notify.Debounce <= 0 {
		errs = append(errs, fmt.Errorf("notify.debounce must be positive, got %s", c.Notify.Debounce))
	}
	if c.Remote.URL == "" {
		errs = append(errs, fmt.Errorf("remote.url cannot be empty"))
	}
	if c.Remote.Zone == "" {
		errs = append(errs, fmt.Errorf("remote.zone cannot be empty"))
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		errs = append(errs, fmt.Errorf("dashboard.port out of range: %d", c.Dashboard.Port))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// JournalPath is where the sync journal lives.
func (c *Config) JournalPath() string {
	return filepath.Join(c.DataDir, "journal.db")
}

package adapter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// BackendType identifies the remote store implementation
type BackendType string

const (
	BackendREST     BackendType = "rest"
	BackendPostgres BackendType = "postgres"
	BackendRedis    BackendType = "redis"
	BackendNone     BackendType = "none"
)

// MaxHistoryLimit bounds sync.history_limit
const MaxHistoryLimit = 500

// Config holds all application configuration
type Config struct {
	Remote  RemoteConfig  `mapstructure:"remote"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Player  PlayerConfig  `mapstructure:"player"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// RemoteConfig selects and addresses the per-account store
type RemoteConfig struct {
	Backend     BackendType   `mapstructure:"backend"`      // "rest", "postgres", "redis" or "none"
	URL         string        `mapstructure:"url"`          // REST base URL
	AnonKey     string        `mapstructure:"anon_key"`     // REST public key
	DatabaseURL string        `mapstructure:"database_url"` // postgres only
	RedisURL    string        `mapstructure:"redis_url"`    // redis only
	Timeout     time.Duration `mapstructure:"timeout"`
}

// AuthConfig addresses the auth service. Empty fields fall back to the remote settings.
type AuthConfig struct {
	URL     string `mapstructure:"url"`
	AnonKey string `mapstructure:"anon_key"`
}

// SyncConfig tunes the watch state engine
type SyncConfig struct {
	Debounce     time.Duration `mapstructure:"debounce"`
	HistoryLimit int           `mapstructure:"history_limit"`
	FlushOnClose bool          `mapstructure:"flush_on_close"`
}

// PlayerConfig holds playback configuration
type PlayerConfig struct {
	Source  string `mapstructure:"source"`  // embed source id, e.g. "vidsrc.xyz"
	Command string `mapstructure:"command"` // browser command, empty for system default
}

// StorageConfig holds the local database location
type StorageConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Remote: RemoteConfig{
			Backend: BackendREST,
			Timeout: 15 * time.Second,
		},
		Sync: SyncConfig{
			Debounce:     3 * time.Second,
			HistoryLimit: 50,
			FlushOnClose: true,
		},
		Player: PlayerConfig{
			Source: "vidsrc.xyz",
		},
		Storage: StorageConfig{
			Dir: defaultDataPath(),
		},
		Logging: LoggingConfig{
			File:  filepath.Join(defaultDataPath(), "watchparty.log"),
			Level: "INFO",
		},
	}
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "watchparty")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "watchparty")
	}
}

// DefaultConfigPath returns the default config directory for the current OS
func DefaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "watchparty")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "watchparty")
	}
}

// newViper prepares a viper instance with every key defaulted so that
// WATCHPARTY_* environment variables can override nested settings.
func newViper(cfg *Config) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("WATCHPARTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("remote.backend", string(cfg.Remote.Backend))
	v.SetDefault("remote.url", cfg.Remote.URL)
	v.SetDefault("remote.anon_key", cfg.Remote.AnonKey)
	v.SetDefault("remote.database_url", cfg.Remote.DatabaseURL)
	v.SetDefault("remote.redis_url", cfg.Remote.RedisURL)
	v.SetDefault("remote.timeout", cfg.Remote.Timeout)

	v.SetDefault("auth.url", cfg.Auth.URL)
	v.SetDefault("auth.anon_key", cfg.Auth.AnonKey)

	v.SetDefault("sync.debounce", cfg.Sync.Debounce)
	v.SetDefault("sync.history_limit", cfg.Sync.HistoryLimit)
	v.SetDefault("sync.flush_on_close", cfg.Sync.FlushOnClose)

	v.SetDefault("player.source", cfg.Player.Source)
	v.SetDefault("player.command", cfg.Player.Command)

	v.SetDefault("storage.dir", cfg.Storage.Dir)

	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
	return v
}

// LoadConfig loads configuration from file and environment.
// With no paths it searches the default config directory and ".".
func LoadConfig(paths ...string) (*Config, error) {
	cfg := DefaultConfig()
	v := newViper(cfg)

	if len(paths) == 0 {
		paths = []string{DefaultConfigPath(), "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with
func (c *Config) Validate() error {
	if c.Sync.Debounce <= 0 {
		return fmt.Errorf("sync.debounce must be positive, got %s", c.Sync.Debounce)
	}
	if c.Sync.HistoryLimit < 1 || c.Sync.HistoryLimit > MaxHistoryLimit {
		return fmt.Errorf("sync.history_limit must be between 1 and %d, got %d", MaxHistoryLimit, c.Sync.HistoryLimit)
	}
	switch c.Remote.Backend {
	case BackendREST, BackendPostgres, BackendRedis, BackendNone:
	default:
		return fmt.Errorf("unknown remote.backend %q", c.Remote.Backend)
	}
	return nil
}

// IsConfigured reports whether the selected backend has what it needs to connect
func (c *Config) IsConfigured() bool {
	switch c.Remote.Backend {
	case BackendREST:
		return c.Remote.URL != "" && c.Remote.AnonKey != ""
	case BackendPostgres:
		return c.Remote.DatabaseURL != ""
	case BackendRedis:
		return c.Remote.RedisURL != ""
	default:
		return false
	}
}

// AuthURL returns the auth service URL, defaulting to the REST URL
func (c *Config) AuthURL() string {
	if c.Auth.URL != "" {
		return c.Auth.URL
	}
	return c.Remote.URL
}

// AuthKey returns the auth service key, defaulting to the REST key
func (c *Config) AuthKey() string {
	if c.Auth.AnonKey != "" {
		return c.Auth.AnonKey
	}
	return c.Remote.AnonKey
}

// SaveConfig writes cfg as config.yaml in dir (the default config directory when empty)
func SaveConfig(cfg *Config, dir string) error {
	if dir == "" {
		dir = DefaultConfigPath()
	}

	// Ensure config directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.Set("remote.backend", string(cfg.Remote.Backend))
	v.Set("remote.url", cfg.Remote.URL)
	v.Set("remote.anon_key", cfg.Remote.AnonKey)
	v.Set("remote.database_url", cfg.Remote.DatabaseURL)
	v.Set("remote.redis_url", cfg.Remote.RedisURL)
	v.Set("remote.timeout", cfg.Remote.Timeout.String())

	v.Set("auth.url", cfg.Auth.URL)
	v.Set("auth.anon_key", cfg.Auth.AnonKey)

	v.Set("sync.debounce", cfg.Sync.Debounce.String())
	v.Set("sync.history_limit", cfg.Sync.HistoryLimit)
	v.Set("sync.flush_on_close", cfg.Sync.FlushOnClose)

	v.Set("player.source", cfg.Player.Source)
	v.Set("player.command", cfg.Player.Command)

	v.Set("storage.dir", cfg.Storage.Dir)

	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(dir, "config.yaml")
	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

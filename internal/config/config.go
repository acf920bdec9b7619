// Package config provides configuration management for tradeguard.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"tradeguard/internal/audit"
	apperrors "tradeguard/internal/errors"
	"tradeguard/internal/logging"
	"tradeguard/internal/store"
	"tradeguard/pkg/utils"
)

// Environment variables that override file settings.
const (
	EnvStoreDriver = "TRADEGUARD_STORE_DRIVER"
	EnvStorePath   = "TRADEGUARD_STORE_PATH"
	EnvLogLevel    = "TRADEGUARD_LOG_LEVEL"
	EnvConfigDir   = "TRADEGUARD_CONFIG_DIR"
)

// Config holds all application configuration.
type Config struct {
	Store   StoreConfig       `mapstructure:"store"`
	Clock   ClockConfig       `mapstructure:"clock"`
	Logging logging.LogConfig `mapstructure:"logging"`
	Audit   audit.Config      `mapstructure:"audit"`
	UI      UIConfig          `mapstructure:"ui"`
}

// StoreConfig selects the persistence adapter.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // sqlite, file, memory
	Path   string `mapstructure:"path"`
}

// ClockConfig controls when rule edits lock.
type ClockConfig struct {
	TimeZone string `mapstructure:"time_zone"`
	LockAt   string `mapstructure:"lock_at"` // HH:MM, 24h
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	TimeFormat   string `mapstructure:"time_format"`
}

var lockAtPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/tradeguard"
	}
	return filepath.Join(home, ".config", "tradeguard")
}

// Default returns the configuration used when no file overrides a setting.
func Default(configDir string) *Config {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	logCfg := logging.DefaultLogConfig()
	logCfg.FilePath = filepath.Join(configDir, "logs", "tradeguard.log")
	logCfg.Console = false // --debug turns it on

	return &Config{
		Store: StoreConfig{
			Driver: store.DriverSQLite,
			Path:   filepath.Join(configDir, "tradeguard.db"),
		},
		Clock: ClockConfig{
			TimeZone: utils.EasternZone,
			LockAt:   "09:30",
		},
		Logging: logCfg,
		Audit:   audit.DefaultConfig(configDir),
		UI: UIConfig{
			ColorEnabled: true,
			TimeFormat:   "3:04 PM",
		},
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is created from the template and defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default(configDir)

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Path returns the config file location inside configDir.
func Path(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}

func loadConfigFile(configDir, name string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	// Set defaults
	v.SetDefault("store.driver", cfg.Store.Driver)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("clock.time_zone", cfg.Clock.TimeZone)
	v.SetDefault("clock.lock_at", cfg.Clock.LockAt)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.console", cfg.Logging.Console)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.file_path", cfg.Logging.FilePath)
	v.SetDefault("logging.max_size", cfg.Logging.MaxSize)
	v.SetDefault("logging.max_backups", cfg.Logging.MaxBackups)
	v.SetDefault("logging.max_age", cfg.Logging.MaxAge)
	v.SetDefault("audit.enabled", cfg.Audit.Enabled)
	v.SetDefault("audit.file_path", cfg.Audit.FilePath)
	v.SetDefault("audit.max_size", cfg.Audit.MaxSize)
	v.SetDefault("audit.max_backups", cfg.Audit.MaxBackups)
	v.SetDefault("audit.max_age", cfg.Audit.MaxAge)
	v.SetDefault("ui.color_enabled", cfg.UI.ColorEnabled)
	v.SetDefault("ui.time_format", cfg.UI.TimeFormat)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		if err := createTemplateConfig(configDir, name); err != nil {
			return err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return err
	}
	cfg.Store.Path = expandHome(cfg.Store.Path)
	cfg.Logging.FilePath = expandHome(cfg.Logging.FilePath)
	cfg.Audit.FilePath = expandHome(cfg.Audit.FilePath)
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvStoreDriver); v != "" {
		cfg.Store.Driver = strings.ToLower(v)
	}
	if v := os.Getenv(EnvStorePath); v != "" {
		cfg.Store.Path = expandHome(v)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case store.DriverSQLite, store.DriverFile:
		if c.Store.Path == "" {
			return apperrors.Wrapf(apperrors.ErrConfigInvalid, "store.path is required for driver %q", c.Store.Driver)
		}
	case store.DriverMemory:
	default:
		return apperrors.Wrapf(apperrors.ErrConfigInvalid, "invalid store driver: %s (must be 'sqlite', 'file' or 'memory')", c.Store.Driver)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	if _, _, err := c.LockTime(); err != nil {
		return err
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return apperrors.Wrapf(apperrors.ErrConfigInvalid, "invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// Location resolves the configured clock time zone. Host-local time is refused
// so the lock never depends on where the process runs.
func (c *Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Clock.TimeZone)
	if name == "" || strings.EqualFold(name, "local") {
		return nil, apperrors.Wrapf(apperrors.ErrConfigInvalid, "clock.time_zone must name an IANA zone, got %q", c.Clock.TimeZone)
	}
	if name == utils.EasternZone {
		return utils.EasternLocation(), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrConfigInvalid, "clock.time_zone %q: %v", name, err)
	}
	return loc, nil
}

// LockTime parses clock.lock_at into hour and minute.
func (c *Config) LockTime() (hour, minute int, err error) {
	m := lockAtPattern.FindStringSubmatch(strings.TrimSpace(c.Clock.LockAt))
	if m == nil {
		return 0, 0, apperrors.Wrapf(apperrors.ErrConfigInvalid, "clock.lock_at must be HH:MM, got %q", c.Clock.LockAt)
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	return hour, minute, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// Package config loads tabtree settings from tabtree.yaml and TABTREE_*
// environment variables.
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

// Config holds application configuration.
type Config struct {
	Port        int           `mapstructure:"port"`
	Locale      string        `mapstructure:"locale"`
	Timezone    string        `mapstructure:"timezone"`
	ExportDir   string        `mapstructure:"export_dir"`
	DBPath      string        `mapstructure:"db_path"`
	LogDir      string        `mapstructure:"log_dir"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	Profile     string        `mapstructure:"profile"`
	FirefoxDir  string        `mapstructure:"firefox_dir"`

	Restore RestoreConfig `mapstructure:"restore"`
}

// RestoreConfig holds the restore pacing policy.
type RestoreConfig struct {
	BatchSize            int           `mapstructure:"batch_size"`
	BatchDelay           time.Duration `mapstructure:"batch_delay"`
	CallsPerSecond       float64       `mapstructure:"calls_per_second"`
	SettleDelay          time.Duration `mapstructure:"settle_delay"`
	Order                string        `mapstructure:"order"`
	Reorder              bool          `mapstructure:"reorder"`
	ReplayStates         bool          `mapstructure:"replay_states"`
	SubstitutePrivileged bool          `mapstructure:"substitute_privileged"`
}

// Default returns a Config with default values.
func Default() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Port:        19191,
		Locale:      "en",
		Timezone:    "Local",
		ExportDir:   ".",
		DBPath:      filepath.Join(dataDir, "tabtree.db"),
		LogDir:      dataDir,
		CallTimeout: 10 * time.Second,
		Restore: RestoreConfig{
			BatchSize:            10,
			BatchDelay:           500 * time.Millisecond,
			CallsPerSecond:       20,
			SettleDelay:          time.Second,
			Order:                "preorder",
			Reorder:              true,
			ReplayStates:         true,
			SubstitutePrivileged: true,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "tabtree")
}

// Load reads tabtree.yaml from the user config dir, the home dir or the
// working directory (first found wins), then applies TABTREE_* environment
// overrides, e.g. TABTREE_RESTORE_BATCH_SIZE.
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("tabtree")
	v.SetConfigType("yaml")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "tabtree"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("TABTREE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("port", d.Port)
	v.SetDefault("locale", d.Locale)
	v.SetDefault("timezone", d.Timezone)
	v.SetDefault("export_dir", d.ExportDir)
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("log_dir", d.LogDir)
	v.SetDefault("call_timeout", d.CallTimeout)
	v.SetDefault("profile", d.Profile)
	v.SetDefault("firefox_dir", d.FirefoxDir)
	v.SetDefault("restore.batch_size", d.Restore.BatchSize)
	v.SetDefault("restore.batch_delay", d.Restore.BatchDelay)
	v.SetDefault("restore.calls_per_second", d.Restore.CallsPerSecond)
	v.SetDefault("restore.settle_delay", d.Restore.SettleDelay)
	v.SetDefault("restore.order", d.Restore.Order)
	v.SetDefault("restore.reorder", d.Restore.Reorder)
	v.SetDefault("restore.replay_states", d.Restore.ReplayStates)
	v.SetDefault("restore.substitute_privileged", d.Restore.SubstitutePrivileged)
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.Restore.Order != "preorder" && cfg.Restore.Order != "breadth-first" {
		return nil, fmt.Errorf("invalid restore.order %q", cfg.Restore.Order)
	}
	return cfg, nil
}

// Location resolves the configured time zone. An unknown zone falls back
// to local time.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ExportPath places an export file name in ExportDir. A leading "~/" is
// expanded to the home directory.
func (c *Config) ExportPath(name string) string {
	dir := c.ExportDir
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, strings.TrimPrefix(dir[1:], "/"))
		}
	}
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, name)
}

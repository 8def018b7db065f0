package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ServerConfig locates the advisor backend.
type ServerConfig struct {
	// BaseURL is the REST root (e.g., http://localhost:8000).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// WSURL is the push channel root; /ws/<clientId> is appended per attempt.
	WSURL string `mapstructure:"ws_url" yaml:"ws_url"`
}

// ChannelConfig tunes reconnection and keep-alive of the push channel.
type ChannelConfig struct {
	MaxAttempts     int `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelayMs     int `mapstructure:"base_delay_ms" yaml:"base_delay_ms"`
	MaxDelayMs      int `mapstructure:"max_delay_ms" yaml:"max_delay_ms"`
	PingIntervalSec int `mapstructure:"ping_interval_sec" yaml:"ping_interval_sec"`
}

// BaseDelay returns the first reconnection delay.
func (c ChannelConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMs) * time.Millisecond
}

// MaxDelay returns the reconnection delay cap.
func (c ChannelConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMs) * time.Millisecond
}

// PingInterval returns the keep-alive period.
func (c ChannelConfig) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalSec) * time.Second
}

// PreviewConfig controls inline agent previews.
type PreviewConfig struct {
	TTLMs int `mapstructure:"ttl_ms" yaml:"ttl_ms"`
}

// TTL returns how long a preview stays on its agent card.
func (c PreviewConfig) TTL() time.Duration {
	return time.Duration(c.TTLMs) * time.Millisecond
}

// DashboardConfig controls the metrics refresh loop.
type DashboardConfig struct {
	RefreshIntervalSec int `mapstructure:"refresh_interval_sec" yaml:"refresh_interval_sec"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// StoreConfig locates the local SQLite database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// MockConfig configures the development backend.
type MockConfig struct {
	Addr               string `mapstructure:"addr" yaml:"addr"`
	InsightIntervalSec int    `mapstructure:"insight_interval_sec" yaml:"insight_interval_sec"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Channel   ChannelConfig   `mapstructure:"channel" yaml:"channel"`
	Flags     UXFlags         `mapstructure:"flags" yaml:"flags"`
	Preview   PreviewConfig   `mapstructure:"preview" yaml:"preview"`
	Dashboard DashboardConfig `mapstructure:"dashboard" yaml:"dashboard"`
	Display   DisplayConfig   `mapstructure:"display" yaml:"display"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Mock      MockConfig      `mapstructure:"mock" yaml:"mock"`
}

// configDir returns ~/.config/finpal, or the working directory when the
// home directory cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "finpal")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/finpal/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			BaseURL: "http://localhost:8000",
			WSURL:   "ws://localhost:8000",
		},
		Channel: ChannelConfig{
			MaxAttempts:     5,
			BaseDelayMs:     1000,
			MaxDelayMs:      10000,
			PingIntervalSec: 30,
		},
		Flags:     DefaultUXFlags(),
		Preview:   PreviewConfig{TTLMs: 8000},
		Dashboard: DashboardConfig{RefreshIntervalSec: 30},
		Display:   DisplayConfig{Theme: "default"},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(configDir(), "finpal.log"),
		},
		Store: StoreConfig{Path: filepath.Join(configDir(), "finpal.db")},
		Mock: MockConfig{
			Addr:               ":8000",
			InsightIntervalSec: 45,
		},
	}
}

// newViper returns a viper instance bound to path with every default set,
// so missing keys resolve to sensible values.
func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("finpal")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultAppConfig()
	v.SetDefault("server.base_url", d.Server.BaseURL)
	v.SetDefault("server.ws_url", d.Server.WSURL)
	v.SetDefault("channel.max_attempts", d.Channel.MaxAttempts)
	v.SetDefault("channel.base_delay_ms", d.Channel.BaseDelayMs)
	v.SetDefault("channel.max_delay_ms", d.Channel.MaxDelayMs)
	v.SetDefault("channel.ping_interval_sec", d.Channel.PingIntervalSec)
	v.SetDefault("flags.auto_open_drawer", d.Flags.AutoOpenDrawer)
	v.SetDefault("flags.auto_open_chat", d.Flags.AutoOpenChat)
	v.SetDefault("flags.inline_preview", d.Flags.InlinePreview)
	v.SetDefault("preview.ttl_ms", d.Preview.TTLMs)
	v.SetDefault("dashboard.refresh_interval_sec", d.Dashboard.RefreshIntervalSec)
	v.SetDefault("display.theme", d.Display.Theme)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("mock.addr", d.Mock.Addr)
	v.SetDefault("mock.insight_interval_sec", d.Mock.InsightIntervalSec)
	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration with
// environment overrides applied.
func LoadConfig(path string) (*AppConfig, error) {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.normalize()
	return cfg, nil
}

// normalize replaces non-positive tuning values with their defaults.
func (c *AppConfig) normalize() {
	d := DefaultAppConfig()
	if c.Channel.MaxAttempts < 0 {
		c.Channel.MaxAttempts = d.Channel.MaxAttempts
	}
	if c.Channel.BaseDelayMs <= 0 {
		c.Channel.BaseDelayMs = d.Channel.BaseDelayMs
	}
	if c.Channel.MaxDelayMs < c.Channel.BaseDelayMs {
		c.Channel.MaxDelayMs = c.Channel.BaseDelayMs
	}
	if c.Channel.PingIntervalSec <= 0 {
		c.Channel.PingIntervalSec = d.Channel.PingIntervalSec
	}
	if c.Preview.TTLMs <= 0 {
		c.Preview.TTLMs = d.Preview.TTLMs
	}
	if c.Dashboard.RefreshIntervalSec <= 0 {
		c.Dashboard.RefreshIntervalSec = d.Dashboard.RefreshIntervalSec
	}
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
	c.Server.WSURL = strings.TrimRight(c.Server.WSURL, "/")
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("channel", cfg.Channel)
	v.Set("flags", cfg.Flags)
	v.Set("preview", cfg.Preview)
	v.Set("dashboard", cfg.Dashboard)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)
	v.Set("store", cfg.Store)
	v.Set("mock", cfg.Mock)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// WatchFlags re-reads the flags section whenever the config file changes
// and hands the result to apply. It returns immediately; the watch lives
// for the rest of the process.
func WatchFlags(path string, apply func(UXFlags)) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("watching config %s: %w", path, err)
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		var flags UXFlags
		if err := v.UnmarshalKey("flags", &flags); err != nil {
			return
		}
		apply(flags)
	})
	v.WatchConfig()
	return nil
}

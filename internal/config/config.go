// Package config loads the TRC daemon configuration. Configuration is
// environment-first: every setting binds to the environment variable
// the original deployment docs describe (RIVEN_API_KEY, RD_API_KEY,
// CHECK_INTERVAL_HOURS, ...), with an optional config file on top.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete TRC configuration
type Config struct {
	Riven   RivenConfig   `mapstructure:"riven"`
	Debrid  DebridConfig  `mapstructure:"debrid"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// RivenConfig controls the connection to the Riven backend
type RivenConfig struct {
	// URL is the base URL of the Riven API (default: http://localhost:8083)
	URL string `mapstructure:"url"`
	// APIKey authenticates against the Riven API (required)
	APIKey string `mapstructure:"api_key"`
	// RateLimitSeconds is the minimum spacing between Riven API calls (default: 1)
	RateLimitSeconds float64 `mapstructure:"rate_limit_seconds"`
}

// DebridConfig controls the connection to Real-Debrid
type DebridConfig struct {
	// URL is the base URL of the Real-Debrid REST API
	URL string `mapstructure:"url"`
	// APIKey authenticates against Real-Debrid (required)
	APIKey string `mapstructure:"api_key"`
	// RateLimitSeconds is the minimum spacing between Real-Debrid API calls (default: 1)
	RateLimitSeconds float64 `mapstructure:"rate_limit_seconds"`
	// PollIntervalMinutes is how often to check torrent status (default: 5)
	PollIntervalMinutes int `mapstructure:"poll_interval_minutes"`
	// MaxWaitHours is the maximum time to wait for a torrent to download (default: 2)
	MaxWaitHours int `mapstructure:"max_wait_hours"`
	// MaxTorrents is the maximum number of torrents to try per item (default: 10)
	MaxTorrents int `mapstructure:"max_torrents"`
	// MaxActiveDownloads bounds how many items are remediated concurrently (default: 3)
	MaxActiveDownloads int `mapstructure:"max_active_downloads"`
	// AddDelaySeconds is the spacing between successive torrent adds for one item (default: 30)
	AddDelaySeconds int `mapstructure:"add_delay_seconds"`
}

// MonitorConfig controls the remediation loop
type MonitorConfig struct {
	// CheckIntervalHours is the spacing between full scans of the backend (default: 6)
	CheckIntervalHours int `mapstructure:"check_interval_hours"`
	// RetryIntervalMinutes is the cooldown between attempts on the same item (default: 10)
	RetryIntervalMinutes int `mapstructure:"retry_interval_minutes"`
	// MaxRetries is how many Riven retries to attempt before falling back
	// to a manual scrape through Real-Debrid (default: 3)
	MaxRetries int `mapstructure:"max_retries"`
	// SkipRivenRetry skips the retry path entirely and goes straight to
	// manual scrape (default: false)
	SkipRivenRetry bool `mapstructure:"skip_riven_retry"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// File is an optional log file path; empty logs to stderr
	File string `mapstructure:"file"`
}

// RateLimit returns the Riven gate interval as a time.Duration
func (c *RivenConfig) RateLimit() time.Duration {
	return time.Duration(c.RateLimitSeconds * float64(time.Second))
}

// RateLimit returns the Real-Debrid gate interval as a time.Duration
func (c *DebridConfig) RateLimit() time.Duration {
	return time.Duration(c.RateLimitSeconds * float64(time.Second))
}

// PollInterval returns the torrent status poll interval as a time.Duration
func (c *DebridConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMinutes) * time.Minute
}

// MaxWait returns the maximum torrent wait as a time.Duration
func (c *DebridConfig) MaxWait() time.Duration {
	return time.Duration(c.MaxWaitHours) * time.Hour
}

// AddDelay returns the torrent add spacing as a time.Duration
func (c *DebridConfig) AddDelay() time.Duration {
	return time.Duration(c.AddDelaySeconds) * time.Second
}

// CheckInterval returns the full scan interval as a time.Duration
func (c *MonitorConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalHours) * time.Hour
}

// RetryInterval returns the per-item retry cooldown as a time.Duration
func (c *MonitorConfig) RetryInterval() time.Duration {
	return time.Duration(c.RetryIntervalMinutes) * time.Minute
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Riven: RivenConfig{
			URL:              "http://localhost:8083",
			RateLimitSeconds: 1,
		},
		Debrid: DebridConfig{
			URL:                 "https://api.real-debrid.com/rest/1.0",
			RateLimitSeconds:    1,
			PollIntervalMinutes: 5,
			MaxWaitHours:        2,
			MaxTorrents:         10,
			MaxActiveDownloads:  3,
			AddDelaySeconds:     30,
		},
		Monitor: MonitorConfig{
			CheckIntervalHours:   6,
			RetryIntervalMinutes: 10,
			MaxRetries:           3,
			SkipRivenRetry:       false,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("riven.url", defaults.Riven.URL)
	viper.SetDefault("riven.rate_limit_seconds", defaults.Riven.RateLimitSeconds)

	viper.SetDefault("debrid.url", defaults.Debrid.URL)
	viper.SetDefault("debrid.rate_limit_seconds", defaults.Debrid.RateLimitSeconds)
	viper.SetDefault("debrid.poll_interval_minutes", defaults.Debrid.PollIntervalMinutes)
	viper.SetDefault("debrid.max_wait_hours", defaults.Debrid.MaxWaitHours)
	viper.SetDefault("debrid.max_torrents", defaults.Debrid.MaxTorrents)
	viper.SetDefault("debrid.max_active_downloads", defaults.Debrid.MaxActiveDownloads)
	viper.SetDefault("debrid.add_delay_seconds", defaults.Debrid.AddDelaySeconds)

	viper.SetDefault("monitor.check_interval_hours", defaults.Monitor.CheckIntervalHours)
	viper.SetDefault("monitor.retry_interval_minutes", defaults.Monitor.RetryIntervalMinutes)
	viper.SetDefault("monitor.max_retries", defaults.Monitor.MaxRetries)
	viper.SetDefault("monitor.skip_riven_retry", defaults.Monitor.SkipRivenRetry)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)
}

// BindEnv binds each setting to the environment variable names the
// original deployment docs use, so existing .env files keep working.
// The first name wins when several are set.
func BindEnv() {
	_ = viper.BindEnv("riven.url", "RIVEN_URL")
	_ = viper.BindEnv("riven.api_key", "RIVEN_API_KEY")
	_ = viper.BindEnv("riven.rate_limit_seconds", "RIVEN_RATE_LIMIT_SECONDS")

	_ = viper.BindEnv("debrid.api_key", "RD_API_KEY")
	_ = viper.BindEnv("debrid.url", "RD_URL")
	_ = viper.BindEnv("debrid.rate_limit_seconds", "RD_RATE_LIMIT_SECONDS")
	_ = viper.BindEnv("debrid.poll_interval_minutes", "RD_CHECK_INTERVAL_MINUTES")
	_ = viper.BindEnv("debrid.max_wait_hours", "RD_MAX_WAIT_HOURS")
	_ = viper.BindEnv("debrid.max_torrents", "MAX_RD_TORRENTS")
	_ = viper.BindEnv("debrid.max_active_downloads", "MAX_ACTIVE_RD_DOWNLOADS")
	_ = viper.BindEnv("debrid.add_delay_seconds", "TORRENT_ADD_DELAY_SECONDS")

	_ = viper.BindEnv("monitor.check_interval_hours", "CHECK_INTERVAL_HOURS")
	_ = viper.BindEnv("monitor.retry_interval_minutes", "RETRY_INTERVAL_MINUTES")
	_ = viper.BindEnv("monitor.max_retries", "MAX_RIVEN_RETRIES")
	_ = viper.BindEnv("monitor.skip_riven_retry", "SKIP_RIVEN_RETRY")

	_ = viper.BindEnv("logging.level", "LOG_LEVEL")
	_ = viper.BindEnv("logging.file", "LOG_FILE")
}

// Load reads the configuration from viper into a Config struct and
// validates it. Validation failures are returned before any client or
// gate is constructed; the daemon must not start half-configured.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

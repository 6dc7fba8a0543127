// Package config defines the top-level configuration for the straddle bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by STRADDLEBOT_* environment variables.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Binance   BinanceConfig   `toml:"binance"`
	Straddle  StraddleConfig  `toml:"straddle"`
	Risk      RiskConfig      `toml:"risk"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// S3Config holds S3-compatible object storage parameters. An empty bucket
// disables archiving.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// BinanceConfig holds market data endpoints and the shared REST budget.
type BinanceConfig struct {
	BaseURL    string   `toml:"base_url"`
	StreamURL  string   `toml:"stream_url"`
	Timeout    duration `toml:"timeout"`
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
	Stream     bool     `toml:"stream"`
}

// StraddleConfig holds strategy engine and ledger parameters.
type StraddleConfig struct {
	Symbols         []string `toml:"symbols"`
	Quantity        float64  `toml:"quantity"`
	Interval        string   `toml:"interval"`
	HistoryLimit    int      `toml:"history_limit"`
	TickTimeout     duration `toml:"tick_timeout"`
	LockTTL         duration `toml:"lock_ttl"`
	Concurrency     int      `toml:"concurrency"`
	Strategy        string   `toml:"strategy"`
	MaxTradeLimit   int      `toml:"max_trade_limit"`
	PriceMaxAge     duration `toml:"price_max_age"`
	EventDriven     bool     `toml:"event_driven"`
	MinTickInterval duration `toml:"min_tick_interval"`
}

// RiskConfig holds the pre-straddle and sweep limits. Zero disables a limit.
type RiskConfig struct {
	MaxActivePositions int     `toml:"max_active_positions"`
	MaxNotional        float64 `toml:"max_notional"`
	MaxVolatility      float64 `toml:"max_volatility"`
	UnrealizedAlert    float64 `toml:"unrealized_alert"`
	Lookback           int     `toml:"lookback"`
}

// SchedulerConfig holds cron specs for the periodic jobs. An empty spec
// disables the job.
type SchedulerConfig struct {
	TickSpec      string   `toml:"tick_spec"`
	RiskSpec      string   `toml:"risk_spec"`
	SummarySpec   string   `toml:"summary_spec"`
	ArchiveSpec   string   `toml:"archive_spec"`
	RetentionDays int      `toml:"retention_days"`
	JobTimeout    duration `toml:"job_timeout"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	ErrorWindow       duration `toml:"error_window"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "straddlebot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "straddlebot",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "straddlebot-archive",
			ForcePathStyle: true,
		},
		Binance: BinanceConfig{
			BaseURL:    "https://api.binance.com",
			StreamURL:  "wss://stream.binance.com:9443/stream",
			Timeout:    duration{10 * time.Second},
			RateLimit:  1200,
			RateWindow: duration{time.Minute},
			Stream:     true,
		},
		Straddle: StraddleConfig{
			Symbols:         []string{"BTCUSDT", "ETHUSDT"},
			Quantity:        0.001,
			Interval:        "1h",
			HistoryLimit:    100,
			TickTimeout:     duration{30 * time.Second},
			LockTTL:         duration{2 * time.Minute},
			Concurrency:     4,
			Strategy:        "STRADDLE",
			MaxTradeLimit:   2,
			PriceMaxAge:     duration{30 * time.Second},
			EventDriven:     false,
			MinTickInterval: duration{10 * time.Second},
		},
		Risk: RiskConfig{
			MaxActivePositions: 5,
			MaxNotional:        1000,
			MaxVolatility:      0.05,
			UnrealizedAlert:    100,
			Lookback:           30,
		},
		Scheduler: SchedulerConfig{
			TickSpec:      "@every 5m",
			RiskSpec:      "@every 5m",
			SummarySpec:   "0 0 * * *",
			ArchiveSpec:   "0 3 * * *",
			RetentionDays: 30,
			JobTimeout:    duration{2 * time.Minute},
		},
		Notify: NotifyConfig{
			Events:      []string{"straddle_setup", "breakout", "position_close", "error", "alert"},
			ErrorWindow: duration{5 * time.Minute},
		},
		Mode:     "paper",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"paper":   true,
	"monitor": true,
	"archive": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validIntervals = map[string]bool{
	"1s": true, "1m": true, "3m": true, "5m": true, "15m": true, "30m": true,
	"1h": true, "2h": true, "4h": true, "6h": true, "8h": true, "12h": true,
	"1d": true, "3d": true, "1w": true, "1M": true,
}

// UsesPostgres reports whether the mode needs the durable store.
func (c *Config) UsesPostgres() bool {
	m := strings.ToLower(c.Mode)
	return m == "trade" || m == "monitor" || m == "archive"
}

// UsesRedis reports whether the mode needs the shared cache.
func (c *Config) UsesRedis() bool {
	m := strings.ToLower(c.Mode)
	return m == "trade" || m == "monitor"
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, paper, monitor, archive)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.UsesPostgres() {
		if strings.TrimSpace(c.Database.DSN) == "" {
			if c.Database.Host == "" {
				errs = append(errs, "database: host must not be empty (or set database.dsn)")
			}
			if c.Database.Port <= 0 || c.Database.Port > 65535 {
				errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
			}
			if c.Database.Database == "" {
				errs = append(errs, "database: database must not be empty")
			}
		}
		if c.Database.PoolMaxConns < 1 {
			errs = append(errs, "database: pool_max_conns must be >= 1")
		}
		if c.Database.PoolMinConns < 0 {
			errs = append(errs, "database: pool_min_conns must be >= 0")
		}
		if c.Database.PoolMinConns > c.Database.PoolMaxConns {
			errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.UsesRedis() {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if strings.EqualFold(c.Mode, "archive") && c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty for mode archive")
	}

	if c.Binance.BaseURL == "" {
		errs = append(errs, "binance: base_url must not be empty")
	}
	if c.Binance.Stream && c.Binance.StreamURL == "" {
		errs = append(errs, "binance: stream_url must not be empty when stream is enabled")
	}
	if c.Binance.RateLimit < 0 {
		errs = append(errs, "binance: rate_limit must be >= 0")
	}
	if c.Binance.RateLimit > 0 && c.Binance.RateWindow.Duration <= 0 {
		errs = append(errs, "binance: rate_window must be > 0 when rate_limit is set")
	}

	if len(c.Straddle.Symbols) == 0 {
		errs = append(errs, "straddle: symbols must not be empty")
	}
	for _, s := range c.Straddle.Symbols {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, "straddle: symbols must not contain empty entries")
			break
		}
	}
	if !(c.Straddle.Quantity > 0) {
		errs = append(errs, "straddle: quantity must be > 0")
	}
	if !validIntervals[c.Straddle.Interval] {
		errs = append(errs, fmt.Sprintf("straddle: unknown interval %q", c.Straddle.Interval))
	}
	if c.Straddle.HistoryLimit < 30 || c.Straddle.HistoryLimit > 1000 {
		errs = append(errs, fmt.Sprintf("straddle: history_limit must be 30-1000, got %d", c.Straddle.HistoryLimit))
	}
	if c.Straddle.Concurrency < 1 {
		errs = append(errs, "straddle: concurrency must be >= 1")
	}
	if c.Straddle.MaxTradeLimit < 2 {
		errs = append(errs, "straddle: max_trade_limit must be >= 2")
	}

	if c.Risk.MaxActivePositions < 0 || c.Risk.MaxNotional < 0 || c.Risk.MaxVolatility < 0 || c.Risk.UnrealizedAlert < 0 {
		errs = append(errs, "risk: limits must be >= 0")
	}

	if c.Scheduler.RetentionDays < 1 {
		errs = append(errs, "scheduler: retention_days must be >= 1")
	}
	if c.Scheduler.JobTimeout.Duration <= 0 {
		errs = append(errs, "scheduler: job_timeout must be > 0")
	}

	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

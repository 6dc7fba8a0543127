package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies STRADDLEBOT_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	cfg.Straddle.Symbols = normalizeSymbols(cfg.Straddle.Symbols)

	return &cfg, nil
}

// normalizeSymbols upper-cases and de-duplicates symbols, keeping order.
func normalizeSymbols(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// applyEnvOverrides reads well-known STRADDLEBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "STRADDLEBOT_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "STRADDLEBOT_DATABASE_HOST")
	setInt(&cfg.Database.Port, "STRADDLEBOT_DATABASE_PORT")
	setStr(&cfg.Database.Database, "STRADDLEBOT_DATABASE_NAME")
	setStr(&cfg.Database.User, "STRADDLEBOT_DATABASE_USER")
	setStr(&cfg.Database.Password, "STRADDLEBOT_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "STRADDLEBOT_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "STRADDLEBOT_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "STRADDLEBOT_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "STRADDLEBOT_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "STRADDLEBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "STRADDLEBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "STRADDLEBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "STRADDLEBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "STRADDLEBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "STRADDLEBOT_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "STRADDLEBOT_REDIS_KEY_PREFIX")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "STRADDLEBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "STRADDLEBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "STRADDLEBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "STRADDLEBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "STRADDLEBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "STRADDLEBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "STRADDLEBOT_S3_FORCE_PATH_STYLE")

	// ── Binance ──
	setStr(&cfg.Binance.BaseURL, "STRADDLEBOT_BINANCE_BASE_URL")
	setStr(&cfg.Binance.StreamURL, "STRADDLEBOT_BINANCE_STREAM_URL")
	setDuration(&cfg.Binance.Timeout, "STRADDLEBOT_BINANCE_TIMEOUT")
	setInt(&cfg.Binance.RateLimit, "STRADDLEBOT_BINANCE_RATE_LIMIT")
	setDuration(&cfg.Binance.RateWindow, "STRADDLEBOT_BINANCE_RATE_WINDOW")
	setBool(&cfg.Binance.Stream, "STRADDLEBOT_BINANCE_STREAM")

	// ── Straddle ──
	setStringSlice(&cfg.Straddle.Symbols, "STRADDLEBOT_STRADDLE_SYMBOLS")
	setFloat64(&cfg.Straddle.Quantity, "STRADDLEBOT_STRADDLE_QUANTITY")
	setStr(&cfg.Straddle.Interval, "STRADDLEBOT_STRADDLE_INTERVAL")
	setInt(&cfg.Straddle.HistoryLimit, "STRADDLEBOT_STRADDLE_HISTORY_LIMIT")
	setDuration(&cfg.Straddle.TickTimeout, "STRADDLEBOT_STRADDLE_TICK_TIMEOUT")
	setDuration(&cfg.Straddle.LockTTL, "STRADDLEBOT_STRADDLE_LOCK_TTL")
	setInt(&cfg.Straddle.Concurrency, "STRADDLEBOT_STRADDLE_CONCURRENCY")
	setStr(&cfg.Straddle.Strategy, "STRADDLEBOT_STRADDLE_STRATEGY")
	setInt(&cfg.Straddle.MaxTradeLimit, "STRADDLEBOT_STRADDLE_MAX_TRADE_LIMIT")
	setDuration(&cfg.Straddle.PriceMaxAge, "STRADDLEBOT_STRADDLE_PRICE_MAX_AGE")
	setBool(&cfg.Straddle.EventDriven, "STRADDLEBOT_STRADDLE_EVENT_DRIVEN")
	setDuration(&cfg.Straddle.MinTickInterval, "STRADDLEBOT_STRADDLE_MIN_TICK_INTERVAL")

	// ── Risk ──
	setInt(&cfg.Risk.MaxActivePositions, "STRADDLEBOT_RISK_MAX_ACTIVE_POSITIONS")
	setFloat64(&cfg.Risk.MaxNotional, "STRADDLEBOT_RISK_MAX_NOTIONAL")
	setFloat64(&cfg.Risk.MaxVolatility, "STRADDLEBOT_RISK_MAX_VOLATILITY")
	setFloat64(&cfg.Risk.UnrealizedAlert, "STRADDLEBOT_RISK_UNREALIZED_ALERT")
	setInt(&cfg.Risk.Lookback, "STRADDLEBOT_RISK_LOOKBACK")

	// ── Scheduler ──
	setStr(&cfg.Scheduler.TickSpec, "STRADDLEBOT_SCHEDULER_TICK_SPEC")
	setStr(&cfg.Scheduler.RiskSpec, "STRADDLEBOT_SCHEDULER_RISK_SPEC")
	setStr(&cfg.Scheduler.SummarySpec, "STRADDLEBOT_SCHEDULER_SUMMARY_SPEC")
	setStr(&cfg.Scheduler.ArchiveSpec, "STRADDLEBOT_SCHEDULER_ARCHIVE_SPEC")
	setInt(&cfg.Scheduler.RetentionDays, "STRADDLEBOT_SCHEDULER_RETENTION_DAYS")
	setDuration(&cfg.Scheduler.JobTimeout, "STRADDLEBOT_SCHEDULER_JOB_TIMEOUT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "STRADDLEBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "STRADDLEBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "STRADDLEBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "STRADDLEBOT_NOTIFY_EVENTS")
	setDuration(&cfg.Notify.ErrorWindow, "STRADDLEBOT_NOTIFY_ERROR_WINDOW")

	// ── Top-level ──
	setStr(&cfg.Mode, "STRADDLEBOT_MODE")
	setStr(&cfg.LogLevel, "STRADDLEBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

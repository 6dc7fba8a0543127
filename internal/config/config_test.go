package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "paper", cfg.Mode)
	assert.Equal(t, 2, cfg.Straddle.MaxTradeLimit)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := writeTOML(t, `
mode = "trade"
log_level = "debug"

[straddle]
symbols = ["btcusdt", "ethusdt", "BTCUSDT"]
quantity = 0.5
tick_timeout = "45s"

[scheduler]
archive_spec = ""
retention_days = 7
`)
	t.Setenv("STRADDLEBOT_STRADDLE_QUANTITY", "0.25")
	t.Setenv("STRADDLEBOT_REDIS_ADDR", "redis:6379")
	t.Setenv("STRADDLEBOT_BINANCE_RATE_WINDOW", "30s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "trade", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Straddle.Symbols)
	assert.Equal(t, 0.25, cfg.Straddle.Quantity)
	assert.Equal(t, 45*time.Second, cfg.Straddle.TickTimeout.Duration)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 30*time.Second, cfg.Binance.RateWindow.Duration)
	assert.Empty(t, cfg.Scheduler.ArchiveSpec)
	assert.Equal(t, 7, cfg.Scheduler.RetentionDays)
	// Untouched sections keep their defaults.
	assert.Equal(t, "1h", cfg.Straddle.Interval)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	t.Setenv("STRADDLEBOT_STRADDLE_SYMBOLS", "solusdt, ,xrpusdt")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"SOLUSDT", "XRPUSDT"}, cfg.Straddle.Symbols)
}

func TestLoad_BadFile(t *testing.T) {
	path := writeTOML(t, `[straddle]
tick_timeout = "soon"
`)
	_, err := Load(path)
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestValidate_CollectsProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "yolo"
	cfg.LogLevel = "loud"
	cfg.Straddle.Symbols = nil
	cfg.Straddle.Quantity = 0
	cfg.Straddle.Interval = "7m"
	cfg.Straddle.MaxTradeLimit = 1
	cfg.Notify.TelegramToken = "token"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		`unknown mode "yolo"`,
		`unknown log_level "loud"`,
		"straddle: symbols must not be empty",
		"straddle: quantity must be > 0",
		`straddle: unknown interval "7m"`,
		"straddle: max_trade_limit must be >= 2",
		"notify: telegram_token and telegram_chat_id must be set together",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_ModeSpecific(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "paper ignores database",
			mutate: func(c *Config) {
				c.Database.Host = ""
				c.Redis.Addr = ""
			},
		},
		{
			name: "trade needs database host",
			mutate: func(c *Config) {
				c.Mode = "trade"
				c.Database.Host = ""
			},
			wantErr: "database: host must not be empty",
		},
		{
			name: "trade accepts dsn without host",
			mutate: func(c *Config) {
				c.Mode = "trade"
				c.Database.DSN = "postgres://localhost/straddlebot"
				c.Database.Host = ""
			},
		},
		{
			name: "monitor needs redis",
			mutate: func(c *Config) {
				c.Mode = "monitor"
				c.Redis.Addr = ""
			},
			wantErr: "redis: addr must not be empty",
		},
		{
			name: "archive needs bucket",
			mutate: func(c *Config) {
				c.Mode = "archive"
				c.S3.Bucket = ""
			},
			wantErr: "s3: bucket must not be empty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Database.Password = "pw"
	cfg.S3.SecretKey = "secret"
	cfg.Notify.TelegramToken = "tok"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Database.Password)
	assert.Equal(t, "***", out.S3.SecretKey)
	assert.Equal(t, "***", out.Notify.TelegramToken)
	assert.Empty(t, out.Notify.DiscordWebhookURL)

	assert.Equal(t, "pw", cfg.Database.Password)
	out.Straddle.Symbols[0] = "MUTATED"
	assert.Equal(t, "BTCUSDT", cfg.Straddle.Symbols[0])
}

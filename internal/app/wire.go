package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/alanyoungcy/straddlebot/internal/blob/s3"
	"github.com/alanyoungcy/straddlebot/internal/cache/local"
	"github.com/alanyoungcy/straddlebot/internal/cache/redis"
	"github.com/alanyoungcy/straddlebot/internal/config"
	"github.com/alanyoungcy/straddlebot/internal/domain"
	"github.com/alanyoungcy/straddlebot/internal/notify"
	"github.com/alanyoungcy/straddlebot/internal/platform/binance"
	"github.com/alanyoungcy/straddlebot/internal/service"
	"github.com/alanyoungcy/straddlebot/internal/store/memory"
	"github.com/alanyoungcy/straddlebot/internal/store/postgres"
)

// Dependencies bundles every infrastructure dependency the application modes
// need. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Persistence
	UnitOfWork domain.UnitOfWork
	Stores     domain.Stores

	// Caches
	PriceCache  service.BatchPriceCache
	LockManager domain.LockManager
	EventBus    domain.EventBus
	EventLog    domain.EventLog
	RateLimiter domain.RateLimiter

	// Market data
	Binance *binance.Client

	// Blob storage; nil when archiving is not configured.
	Archiver domain.Archiver

	// Notifications
	Notifier *notify.Notifier
	Sink     *notify.StraddleSink
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Persistence: PostgreSQL for durable modes, in-memory for paper ---
	var backend domain.UnitOfWork
	if cfg.UsesPostgres() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Database.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		backend = pgClient
	} else {
		logger.InfoContext(ctx, "wire: using in-memory store", slog.String("mode", cfg.Mode))
		backend = memory.New()
	}
	deps.UnitOfWork = backend
	deps.Stores = backend.Stores()

	// --- Caches: Redis when shared, process-local otherwise ---
	if cfg.UsesRedis() {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		bus := redis.NewEventBus(redisClient)
		deps.PriceCache = redis.NewPriceCache(redisClient, priceTTL(cfg))
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.EventBus = bus
		deps.EventLog = bus
		if cfg.Binance.RateLimit > 0 {
			deps.RateLimiter = redis.NewRateLimiter(redisClient, cfg.Binance.RateLimit, cfg.Binance.RateWindow.Duration)
		}
	} else {
		bus := local.NewEventBus()
		deps.PriceCache = local.NewPriceCache()
		deps.LockManager = local.NewLockManager()
		deps.EventBus = bus
		deps.EventLog = bus
	}

	// --- Market data ---
	opts := []binance.Option{
		binance.WithBaseURL(cfg.Binance.BaseURL),
		binance.WithTimeout(cfg.Binance.Timeout.Duration),
	}
	if deps.RateLimiter != nil {
		opts = append(opts, binance.WithLimiter(deps.RateLimiter))
	}
	deps.Binance = binance.NewClient(opts...)

	// --- S3 archive (durable modes with a bucket only) ---
	if cfg.UsesPostgres() && cfg.S3.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), s3blob.NewReader(s3Client), deps.Stores, logger)
	}

	// --- Notifications ---
	deps.Notifier = notify.NewNotifier(buildSenders(cfg, logger), cfg.Notify.Events, logger)
	deps.Sink = notify.NewStraddleSink(deps.Notifier, cfg.Notify.ErrorWindow.Duration)

	return deps, cleanup, nil
}

// buildSenders returns the configured channels. Paper mode and setups with no
// channel configured fall back to logging every notification.
func buildSenders(cfg *config.Config, logger *slog.Logger) []notify.Sender {
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) == 0 || strings.EqualFold(cfg.Mode, "paper") {
		senders = append(senders, notify.NewLogSender(logger))
	}
	return senders
}

// priceTTL keeps cached quotes around a little longer than the staleness
// bound so readers can still see how old a quote is.
func priceTTL(cfg *config.Config) time.Duration {
	if cfg.Straddle.PriceMaxAge.Duration <= 0 {
		return 0
	}
	return 4 * cfg.Straddle.PriceMaxAge.Duration
}

package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/straddlebot/internal/domain"
	"github.com/alanyoungcy/straddlebot/internal/platform/binance"
)

const (
	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// TickerHandler receives each streamed ticker.
type TickerHandler func(ctx context.Context, t domain.Ticker) error

// BinanceTickerFeed streams miniTicker updates for a symbol set into a
// handler, typically PriceService.HandleTicker. It reconnects with
// exponential backoff until ctx is cancelled or Close is called.
type BinanceTickerFeed struct {
	streamURL string
	symbols   []string
	onTicker  TickerHandler
	logger    *slog.Logger
	minDelay  time.Duration
	closeOnce sync.Once
	done      chan struct{}
}

// NewBinanceTickerFeed creates a feed for symbols. An empty streamURL uses
// the public endpoint.
func NewBinanceTickerFeed(streamURL string, symbols []string, onTicker TickerHandler, logger *slog.Logger) *BinanceTickerFeed {
	return &BinanceTickerFeed{
		streamURL: streamURL,
		symbols:   symbols,
		onTicker:  onTicker,
		logger:    logger.With(slog.String("component", "binance_ticker_feed")),
		minDelay:  reconnectDelay,
		done:      make(chan struct{}),
	}
}

// Run connects and streams until ctx is cancelled.
func (f *BinanceTickerFeed) Run(ctx context.Context) error {
	if len(f.symbols) == 0 {
		f.logger.InfoContext(ctx, "binance_ticker_feed: no symbols to subscribe, exiting")
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-f.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	delay := f.minDelay
	for {
		started := time.Now()
		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			select {
			case <-f.done:
				return nil
			default:
				return ctx.Err()
			}
		}
		// A connection that stayed up for a while resets the backoff.
		if time.Since(started) > maxReconnectDelay {
			delay = f.minDelay
		}
		f.logger.WarnContext(ctx, "binance_ticker_feed: disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (f *BinanceTickerFeed) runConnection(ctx context.Context) error {
	client := binance.NewWSClient(f.streamURL, f.symbols)
	defer client.Close()

	client.OnTicker(func(t domain.Ticker) {
		if f.onTicker == nil {
			return
		}
		if err := f.onTicker(ctx, t); err != nil {
			f.logger.DebugContext(ctx, "binance_ticker_feed: handler failed",
				slog.String("symbol", t.Symbol),
				slog.String("error", err.Error()),
			)
		}
	})

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := client.Connect(dialCtx)
	cancel()
	if err != nil {
		return err
	}
	f.logger.InfoContext(ctx, "binance_ticker_feed: subscribed", slog.Int("symbols", len(f.symbols)))
	return client.Run(ctx)
}

// Close stops the feed.
func (f *BinanceTickerFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

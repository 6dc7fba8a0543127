package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/straddlebot/internal/cache/local"
	"github.com/alanyoungcy/straddlebot/internal/domain"
)

type fakeFeed struct {
	mu      sync.Mutex
	price   float64
	candles []domain.Candle
	err     error
	calls   int
}

func (f *fakeFeed) PriceHistory(_ context.Context, _, _ string, count int) ([]domain.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if count > 0 && len(f.candles) > count {
		return f.candles[len(f.candles)-count:], nil
	}
	return f.candles, nil
}

func (f *fakeFeed) CurrentPrice(_ context.Context, _ string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.price, nil
}

func TestPriceService_CurrentPriceUsesFreshCache(t *testing.T) {
	ctx := context.Background()
	cache := local.NewPriceCache()
	feed := &fakeFeed{price: 200}
	bus := local.NewEventBus()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	svc := NewPriceService(cache, feed, bus, 30*time.Second, testLogger())
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.HandleTicker(ctx, domain.Ticker{Symbol: "BTCUSDT", Price: 150, Timestamp: now.Add(-10 * time.Second)}))

	p, err := svc.CurrentPrice(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 150.0, p)
	assert.Zero(t, feed.calls)

	recent, err := bus.Recent(ctx, PriceChannel, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestPriceService_CurrentPriceFallsBackWhenStale(t *testing.T) {
	ctx := context.Background()
	cache := local.NewPriceCache()
	feed := &fakeFeed{price: 200}
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	svc := NewPriceService(cache, feed, nil, 30*time.Second, testLogger())
	svc.now = func() time.Time { return now }
	require.NoError(t, cache.SetPrice(ctx, "BTCUSDT", 150, now.Add(-time.Minute)))

	p, err := svc.CurrentPrice(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 200.0, p)
	assert.Equal(t, 1, feed.calls)

	cached, _, err := cache.GetPrice(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 200.0, cached)
}

func TestPriceService_FeedFailureIsUpstream(t *testing.T) {
	feed := &fakeFeed{err: errors.Join(domain.ErrUpstreamUnavailable, errors.New("timeout"))}
	svc := NewPriceService(local.NewPriceCache(), feed, nil, time.Minute, testLogger())

	_, err := svc.CurrentPrice(context.Background(), "ETHUSDT")
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestPriceService_HandleTickerRejectsBadPrice(t *testing.T) {
	svc := NewPriceService(local.NewPriceCache(), &fakeFeed{}, nil, time.Minute, testLogger())
	err := svc.HandleTicker(context.Background(), domain.Ticker{Symbol: "BTCUSDT", Price: 0})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

// PriceChannel is the event bus channel ticker updates are published on.
const PriceChannel = "straddlebot:prices"

// BatchPriceCache is a PriceCache that can also read several symbols at once.
type BatchPriceCache interface {
	domain.PriceCache
	GetPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// PriceService fronts the market data feed with the price cache. Streamed
// tickers keep the cache warm; lookups fall back to the REST feed when the
// cached quote is missing or older than maxAge.
type PriceService struct {
	cache  BatchPriceCache
	feed   domain.PriceFeed
	bus    domain.EventBus
	maxAge time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewPriceService creates a PriceService. bus may be nil.
func NewPriceService(
	cache BatchPriceCache,
	feed domain.PriceFeed,
	bus domain.EventBus,
	maxAge time.Duration,
	logger *slog.Logger,
) *PriceService {
	return &PriceService{
		cache:  cache,
		feed:   feed,
		bus:    bus,
		maxAge: maxAge,
		logger: logger.With(slog.String("component", "price_service")),
		now:    time.Now,
	}
}

// HandleTicker stores a streamed ticker in the cache and publishes it.
func (s *PriceService) HandleTicker(ctx context.Context, t domain.Ticker) error {
	if t.Symbol == "" || !(t.Price > 0) {
		return domain.Validationf("ticker %q has invalid price %v", t.Symbol, t.Price)
	}
	if err := s.cache.SetPrice(ctx, t.Symbol, t.Price, t.Timestamp); err != nil {
		return fmt.Errorf("price_service: set price for %q: %w", t.Symbol, err)
	}
	if s.bus == nil {
		return nil
	}
	evt, _ := json.Marshal(map[string]any{
		"event":     "ticker",
		"symbol":    t.Symbol,
		"price":     t.Price,
		"volume":    t.Volume,
		"timestamp": t.Timestamp.Format(time.RFC3339Nano),
	})
	if err := s.bus.Publish(ctx, PriceChannel, evt); err != nil {
		s.logger.WarnContext(ctx, "price_service: publish ticker failed",
			slog.String("symbol", t.Symbol),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// CurrentPrice returns a fresh price for symbol from the cache, or from the
// feed when the cache cannot serve it.
func (s *PriceService) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	price, ts, err := s.cache.GetPrice(ctx, symbol)
	switch {
	case err == nil && (s.maxAge <= 0 || s.now().Sub(ts) <= s.maxAge):
		return price, nil
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		s.logger.WarnContext(ctx, "price_service: cache read failed, using feed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	}

	price, err = s.feed.CurrentPrice(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("price_service: current price for %q: %w", symbol, err)
	}
	if err := s.cache.SetPrice(ctx, symbol, price, s.now()); err != nil {
		s.logger.WarnContext(ctx, "price_service: cache write failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	}
	return price, nil
}

// PriceHistory returns candles from the feed.
func (s *PriceService) PriceHistory(ctx context.Context, symbol, interval string, count int) ([]domain.Candle, error) {
	candles, err := s.feed.PriceHistory(ctx, symbol, interval, count)
	if err != nil {
		return nil, fmt.Errorf("price_service: history for %q: %w", symbol, err)
	}
	return candles, nil
}

// GetPrices returns the cached prices of symbols. Missing symbols are
// omitted.
func (s *PriceService) GetPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	prices, err := s.cache.GetPrices(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("price_service: get prices: %w", err)
	}
	return prices, nil
}

var _ domain.PriceFeed = (*PriceService)(nil)

package local

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

type quote struct {
	price float64
	ts    time.Time
}

// PriceCache keeps the latest price per symbol in memory.
type PriceCache struct {
	mu     sync.RWMutex
	quotes map[string]quote
}

// NewPriceCache creates an empty PriceCache.
func NewPriceCache() *PriceCache {
	return &PriceCache{quotes: make(map[string]quote)}
}

// SetPrice stores price for symbol unless a newer quote is already held.
func (c *PriceCache) SetPrice(_ context.Context, symbol string, price float64, ts time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.quotes[symbol]; ok && cur.ts.After(ts) {
		return nil
	}
	c.quotes[symbol] = quote{price: price, ts: ts}
	return nil
}

// GetPrice returns the latest price for symbol, or domain.ErrNotFound.
func (c *PriceCache) GetPrice(_ context.Context, symbol string) (float64, time.Time, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.quotes[symbol]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return q.price, q.ts, nil
}

// GetPrices returns the cached prices of the symbols present.
func (c *PriceCache) GetPrices(_ context.Context, symbols []string) (map[string]float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		if q, ok := c.quotes[s]; ok {
			out[s] = q.price
		}
	}
	return out, nil
}

var _ domain.PriceCache = (*PriceCache)(nil)

package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "lock:tick:BTCUSDT", (&Client{}).key("lock", "tick:BTCUSDT"))
	assert.Equal(t, "bot:price:ETHUSDT", (&Client{prefix: "bot"}).key("price", "ETHUSDT"))
}

func TestParsePrice(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	price, got, err := parsePrice("BTCUSDT", map[string]string{
		"price": "64000.5",
		"ts":    "1772366400000000000",
	})
	require.NoError(t, err)
	assert.Equal(t, 64000.5, price)
	assert.True(t, ts.Equal(got))

	_, _, err = parsePrice("BTCUSDT", map[string]string{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = parsePrice("BTCUSDT", map[string]string{"price": "abc", "ts": "1"})
	assert.Error(t, err)
}

// newTestClient connects to STRADDLEBOT_TEST_REDIS_ADDR under a unique key
// prefix, or skips the test.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("STRADDLEBOT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("STRADDLEBOT_TEST_REDIS_ADDR not set")
	}
	c, err := New(context.Background(), ClientConfig{Addr: addr, KeyPrefix: "test-" + uuid.NewString()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestLockManager(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	lm := NewLockManager(c)

	unlock, err := lm.Acquire(ctx, "tick:BTCUSDT", time.Minute)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, "tick:BTCUSDT", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock()

	again, err := lm.Acquire(ctx, "tick:BTCUSDT", time.Minute)
	require.NoError(t, err)
	again()
}

func TestPriceCache(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	pc := NewPriceCache(c, time.Minute)
	ts := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, pc.SetPrice(ctx, "BTCUSDT", 64000, ts))
	price, got, err := pc.GetPrice(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 64000.0, price)
	assert.True(t, ts.Equal(got))

	_, _, err = pc.GetPrice(ctx, "ETHUSDT")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	prices, err := pc.GetPrices(ctx, []string{"BTCUSDT", "ETHUSDT"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"BTCUSDT": 64000}, prices)
}

func TestEventBus_PublishSubscribeRecent(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	bus := NewEventBus(c)
	channel := c.key("events")

	sub, err := bus.Subscribe(ctx, channel)
	require.NoError(t, err)

	for _, p := range []string{"one", "two", "three"} {
		require.NoError(t, bus.Publish(ctx, channel, []byte(p)))
	}
	select {
	case msg := <-sub:
		assert.Equal(t, "one", string(msg))
	case <-ctx.Done():
		t.Fatal("no message delivered")
	}

	recent, err := bus.Recent(ctx, channel, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "two", string(recent[0].Payload))
	assert.Equal(t, "three", string(recent[1].Payload))
}

func TestRateLimiter(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	rl := NewRateLimiter(c, 2, time.Minute)

	for i := 0; i < 2; i++ {
		ok, err := rl.Allow(ctx, "binance:rest")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := rl.Allow(ctx, "binance:rest")
	require.NoError(t, err)
	assert.False(t, ok)

	wctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, rl.Wait(wctx, "binance:rest"), context.DeadlineExceeded)
}

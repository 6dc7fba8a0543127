package feed

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/straddlebot/internal/cache/local"
	"github.com/alanyoungcy/straddlebot/internal/domain"
	"github.com/alanyoungcy/straddlebot/internal/service"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type recordingEngine struct {
	ticks chan string
}

func (e *recordingEngine) Tick(_ context.Context, symbol string) error {
	e.ticks <- symbol
	return nil
}

func priceMsg(t *testing.T, symbol string) []byte {
	t.Helper()
	b, err := json.Marshal(priceEvent{Event: "ticker", Symbol: symbol, Price: 100})
	require.NoError(t, err)
	return b
}

func waitTick(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(time.Second):
		t.Fatal("no tick")
		return ""
	}
}

func TestEngineFeeder_DebouncesPerSymbol(t *testing.T) {
	ctx := context.Background()
	eng := &recordingEngine{ticks: make(chan string, 10)}
	f := NewEngineFeeder(local.NewEventBus(), eng, []string{"btcusdt"}, time.Minute, discard())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }

	f.handleMessage(ctx, priceMsg(t, "BTCUSDT"))
	assert.Equal(t, "BTCUSDT", waitTick(t, eng.ticks))
	f.wg.Wait()

	f.handleMessage(ctx, priceMsg(t, "BTCUSDT"))
	f.handleMessage(ctx, priceMsg(t, "DOGEUSDT"))
	f.handleMessage(ctx, []byte("garbage"))
	f.wg.Wait()
	assert.Empty(t, eng.ticks)

	now = now.Add(time.Minute)
	f.handleMessage(ctx, priceMsg(t, "btcusdt"))
	assert.Equal(t, "BTCUSDT", waitTick(t, eng.ticks))
	f.wg.Wait()
}

func TestEngineFeeder_RunConsumesBus(t *testing.T) {
	bus := local.NewEventBus()
	eng := &recordingEngine{ticks: make(chan string, 10)}
	f := NewEngineFeeder(bus, eng, []string{"ETHUSDT"}, 0, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	require.Eventually(t, func() bool {
		_ = bus.Publish(ctx, service.PriceChannel, priceMsg(t, "ETHUSDT"))
		select {
		case s := <-eng.ticks:
			return s == "ETHUSDT"
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestBinanceTickerFeed_Reconnects(t *testing.T) {
	var conns atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := conns.Add(1)
		msg := `{"stream":"btcusdt@miniTicker","data":{"e":"24hrMiniTicker","E":1700000000000,"s":"BTCUSDT","c":"` +
			map[int32]string{1: "100", 2: "101"}[n] + `","v":"1"}}`
		_ = conn.WriteMessage(websocket.TextMessage, []byte(msg))
		// Drop the first connection straight away, keep the second open.
		if n == 1 {
			_ = conn.Close()
			return
		}
		time.Sleep(time.Second)
		_ = conn.Close()
	}))
	defer srv.Close()

	var mu sync.Mutex
	var prices []float64
	got := make(chan struct{}, 4)
	feed := NewBinanceTickerFeed("ws"+strings.TrimPrefix(srv.URL, "http"), []string{"BTCUSDT"},
		func(_ context.Context, tk domain.Ticker) error {
			mu.Lock()
			prices = append(prices, tk.Price)
			mu.Unlock()
			got <- struct{}{}
			return nil
		}, discard())
	feed.minDelay = 10 * time.Millisecond

	done := make(chan error, 1)
	go func() { done <- feed.Run(context.Background()) }()

	for i := 0; i < 2; i++ {
		select {
		case <-got:
		case <-time.After(2 * time.Second):
			t.Fatal("ticker not received")
		}
	}
	feed.Close()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []float64{100, 101}, prices)
	assert.GreaterOrEqual(t, conns.Load(), int32(2))
}

func TestBinanceTickerFeed_NoSymbols(t *testing.T) {
	feed := NewBinanceTickerFeed("", nil, nil, discard())
	assert.NoError(t, feed.Run(context.Background()))
}

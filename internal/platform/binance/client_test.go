package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

const klinesBody = `[
  [1700000000000,"100.0","101.5","99.5","101.0","12.5",1700003599999,"1262.5",42,"6.0","606.0","0"],
  [1700003600000,"101.0","102.0","100.0","100.5","8.25",1700007199999,"829.1",30,"4.0","402.0","0"]
]`

func TestClient_PriceHistory(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		query = r.URL.RawQuery
		_, _ = w.Write([]byte(klinesBody))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithTimeout(time.Second))
	candles, err := c.PriceHistory(context.Background(), "btcusdt", "1h", 5000)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Contains(t, query, "symbol=BTCUSDT")
	assert.Contains(t, query, "limit=1000")

	first := candles[0]
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), first.OpenTime)
	assert.Equal(t, 101.0, first.Close)
	assert.Equal(t, 101.5, first.High)
	assert.Equal(t, 12.5, first.Volume)
	assert.Equal(t, []float64{101.0, 100.5}, domain.Closes(candles))
}

func TestClient_PriceHistoryValidation(t *testing.T) {
	c := NewClient(WithBaseURL("http://127.0.0.1:0"))
	_, err := c.PriceHistory(context.Background(), "BTCUSDT", "7m", 10)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = c.PriceHistory(context.Background(), "BTCUSDT", "1h", 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestClient_CurrentPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		_, _ = w.Write([]byte(`{"symbol":"ETHUSDT","price":"2543.21000000"}`))
	}))
	defer srv.Close()

	price, err := NewClient(WithBaseURL(srv.URL)).CurrentPrice(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, 2543.21, price)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, `{"code":-1003,"msg":"Too many requests"}`, domain.ErrUpstreamUnavailable},
		{"ip banned", http.StatusTeapot, `{"code":-1003,"msg":"banned"}`, domain.ErrUpstreamUnavailable},
		{"server error", http.StatusBadGateway, `bad gateway`, domain.ErrUpstreamUnavailable},
		{"unknown symbol", http.StatusBadRequest, `{"code":-1121,"msg":"Invalid symbol."}`, domain.ErrNotFound},
		{"bad param", http.StatusBadRequest, `{"code":-1100,"msg":"Illegal characters"}`, domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(WithBaseURL(srv.URL)).CurrentPrice(context.Background(), "BTCUSDT")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_UnreachableIsUpstreamUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(WithBaseURL(url)).CurrentPrice(context.Background(), "BTCUSDT")
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

type countingLimiter struct {
	mu   sync.Mutex
	keys []string
}

func (l *countingLimiter) Wait(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	return nil
}

func TestClient_WaitsOnLimiter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	lim := &countingLimiter{}
	require.NoError(t, NewClient(WithBaseURL(srv.URL), WithLimiter(lim)).Ping(context.Background()))
	assert.Equal(t, []string{limiterKey}, lim.keys)
}

func TestWSClient_StreamsTickers(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		msgs := []string{
			`{"stream":"btcusdt@miniTicker","data":{"e":"24hrMiniTicker","E":1700000000000,"s":"BTCUSDT","c":"43000.5","o":"42000","h":"43500","l":"41900","v":"1234.5","q":"5.3e7"}}`,
			`not json`,
			`{"result":null,"id":1}`,
			`{"stream":"ethusdt@miniTicker","data":{"e":"24hrMiniTicker","E":1700000001000,"s":"ETHUSDT","c":"2500","v":"10"}}`,
		}
		for _, m := range msgs {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(m))
		}
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ws := NewWSClient("ws"+strings.TrimPrefix(srv.URL, "http"), []string{"BTCUSDT", "ETHUSDT"})
	var mu sync.Mutex
	var got []domain.Ticker
	ws.OnTicker(func(tk domain.Ticker) {
		mu.Lock()
		got = append(got, tk)
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ws.Connect(ctx))
	err := ws.Run(ctx)
	require.Error(t, err)
	_ = ws.Close()

	assert.Equal(t, "streams=btcusdt@miniTicker/ethusdt@miniTicker", gotQuery)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, "BTCUSDT", got[0].Symbol)
	assert.Equal(t, 43000.5, got[0].Price)
	assert.Equal(t, 1234.5, got[0].Volume)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), got[0].Timestamp)
	assert.Equal(t, "ETHUSDT", got[1].Symbol)
}

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

type captureSender struct {
	mu     sync.Mutex
	name   string
	titles []string
	bodies []string
	err    error
}

func (c *captureSender) Send(_ context.Context, title, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.titles = append(c.titles, title)
	c.bodies = append(c.bodies, message)
	return nil
}

func (c *captureSender) Name() string { return c.name }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotifier_FiltersEvents(t *testing.T) {
	ctx := context.Background()
	s := &captureSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventBreakout, " "}, discard())

	require.NoError(t, n.Notify(ctx, EventBreakout, "b", "x"))
	require.NoError(t, n.Notify(ctx, EventError, "e", "x"))
	require.NoError(t, n.NotifyAll(ctx, "all", "x"))
	assert.Equal(t, []string{"b", "all"}, s.titles)
}

func TestNotifier_ContinuesPastFailingSender(t *testing.T) {
	bad := &captureSender{name: "bad", err: errors.New("boom")}
	good := &captureSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	err := n.Notify(context.Background(), EventAlert, "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Equal(t, []string{"t"}, good.titles)
	assert.Equal(t, []string{"bad", "good"}, n.Senders())
}

func TestTelegramSender_Send(t *testing.T) {
	var got telegramMessage
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "42", WithBaseURL(srv.URL+"/"), WithHTTPClient(srv.Client()))
	require.NoError(t, s.Send(context.Background(), "Title", "body_with_underscores"))
	assert.Equal(t, "/bottok/sendMessage", path)
	assert.Equal(t, "42", got.ChatID)
	assert.Equal(t, "Title\nbody_with_underscores", got.Text)
}

func TestTelegramSender_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "chat not found", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewTelegramSender("tok", "42", WithBaseURL(srv.URL)).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")

	err = NewTelegramSender("", "42").Send(context.Background(), "t", "m")
	assert.ErrorContains(t, err, "missing")
}

func TestDiscordSender_Send(t *testing.T) {
	var got discordMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	require.NoError(t, s.Send(context.Background(), "Title", strings.Repeat("x", 3000)))
	assert.True(t, strings.HasPrefix(got.Content, "**Title**\n"))
	assert.Len(t, []rune(got.Content), 2000)
}

func TestThrottle(t *testing.T) {
	th := NewThrottle(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	th.now = func() time.Time { return now }

	assert.True(t, th.Allow("a"))
	assert.False(t, th.Allow("a"))
	assert.True(t, th.Allow("b"))

	now = now.Add(time.Minute)
	assert.True(t, th.Allow("a"))

	assert.True(t, NewThrottle(0).Allow("a"))
	assert.True(t, NewThrottle(0).Allow("a"))
}

func TestStraddleSink(t *testing.T) {
	ctx := context.Background()
	rec := &captureSender{name: "rec"}
	sink := NewStraddleSink(NewNotifier([]Sender{rec}, nil, discard()), time.Hour)

	require.NoError(t, sink.NotifyStraddleSetup(ctx, domain.StraddleSetup{
		Symbol: "BTCUSDT", CurrentPrice: 100, BuyEntry: 101, SellEntry: 99, Quantity: 0.5,
		Levels: &domain.EntryLevels{BandPct: 0.0125, MarketCondition: domain.MarketMediumVol},
	}))
	assert.Equal(t, "New Straddle Setup for BTCUSDT", rec.titles[0])
	assert.Contains(t, rec.bodies[0], "Buy Stop: $101.00")
	assert.Contains(t, rec.bodies[0], "Band: 1.25%")

	require.NoError(t, sink.NotifyBreakout(ctx, domain.BreakoutSignal{
		Symbol: "BTCUSDT", Direction: domain.DirectionUp, Price: 110, Confidence: 0.75, VolumeSpike: true,
	}))
	assert.Contains(t, rec.bodies[1], "Confidence: 75.00%")
	assert.Contains(t, rec.bodies[1], "Volume Spike: yes")
	assert.Contains(t, rec.bodies[1], "MACD Crossover: no")

	open := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	closed := open.Add(90 * time.Minute)
	exit := 111.1
	require.NoError(t, sink.NotifyPositionClose(ctx,
		domain.Position{Symbol: "BTCUSDT", RealizedPnL: 1.1, OpenTime: open, CloseTime: &closed},
		[]domain.Trade{
			{Side: domain.TradeSideBuy, Quantity: 1, EntryPrice: 110, ExitPrice: &exit, Status: domain.TradeStatusClosed, PnL: 1.1},
			{Side: domain.TradeSideSell, Quantity: 1, EntryPrice: 90, Status: domain.TradeStatusCancelled},
		}))
	assert.Contains(t, rec.bodies[2], "Realized PnL: +$1.10")
	assert.Contains(t, rec.bodies[2], "BUY 1: entry $110.00 exit $111.10 pnl +$1.10 (1.00%)")
	assert.NotContains(t, rec.bodies[2], "SELL")
	assert.Contains(t, rec.bodies[2], "Held: 1h30m0s")

	require.NoError(t, sink.NotifyError(ctx, "tick BTCUSDT: upstream unavailable"))
	require.NoError(t, sink.NotifyError(ctx, "tick BTCUSDT: upstream unavailable"))
	require.NoError(t, sink.NotifyAlert(ctx, "Risk", "limit"))
	assert.Equal(t, []string{
		"New Straddle Setup for BTCUSDT",
		"Breakout Detected for BTCUSDT",
		"Closed position for BTCUSDT",
		"Straddle bot error",
		"Risk",
	}, rec.titles)
}

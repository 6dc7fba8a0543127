package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

const (
	// DefaultStreamURL is the public combined-stream endpoint.
	DefaultStreamURL = "wss://stream.binance.com:9443/stream"

	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed between reads. Binance pings every three
	// minutes and streams each symbol at least once a second.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// TickerHandler is called for every decoded miniTicker update.
type TickerHandler func(domain.Ticker)

// WSClient reads the combined miniTicker stream for a fixed symbol set. It
// does not reconnect; callers run it in a reconnect loop.
type WSClient struct {
	streamURL string
	symbols   []string

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	handlerMu sync.RWMutex
	handlers  []TickerHandler
}

// NewWSClient creates a stream client for symbols on streamURL.
func NewWSClient(streamURL string, symbols []string) *WSClient {
	if streamURL == "" {
		streamURL = DefaultStreamURL
	}
	return &WSClient{streamURL: streamURL, symbols: symbols}
}

// OnTicker registers a handler for ticker updates.
func (w *WSClient) OnTicker(h TickerHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.handlers = append(w.handlers, h)
}

// StreamURL returns the combined stream URL for the configured symbols.
func (w *WSClient) StreamURL() string {
	streams := make([]string, len(w.symbols))
	for i, s := range w.symbols {
		streams[i] = strings.ToLower(s) + "@miniTicker"
	}
	return w.streamURL + "?streams=" + strings.Join(streams, "/")
}

// Connect dials the stream.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("binance/ws: client closed")
	}
	if len(w.symbols) == 0 {
		return errors.New("binance/ws: no symbols")
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.StreamURL(), nil)
	if err != nil {
		return fmt.Errorf("binance/ws: connect: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	// Answer server pings and treat them as liveness.
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})
	w.conn = conn
	return nil
}

// Run reads messages until the connection fails or ctx is done. It always
// returns a non-nil error.
func (w *WSClient) Run(ctx context.Context) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return errors.New("binance/ws: not connected")
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()
	go w.pingLoop(conn, stop)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("binance/ws: read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		w.handleMessage(message)
	}
}

func (w *WSClient) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// handleMessage decodes one combined-stream message. Unparseable messages
// are dropped.
func (w *WSClient) handleMessage(raw []byte) {
	var env streamEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || len(env.Data) == 0 {
		return
	}
	var mt MiniTicker
	if err := json.Unmarshal(env.Data, &mt); err != nil || mt.EventType != "24hrMiniTicker" {
		return
	}
	t, err := mt.ToDomainTicker()
	if err != nil {
		return
	}

	w.handlerMu.RLock()
	handlers := w.handlers
	w.handlerMu.RUnlock()
	for _, h := range handlers {
		h(t)
	}
}

// Close shuts the connection. A closed client cannot reconnect.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.conn == nil {
		return nil
	}
	_ = w.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	return w.conn.Close()
}

// Package binance is a client for the Binance spot market-data API: REST
// klines and ticker prices plus the miniTicker WebSocket stream. It needs no
// credentials.
package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

const (
	// DefaultBaseURL is the public spot REST root.
	DefaultBaseURL = "https://api.binance.com"

	// maxKlines is the largest page /api/v3/klines serves.
	maxKlines = 1000

	limiterKey = "binance:rest"
)

// Intervals accepted by the klines endpoint.
var validIntervals = map[string]bool{
	"1s": true, "1m": true, "3m": true, "5m": true, "15m": true, "30m": true,
	"1h": true, "2h": true, "4h": true, "6h": true, "8h": true, "12h": true,
	"1d": true, "3d": true, "1w": true, "1M": true,
}

// Client is the REST client. It implements domain.PriceFeed.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    domain.RateLimiter
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the REST root, e.g. for the testnet.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithLimiter makes every request wait on l first.
func WithLimiter(l domain.RateLimiter) Option {
	return func(c *Client) { c.limiter = l }
}

// NewClient creates a REST client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PriceHistory returns up to count candles for symbol, oldest first.
func (c *Client) PriceHistory(ctx context.Context, symbol, interval string, count int) ([]domain.Candle, error) {
	if !validIntervals[interval] {
		return nil, domain.Validationf("binance: unsupported interval %q", interval)
	}
	if count <= 0 {
		return nil, domain.Validationf("binance: count must be positive, got %d", count)
	}
	if count > maxKlines {
		count = maxKlines
	}

	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(count))

	body, err := c.doGet(ctx, "/api/v3/klines?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("binance: klines %s: %w", symbol, err)
	}

	var rows []APIKline
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("binance: decode klines: %w", err)
	}
	candles := make([]domain.Candle, 0, len(rows))
	for i, row := range rows {
		cd, err := row.ToDomainCandle()
		if err != nil {
			return nil, fmt.Errorf("binance: kline %d: %w", i, err)
		}
		candles = append(candles, cd)
	}
	return candles, nil
}

// CurrentPrice returns the last traded price for symbol.
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))

	body, err := c.doGet(ctx, "/api/v3/ticker/price?"+params.Encode())
	if err != nil {
		return 0, fmt.Errorf("binance: ticker %s: %w", symbol, err)
	}

	var tp APITickerPrice
	if err := json.Unmarshal(body, &tp); err != nil {
		return 0, fmt.Errorf("binance: decode ticker: %w", err)
	}
	price, err := strconv.ParseFloat(tp.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("binance: parse price %q: %w", tp.Price, err)
	}
	return price, nil
}

// Ping checks REST connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.doGet(ctx, "/api/v3/ping"); err != nil {
		return fmt.Errorf("binance: ping: %w", err)
	}
	return nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, limiterKey); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrUpstreamUnavailable, err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkHTTPStatus maps Binance failures onto domain error categories.
// Throttling (429, 418) and server errors are transient.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	detail := strings.TrimSpace(string(body))
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Msg != "" {
		detail = fmt.Sprintf("code %d: %s", apiErr.Code, apiErr.Msg)
	}

	switch {
	case statusCode == http.StatusTooManyRequests, statusCode == http.StatusTeapot, statusCode >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrUpstreamUnavailable, statusCode, detail)
	case statusCode == http.StatusBadRequest && apiErr.Code == -1121:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, detail)
	case statusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrValidation, detail)
	default:
		return errors.New("HTTP " + strconv.Itoa(statusCode) + ": " + detail)
	}
}

var _ domain.PriceFeed = (*Client)(nil)

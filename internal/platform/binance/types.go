package binance

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

// apiError is the body Binance returns with 4xx responses.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// APIKline is one row of GET /api/v3/klines:
//
//	[openTime, open, high, low, close, volume, closeTime, quoteVolume, trades, ...]
type APIKline []json.RawMessage

// ToDomainCandle decodes the positional kline row.
func (k APIKline) ToDomainCandle() (domain.Candle, error) {
	if len(k) < 7 {
		return domain.Candle{}, fmt.Errorf("kline has %d fields", len(k))
	}
	var openMs, closeMs int64
	if err := json.Unmarshal(k[0], &openMs); err != nil {
		return domain.Candle{}, fmt.Errorf("open time: %w", err)
	}
	if err := json.Unmarshal(k[6], &closeMs); err != nil {
		return domain.Candle{}, fmt.Errorf("close time: %w", err)
	}
	var vals [5]float64
	for i := range vals {
		v, err := rawFloat(k[i+1])
		if err != nil {
			return domain.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return domain.Candle{
		OpenTime:  time.UnixMilli(openMs).UTC(),
		CloseTime: time.UnixMilli(closeMs).UTC(),
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}

// APITickerPrice is the body of GET /api/v3/ticker/price.
type APITickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// MiniTicker is the payload of the <symbol>@miniTicker stream.
type MiniTicker struct {
	EventType   string `json:"e"`
	EventTimeMs int64  `json:"E"`
	Symbol      string `json:"s"`
	Close       string `json:"c"`
	Open        string `json:"o"`
	High        string `json:"h"`
	Low         string `json:"l"`
	Volume      string `json:"v"`
	QuoteVolume string `json:"q"`
}

// ToDomainTicker converts the stream payload to a domain.Ticker.
func (m MiniTicker) ToDomainTicker() (domain.Ticker, error) {
	price, err := strconv.ParseFloat(m.Close, 64)
	if err != nil {
		return domain.Ticker{}, fmt.Errorf("close %q: %w", m.Close, err)
	}
	var volume float64
	if m.Volume != "" {
		if volume, err = strconv.ParseFloat(m.Volume, 64); err != nil {
			return domain.Ticker{}, fmt.Errorf("volume %q: %w", m.Volume, err)
		}
	}
	return domain.Ticker{
		Symbol:    strings.ToUpper(m.Symbol),
		Price:     price,
		Volume:    volume,
		Timestamp: time.UnixMilli(m.EventTimeMs).UTC(),
	}, nil
}

// streamEnvelope wraps each message on a combined stream.
type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// rawFloat decodes a JSON string holding a decimal, as Binance encodes
// prices and quantities.
func rawFloat(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var f float64
		if ferr := json.Unmarshal(raw, &f); ferr != nil {
			return 0, err
		}
		return f, nil
	}
	return strconv.ParseFloat(s, 64)
}

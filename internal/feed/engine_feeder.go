package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/straddlebot/internal/domain"
	"github.com/alanyoungcy/straddlebot/internal/service"
)

// priceEvent is the JSON shape PriceService publishes on service.PriceChannel.
type priceEvent struct {
	Event  string  `json:"event"`
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// SymbolTicker runs one strategy step for a symbol.
type SymbolTicker interface {
	Tick(ctx context.Context, symbol string) error
}

// EngineFeeder subscribes to streamed prices and ticks the strategy engine
// for a symbol as its prices arrive, at most once per minInterval. This
// closes exits between scheduled ticks.
type EngineFeeder struct {
	bus         domain.EventBus
	engine      SymbolTicker
	symbols     map[string]bool
	minInterval time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	last     map[string]time.Time
	inflight map[string]bool
	wg       sync.WaitGroup
	now      func() time.Time
}

// NewEngineFeeder creates an EngineFeeder for symbols.
func NewEngineFeeder(bus domain.EventBus, engine SymbolTicker, symbols []string, minInterval time.Duration, logger *slog.Logger) *EngineFeeder {
	set := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		set[strings.ToUpper(s)] = true
	}
	return &EngineFeeder{
		bus:         bus,
		engine:      engine,
		symbols:     set,
		minInterval: minInterval,
		logger:      logger.With(slog.String("component", "engine_feeder")),
		last:        make(map[string]time.Time),
		inflight:    make(map[string]bool),
		now:         time.Now,
	}
}

// Run consumes price events until ctx is cancelled, then waits for ticks in
// flight.
func (f *EngineFeeder) Run(ctx context.Context) error {
	ch, err := f.bus.Subscribe(ctx, service.PriceChannel)
	if err != nil {
		return err
	}
	f.logger.InfoContext(ctx, "engine_feeder: started")
	defer f.logger.InfoContext(ctx, "engine_feeder: stopped")
	defer f.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			f.handleMessage(ctx, data)
		}
	}
}

func (f *EngineFeeder) handleMessage(ctx context.Context, data []byte) {
	var ev priceEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		f.logger.DebugContext(ctx, "engine_feeder: bad payload",
			slog.String("error", err.Error()),
			slog.Int("payload_len", len(data)),
		)
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(ev.Symbol))
	if !f.symbols[symbol] || !f.claim(symbol) {
		return
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer f.release(symbol)
		if err := f.engine.Tick(ctx, symbol); err != nil {
			f.logger.DebugContext(ctx, "engine_feeder: tick failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// claim reserves a tick for symbol unless one is running or the last one
// started within minInterval.
func (f *EngineFeeder) claim(symbol string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	if f.inflight[symbol] {
		return false
	}
	if last, ok := f.last[symbol]; ok && now.Sub(last) < f.minInterval {
		return false
	}
	f.inflight[symbol] = true
	f.last[symbol] = now
	return true
}

func (f *EngineFeeder) release(symbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.inflight, symbol)
}

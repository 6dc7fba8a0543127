// Package strategy drives the straddle cycle for each configured symbol.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/straddlebot/internal/analysis"
	"github.com/alanyoungcy/straddlebot/internal/domain"
)

// Tick actions recorded in SymbolStatus.
const (
	ActionNone     = "none"
	ActionSkipped  = "skipped"
	ActionPlaced   = "straddle_placed"
	ActionBreakout = "breakout"
	ActionClosed   = "trade_closed"
	ActionWaiting  = "waiting"
)

// SymbolStatus is the engine's runtime view of one symbol.
type SymbolStatus struct {
	Symbol     string
	LastTick   *time.Time
	LastAction string
	LastError  string
	Ticks      int64
	Errors     int64
}

// StraddleStrategyEngine runs one straddle cycle per symbol: place a pending
// pair, convert it on a breakout, then close the open leg at its take-profit
// or stop-loss. It holds no authoritative state; every tick re-reads the
// ledger.
type StraddleStrategyEngine struct {
	ledger   Ledger
	analyzer Analyzer
	levels   LevelPlanner
	feed     domain.PriceFeed
	locks    domain.LockManager
	risk     RiskChecker
	sink     domain.NotificationSink
	cfg      Config
	logger   *slog.Logger

	mu            sync.Mutex
	status        map[string]*SymbolStatus
	recentSignals []domain.BreakoutSignal
	recentLimit   int
}

// NewStraddleStrategyEngine creates an engine. risk and sink may be nil.
func NewStraddleStrategyEngine(
	ledger Ledger,
	analyzer Analyzer,
	levels LevelPlanner,
	feed domain.PriceFeed,
	locks domain.LockManager,
	risk RiskChecker,
	sink domain.NotificationSink,
	cfg Config,
	logger *slog.Logger,
) *StraddleStrategyEngine {
	def := DefaultConfig()
	if cfg.Interval == "" {
		cfg.Interval = def.Interval
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = def.TickTimeout
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	return &StraddleStrategyEngine{
		ledger:      ledger,
		analyzer:    analyzer,
		levels:      levels,
		feed:        feed,
		locks:       locks,
		risk:        risk,
		sink:        sink,
		cfg:         cfg,
		logger:      logger.With(slog.String("component", "strategy_engine")),
		status:      make(map[string]*SymbolStatus),
		recentLimit: 200,
	}
}

// Symbols returns the configured symbols.
func (e *StraddleStrategyEngine) Symbols() []string {
	return append([]string(nil), e.cfg.Symbols...)
}

// TickAll ticks every configured symbol concurrently. A failing symbol never
// stops the others; all failures are joined into the returned error.
func (e *StraddleStrategyEngine) TickAll(ctx context.Context) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(e.cfg.Concurrency)
	for _, sym := range e.cfg.Symbols {
		sym := sym
		g.Go(func() error {
			if err := e.Tick(ctx, sym); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Tick runs one bounded cycle step for symbol under its lock. A tick that
// finds the lock held is skipped. Failures are logged, reported to the
// notification sink and returned.
func (e *StraddleStrategyEngine) Tick(ctx context.Context, symbol string) error {
	unlock, err := e.locks.Acquire(ctx, "tick:"+symbol, e.cfg.LockTTL)
	if errors.Is(err, domain.ErrLockHeld) {
		e.logger.DebugContext(ctx, "strategy_engine: tick already running", slog.String("symbol", symbol))
		e.record(symbol, ActionSkipped, nil)
		return nil
	}
	if err != nil {
		err = fmt.Errorf("strategy_engine: lock %s: %w", symbol, err)
		e.fail(ctx, symbol, err)
		return err
	}
	defer unlock()

	tctx, cancel := context.WithTimeout(ctx, e.cfg.TickTimeout)
	defer cancel()

	action, err := e.tick(tctx, symbol)
	if err != nil {
		err = fmt.Errorf("strategy_engine: tick %s: %w", symbol, err)
		e.fail(ctx, symbol, err)
		return err
	}
	e.record(symbol, action, nil)
	return nil
}

func (e *StraddleStrategyEngine) tick(ctx context.Context, symbol string) (string, error) {
	candles, err := e.feed.PriceHistory(ctx, symbol, e.cfg.Interval, e.cfg.HistoryLimit)
	if err != nil {
		return "", fmt.Errorf("price history: %w", err)
	}
	if len(candles) == 0 {
		return ActionSkipped, nil
	}
	closes := domain.Closes(candles)
	volumes := domain.Volumes(candles)

	price, err := e.feed.CurrentPrice(ctx, symbol)
	if err != nil {
		e.logger.WarnContext(ctx, "strategy_engine: current price unavailable, skipping tick",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		return ActionSkipped, nil
	}

	pos, err := e.ledger.ActivePosition(ctx, symbol)
	if errors.Is(err, domain.ErrNotFound) {
		return e.placeStraddle(ctx, symbol, price, closes)
	}
	if err != nil {
		return "", fmt.Errorf("active position: %w", err)
	}

	trades, err := e.ledger.TradesForPosition(ctx, pos.ID)
	if err != nil {
		return "", fmt.Errorf("trades: %w", err)
	}

	if pos.Status == domain.PositionStatusOpen && len(trades) == 0 {
		return e.placeStraddle(ctx, symbol, price, closes)
	}

	action := ActionWaiting
	if pos.Status == domain.PositionStatusOpen && pendingPair(trades) {
		if len(closes) < e.analyzer.MinHistory() {
			return ActionWaiting, nil
		}
		sig, ok := e.analyzer.AnalyzeBreakout(ctx, symbol, closes, volumes)
		if !ok {
			return ActionWaiting, nil
		}
		if _, err := e.ledger.HandleBreakout(ctx, symbol, sig); err != nil {
			return "", fmt.Errorf("handle breakout: %w", err)
		}
		e.rememberSignal(sig)
		action = ActionBreakout
		if trades, err = e.ledger.TradesForPosition(ctx, pos.ID); err != nil {
			return "", fmt.Errorf("trades: %w", err)
		}
	}

	if hasOpen(trades) {
		if _, err := e.ledger.MarkPosition(ctx, symbol, price); err != nil {
			return "", fmt.Errorf("mark position: %w", err)
		}
	}

	closed, err := e.closeBreached(ctx, trades, price)
	if err != nil {
		return "", err
	}
	if closed > 0 {
		action = ActionClosed
	}
	return action, nil
}

func (e *StraddleStrategyEngine) placeStraddle(ctx context.Context, symbol string, price float64, closes []float64) (string, error) {
	short, medium, long := analysis.Timeframes(closes)
	levels := e.levels.DynamicEntryLevels(price, short, medium, long)

	if e.risk != nil {
		if err := e.risk.PreStraddleCheck(ctx, symbol, price, e.cfg.Quantity, levels.AverageVolatility); err != nil {
			if errors.Is(err, domain.ErrValidation) {
				e.logger.InfoContext(ctx, "strategy_engine: straddle blocked by risk limits",
					slog.String("symbol", symbol),
					slog.String("reason", err.Error()),
				)
				return ActionSkipped, nil
			}
			return "", fmt.Errorf("risk check: %w", err)
		}
	}

	if _, _, err := e.ledger.CreateStraddleTrades(ctx, symbol, price, e.cfg.Quantity, &levels); err != nil {
		if errors.Is(err, domain.ErrAlreadyActive) {
			return ActionWaiting, nil
		}
		return "", fmt.Errorf("create straddle: %w", err)
	}
	e.logger.InfoContext(ctx, "strategy_engine: straddle placed",
		slog.String("symbol", symbol),
		slog.String("market_condition", string(levels.MarketCondition)),
		slog.Float64("band_pct", levels.BandPct),
	)
	return ActionPlaced, nil
}

// closeBreached closes OPEN trades whose take-profit or stop-loss price has
// been reached, exiting at the breached level.
func (e *StraddleStrategyEngine) closeBreached(ctx context.Context, trades []domain.Trade, price float64) (int, error) {
	closed := 0
	for _, t := range trades {
		if t.Status != domain.TradeStatusOpen {
			continue
		}
		var exit float64
		var reason string
		switch {
		case t.TakeProfitHit(price):
			exit, reason = t.TakeProfit, "take_profit"
		case t.StopLossHit(price):
			exit, reason = t.StopLoss, "stop_loss"
		default:
			continue
		}
		if _, err := e.ledger.CloseTrade(ctx, t.ID, exit); err != nil {
			if errors.Is(err, domain.ErrAlreadyClosed) {
				continue
			}
			return closed, fmt.Errorf("close trade %s: %w", t.ID, err)
		}
		e.logger.InfoContext(ctx, "strategy_engine: exit level reached",
			slog.String("symbol", t.Symbol),
			slog.String("trade_id", t.ID),
			slog.String("reason", reason),
			slog.Float64("price", price),
			slog.Float64("exit", exit),
		)
		closed++
	}
	return closed, nil
}

func pendingPair(trades []domain.Trade) bool {
	var buy, sell bool
	for _, t := range trades {
		if t.Status != domain.TradeStatusPending {
			continue
		}
		switch t.Side {
		case domain.TradeSideBuy:
			buy = true
		case domain.TradeSideSell:
			sell = true
		}
	}
	return buy && sell
}

func hasOpen(trades []domain.Trade) bool {
	for _, t := range trades {
		if t.Status == domain.TradeStatusOpen {
			return true
		}
	}
	return false
}

func (e *StraddleStrategyEngine) fail(ctx context.Context, symbol string, err error) {
	e.record(symbol, "", err)
	e.logger.ErrorContext(ctx, "strategy_engine: tick failed",
		slog.String("symbol", symbol),
		slog.String("error", err.Error()),
	)
	if e.sink == nil {
		return
	}
	if nerr := e.sink.NotifyError(ctx, err.Error()); nerr != nil {
		e.logger.WarnContext(ctx, "strategy_engine: error notification failed",
			slog.String("symbol", symbol),
			slog.String("error", nerr.Error()),
		)
	}
}

func (e *StraddleStrategyEngine) record(symbol, action string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.status[symbol]
	if !ok {
		st = &SymbolStatus{Symbol: symbol}
		e.status[symbol] = st
	}
	now := time.Now().UTC()
	st.LastTick = &now
	st.Ticks++
	if err != nil {
		st.Errors++
		st.LastError = err.Error()
		return
	}
	st.LastAction = action
}

// Status returns a snapshot of every ticked symbol, sorted by symbol.
func (e *StraddleStrategyEngine) Status() []SymbolStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]SymbolStatus, 0, len(e.status))
	for _, st := range e.status {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// RecentSignals returns up to limit breakout signals acted on, newest first.
func (e *StraddleStrategyEngine) RecentSignals(limit int) []domain.BreakoutSignal {
	if limit <= 0 {
		limit = 20
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.recentSignals)
	if limit > n {
		limit = n
	}
	out := make([]domain.BreakoutSignal, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, e.recentSignals[i])
	}
	return out
}

func (e *StraddleStrategyEngine) rememberSignal(sig domain.BreakoutSignal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recentSignals = append(e.recentSignals, sig)
	if overflow := len(e.recentSignals) - e.recentLimit; overflow > 0 {
		e.recentSignals = append([]domain.BreakoutSignal(nil), e.recentSignals[overflow:]...)
	}
}

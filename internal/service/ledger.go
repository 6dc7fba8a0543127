package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

// LedgerChannel is the event bus channel ledger mutations are published on.
const LedgerChannel = "straddlebot:ledger"

// LevelCalculator derives fixed entry levels and per-leg exits.
type LevelCalculator interface {
	EntryLevels(price float64) (buy, sell float64)
	PositionParams(entry float64, dir domain.Direction) (takeProfit, stopLoss float64)
}

// PriceSource returns the latest market price for a symbol.
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// LedgerConfig holds ledger defaults.
type LedgerConfig struct {
	Strategy      string
	MaxTradeLimit int
}

// DefaultLedgerConfig returns the straddle defaults.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{Strategy: "STRADDLE", MaxTradeLimit: 2}
}

// LedgerEvent is the payload published on LedgerChannel.
type LedgerEvent struct {
	Type       string    `json:"type"`
	Symbol     string    `json:"symbol"`
	PositionID string    `json:"position_id"`
	TradeID    string    `json:"trade_id,omitempty"`
	Price      float64   `json:"price,omitempty"`
	At         time.Time `json:"at"`
}

// PositionLedger owns positions, trades and swaps. Every mutation runs in a
// single unit-of-work transaction; notifications, events and audit rows are
// emitted after commit and their failures are only logged.
type PositionLedger struct {
	uow    domain.UnitOfWork
	levels LevelCalculator
	prices PriceSource
	sink   domain.NotificationSink
	bus    domain.EventBus
	cfg    LedgerConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewPositionLedger creates a PositionLedger. sink and bus may be nil.
func NewPositionLedger(
	uow domain.UnitOfWork,
	levels LevelCalculator,
	prices PriceSource,
	sink domain.NotificationSink,
	bus domain.EventBus,
	cfg LedgerConfig,
	logger *slog.Logger,
) *PositionLedger {
	if cfg.Strategy == "" {
		cfg.Strategy = DefaultLedgerConfig().Strategy
	}
	if cfg.MaxTradeLimit <= 0 {
		cfg.MaxTradeLimit = DefaultLedgerConfig().MaxTradeLimit
	}
	return &PositionLedger{
		uow:    uow,
		levels: levels,
		prices: prices,
		sink:   sink,
		bus:    bus,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "ledger")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func ledgerErr(op, symbol string, err error) error {
	return &domain.LedgerError{Op: op, Symbol: symbol, Err: err}
}

// OpenPosition opens an empty position for symbol.
func (l *PositionLedger) OpenPosition(ctx context.Context, symbol, strategy string) (domain.Position, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return domain.Position{}, ledgerErr("open_position", symbol, domain.Validationf("symbol is required"))
	}
	var pos domain.Position
	err := l.uow.Do(ctx, func(ctx context.Context, s domain.Stores) error {
		var err error
		pos, err = l.openPosition(ctx, s, symbol, strategy)
		return err
	})
	if err != nil {
		return domain.Position{}, ledgerErr("open_position", symbol, err)
	}
	l.audit(ctx, "position_opened", map[string]any{"position_id": pos.ID, "symbol": symbol})
	l.publish(ctx, LedgerEvent{Type: "position_opened", Symbol: symbol, PositionID: pos.ID})
	return pos, nil
}

func (l *PositionLedger) openPosition(ctx context.Context, s domain.Stores, symbol, strategy string) (domain.Position, error) {
	if _, err := s.Positions.GetActiveBySymbol(ctx, symbol); err == nil {
		return domain.Position{}, domain.ErrAlreadyActive
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Position{}, err
	}
	if strategy == "" {
		strategy = l.cfg.Strategy
	}
	pos := domain.Position{
		ID:            uuid.NewString(),
		Symbol:        symbol,
		Strategy:      strategy,
		Status:        domain.PositionStatusOpen,
		OpenTime:      l.now(),
		MaxTradeLimit: l.cfg.MaxTradeLimit,
	}
	if err := s.Positions.Create(ctx, pos); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return domain.Position{}, domain.ErrAlreadyActive
		}
		return domain.Position{}, err
	}
	return pos, nil
}

// CreateStraddleTrades places a PENDING buy and sell leg around price on a new
// position for symbol, or on its empty OPEN one. When levels is nil the fixed
// entry percentage is used.
func (l *PositionLedger) CreateStraddleTrades(
	ctx context.Context,
	symbol string,
	price, quantity float64,
	levels *domain.EntryLevels,
) (domain.Trade, domain.Trade, error) {
	symbol = normalizeSymbol(symbol)
	const op = "create_straddle_trades"
	switch {
	case symbol == "":
		return domain.Trade{}, domain.Trade{}, ledgerErr(op, symbol, domain.Validationf("symbol is required"))
	case !(price > 0):
		return domain.Trade{}, domain.Trade{}, ledgerErr(op, symbol, domain.Validationf("price must be positive, got %v", price))
	case !(quantity > 0):
		return domain.Trade{}, domain.Trade{}, ledgerErr(op, symbol, domain.Validationf("quantity must be positive, got %v", quantity))
	}

	var buyEntry, sellEntry float64
	if levels != nil && levels.BuyEntry > 0 && levels.SellEntry > 0 {
		buyEntry, sellEntry = levels.BuyEntry, levels.SellEntry
	} else {
		buyEntry, sellEntry = l.levels.EntryLevels(price)
	}
	if !(buyEntry > sellEntry) {
		return domain.Trade{}, domain.Trade{}, ledgerErr(op, symbol,
			domain.Validationf("buy entry %v must be above sell entry %v", buyEntry, sellEntry))
	}

	var pos domain.Position
	var buy, sell domain.Trade
	err := l.uow.Do(ctx, func(ctx context.Context, s domain.Stores) error {
		var err error
		pos, err = l.straddlePosition(ctx, s, symbol)
		if err != nil {
			return err
		}
		now := l.now()
		buy = l.pendingLeg(pos, domain.TradeSideBuy, buyEntry, quantity, now)
		sell = l.pendingLeg(pos, domain.TradeSideSell, sellEntry, quantity, now)
		if err := s.Trades.Create(ctx, buy); err != nil {
			return fmt.Errorf("create buy leg: %w", err)
		}
		if err := s.Trades.Create(ctx, sell); err != nil {
			return fmt.Errorf("create sell leg: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Trade{}, domain.Trade{}, ledgerErr(op, symbol, err)
	}

	l.logger.InfoContext(ctx, "ledger: straddle placed",
		slog.String("symbol", symbol),
		slog.String("position_id", pos.ID),
		slog.Float64("buy_entry", buyEntry),
		slog.Float64("sell_entry", sellEntry),
		slog.Float64("quantity", quantity),
	)
	if l.sink != nil {
		setup := domain.StraddleSetup{
			PositionID:   pos.ID,
			Symbol:       symbol,
			CurrentPrice: price,
			BuyEntry:     buyEntry,
			SellEntry:    sellEntry,
			Quantity:     quantity,
			Levels:       levels,
		}
		if err := l.sink.NotifyStraddleSetup(ctx, setup); err != nil {
			l.warn(ctx, "ledger: setup notification failed", symbol, err)
		}
	}
	l.audit(ctx, "straddle_created", map[string]any{
		"position_id": pos.ID, "symbol": symbol, "buy_entry": buyEntry, "sell_entry": sellEntry, "quantity": quantity,
	})
	l.publish(ctx, LedgerEvent{Type: "straddle_created", Symbol: symbol, PositionID: pos.ID, Price: price})
	return buy, sell, nil
}

// straddlePosition returns the position a new pending pair belongs to. An
// OPEN active position without trades is reused; any other active position
// fails with ErrAlreadyActive.
func (l *PositionLedger) straddlePosition(ctx context.Context, s domain.Stores, symbol string) (domain.Position, error) {
	active, err := s.Positions.GetActiveBySymbol(ctx, symbol)
	if errors.Is(err, domain.ErrNotFound) {
		return l.openPosition(ctx, s, symbol, l.cfg.Strategy)
	}
	if err != nil {
		return domain.Position{}, err
	}
	if active.Status != domain.PositionStatusOpen {
		return domain.Position{}, domain.ErrAlreadyActive
	}
	trades, err := s.Trades.ListByPosition(ctx, active.ID)
	if err != nil {
		return domain.Position{}, err
	}
	if len(trades) > 0 {
		return domain.Position{}, domain.ErrAlreadyActive
	}
	return active, nil
}

func (l *PositionLedger) pendingLeg(pos domain.Position, side domain.TradeSide, entry, qty float64, now time.Time) domain.Trade {
	dir := domain.DirectionUp
	if side == domain.TradeSideSell {
		dir = domain.DirectionDown
	}
	tp, sl := l.levels.PositionParams(entry, dir)
	return domain.Trade{
		ID:         uuid.NewString(),
		Symbol:     pos.Symbol,
		Side:       side,
		Quantity:   qty,
		EntryPrice: entry,
		TakeProfit: tp,
		StopLoss:   sl,
		OrderType:  domain.OrderTypeStop,
		Strategy:   pos.Strategy,
		Status:     domain.TradeStatusPending,
		PositionID: pos.ID,
		CreatedAt:  now,
	}
}

// HandleBreakout converts the symbol's pending straddle into a directional
// trade: the leg matching the breakout is filled at the signal price and the
// opposite leg is cancelled.
func (l *PositionLedger) HandleBreakout(ctx context.Context, symbol string, sig domain.BreakoutSignal) (domain.Trade, error) {
	symbol = normalizeSymbol(symbol)
	const op = "handle_breakout"
	if sig.Direction != domain.DirectionUp && sig.Direction != domain.DirectionDown {
		return domain.Trade{}, ledgerErr(op, symbol, domain.Validationf("unknown direction %q", sig.Direction))
	}
	if !(sig.Price > 0) {
		return domain.Trade{}, ledgerErr(op, symbol, domain.Validationf("signal price must be positive, got %v", sig.Price))
	}

	var filled domain.Trade
	err := l.uow.Do(ctx, func(ctx context.Context, s domain.Stores) error {
		pos, err := s.Positions.GetActiveBySymbol(ctx, symbol)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNoActiveStraddle
		}
		if err != nil {
			return err
		}
		if pos.Status != domain.PositionStatusOpen {
			return domain.ErrNoActiveStraddle
		}
		trades, err := s.Trades.ListByPosition(ctx, pos.ID)
		if err != nil {
			return err
		}
		var match, other *domain.Trade
		for i := range trades {
			t := &trades[i]
			if t.Status != domain.TradeStatusPending {
				continue
			}
			if t.Side == sig.Direction.Side() {
				match = t
			} else {
				other = t
			}
		}
		if match == nil || other == nil {
			return domain.ErrNoActiveStraddle
		}

		now := l.now()
		match.Status = domain.TradeStatusOpen
		match.EntryPrice = sig.Price
		match.TakeProfit, match.StopLoss = l.levels.PositionParams(sig.Price, sig.Direction)
		match.EnteredAt = &now
		match.UnrealizedPnL = 0
		if err := s.Trades.Update(ctx, *match); err != nil {
			return err
		}
		other.Status = domain.TradeStatusCancelled
		other.ClosedAt = &now
		if err := s.Trades.Update(ctx, *other); err != nil {
			return err
		}
		pos.Status = domain.PositionStatusInProgress
		mark := sig.Price
		if _, err := l.recompute(ctx, s, &pos, &mark); err != nil {
			return err
		}
		filled = *match
		return nil
	})
	if err != nil {
		return domain.Trade{}, ledgerErr(op, symbol, err)
	}

	l.logger.InfoContext(ctx, "ledger: breakout entered",
		slog.String("symbol", symbol),
		slog.String("direction", string(sig.Direction)),
		slog.String("trade_id", filled.ID),
		slog.Float64("price", sig.Price),
		slog.Float64("confidence", sig.Confidence),
	)
	if l.sink != nil {
		if err := l.sink.NotifyBreakout(ctx, sig); err != nil {
			l.warn(ctx, "ledger: breakout notification failed", symbol, err)
		}
	}
	l.audit(ctx, "breakout_entered", map[string]any{
		"position_id": filled.PositionID, "trade_id": filled.ID, "direction": string(sig.Direction), "price": sig.Price,
	})
	l.publish(ctx, LedgerEvent{Type: "breakout_entered", Symbol: symbol, PositionID: filled.PositionID, TradeID: filled.ID, Price: sig.Price})
	return filled, nil
}

// CloseTrade closes an OPEN trade at exitPrice and recomputes its position.
// Closing an already CLOSED trade fails with ErrAlreadyClosed and writes
// nothing.
func (l *PositionLedger) CloseTrade(ctx context.Context, tradeID string, exitPrice float64) (domain.Trade, error) {
	const op = "close_trade"
	if tradeID == "" {
		return domain.Trade{}, ledgerErr(op, "", domain.Validationf("trade id is required"))
	}
	if !(exitPrice > 0) {
		return domain.Trade{}, ledgerErr(op, "", domain.Validationf("exit price must be positive, got %v", exitPrice))
	}

	current, err := l.uow.Stores().Trades.GetByID(ctx, tradeID)
	if err != nil {
		return domain.Trade{}, ledgerErr(op, "", err)
	}
	if current.Status == domain.TradeStatusClosed {
		return domain.Trade{}, ledgerErr(op, current.Symbol, domain.ErrAlreadyClosed)
	}
	if !current.CanTransition(domain.TradeStatusClosed) {
		return domain.Trade{}, ledgerErr(op, current.Symbol,
			fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, domain.TradeStatusClosed))
	}
	mark := l.markPrice(ctx, current.Symbol)

	var closed domain.Trade
	var pos domain.Position
	var posClosed bool
	err = l.uow.Do(ctx, func(ctx context.Context, s domain.Stores) error {
		t, err := s.Trades.GetByID(ctx, tradeID)
		if err != nil {
			return err
		}
		if t.Status == domain.TradeStatusClosed {
			return domain.ErrAlreadyClosed
		}
		if !t.CanTransition(domain.TradeStatusClosed) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, t.Status, domain.TradeStatusClosed)
		}
		closeTrade(&t, exitPrice, l.now())
		if err := s.Trades.Update(ctx, t); err != nil {
			return err
		}
		pos, err = s.Positions.GetByID(ctx, t.PositionID)
		if err != nil {
			return fmt.Errorf("get position %s: %w", t.PositionID, err)
		}
		posClosed, err = l.recompute(ctx, s, &pos, mark)
		if err != nil {
			return err
		}
		closed = t
		return nil
	})
	if err != nil {
		return domain.Trade{}, ledgerErr(op, current.Symbol, err)
	}

	l.logger.InfoContext(ctx, "ledger: trade closed",
		slog.String("symbol", closed.Symbol),
		slog.String("trade_id", closed.ID),
		slog.Float64("exit_price", exitPrice),
		slog.Float64("pnl", closed.PnL),
	)
	l.audit(ctx, "trade_closed", map[string]any{
		"position_id": closed.PositionID, "trade_id": closed.ID, "exit_price": exitPrice, "pnl": closed.PnL,
	})
	l.publish(ctx, LedgerEvent{Type: "trade_closed", Symbol: closed.Symbol, PositionID: closed.PositionID, TradeID: closed.ID, Price: exitPrice})
	if posClosed {
		l.positionClosed(ctx, pos)
	}
	return closed, nil
}

// MarkPosition revalues the OPEN trades of symbol's active position at price
// and persists the resulting unrealized P/L.
func (l *PositionLedger) MarkPosition(ctx context.Context, symbol string, price float64) (domain.Position, error) {
	symbol = normalizeSymbol(symbol)
	const op = "mark_position"
	if symbol == "" {
		return domain.Position{}, ledgerErr(op, symbol, domain.Validationf("symbol is required"))
	}
	if !(price > 0) {
		return domain.Position{}, ledgerErr(op, symbol, domain.Validationf("mark price must be positive, got %v", price))
	}

	var pos domain.Position
	var posClosed bool
	err := l.uow.Do(ctx, func(ctx context.Context, s domain.Stores) error {
		var err error
		pos, err = s.Positions.GetActiveBySymbol(ctx, symbol)
		if err != nil {
			return err
		}
		posClosed, err = l.recompute(ctx, s, &pos, &price)
		return err
	})
	if err != nil {
		return domain.Position{}, ledgerErr(op, symbol, err)
	}
	l.logger.DebugContext(ctx, "ledger: position marked",
		slog.String("symbol", symbol),
		slog.String("position_id", pos.ID),
		slog.Float64("price", price),
		slog.Float64("unrealized_pnl", pos.UnrealizedPnL),
	)
	if posClosed {
		l.positionClosed(ctx, pos)
	}
	return pos, nil
}

// CloseStraddle closes every OPEN trade of the symbol's active position at
// the current market price, cancels pending legs and closes the position.
func (l *PositionLedger) CloseStraddle(ctx context.Context, symbol string) ([]domain.Trade, error) {
	symbol = normalizeSymbol(symbol)
	const op = "close_straddle"
	if symbol == "" {
		return nil, ledgerErr(op, symbol, domain.Validationf("symbol is required"))
	}
	price, err := l.prices.CurrentPrice(ctx, symbol)
	if err != nil {
		return nil, ledgerErr(op, symbol, fmt.Errorf("%w: current price: %v", domain.ErrUpstreamUnavailable, err))
	}

	var closed []domain.Trade
	var pos domain.Position
	err = l.uow.Do(ctx, func(ctx context.Context, s domain.Stores) error {
		var err error
		pos, err = s.Positions.GetActiveBySymbol(ctx, symbol)
		if err != nil {
			return err
		}
		trades, err := s.Trades.ListByPosition(ctx, pos.ID)
		if err != nil {
			return err
		}
		now := l.now()
		closed = closed[:0]
		for _, t := range trades {
			switch t.Status {
			case domain.TradeStatusOpen:
				closeTrade(&t, price, now)
				closed = append(closed, t)
			case domain.TradeStatusPending:
				t.Status = domain.TradeStatusCancelled
				t.ClosedAt = &now
			default:
				continue
			}
			if err := s.Trades.Update(ctx, t); err != nil {
				return err
			}
		}
		if _, err := l.recompute(ctx, s, &pos, &price); err != nil {
			return err
		}
		if pos.Status.Active() {
			// A position with no legs is closed explicitly.
			pos.Status = domain.PositionStatusClosed
			pos.CloseTime = &now
			return s.Positions.Update(ctx, pos)
		}
		return nil
	})
	if err != nil {
		return nil, ledgerErr(op, symbol, err)
	}

	l.logger.InfoContext(ctx, "ledger: straddle closed",
		slog.String("symbol", symbol),
		slog.String("position_id", pos.ID),
		slog.Int("closed_trades", len(closed)),
		slog.Float64("price", price),
	)
	for _, t := range closed {
		l.publish(ctx, LedgerEvent{Type: "trade_closed", Symbol: symbol, PositionID: pos.ID, TradeID: t.ID, Price: price})
	}
	l.positionClosed(ctx, pos)
	return closed, nil
}

func closeTrade(t *domain.Trade, exit float64, now time.Time) {
	x := exit
	t.ExitPrice = &x
	t.Status = domain.TradeStatusClosed
	t.ClosedAt = &now
	t.PnL = t.PnLAt(exit)
	t.RealizedPnL = t.PnL
	t.UnrealizedPnL = 0
}

// recompute rebuilds pos's aggregates from its trades and completed swaps
// and persists it. OPEN trades are marked at mark when it is known;
// otherwise their last unrealized value is kept. It reports whether the
// position transitioned to CLOSED.
func (l *PositionLedger) recompute(ctx context.Context, s domain.Stores, pos *domain.Position, mark *float64) (bool, error) {
	trades, err := s.Trades.ListByPosition(ctx, pos.ID)
	if err != nil {
		return false, err
	}
	swaps, err := s.Swaps.ListByPosition(ctx, pos.ID)
	if err != nil {
		return false, err
	}

	var realized, unrealized, qty, notional float64
	allTerminal := len(trades) > 0
	for _, t := range trades {
		switch t.Status {
		case domain.TradeStatusClosed:
			realized += t.PnL
		case domain.TradeStatusOpen:
			if mark != nil {
				t.UnrealizedPnL = t.PnLAt(*mark)
				if err := s.Trades.Update(ctx, t); err != nil {
					return false, err
				}
			}
			unrealized += t.UnrealizedPnL
			qty += t.Quantity
			notional += t.Quantity * t.EntryPrice
		}
		if !t.Status.Terminal() {
			allTerminal = false
		}
	}
	for _, sw := range swaps {
		if sw.Status == domain.SwapStatusCompleted {
			realized += sw.RealizedProfit
		}
	}

	pos.RealizedPnL = realized
	pos.UnrealizedPnL = unrealized
	pos.TotalQuantity = qty
	if qty > 0 {
		avg := notional / qty
		pos.AverageEntryPrice = &avg
	} else {
		pos.AverageEntryPrice = nil
	}
	closed := false
	if allTerminal && pos.Status.Active() {
		now := l.now()
		pos.Status = domain.PositionStatusClosed
		pos.CloseTime = &now
		closed = true
	}
	if err := s.Positions.Update(ctx, *pos); err != nil {
		return false, err
	}
	return closed, nil
}

// markPrice returns the current price for symbol, or nil when it cannot be
// fetched.
func (l *PositionLedger) markPrice(ctx context.Context, symbol string) *float64 {
	if l.prices == nil {
		return nil
	}
	p, err := l.prices.CurrentPrice(ctx, symbol)
	if err != nil {
		l.warn(ctx, "ledger: mark price unavailable, keeping last unrealized pnl", symbol, err)
		return nil
	}
	return &p
}

func (l *PositionLedger) positionClosed(ctx context.Context, pos domain.Position) {
	l.logger.InfoContext(ctx, "ledger: position closed",
		slog.String("symbol", pos.Symbol),
		slog.String("position_id", pos.ID),
		slog.Float64("realized_pnl", pos.RealizedPnL),
	)
	l.audit(ctx, "position_closed", map[string]any{
		"position_id": pos.ID, "symbol": pos.Symbol, "realized_pnl": pos.RealizedPnL,
	})
	l.publish(ctx, LedgerEvent{Type: "position_closed", Symbol: pos.Symbol, PositionID: pos.ID})
	if l.sink == nil {
		return
	}
	trades, err := l.uow.Stores().Trades.ListByPosition(ctx, pos.ID)
	if err != nil {
		l.warn(ctx, "ledger: load trades for close notification", pos.Symbol, err)
	}
	if err := l.sink.NotifyPositionClose(ctx, pos, trades); err != nil {
		l.warn(ctx, "ledger: close notification failed", pos.Symbol, err)
	}
}

// GetPositionProfit splits a position's realized P/L into closed trades and
// completed swaps. Swaps are reported as zero when includeSwaps is false.
func (l *PositionLedger) GetPositionProfit(ctx context.Context, positionID string, includeSwaps bool) (domain.ProfitBreakdown, error) {
	const op = "get_position_profit"
	st := l.uow.Stores()
	if _, err := st.Positions.GetByID(ctx, positionID); err != nil {
		return domain.ProfitBreakdown{}, ledgerErr(op, "", err)
	}
	trades, err := st.Trades.ListByPosition(ctx, positionID)
	if err != nil {
		return domain.ProfitBreakdown{}, ledgerErr(op, "", err)
	}
	out := domain.ProfitBreakdown{PositionID: positionID}
	for _, t := range trades {
		if t.Status == domain.TradeStatusClosed {
			out.Gross += t.PnL
		}
	}
	if includeSwaps {
		swaps, err := st.Swaps.ListByPosition(ctx, positionID)
		if err != nil {
			return domain.ProfitBreakdown{}, ledgerErr(op, "", err)
		}
		for _, sw := range swaps {
			if sw.Status == domain.SwapStatusCompleted {
				out.Swaps += sw.RealizedProfit
			}
		}
	}
	out.Net = out.Gross + out.Swaps
	return out, nil
}

// RecordSwap stores a swap transaction. Missing fee amount, rate, timestamp
// and status are derived. A completed swap attributed to a position updates
// that position's realized P/L in the same transaction.
func (l *PositionLedger) RecordSwap(ctx context.Context, sw domain.SwapTransaction) (domain.SwapTransaction, error) {
	const op = "record_swap"
	if err := validateSwap(sw); err != nil {
		return domain.SwapTransaction{}, ledgerErr(op, "", err)
	}
	if sw.ID == "" {
		sw.ID = uuid.NewString()
	}
	if sw.FeeAmount == 0 && sw.FeePercentage > 0 {
		sw.FeeAmount = decimal.NewFromFloat(sw.FromAmount).
			Mul(decimal.NewFromFloat(sw.FeePercentage)).
			Div(decimal.NewFromInt(100)).
			InexactFloat64()
	}
	if sw.Rate == 0 {
		sw.Rate = decimal.NewFromFloat(sw.ToAmount).Div(decimal.NewFromFloat(sw.FromAmount)).InexactFloat64()
	}
	if sw.Timestamp.IsZero() {
		sw.Timestamp = l.now()
	}
	if sw.Status == "" {
		sw.Status = domain.SwapStatusPending
	}
	sw.ToStable = domain.IsStable(sw.ToSymbol)

	err := l.uow.Do(ctx, func(ctx context.Context, s domain.Stores) error {
		var pos domain.Position
		if sw.PositionID != nil {
			var err error
			pos, err = s.Positions.GetByID(ctx, *sw.PositionID)
			if err != nil {
				return fmt.Errorf("position %s: %w", *sw.PositionID, err)
			}
		}
		if err := s.Swaps.Create(ctx, sw); err != nil {
			return err
		}
		if sw.PositionID != nil && sw.Status == domain.SwapStatusCompleted {
			if _, err := l.recompute(ctx, s, &pos, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.SwapTransaction{}, ledgerErr(op, "", err)
	}
	l.audit(ctx, "swap_recorded", map[string]any{
		"transaction_id": sw.TransactionID, "from": sw.FromSymbol, "to": sw.ToSymbol, "status": string(sw.Status),
	})
	return sw, nil
}

// CompleteSwap marks a pending swap completed with its realized profit.
func (l *PositionLedger) CompleteSwap(ctx context.Context, transactionID string, realizedProfit float64) (domain.SwapTransaction, error) {
	return l.settleSwap(ctx, "complete_swap", transactionID, domain.SwapStatusCompleted, realizedProfit)
}

// FailSwap marks a pending swap failed.
func (l *PositionLedger) FailSwap(ctx context.Context, transactionID string) (domain.SwapTransaction, error) {
	return l.settleSwap(ctx, "fail_swap", transactionID, domain.SwapStatusFailed, 0)
}

func (l *PositionLedger) settleSwap(
	ctx context.Context,
	op, transactionID string,
	next domain.SwapStatus,
	realizedProfit float64,
) (domain.SwapTransaction, error) {
	var sw domain.SwapTransaction
	err := l.uow.Do(ctx, func(ctx context.Context, s domain.Stores) error {
		var err error
		sw, err = s.Swaps.GetByTransactionID(ctx, transactionID)
		if err != nil {
			return err
		}
		if sw.Status != domain.SwapStatusPending {
			return fmt.Errorf("%w: swap %s -> %s", domain.ErrInvalidTransition, sw.Status, next)
		}
		sw.Status = next
		if next == domain.SwapStatusCompleted {
			sw.RealizedProfit = realizedProfit
		}
		if err := s.Swaps.Update(ctx, sw); err != nil {
			return err
		}
		if sw.PositionID == nil || next != domain.SwapStatusCompleted {
			return nil
		}
		pos, err := s.Positions.GetByID(ctx, *sw.PositionID)
		if err != nil {
			return err
		}
		_, err = l.recompute(ctx, s, &pos, nil)
		return err
	})
	if err != nil {
		return domain.SwapTransaction{}, ledgerErr(op, "", err)
	}
	l.audit(ctx, "swap_"+string(next), map[string]any{"transaction_id": transactionID, "realized_profit": sw.RealizedProfit})
	return sw, nil
}

func validateSwap(sw domain.SwapTransaction) error {
	switch {
	case sw.TransactionID == "":
		return domain.Validationf("transaction id is required")
	case sw.FromSymbol == "" || sw.ToSymbol == "":
		return domain.Validationf("from and to symbols are required")
	case !(sw.FromAmount > 0) || !(sw.ToAmount > 0):
		return domain.Validationf("swap amounts must be positive")
	case sw.FeePercentage < 0 || sw.FeeAmount < 0:
		return domain.Validationf("fees must not be negative")
	case sw.Status != "" && sw.Status != domain.SwapStatusPending &&
		sw.Status != domain.SwapStatusCompleted && sw.Status != domain.SwapStatusFailed:
		return domain.Validationf("unknown swap status %q", sw.Status)
	}
	return nil
}

// GetPosition returns a position by id.
func (l *PositionLedger) GetPosition(ctx context.Context, id string) (domain.Position, error) {
	pos, err := l.uow.Stores().Positions.GetByID(ctx, id)
	if err != nil {
		return domain.Position{}, ledgerErr("get_position", "", err)
	}
	return pos, nil
}

// ActivePosition returns the OPEN or IN_PROGRESS position for symbol.
func (l *PositionLedger) ActivePosition(ctx context.Context, symbol string) (domain.Position, error) {
	symbol = normalizeSymbol(symbol)
	pos, err := l.uow.Stores().Positions.GetActiveBySymbol(ctx, symbol)
	if err != nil {
		return domain.Position{}, ledgerErr("active_position", symbol, err)
	}
	return pos, nil
}

// ListPositions lists positions in a status, or all positions when status is
// empty.
func (l *PositionLedger) ListPositions(ctx context.Context, status domain.PositionStatus, opts domain.ListOpts) ([]domain.Position, error) {
	out, err := l.uow.Stores().Positions.ListByStatus(ctx, status, opts)
	if err != nil {
		return nil, ledgerErr("list_positions", "", err)
	}
	return out, nil
}

// TradesForPosition returns a position's trades, oldest first.
func (l *PositionLedger) TradesForPosition(ctx context.Context, positionID string) ([]domain.Trade, error) {
	out, err := l.uow.Stores().Trades.ListByPosition(ctx, positionID)
	if err != nil {
		return nil, ledgerErr("trades_for_position", "", err)
	}
	return out, nil
}

// GetTrade returns a trade by id.
func (l *PositionLedger) GetTrade(ctx context.Context, id string) (domain.Trade, error) {
	t, err := l.uow.Stores().Trades.GetByID(ctx, id)
	if err != nil {
		return domain.Trade{}, ledgerErr("get_trade", "", err)
	}
	return t, nil
}

func (l *PositionLedger) audit(ctx context.Context, event string, detail map[string]any) {
	if err := l.uow.Stores().Audit.Log(ctx, event, detail); err != nil {
		l.warn(ctx, "ledger: audit log failed", "", err)
	}
}

func (l *PositionLedger) publish(ctx context.Context, ev LedgerEvent) {
	if l.bus == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = l.now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		l.warn(ctx, "ledger: marshal event", ev.Symbol, err)
		return
	}
	if err := l.bus.Publish(ctx, LedgerChannel, payload); err != nil {
		l.warn(ctx, "ledger: publish event failed", ev.Symbol, err)
	}
}

func (l *PositionLedger) warn(ctx context.Context, msg, symbol string, err error) {
	l.logger.WarnContext(ctx, msg,
		slog.String("symbol", symbol),
		slog.String("error", err.Error()),
	)
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

// SwapProfit is the realized result of one swap into a stablecoin.
type SwapProfit struct {
	TransactionID string
	FromSymbol    string
	ToSymbol      string
	SoldUnits     float64
	CostBasis     float64
	SellValue     float64
	Fee           float64
	Profit        float64
	ProfitPct     float64
	Timestamp     time.Time
}

// Holding is the FIFO inventory left for a symbol.
type Holding struct {
	Amount   float64
	AvgPrice float64
}

// SwapReport aggregates FIFO swap profits.
type SwapReport struct {
	TotalProfit float64
	TotalFee    float64
	Profits     []SwapProfit
	Symbols     []string
	Count       int
	Profitable  int
	Losing      int
	AvgProfit   float64
	Remaining   map[string]Holding
}

type lot struct {
	amount decimal.Decimal
	rate   decimal.Decimal
}

// ProfitCalculator computes FIFO profits over swap history.
type ProfitCalculator struct{}

// Swaps replays swaps oldest first. Buying from a stablecoin adds a lot,
// swapping crypto to crypto carries the consumed cost basis into the new
// symbol, and selling into a stablecoin realizes value minus cost minus fee.
// All swaps build inventory; only those inside [since, until] are reported.
// A nil bound is open.
func (ProfitCalculator) Swaps(swaps []domain.SwapTransaction, since, until *time.Time) SwapReport {
	sorted := make([]domain.SwapTransaction, 0, len(swaps))
	for _, sw := range swaps {
		if sw.Timestamp.IsZero() || sw.Status == domain.SwapStatusFailed {
			continue
		}
		if until != nil && sw.Timestamp.After(*until) {
			continue
		}
		sorted = append(sorted, sw)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	holdings := make(map[string][]lot)
	symbols := make(map[string]struct{})
	var total, fees decimal.Decimal
	report := SwapReport{Remaining: make(map[string]Holding)}

	for _, sw := range sorted {
		from := decimal.NewFromFloat(sw.FromAmount)
		to := decimal.NewFromFloat(sw.ToAmount)
		fee := decimal.NewFromFloat(sw.FeeAmount)
		inWindow := since == nil || !sw.Timestamp.Before(*since)

		switch {
		case domain.IsStable(sw.FromSymbol):
			if to.IsPositive() {
				holdings[sw.ToSymbol] = append(holdings[sw.ToSymbol], lot{amount: to, rate: from.Div(to)})
			}
		case domain.IsStable(sw.ToSymbol):
			var sold, cost decimal.Decimal
			holdings[sw.FromSymbol], sold, cost = consume(holdings[sw.FromSymbol], from)
			if !inWindow {
				continue
			}
			profit := to.Sub(cost).Sub(fee)
			sp := SwapProfit{
				TransactionID: sw.TransactionID,
				FromSymbol:    sw.FromSymbol,
				ToSymbol:      sw.ToSymbol,
				SoldUnits:     sold.InexactFloat64(),
				CostBasis:     cost.InexactFloat64(),
				SellValue:     to.InexactFloat64(),
				Fee:           fee.InexactFloat64(),
				Profit:        profit.InexactFloat64(),
				Timestamp:     sw.Timestamp,
			}
			if cost.IsPositive() {
				sp.ProfitPct = profit.Div(cost).Mul(decimal.NewFromInt(100)).InexactFloat64()
			}
			report.Profits = append(report.Profits, sp)
			total = total.Add(profit)
		default:
			var cost decimal.Decimal
			holdings[sw.FromSymbol], _, cost = consume(holdings[sw.FromSymbol], from)
			rate := decimal.Zero
			if to.IsPositive() {
				rate = cost.Div(to)
			}
			holdings[sw.ToSymbol] = append(holdings[sw.ToSymbol], lot{amount: to, rate: rate})
		}

		if inWindow {
			symbols[sw.FromSymbol] = struct{}{}
			symbols[sw.ToSymbol] = struct{}{}
			fees = fees.Add(fee)
			report.Count++
		}
	}

	report.TotalProfit = total.InexactFloat64()
	report.TotalFee = fees.InexactFloat64()
	for _, p := range report.Profits {
		switch {
		case p.Profit > 0:
			report.Profitable++
		case p.Profit < 0:
			report.Losing++
		}
	}
	if n := len(report.Profits); n > 0 {
		report.AvgProfit = total.Div(decimal.NewFromInt(int64(n))).InexactFloat64()
	}
	for sym := range symbols {
		report.Symbols = append(report.Symbols, sym)
	}
	sort.Strings(report.Symbols)
	for sym, lots := range holdings {
		amount, value := decimal.Zero, decimal.Zero
		for _, l := range lots {
			amount = amount.Add(l.amount)
			value = value.Add(l.amount.Mul(l.rate))
		}
		if !amount.IsPositive() {
			continue
		}
		report.Remaining[sym] = Holding{
			Amount:   amount.InexactFloat64(),
			AvgPrice: value.Div(amount).InexactFloat64(),
		}
	}
	return report
}

// consume takes up to amount units from the front of lots and returns the
// remaining lots, the units taken and their cost basis.
func consume(lots []lot, amount decimal.Decimal) ([]lot, decimal.Decimal, decimal.Decimal) {
	sold, cost := decimal.Zero, decimal.Zero
	for amount.IsPositive() && len(lots) > 0 {
		head := lots[0]
		used := decimal.Min(amount, head.amount)
		cost = cost.Add(used.Mul(head.rate))
		sold = sold.Add(used)
		amount = amount.Sub(used)
		if head.amount.GreaterThan(used) {
			lots[0].amount = head.amount.Sub(used)
		} else {
			lots = lots[1:]
		}
	}
	return lots, sold, cost
}

// ProfitSummary reports trading results for a date range.
type ProfitSummary struct {
	Since      time.Time
	Until      time.Time
	TradeCount int
	Wins       int
	Losses     int
	WinRate    float64 // percent of closed trades with positive pnl
	TradePnL   float64
	BestTrade  float64
	WorstTrade float64
	Swaps      SwapReport
	NetProfit  float64
}

// ProfitService builds profit summaries from persisted trades and swaps.
type ProfitService struct {
	stores domain.Stores
	calc   ProfitCalculator
	logger *slog.Logger
}

// NewProfitService creates a ProfitService reading from stores.
func NewProfitService(stores domain.Stores, logger *slog.Logger) *ProfitService {
	return &ProfitService{
		stores: stores,
		logger: logger.With(slog.String("component", "profit")),
	}
}

// Summary totals trades closed and swaps made between since and until.
func (s *ProfitService) Summary(ctx context.Context, since, until time.Time) (ProfitSummary, error) {
	if until.Before(since) {
		return ProfitSummary{}, domain.Validationf("until %s is before since %s", until, since)
	}
	trades, err := s.stores.Trades.ListClosed(ctx, domain.ListOpts{Since: &since, Until: &until})
	if err != nil {
		return ProfitSummary{}, fmt.Errorf("profit: list closed trades: %w", err)
	}
	// Inventory needs the full swap history up to the window end.
	swaps, err := s.stores.Swaps.List(ctx, domain.ListOpts{Until: &until})
	if err != nil {
		return ProfitSummary{}, fmt.Errorf("profit: list swaps: %w", err)
	}

	out := ProfitSummary{Since: since, Until: until, TradeCount: len(trades)}
	pnl := decimal.Zero
	for i, t := range trades {
		pnl = pnl.Add(decimal.NewFromFloat(t.PnL))
		switch {
		case t.PnL > 0:
			out.Wins++
		case t.PnL < 0:
			out.Losses++
		}
		if i == 0 || t.PnL > out.BestTrade {
			out.BestTrade = t.PnL
		}
		if i == 0 || t.PnL < out.WorstTrade {
			out.WorstTrade = t.PnL
		}
	}
	if out.TradeCount > 0 {
		out.WinRate = float64(out.Wins) / float64(out.TradeCount) * 100
	}
	out.TradePnL = pnl.InexactFloat64()
	out.Swaps = s.calc.Swaps(swaps, &since, &until)
	out.NetProfit = pnl.Add(decimal.NewFromFloat(out.Swaps.TotalProfit)).InexactFloat64()

	s.logger.DebugContext(ctx, "profit: summary built",
		slog.Time("since", since),
		slog.Time("until", until),
		slog.Int("trades", out.TradeCount),
		slog.Int("swaps", out.Swaps.Count),
		slog.Float64("net_profit", out.NetProfit),
	)
	return out, nil
}

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/straddlebot/internal/analysis"
	"github.com/alanyoungcy/straddlebot/internal/config"
	"github.com/alanyoungcy/straddlebot/internal/domain"
	"github.com/alanyoungcy/straddlebot/internal/feed"
	"github.com/alanyoungcy/straddlebot/internal/scheduler"
	"github.com/alanyoungcy/straddlebot/internal/service"
	"github.com/alanyoungcy/straddlebot/internal/strategy"
)

// monitorSpec is how often monitor mode logs a snapshot.
const monitorSpec = "@every 1m"

type scheduledJob struct {
	name string
	spec string
	job  scheduler.Job
}

// core holds the domain services shared by the running modes.
type core struct {
	prices  *service.PriceService
	ledger  *service.PositionLedger
	risk    *service.RiskService
	profits *service.ProfitService
	engine  *strategy.StraddleStrategyEngine
}

func buildCore(cfg *config.Config, deps *Dependencies, logger *slog.Logger) *core {
	prices := service.NewPriceService(deps.PriceCache, deps.Binance, deps.EventBus, cfg.Straddle.PriceMaxAge.Duration, logger)
	levels := analysis.NewEntryLevelCalculator(analysis.DefaultLevelsConfig())

	ledger := service.NewPositionLedger(deps.UnitOfWork, levels, prices, deps.Sink, deps.EventBus, service.LedgerConfig{
		Strategy:      cfg.Straddle.Strategy,
		MaxTradeLimit: cfg.Straddle.MaxTradeLimit,
	}, logger)

	risk := service.NewRiskService(deps.Stores.Positions, prices, service.RiskConfig{
		MaxActivePositions: cfg.Risk.MaxActivePositions,
		MaxNotional:        cfg.Risk.MaxNotional,
		MaxVolatility:      cfg.Risk.MaxVolatility,
		UnrealizedAlert:    cfg.Risk.UnrealizedAlert,
		Interval:           cfg.Straddle.Interval,
		Lookback:           cfg.Risk.Lookback,
	}, logger)

	engine := strategy.NewStraddleStrategyEngine(
		ledger,
		analysis.NewMarketAnalyzer(analysis.DefaultAnalyzerConfig(), logger),
		levels,
		prices,
		deps.LockManager,
		risk,
		deps.Sink,
		strategy.Config{
			Symbols:      cfg.Straddle.Symbols,
			Quantity:     cfg.Straddle.Quantity,
			Interval:     cfg.Straddle.Interval,
			HistoryLimit: cfg.Straddle.HistoryLimit,
			TickTimeout:  cfg.Straddle.TickTimeout.Duration,
			LockTTL:      cfg.Straddle.LockTTL.Duration,
			Concurrency:  cfg.Straddle.Concurrency,
		},
		logger,
	)

	return &core{
		prices:  prices,
		ledger:  ledger,
		risk:    risk,
		profits: service.NewProfitService(deps.Stores, logger),
		engine:  engine,
	}
}

// TradeMode runs the straddle engine on a schedule, keeps the price cache
// warm from the ticker stream and runs the risk, summary and archive jobs.
// Paper mode runs the same loop over the in-memory store.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode",
		slog.String("mode", a.cfg.Mode),
		slog.Any("symbols", a.cfg.Straddle.Symbols),
	)

	c := buildCore(a.cfg, deps, a.logger)
	g, ctx := errgroup.WithContext(ctx)

	a.startTickerStream(ctx, g, c.prices)

	if a.cfg.Straddle.EventDriven {
		feeder := feed.NewEngineFeeder(deps.EventBus, c.engine, a.cfg.Straddle.Symbols, a.cfg.Straddle.MinTickInterval.Duration, a.logger)
		g.Go(func() error {
			return feeder.Run(ctx)
		})
	}

	runner := scheduler.NewRunner(a.cfg.Scheduler.JobTimeout.Duration, a.logger)
	sc := a.cfg.Scheduler
	jobs := []scheduledJob{
		{"tick", sc.TickSpec, scheduler.TickJob(c.engine, a.logger)},
		{"risk_sweep", sc.RiskSpec, scheduler.RiskSweepJob(c.risk, deps.Sink)},
		{"daily_summary", sc.SummarySpec, scheduler.DailySummaryJob(c.profits, deps.Sink, nil)},
	}
	if deps.Archiver != nil {
		jobs = append(jobs, scheduledJob{"archive", sc.ArchiveSpec, scheduler.ArchiveJob(deps.Archiver, sc.RetentionDays, a.logger, nil)})
	}
	for _, j := range jobs {
		if strings.TrimSpace(j.spec) == "" {
			a.logger.InfoContext(ctx, "trade mode: job disabled", slog.String("job", j.name))
			continue
		}
		if err := runner.Add(j.name, j.spec, j.job); err != nil {
			return fmt.Errorf("app: trade mode: %w", err)
		}
	}

	g.Go(func() error {
		return runner.Run(ctx)
	})

	// First tick right away rather than waiting a full period.
	g.Go(func() error {
		return scheduler.TickJob(c.engine, a.logger)(ctx)
	})

	return g.Wait()
}

// MonitorMode streams prices and periodically logs the shared state: cached
// prices, in-progress positions and recent ledger events. It never places
// or closes trades.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	c := buildCore(a.cfg, deps, a.logger)
	g, ctx := errgroup.WithContext(ctx)

	a.startTickerStream(ctx, g, c.prices)

	runner := scheduler.NewRunner(a.cfg.Scheduler.JobTimeout.Duration, a.logger)
	snapshotJob := func(ctx context.Context) error {
		s, err := takeSnapshot(ctx, a.cfg.Straddle.Symbols, c.prices, deps.Stores.Positions, deps.EventLog)
		if err != nil {
			return err
		}
		s.log(ctx, a.logger)
		return nil
	}
	if err := runner.Add("snapshot", monitorSpec, snapshotJob); err != nil {
		return fmt.Errorf("app: monitor mode: %w", err)
	}
	if a.cfg.Scheduler.RiskSpec != "" {
		if err := runner.Add("risk_sweep", a.cfg.Scheduler.RiskSpec, scheduler.RiskSweepJob(c.risk, deps.Sink)); err != nil {
			return fmt.Errorf("app: monitor mode: %w", err)
		}
	}
	g.Go(func() error {
		return runner.Run(ctx)
	})

	return g.Wait()
}

// ArchiveMode runs a single archive pass and returns.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return fmt.Errorf("app: archive mode: s3 archiving is not configured")
	}
	a.logger.InfoContext(ctx, "starting archive mode",
		slog.Int("retention_days", a.cfg.Scheduler.RetentionDays),
	)
	if t := a.cfg.Scheduler.JobTimeout.Duration; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	return scheduler.ArchiveJob(deps.Archiver, a.cfg.Scheduler.RetentionDays, a.logger, nil)(ctx)
}

// startTickerStream feeds streamed tickers into the price service when
// streaming is enabled.
func (a *App) startTickerStream(ctx context.Context, g *errgroup.Group, prices *service.PriceService) {
	if !a.cfg.Binance.Stream {
		a.logger.InfoContext(ctx, "ticker stream disabled, prices come from REST")
		return
	}
	stream := feed.NewBinanceTickerFeed(a.cfg.Binance.StreamURL, a.cfg.Straddle.Symbols, prices.HandleTicker, a.logger)
	g.Go(func() error {
		defer stream.Close()
		return stream.Run(ctx)
	})
}

// snapshot is a point-in-time view of the shared bot state.
type snapshot struct {
	Prices    map[string]float64
	Positions []domain.Position
	Events    []service.LedgerEvent
}

func takeSnapshot(
	ctx context.Context,
	symbols []string,
	prices *service.PriceService,
	positions domain.PositionStore,
	events domain.EventLog,
) (snapshot, error) {
	var s snapshot
	var err error
	if s.Prices, err = prices.GetPrices(ctx, symbols); err != nil {
		return s, fmt.Errorf("snapshot: %w", err)
	}
	for _, st := range []domain.PositionStatus{domain.PositionStatusOpen, domain.PositionStatusInProgress} {
		ps, err := positions.ListByStatus(ctx, st, domain.ListOpts{})
		if err != nil {
			return s, fmt.Errorf("snapshot: list %s positions: %w", st, err)
		}
		s.Positions = append(s.Positions, ps...)
	}
	sort.Slice(s.Positions, func(i, j int) bool { return s.Positions[i].Symbol < s.Positions[j].Symbol })

	if events != nil {
		msgs, err := events.Recent(ctx, service.LedgerChannel, 10)
		if err != nil {
			return s, fmt.Errorf("snapshot: recent events: %w", err)
		}
		for _, m := range msgs {
			var evt service.LedgerEvent
			if err := json.Unmarshal(m.Payload, &evt); err != nil {
				continue
			}
			s.Events = append(s.Events, evt)
		}
	}
	return s, nil
}

func (s snapshot) log(ctx context.Context, logger *slog.Logger) {
	for sym, p := range s.Prices {
		logger.InfoContext(ctx, "monitor: price", slog.String("symbol", sym), slog.Float64("price", p))
	}
	for _, p := range s.Positions {
		logger.InfoContext(ctx, "monitor: position",
			slog.String("symbol", p.Symbol),
			slog.String("position_id", p.ID),
			slog.String("status", string(p.Status)),
			slog.Float64("quantity", p.TotalQuantity),
			slog.Float64("unrealized_pnl", p.UnrealizedPnL),
		)
	}
	for _, e := range s.Events {
		logger.InfoContext(ctx, "monitor: ledger event",
			slog.String("type", e.Type),
			slog.String("symbol", e.Symbol),
			slog.Time("at", e.At),
		)
	}
}

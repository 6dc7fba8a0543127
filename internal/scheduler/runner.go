// Package scheduler runs the bot's periodic jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Runner wraps a cron.Cron. A job still running when its next slot fires is
// skipped, and panics are recovered and logged.
type Runner struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  *slog.Logger
	baseCtx context.Context
}

// NewRunner creates a Runner using standard 5-field specs and descriptors
// like "@every 5m" or "@daily". Each run is bounded by timeout when it is
// positive.
func NewRunner(timeout time.Duration, logger *slog.Logger) *Runner {
	logger = logger.With(slog.String("component", "scheduler"))
	cl := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelWarn))
	return &Runner{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
			cron.WithLogger(cl),
		),
		timeout: timeout,
		logger:  logger,
		baseCtx: context.Background(),
	}
}

// Add registers job under name on spec.
func (r *Runner) Add(name, spec string, job Job) error {
	_, err := r.cron.AddFunc(spec, func() { r.runJob(name, job) })
	if err != nil {
		return fmt.Errorf("scheduler: add %s %q: %w", name, spec, err)
	}
	r.logger.Info("scheduler: job registered", slog.String("job", name), slog.String("spec", spec))
	return nil
}

func (r *Runner) runJob(name string, job Job) {
	ctx := r.baseCtx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	start := time.Now()
	if err := job(ctx); err != nil {
		r.logger.ErrorContext(ctx, "scheduler: job failed",
			slog.String("job", name),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return
	}
	r.logger.DebugContext(ctx, "scheduler: job done",
		slog.String("job", name),
		slog.Duration("elapsed", time.Since(start)),
	)
}

// Entries returns the number of registered jobs.
func (r *Runner) Entries() int {
	return len(r.cron.Entries())
}

// Run starts the schedule and blocks until ctx is done, then waits for
// running jobs to finish. Jobs see a context cancelled with ctx.
func (r *Runner) Run(ctx context.Context) error {
	r.baseCtx = ctx
	r.cron.Start()
	r.logger.InfoContext(ctx, "scheduler: started", slog.Int("jobs", r.Entries()))

	<-ctx.Done()
	<-r.cron.Stop().Done()
	r.logger.Info("scheduler: stopped")
	return nil
}

// Package scheduler refreshes a watch list of symbols on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rustyeddy/stockdata/market"
	"github.com/rustyeddy/stockdata/store"
	"go.uber.org/zap"
)

// Refresher downloads and stores one (symbol, interval).
type Refresher interface {
	Refresh(ctx context.Context, symbol string, iv market.Interval) (store.Info, error)
}

// Watcher runs Refresh for every symbol and interval of its watch list.
type Watcher struct {
	Cron      *cron.Cron
	refresher Refresher
	symbols   []string
	intervals []market.Interval
	logger    *zap.Logger
	ctx       context.Context
}

// NewWatcher creates a Watcher. Jobs started by cron use ctx.
func NewWatcher(ctx context.Context, r Refresher, symbols []string, intervals []market.Interval, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		Cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{logger.Sugar()}),
			cron.SkipIfStillRunning(cronLogger{logger.Sugar()}),
		)),
		refresher: r,
		symbols:   symbols,
		intervals: intervals,
		logger:    logger,
		ctx:       ctx,
	}
}

// Register adds the refresh job for a standard five field cron spec.
func (w *Watcher) Register(schedule string) error {
	if len(w.symbols) == 0 {
		return errors.New("watch list is empty")
	}
	if len(w.intervals) == 0 {
		return errors.New("no watch intervals")
	}
	if _, err := w.Cron.AddFunc(schedule, func() {
		if err := w.RunNow(w.ctx); err != nil {
			w.logger.Error("scheduled refresh incomplete", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("register refresh %q: %w", schedule, err)
	}
	return nil
}

// Start starts the cron scheduler.
func (w *Watcher) Start() {
	w.Cron.Start()
	w.logger.Info("scheduler started",
		zap.Strings("symbols", w.symbols),
		zap.Time("next", w.Next()))
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (w *Watcher) Stop() {
	<-w.Cron.Stop().Done()
	w.logger.Info("scheduler stopped")
}

// Next is the next scheduled run, zero when nothing is scheduled.
func (w *Watcher) Next() time.Time {
	var next time.Time
	for _, e := range w.Cron.Entries() {
		if !e.Next.IsZero() && (next.IsZero() || e.Next.Before(next)) {
			next = e.Next
		}
	}
	return next
}

// RunNow refreshes the whole watch list. A failed refresh does not stop the
// others; all failures are returned joined.
func (w *Watcher) RunNow(ctx context.Context) error {
	var errs []error
	for _, sym := range w.symbols {
		for _, iv := range w.intervals {
			if err := ctx.Err(); err != nil {
				return errors.Join(append(errs, err)...)
			}
			info, err := w.refresher.Refresh(ctx, sym, iv)
			if err != nil {
				w.logger.Error("refresh failed",
					zap.String("symbol", sym),
					zap.String("interval", string(iv)),
					zap.Error(err))
				errs = append(errs, fmt.Errorf("%s %s: %w", sym, iv, err))
				continue
			}
			w.logger.Info("refreshed",
				zap.String("symbol", info.Symbol),
				zap.String("interval", string(iv)),
				zap.String("id", info.ID))
		}
	}
	return errors.Join(errs...)
}

// cronLogger routes cron's own logging to zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Package worker drives the periodic jobs: the hourly reminder tick, the
// per-minute deferred notification sweep, and the daily audit retention sweep.
// Each job also has a manual trigger through the admin API, so the runner only
// owns the timers, never the job logic.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/carelink-api/internal/application/dispatch"
	"github.com/carelink-api/internal/application/reminder"
)

type reminderScheduler interface {
	FireDueReminders(ctx context.Context, tick time.Time) (reminder.Report, error)
}

type deferredDispatcher interface {
	ProcessDeferred(ctx context.Context, now time.Time) (dispatch.Report, error)
}

type retentionSweeper interface {
	SweepRetention(ctx context.Context, now time.Time) (int, error)
}

type Runner struct {
	reminders reminderScheduler
	deferred  deferredDispatcher
	retention retentionSweeper

	reminderInterval  time.Duration
	deferredInterval  time.Duration
	retentionInterval time.Duration
}

type RunnerDeps struct {
	Reminders reminderScheduler
	Deferred  deferredDispatcher
	Retention retentionSweeper

	ReminderInterval  time.Duration
	DeferredInterval  time.Duration
	RetentionInterval time.Duration
}

func NewRunner(deps RunnerDeps) *Runner {
	return &Runner{
		reminders:         deps.Reminders,
		deferred:          deps.Deferred,
		retention:         deps.Retention,
		reminderInterval:  deps.ReminderInterval,
		deferredInterval:  deps.DeferredInterval,
		retentionInterval: deps.RetentionInterval,
	}
}

// Run starts all tickers and blocks until the context is cancelled. Jobs run
// independently so a slow retention sweep never delays a reminder tick.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		r.loop(ctx, r.reminderInterval, r.fireReminders)
	}()
	go func() {
		defer wg.Done()
		r.loop(ctx, r.deferredInterval, r.sweepDeferred)
	}()
	go func() {
		defer wg.Done()
		r.loop(ctx, r.retentionInterval, r.sweepRetention)
	}()

	wg.Wait()
	slog.Info("worker runner stopped")
}

func (r *Runner) loop(ctx context.Context, interval time.Duration, job func(context.Context, time.Time)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			job(ctx, now)
		}
	}
}

func (r *Runner) fireReminders(ctx context.Context, now time.Time) {
	report, err := r.reminders.FireDueReminders(ctx, now)
	if err != nil {
		slog.Error("reminder tick failed", "err", err)
		return
	}
	if report.Due > 0 {
		slog.Info("reminder tick",
			"due", report.Due, "fired", report.Fired,
			"claim_lost", report.ClaimLost, "errors", report.Errors)
	}
}

func (r *Runner) sweepDeferred(ctx context.Context, now time.Time) {
	report, err := r.deferred.ProcessDeferred(ctx, now)
	if err != nil {
		slog.Error("deferred sweep failed", "err", err)
		return
	}
	if report.Selected > 0 {
		slog.Info("deferred sweep",
			"selected", report.Selected, "sent", report.Sent,
			"failed", report.Failed, "claim_lost", report.ClaimLost)
	}
}

func (r *Runner) sweepRetention(ctx context.Context, now time.Time) {
	deleted, err := r.retention.SweepRetention(ctx, now)
	if err != nil {
		slog.Error("retention sweep failed", "err", err)
		return
	}
	if deleted > 0 {
		slog.Info("retention sweep", "deleted", deleted)
	}
}

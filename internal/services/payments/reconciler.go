package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fastprodman/tombola/internal/config"
	repo "github.com/fastprodman/tombola/internal/repos/payments"
	"github.com/robfig/cron/v3"
)

// SweepReport counts what one reconciliation pass did.
type SweepReport struct {
	Scanned int
	Settled int
	Failed  int
	Pending int
	Errors  int
}

// Reconciler periodically re-asks the provider about transactions nobody is
// polling any more: abandoned pages, TIMED_OUT records, server restarts.
type Reconciler struct {
	t   *Tracker
	cfg config.ReconcileConfig
	log *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

func NewReconciler(t *Tracker, cfg config.ReconcileConfig) *Reconciler {
	return &Reconciler{
		t:   t,
		cfg: cfg,
		log: t.log.With("job", "reconcile"),
	}
}

// Start schedules Sweep on cfg.Schedule. Overlapping runs are skipped.
func (r *Reconciler) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron != nil {
		return errors.New("reconciler already started")
	}

	logger := cronLogger{r.log}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	_, err := c.AddFunc(r.cfg.Schedule, func() {
		_, err := r.Sweep(context.Background())
		if err != nil {
			r.log.Error("reconcile sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", r.cfg.Schedule, err)
	}

	c.Start()
	r.cron = c

	return nil
}

// Stop unschedules the job and waits for a running sweep, or for ctx.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep reconciles one batch of unsettled transactions older than the grace
// period. Per-transaction failures are counted, not returned.
func (r *Reconciler) Sweep(ctx context.Context) (SweepReport, error) {
	now := r.t.clock.Now()

	open := openStatuses(pathReconcile)

	batch, err := r.t.store.ListUnsettled(ctx,
		now.Add(-r.cfg.GracePeriod),
		now.Add(-r.cfg.MaxAge),
		r.cfg.BatchSize,
		append(open, repo.StatusAccepted)...,
	)
	if err != nil {
		return SweepReport{}, fmt.Errorf("list unsettled: %w", err)
	}

	report := SweepReport{Scanned: len(batch)}

	for _, rec := range batch {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		out, _, err := r.t.tick(ctx, rec.ID, pathReconcile)
		if err != nil {
			report.Errors++
			r.log.Warn("reconcile transaction", "transaction_id", rec.ID, "error", err)

			continue
		}

		switch out.Result {
		case ResultSuccess:
			report.Settled++
		case ResultFailure:
			report.Failed++
		default:
			report.Pending++
		}
	}

	if report.Scanned > 0 {
		r.log.Info("reconcile sweep finished",
			"scanned", report.Scanned,
			"settled", report.Settled,
			"failed", report.Failed,
			"pending", report.Pending,
			"errors", report.Errors,
		)
	}

	return report, nil
}

type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}

package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"fambudget/internal/core"
	"fambudget/internal/storage"
)

const DefaultReconcileSchedule = "@daily"

// Reconciler recomputes balances and goal totals from history and logs
// every mismatch. It never writes.
type Reconciler struct {
	store *storage.Store
}

func NewReconciler(store *storage.Store) *Reconciler {
	return &Reconciler{store: store}
}

// Run returns the drifts found for users and goals.
func (r *Reconciler) Run(ctx context.Context) ([]core.Drift, error) {
	balances, err := r.store.BalanceDrifts(ctx)
	if err != nil {
		return nil, err
	}
	goals, err := r.store.GoalDrifts(ctx)
	if err != nil {
		return nil, err
	}

	drifts := append(balances, goals...)
	for _, d := range drifts {
		slog.WarnContext(ctx, "Reconciliation drift",
			"subject", d.Subject,
			"id", d.ID,
			"stored", d.Stored.String(),
			"expected", d.Expected.String(),
			"delta", d.Delta().String())
	}
	slog.InfoContext(ctx, "Reconciliation finished", "drifts", len(drifts))
	return drifts, nil
}

// Schedule registers the reconciliation on a new cron scheduler. The caller
// starts and stops it.
func (r *Reconciler) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	if spec == "" {
		spec = DefaultReconcileSchedule
	}
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := r.Run(ctx); err != nil {
			slog.ErrorContext(ctx, "Reconciliation failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule reconciliation %q: %w", spec, err)
	}
	return c, nil
}

package storage

import (
	"context"
	"fmt"

	"fambudget/internal/core"
)

// BalanceDrifts recomputes every user's balance from history and returns
// the users whose stored balance differs. Income routed to a goal never
// reaches the balance; contributions are always debited from it.
func (q *Queries) BalanceDrifts(ctx context.Context) ([]core.Drift, error) {
	rows, err := q.query(ctx, `
		SELECT u.id, u.available_balance_cents,
			CAST(COALESCE((SELECT SUM(m.amount_cents) FROM movimientos m
				WHERE m.user_id = u.id AND m.kind = 'income'
				AND NOT EXISTS (SELECT 1 FROM aportes_meta a WHERE a.movement_id = m.id)), 0) AS BIGINT)
			- CAST(COALESCE((SELECT SUM(m.amount_cents) FROM movimientos m
				WHERE m.user_id = u.id AND m.kind = 'expense'), 0) AS BIGINT)
			- CAST(COALESCE((SELECT SUM(a.amount_cents) FROM aportes_meta a
				WHERE a.user_id = u.id), 0) AS BIGINT)
		FROM usuarios u
		ORDER BY u.id`)
	if err != nil {
		return nil, fmt.Errorf("compute balance drifts: %w", err)
	}
	return scanDrifts(rows, "user")
}

// GoalDrifts returns goals whose accumulated amount is not the sum of their
// contributions.
func (q *Queries) GoalDrifts(ctx context.Context) ([]core.Drift, error) {
	rows, err := q.query(ctx, `
		SELECT g.id, g.accumulated_cents,
			CAST(COALESCE((SELECT SUM(a.amount_cents) FROM aportes_meta a WHERE a.goal_id = g.id), 0) AS BIGINT)
		FROM metas g
		ORDER BY g.id`)
	if err != nil {
		return nil, fmt.Errorf("compute goal drifts: %w", err)
	}
	return scanDrifts(rows, "goal")
}

type driftRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

func scanDrifts(rows driftRows, subject string) ([]core.Drift, error) {
	defer rows.Close()
	var out []core.Drift
	for rows.Next() {
		d := core.Drift{Subject: subject}
		if err := rows.Scan(&d.ID, &d.Stored.Cents, &d.Expected.Cents); err != nil {
			return nil, fmt.Errorf("scan %s drift: %w", subject, err)
		}
		if d.Stored != d.Expected {
			out = append(out, d)
		}
	}
	return out, rows.Err()
}

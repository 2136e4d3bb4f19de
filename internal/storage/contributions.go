package storage

import (
	"context"
	"database/sql"
	"fmt"

	"fambudget/internal/core"
)

// InsertContribution appends to the contribution log. Contributions are
// never updated or deleted individually.
func (q *Queries) InsertContribution(ctx context.Context, c core.Contribution) (core.Contribution, error) {
	c.ID = newID(c.ID)
	_, err := q.exec(ctx, `
		INSERT INTO aportes_meta (id, goal_id, movement_id, user_id, amount_cents, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.GoalID, nullString(c.MovementID), c.UserID, c.Amount.Cents, q.stamp())
	if err != nil {
		return core.Contribution{}, fmt.Errorf("insert contribution: %w", err)
	}
	return c, nil
}

func (q *Queries) ListContributions(ctx context.Context, goalID string) ([]core.Contribution, error) {
	rows, err := q.query(ctx, `
		SELECT id, goal_id, movement_id, user_id, amount_cents FROM aportes_meta
		WHERE goal_id = ? ORDER BY created_at ASC, id ASC`, goalID)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	defer rows.Close()

	var out []core.Contribution
	for rows.Next() {
		var (
			c          core.Contribution
			movementID sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.GoalID, &movementID, &c.UserID, &c.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		c.MovementID = movementID.String
		out = append(out, c)
	}
	return out, rows.Err()
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fambudget/internal/core"
)

const goalColumns = `id, name, target_cents, accumulated_cents, deadline, owner_user_id, family_id, is_family_goal`

func scanGoal(row rowScanner) (core.Goal, error) {
	var (
		g               core.Goal
		deadline        sql.NullString
		owner, familyID sql.NullString
	)
	if err := row.Scan(&g.ID, &g.Name, &g.Target.Cents, &g.Accumulated.Cents,
		&deadline, &owner, &familyID, &g.IsFamilyGoal); err != nil {
		return core.Goal{}, err
	}
	d, err := parseNullDate(deadline)
	if err != nil {
		return core.Goal{}, err
	}
	g.Deadline = d
	g.OwnerUserID = owner.String
	g.FamilyID = familyID.String
	return g, nil
}

func (q *Queries) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	g.ID = newID(g.ID)
	_, err := q.exec(ctx, `
		INSERT INTO metas (id, name, target_cents, accumulated_cents, deadline, owner_user_id, family_id, is_family_goal, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.Target.Cents, g.Accumulated.Cents, nullDate(g.Deadline),
		nullString(g.OwnerUserID), nullString(g.FamilyID), g.IsFamilyGoal, q.stamp())
	if err != nil {
		return core.Goal{}, fmt.Errorf("insert goal: %w", err)
	}
	return g, nil
}

func (q *Queries) GetGoal(ctx context.Context, id string) (core.Goal, error) {
	g, err := scanGoal(q.queryRow(ctx, `SELECT `+goalColumns+` FROM metas WHERE id = ?`, id))
	if err != nil {
		return core.Goal{}, fmt.Errorf("get goal %s: %w", id, notFound(err))
	}
	return g, nil
}

func (q *Queries) GetGoalForUpdate(ctx context.Context, id string) (core.Goal, error) {
	g, err := scanGoal(q.queryRow(ctx, `SELECT `+goalColumns+` FROM metas WHERE id = ?`+q.dialect.ForUpdate(), id))
	if err != nil {
		return core.Goal{}, fmt.Errorf("lock goal %s: %w", id, notFound(err))
	}
	return g, nil
}

// ListGoals returns goals owned by the user or bound to the family, newest
// first.
func (q *Queries) ListGoals(ctx context.Context, userID, familyID string) ([]core.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM metas WHERE owner_user_id = ?`
	args := []any{userID}
	if familyID != "" {
		query += ` OR family_id = ?`
		args = append(args, familyID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// UpdateGoal rewrites everything but the accumulated amount.
func (q *Queries) UpdateGoal(ctx context.Context, g core.Goal) error {
	res, err := q.exec(ctx, `
		UPDATE metas SET name = ?, target_cents = ?, deadline = ?, owner_user_id = ?, family_id = ?, is_family_goal = ?
		WHERE id = ?`,
		g.Name, g.Target.Cents, nullDate(g.Deadline), nullString(g.OwnerUserID),
		nullString(g.FamilyID), g.IsFamilyGoal, g.ID)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("update goal %s: %w", g.ID, err)
	}
	return nil
}

// DeleteGoal removes the goal. Its contributions stay in the log, detached,
// since they were debited from members' balances.
func (q *Queries) DeleteGoal(ctx context.Context, id string) error {
	if _, err := q.exec(ctx, `UPDATE aportes_meta SET goal_id = NULL WHERE goal_id = ?`, id); err != nil {
		return fmt.Errorf("detach goal contributions: %w", err)
	}
	res, err := q.exec(ctx, `DELETE FROM metas WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("delete goal %s: %w", id, err)
	}
	return nil
}

// CreditGoal adds amount to the accumulated total only if the target still
// holds it. ok is false when the goal would overflow at write time.
func (q *Queries) CreditGoal(ctx context.Context, goalID string, amount int64) (newAmount core.Money, ok bool, err error) {
	var acc int64
	err = q.queryRow(ctx, `
		UPDATE metas SET accumulated_cents = accumulated_cents + ?
		WHERE id = ? AND accumulated_cents + ? <= target_cents
		RETURNING accumulated_cents`, amount, goalID, amount).Scan(&acc)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Money{}, false, nil
	}
	if err != nil {
		return core.Money{}, false, fmt.Errorf("credit goal %s: %w", goalID, err)
	}
	return core.Cents(acc), true, nil
}

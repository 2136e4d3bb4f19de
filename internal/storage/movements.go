package storage

import (
	"context"
	"database/sql"
	"fmt"

	"fambudget/internal/core"
)

const movementColumns = `id, user_id, category_id, kind, amount_cents, comment, date`

func scanMovement(row rowScanner) (core.Movement, error) {
	var (
		m          core.Movement
		categoryID sql.NullString
		comment    sql.NullString
		kind, date string
	)
	if err := row.Scan(&m.ID, &m.UserID, &categoryID, &kind, &m.Amount.Cents, &comment, &date); err != nil {
		return core.Movement{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Movement{}, err
	}
	m.CategoryID = categoryID.String
	m.Comment = comment.String
	m.Kind = core.Kind(kind)
	m.Date = d
	return m, nil
}

func scanMovements(rows *sql.Rows) ([]core.Movement, error) {
	defer rows.Close()
	var out []core.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (q *Queries) CreateMovement(ctx context.Context, m core.Movement) (core.Movement, error) {
	m.ID = newID(m.ID)
	_, err := q.exec(ctx, `
		INSERT INTO movimientos (id, user_id, category_id, kind, amount_cents, comment, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, nullString(m.CategoryID), string(m.Kind), m.Amount.Cents,
		nullString(m.Comment), m.Date.String(), q.stamp())
	if err != nil {
		return core.Movement{}, fmt.Errorf("insert movement: %w", err)
	}
	return m, nil
}

func (q *Queries) GetMovement(ctx context.Context, id string) (core.Movement, error) {
	m, err := scanMovement(q.queryRow(ctx, `SELECT `+movementColumns+` FROM movimientos WHERE id = ?`+q.dialect.ForUpdate(), id))
	if err != nil {
		return core.Movement{}, fmt.Errorf("get movement %s: %w", id, notFound(err))
	}
	return m, nil
}

// UpdateMovement rewrites the mutable fields: amount, date and comment.
func (q *Queries) UpdateMovement(ctx context.Context, m core.Movement) error {
	res, err := q.exec(ctx, `
		UPDATE movimientos SET amount_cents = ?, date = ?, comment = ?,
			exported_at = NULL, export_error = NULL, export_attempts = 0
		WHERE id = ?`,
		m.Amount.Cents, m.Date.String(), nullString(m.Comment), m.ID)
	if err != nil {
		return fmt.Errorf("update movement: %w", err)
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("update movement %s: %w", m.ID, err)
	}
	return nil
}

// SumMovements totals the amounts of kind for the users with a date in
// [from, to).
func (q *Queries) SumMovements(ctx context.Context, userIDs []string, kind core.Kind, from, to core.Date) (core.Money, error) {
	if len(userIDs) == 0 {
		return core.Money{}, nil
	}
	args := append(stringArgs(userIDs), string(kind), from.String(), to.String())
	var total int64
	err := q.queryRow(ctx, `
		SELECT CAST(COALESCE(SUM(amount_cents), 0) AS BIGINT) FROM movimientos
		WHERE user_id IN (`+placeholders(len(userIDs))+`) AND kind = ? AND date >= ? AND date < ?`,
		args...).Scan(&total)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum %s movements: %w", kind, err)
	}
	return core.Cents(total), nil
}

// MovementFilter narrows ListMovements. Zero From/To leave that side open.
type MovementFilter struct {
	UserID    string
	From, To  core.Date // [From, To)
	Ascending bool
	Limit     int
}

func (q *Queries) ListMovements(ctx context.Context, f MovementFilter) ([]core.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movimientos WHERE user_id = ?`
	args := []any{f.UserID}
	if !f.From.IsZero() {
		query += ` AND date >= ?`
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		query += ` AND date < ?`
		args = append(args, f.To.String())
	}
	if f.Ascending {
		query += ` ORDER BY date ASC, created_at ASC`
	} else {
		query += ` ORDER BY date DESC, created_at DESC`
	}
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return scanMovements(rows)
}

// MovementFundedGoal reports whether a contribution references the movement.
func (q *Queries) MovementFundedGoal(ctx context.Context, movementID string) (bool, error) {
	var n int64
	if err := q.queryRow(ctx, `SELECT COUNT(*) FROM aportes_meta WHERE movement_id = ?`, movementID).Scan(&n); err != nil {
		return false, fmt.Errorf("check movement contribution: %w", err)
	}
	return n > 0, nil
}

// MaxExportAttempts is how many times a movement export is tried before the
// pending sweep gives up on it.
const MaxExportAttempts = 5

// PendingExports returns movements not yet exported, oldest first.
func (q *Queries) PendingExports(ctx context.Context, limit int) ([]core.Movement, error) {
	rows, err := q.query(ctx, `
		SELECT `+movementColumns+` FROM movimientos
		WHERE exported_at IS NULL AND export_attempts < ?
		ORDER BY created_at ASC
		LIMIT ?`, MaxExportAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending exports: %w", err)
	}
	return scanMovements(rows)
}

// MarkExported records the sink reference and the year of the sheet the
// row went to.
func (q *Queries) MarkExported(ctx context.Context, id, ref string, year int) error {
	res, err := q.exec(ctx, `
		UPDATE movimientos SET exported_at = ?, export_ref = ?, export_year = ?, export_error = NULL
		WHERE id = ?`, q.stamp(), ref, year, id)
	if err != nil {
		return fmt.Errorf("mark movement exported: %w", err)
	}
	return affectedOne(res)
}

func (q *Queries) MarkExportError(ctx context.Context, id, msg string) error {
	res, err := q.exec(ctx, `
		UPDATE movimientos SET export_error = ?, export_attempts = export_attempts + 1
		WHERE id = ?`, msg, id)
	if err != nil {
		return fmt.Errorf("mark movement export error: %w", err)
	}
	return affectedOne(res)
}

// IsExported reports whether the movement already reached the export sink.
func (q *Queries) IsExported(ctx context.Context, id string) (bool, error) {
	var exportedAt sql.NullInt64
	err := q.queryRow(ctx, `SELECT exported_at FROM movimientos WHERE id = ?`, id).Scan(&exportedAt)
	if err != nil {
		return false, fmt.Errorf("check movement export %s: %w", id, notFound(err))
	}
	return exportedAt.Valid, nil
}

// ExportYear returns the year of the sheet holding the movement's row, or
// 0 if it was never exported. Updates keep it so the old row can be found.
func (q *Queries) ExportYear(ctx context.Context, id string) (int, error) {
	var year sql.NullInt64
	err := q.queryRow(ctx, `SELECT export_year FROM movimientos WHERE id = ?`, id).Scan(&year)
	if err != nil {
		return 0, fmt.Errorf("get movement export year %s: %w", id, notFound(err))
	}
	return int(year.Int64), nil
}

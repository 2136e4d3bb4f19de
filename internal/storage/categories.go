package storage

import (
	"context"
	"database/sql"
	"fmt"

	"fambudget/internal/core"
)

const categoryColumns = `id, name, kind, period, family_id`

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c        core.Category
		kind     string
		familyID sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &kind, &c.Period, &familyID); err != nil {
		return core.Category{}, err
	}
	c.Kind = core.Kind(kind)
	c.FamilyID = familyID.String
	return c, nil
}

// familyScope returns the condition selecting one family scope; an empty
// familyID is the global scope.
func familyScope(familyID string) (string, []any) {
	if familyID == "" {
		return "family_id IS NULL", nil
	}
	return "family_id = ?", []any{familyID}
}

// ListCategories returns the family's categories plus the global ones,
// ordered by name. An empty kind lists both kinds.
func (q *Queries) ListCategories(ctx context.Context, familyID string, kind core.Kind) ([]core.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM conceptos WHERE (family_id IS NULL`
	var args []any
	if familyID != "" {
		query += ` OR family_id = ?`
		args = append(args, familyID)
	}
	query += `)`
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY name, id`

	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (q *Queries) GetCategory(ctx context.Context, id string) (core.Category, error) {
	c, err := scanCategory(q.queryRow(ctx, `SELECT `+categoryColumns+` FROM conceptos WHERE id = ?`, id))
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %s: %w", id, notFound(err))
	}
	return c, nil
}

// CategoryNameExists reports whether name is taken in the family scope,
// ignoring the category excludeID.
func (q *Queries) CategoryNameExists(ctx context.Context, familyID, name, excludeID string) (bool, error) {
	cond, args := familyScope(familyID)
	query := `SELECT COUNT(*) FROM conceptos WHERE name = ? AND ` + cond
	args = append([]any{name}, args...)
	if excludeID != "" {
		query += ` AND id <> ?`
		args = append(args, excludeID)
	}

	var n int64
	if err := q.queryRow(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("check category name: %w", err)
	}
	return n > 0, nil
}

func (q *Queries) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.ID = newID(c.ID)
	_, err := q.exec(ctx, `
		INSERT INTO conceptos (id, name, kind, period, family_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, string(c.Kind), c.Period, nullString(c.FamilyID), q.stamp())
	if err != nil {
		if q.dialect.IsUniqueViolation(err) {
			return core.Category{}, fmt.Errorf("%w: %q", core.ErrDuplicateName, c.Name)
		}
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

// UpdateCategory rewrites name, kind and period. The family scope of a
// category never changes.
func (q *Queries) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := q.exec(ctx, `UPDATE conceptos SET name = ?, kind = ?, period = ? WHERE id = ?`,
		c.Name, string(c.Kind), c.Period, c.ID)
	if err != nil {
		if q.dialect.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %q", core.ErrDuplicateName, c.Name)
		}
		return fmt.Errorf("update category: %w", err)
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("update category %s: %w", c.ID, err)
	}
	return nil
}

func (q *Queries) DeleteCategory(ctx context.Context, id string) error {
	res, err := q.exec(ctx, `DELETE FROM conceptos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("delete category %s: %w", id, err)
	}
	return nil
}

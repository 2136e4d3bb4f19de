package storage

import (
	"context"
	"fmt"

	"fambudget/internal/core"
)

func (q *Queries) CreateFamily(ctx context.Context, name string) (core.Family, error) {
	f := core.Family{ID: newID(""), Name: name}
	if _, err := q.exec(ctx, `INSERT INTO familias (id, name, created_at) VALUES (?, ?, ?)`,
		f.ID, f.Name, q.stamp()); err != nil {
		return core.Family{}, fmt.Errorf("insert family: %w", err)
	}
	return f, nil
}

func (q *Queries) GetFamily(ctx context.Context, id string) (core.Family, error) {
	var f core.Family
	err := q.queryRow(ctx, `SELECT id, name FROM familias WHERE id = ?`, id).Scan(&f.ID, &f.Name)
	if err != nil {
		return core.Family{}, fmt.Errorf("get family %s: %w", id, notFound(err))
	}
	return f, nil
}

// DeleteFamily removes the family, unbinds its members and drops the
// family-scoped categories and goals. Contributions to those goals are
// detached, not deleted. The statements do not rely on foreign key actions
// being enabled.
func (q *Queries) DeleteFamily(ctx context.Context, id string) error {
	stmts := []struct {
		op, sql string
	}{
		{"unbind members", `UPDATE usuarios SET family_id = NULL, role = 'family_member', relationship = NULL WHERE family_id = ?`},
		{"detach family contributions", `UPDATE aportes_meta SET goal_id = NULL WHERE goal_id IN (SELECT id FROM metas WHERE family_id = ?)`},
		{"delete family goals", `DELETE FROM metas WHERE family_id = ?`},
		{"delete family categories", `DELETE FROM conceptos WHERE family_id = ?`},
	}
	for _, s := range stmts {
		if _, err := q.exec(ctx, s.sql, id); err != nil {
			return fmt.Errorf("%s: %w", s.op, err)
		}
	}

	res, err := q.exec(ctx, `DELETE FROM familias WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete family: %w", err)
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("delete family %s: %w", id, err)
	}
	return nil
}

// FamilyMemberIDs returns the ids of the users bound to the family.
func (q *Queries) FamilyMemberIDs(ctx context.Context, familyID string) ([]string, error) {
	rows, err := q.query(ctx, `SELECT id FROM usuarios WHERE family_id = ? ORDER BY id`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list family member ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fambudget/internal/core"
)

const userColumns = `id, auth_identity, display_name, email, role, family_id, relationship, available_balance_cents`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (core.User, error) {
	var (
		u            core.User
		role         string
		familyID     sql.NullString
		relationship sql.NullString
	)
	if err := row.Scan(&u.ID, &u.AuthIdentity, &u.DisplayName, &u.Email, &role,
		&familyID, &relationship, &u.AvailableBalance.Cents); err != nil {
		return core.User{}, err
	}
	u.Role = core.Role(role)
	u.FamilyID = familyID.String
	u.Relationship = relationship.String
	return u, nil
}

func (q *Queries) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	u.ID = newID(u.ID)
	if u.Role == "" {
		u.Role = core.FamilyMember
	}
	_, err := q.exec(ctx, `
		INSERT INTO usuarios (id, auth_identity, display_name, email, role, family_id, relationship, available_balance_cents, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.AuthIdentity, u.DisplayName, u.Email, string(u.Role),
		nullString(u.FamilyID), nullString(u.Relationship), u.AvailableBalance.Cents, q.stamp())
	if err != nil {
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (q *Queries) GetUser(ctx context.Context, id string) (core.User, error) {
	u, err := scanUser(q.queryRow(ctx, `SELECT `+userColumns+` FROM usuarios WHERE id = ?`, id))
	if err != nil {
		return core.User{}, fmt.Errorf("get user %s: %w", id, notFound(err))
	}
	return u, nil
}

// GetUserForUpdate reads the user and, where supported, locks the row for
// the rest of the transaction.
func (q *Queries) GetUserForUpdate(ctx context.Context, id string) (core.User, error) {
	u, err := scanUser(q.queryRow(ctx, `SELECT `+userColumns+` FROM usuarios WHERE id = ?`+q.dialect.ForUpdate(), id))
	if err != nil {
		return core.User{}, fmt.Errorf("lock user %s: %w", id, notFound(err))
	}
	return u, nil
}

func (q *Queries) GetUserByIdentity(ctx context.Context, identity string) (core.User, error) {
	u, err := scanUser(q.queryRow(ctx, `SELECT `+userColumns+` FROM usuarios WHERE auth_identity = ?`, identity))
	if err != nil {
		return core.User{}, fmt.Errorf("get user by identity: %w", notFound(err))
	}
	return u, nil
}

// ListFamilyMembers returns the users of a family ordered by name.
func (q *Queries) ListFamilyMembers(ctx context.Context, familyID string) ([]core.User, error) {
	rows, err := q.query(ctx, `SELECT `+userColumns+` FROM usuarios WHERE family_id = ? ORDER BY display_name, id`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list family members: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan family member: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetUserFamily binds the user to a family (or unbinds it when familyID is
// empty) with the given role and relationship label.
func (q *Queries) SetUserFamily(ctx context.Context, userID, familyID string, role core.Role, relationship string) error {
	res, err := q.exec(ctx, `UPDATE usuarios SET family_id = ?, role = ?, relationship = ? WHERE id = ?`,
		nullString(familyID), string(role), nullString(relationship), userID)
	if err != nil {
		return fmt.Errorf("set user family: %w", err)
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("set user family %s: %w", userID, err)
	}
	return nil
}

// AdjustBalance adds delta (possibly negative) to the available balance and
// returns the new value.
func (q *Queries) AdjustBalance(ctx context.Context, userID string, delta int64) (core.Money, error) {
	var bal int64
	err := q.queryRow(ctx, `
		UPDATE usuarios SET available_balance_cents = available_balance_cents + ?
		WHERE id = ?
		RETURNING available_balance_cents`, delta, userID).Scan(&bal)
	if err != nil {
		return core.Money{}, fmt.Errorf("adjust balance of %s: %w", userID, notFound(err))
	}
	return core.Cents(bal), nil
}

// DebitBalance subtracts amount only if the balance covers it. ok is false
// when the balance is short at write time.
func (q *Queries) DebitBalance(ctx context.Context, userID string, amount int64) (newBalance core.Money, ok bool, err error) {
	var bal int64
	err = q.queryRow(ctx, `
		UPDATE usuarios SET available_balance_cents = available_balance_cents - ?
		WHERE id = ? AND available_balance_cents >= ?
		RETURNING available_balance_cents`, amount, userID, amount).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Money{}, false, nil
	}
	if err != nil {
		return core.Money{}, false, fmt.Errorf("debit balance of %s: %w", userID, err)
	}
	return core.Cents(bal), true, nil
}

package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"fambudget/internal/core"
)

// Identity is a credential record. Users reference it by id.
type Identity struct {
	ID           string
	Email        string
	PasswordHash string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateIdentity fails with core.ErrDuplicateName when the email is taken.
func (q *Queries) CreateIdentity(ctx context.Context, email, passwordHash string) (Identity, error) {
	id := Identity{ID: newID(""), Email: normalizeEmail(email), PasswordHash: passwordHash}
	_, err := q.exec(ctx, `INSERT INTO auth_identities (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		id.ID, id.Email, id.PasswordHash, q.stamp())
	if err != nil {
		if q.dialect.IsUniqueViolation(err) {
			return Identity{}, fmt.Errorf("%w: email %s", core.ErrDuplicateName, id.Email)
		}
		return Identity{}, fmt.Errorf("insert identity: %w", err)
	}
	return id, nil
}

func (q *Queries) GetIdentityByEmail(ctx context.Context, email string) (Identity, error) {
	var id Identity
	err := q.queryRow(ctx, `SELECT id, email, password_hash FROM auth_identities WHERE email = ?`,
		normalizeEmail(email)).Scan(&id.ID, &id.Email, &id.PasswordHash)
	if err != nil {
		return Identity{}, fmt.Errorf("get identity by email: %w", notFound(err))
	}
	return id, nil
}

func (q *Queries) GetIdentity(ctx context.Context, identityID string) (Identity, error) {
	var id Identity
	err := q.queryRow(ctx, `SELECT id, email, password_hash FROM auth_identities WHERE id = ?`,
		identityID).Scan(&id.ID, &id.Email, &id.PasswordHash)
	if err != nil {
		return Identity{}, fmt.Errorf("get identity: %w", notFound(err))
	}
	return id, nil
}

func (q *Queries) UpdatePasswordHash(ctx context.Context, identityID, hash string) error {
	res, err := q.exec(ctx, `UPDATE auth_identities SET password_hash = ? WHERE id = ?`, hash, identityID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return affectedOne(res)
}

// hashResetToken is what password_resets stores; the plain token only
// travels in the reset email.
func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (q *Queries) CreateResetToken(ctx context.Context, token, identityID string, expiresAt time.Time) error {
	_, err := q.exec(ctx, `INSERT INTO password_resets (token_hash, identity_id, expires_at) VALUES (?, ?, ?)`,
		hashResetToken(token), identityID, expiresAt.Unix())
	if err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}
	return nil
}

// ConsumeResetToken marks a valid token used and returns its identity. An
// unknown, expired or already used token yields core.ErrNotFound.
func (q *Queries) ConsumeResetToken(ctx context.Context, token string) (string, error) {
	now := q.now()
	var identityID string
	err := q.queryRow(ctx, `
		UPDATE password_resets SET used_at = ?
		WHERE token_hash = ? AND used_at IS NULL AND expires_at > ?
		RETURNING identity_id`, now.Unix(), hashResetToken(token), now.Unix()).Scan(&identityID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("consume reset token: %w", err)
	}
	return identityID, nil
}

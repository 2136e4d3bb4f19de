package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"fambudget/internal/core"
	"fambudget/internal/storage"
)

type Families struct {
	store *storage.Store
}

func NewFamilies(store *storage.Store) *Families {
	return &Families{store: store}
}

// DefaultFamilyName is the name given to a family created on demand.
func DefaultFamilyName(displayName string) string {
	return "Family of " + displayName
}

// EnsureFamily returns the user's family, creating "Family of <name>" and
// binding the user to it as administrator when the user has none.
func (f *Families) EnsureFamily(ctx context.Context, userID string) (core.Family, error) {
	var fam core.Family
	err := f.store.InTx(ctx, func(q *storage.Queries) error {
		u, err := q.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if u.FamilyID != "" {
			fam, err = q.GetFamily(ctx, u.FamilyID)
			return err
		}

		fam, err = q.CreateFamily(ctx, DefaultFamilyName(u.DisplayName))
		if err != nil {
			return err
		}
		if err := q.SetUserFamily(ctx, u.ID, fam.ID, core.Administrator, u.Relationship); err != nil {
			return err
		}
		slog.InfoContext(ctx, "Created family on demand", "family_id", fam.ID, "user_id", u.ID)
		return nil
	})
	if err != nil {
		return core.Family{}, fmt.Errorf("ensure family: %w", err)
	}
	return fam, nil
}

// CreateFamily creates a family administered by the user. A user belongs to
// at most one family.
func (f *Families) CreateFamily(ctx context.Context, userID, name string) (core.Family, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Family{}, core.Invalid(core.ErrEmptyName)
	}

	var fam core.Family
	err := f.store.InTx(ctx, func(q *storage.Queries) error {
		u, err := q.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if u.FamilyID != "" {
			return core.Invalid(fmt.Errorf("user already belongs to family %s", u.FamilyID))
		}
		if fam, err = q.CreateFamily(ctx, name); err != nil {
			return err
		}
		return q.SetUserFamily(ctx, u.ID, fam.ID, core.Administrator, u.Relationship)
	})
	if err != nil {
		return core.Family{}, fmt.Errorf("create family: %w", err)
	}
	return fam, nil
}

// AddMember binds memberID to the family. Only the family's administrator
// may add members, and only users without a family can be added.
func (f *Families) AddMember(ctx context.Context, adminID, familyID, memberID, relationship string) error {
	err := f.store.InTx(ctx, func(q *storage.Queries) error {
		if err := requireAdmin(ctx, q, adminID, familyID); err != nil {
			return err
		}
		m, err := q.GetUserForUpdate(ctx, memberID)
		if err != nil {
			return err
		}
		if m.FamilyID != "" {
			return core.Invalid(fmt.Errorf("user already belongs to family %s", m.FamilyID))
		}
		return q.SetUserFamily(ctx, m.ID, familyID, core.FamilyMember, strings.TrimSpace(relationship))
	})
	if err != nil {
		return fmt.Errorf("add family member: %w", err)
	}
	return nil
}

// DeleteFamily removes the family; members keep their accounts with no
// family.
func (f *Families) DeleteFamily(ctx context.Context, adminID, familyID string) error {
	err := f.store.InTx(ctx, func(q *storage.Queries) error {
		if err := requireAdmin(ctx, q, adminID, familyID); err != nil {
			return err
		}
		return q.DeleteFamily(ctx, familyID)
	})
	if err != nil {
		return fmt.Errorf("delete family: %w", err)
	}
	return nil
}

func requireAdmin(ctx context.Context, q *storage.Queries, userID, familyID string) error {
	if _, err := q.GetFamily(ctx, familyID); err != nil {
		return err
	}
	u, err := q.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if u.FamilyID != familyID || u.Role != core.Administrator {
		return core.ErrForbidden
	}
	return nil
}

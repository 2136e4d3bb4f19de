package services

import (
	"context"
	"fmt"

	"fambudget/internal/auth"
	"fambudget/internal/core"
	"fambudget/internal/storage"
)

// Directory maps the authenticated identity carried by the request context
// to the internal user record.
type Directory struct {
	store *storage.Store
}

func NewDirectory(store *storage.Store) *Directory {
	return &Directory{store: store}
}

func (d *Directory) CurrentUserID(ctx context.Context) (string, error) {
	u, err := d.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

func (d *Directory) CurrentUser(ctx context.Context) (core.User, error) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return core.User{}, core.ErrUnauthorized
	}
	u, err := d.store.GetUserByIdentity(ctx, identity)
	if err != nil {
		return core.User{}, fmt.Errorf("current user: %w", err)
	}
	return u, nil
}

// FamilyMembers lists the members of the current user's family, or nothing
// when the user has no family.
func (d *Directory) FamilyMembers(ctx context.Context) ([]core.User, error) {
	u, err := d.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if u.FamilyID == "" {
		return []core.User{}, nil
	}
	members, err := d.store.ListFamilyMembers(ctx, u.FamilyID)
	if err != nil {
		return nil, err
	}
	return members, nil
}

package services

import (
	"context"
	"fmt"
	"strings"

	"fambudget/internal/core"
	"fambudget/internal/storage"
)

// CategoryInput carries the editable fields of a category.
type CategoryInput struct {
	Name   string    `json:"name"`
	Kind   core.Kind `json:"kind"`
	Period string    `json:"period"`
}

func (in CategoryInput) normalize() CategoryInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Period = strings.TrimSpace(in.Period)
	return in
}

// Categories is the category registry. Names are unique within a family
// scope; the empty scope holds the global categories.
type Categories struct {
	store *storage.Store
}

func NewCategories(store *storage.Store) *Categories {
	return &Categories{store: store}
}

func (c *Categories) List(ctx context.Context, userID string) ([]core.Category, error) {
	return c.ListByKind(ctx, userID, "")
}

// ListByKind lists the categories visible to the user, optionally
// restricted to one kind.
func (c *Categories) ListByKind(ctx context.Context, userID string, kind core.Kind) ([]core.Category, error) {
	if kind != "" {
		if err := kind.Validate(); err != nil {
			return nil, core.Invalid(err)
		}
	}
	u, err := c.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	cats, err := c.store.ListCategories(ctx, u.FamilyID, kind)
	if err != nil {
		return nil, err
	}
	if cats == nil {
		cats = []core.Category{}
	}
	return cats, nil
}

// NameExists checks name in the user's family scope, ignoring excludeID.
func (c *Categories) NameExists(ctx context.Context, userID, name, excludeID string) (bool, error) {
	u, err := c.store.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return c.store.CategoryNameExists(ctx, u.FamilyID, strings.TrimSpace(name), excludeID)
}

// Create inserts a category in the family scope. The family must already
// exist; Household.CreateCategory resolves it for a user.
func (c *Categories) Create(ctx context.Context, familyID string, in CategoryInput) (core.Category, error) {
	in = in.normalize()
	cat := core.Category{Name: in.Name, Kind: in.Kind, Period: in.Period, FamilyID: familyID}
	if err := cat.Validate(); err != nil {
		return core.Category{}, core.Invalid(err)
	}

	err := c.store.InTx(ctx, func(q *storage.Queries) error {
		exists, err := q.CategoryNameExists(ctx, familyID, cat.Name, "")
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %q", core.ErrDuplicateName, cat.Name)
		}
		cat, err = q.CreateCategory(ctx, cat)
		return err
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return cat, nil
}

// Update rewrites a category the user can see in its own scope. The
// duplicate check runs in the category's family, excluding itself.
func (c *Categories) Update(ctx context.Context, userID, id string, in CategoryInput) (core.Category, error) {
	in = in.normalize()
	var cat core.Category
	err := c.store.InTx(ctx, func(q *storage.Queries) error {
		var err error
		if cat, err = writableCategory(ctx, q, userID, id); err != nil {
			return err
		}
		cat.Name, cat.Kind, cat.Period = in.Name, in.Kind, in.Period
		if err := cat.Validate(); err != nil {
			return core.Invalid(err)
		}

		exists, err := q.CategoryNameExists(ctx, cat.FamilyID, cat.Name, cat.ID)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %q", core.ErrDuplicateName, cat.Name)
		}
		return q.UpdateCategory(ctx, cat)
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	return cat, nil
}

// Delete removes a category. Movements keep their category id.
func (c *Categories) Delete(ctx context.Context, userID, id string) error {
	err := c.store.InTx(ctx, func(q *storage.Queries) error {
		if _, err := writableCategory(ctx, q, userID, id); err != nil {
			return err
		}
		return q.DeleteCategory(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

// writableCategory loads a category whose scope matches the user's family.
// Categories of other families are reported as missing.
func writableCategory(ctx context.Context, q *storage.Queries, userID, id string) (core.Category, error) {
	u, err := q.GetUser(ctx, userID)
	if err != nil {
		return core.Category{}, err
	}
	cat, err := q.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, err
	}
	if cat.FamilyID != u.FamilyID {
		return core.Category{}, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	return cat, nil
}

func (in CategoryInput) validate() error {
	return core.Invalid(core.Category{Name: in.Name, Kind: in.Kind}.Validate())
}

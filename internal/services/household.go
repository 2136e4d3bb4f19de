package services

import (
	"context"

	"fambudget/internal/core"
)

// Household composes operations that span the family and category
// components.
type Household struct {
	families   *Families
	categories *Categories
}

func NewHousehold(families *Families, categories *Categories) *Household {
	return &Household{families: families, categories: categories}
}

// CreateCategory resolves the user's family, creating it if needed, and
// then creates the category in it. The family survives a failed category
// insert.
func (h *Household) CreateCategory(ctx context.Context, userID string, in CategoryInput) (core.Category, error) {
	if err := in.normalize().validate(); err != nil {
		return core.Category{}, err
	}
	fam, err := h.families.EnsureFamily(ctx, userID)
	if err != nil {
		return core.Category{}, err
	}
	return h.categories.Create(ctx, fam.ID, in)
}

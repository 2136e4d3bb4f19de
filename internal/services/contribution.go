package services

import (
	"context"
	"errors"
	"fmt"

	"fambudget/internal/core"
	"fambudget/internal/storage"
)

// ContributionRequest moves Amount from the user's available balance into
// a goal. MovementID links the contribution to the income that funded it.
type ContributionRequest struct {
	GoalID     string     `json:"goal_id"`
	Amount     core.Money `json:"amount"`
	UserID     string     `json:"user_id"`
	MovementID string     `json:"movement_id,omitempty"`
}

func (r ContributionRequest) validate() error {
	var errs []error
	if r.Amount.Cents <= 0 {
		errs = append(errs, core.ErrInvalidAmount)
	}
	if r.GoalID == "" {
		errs = append(errs, errors.New("missing goal"))
	}
	if r.UserID == "" {
		errs = append(errs, errors.New("missing user"))
	}
	return core.Invalid(errors.Join(errs...))
}

// contribute runs the contribution inside q's transaction. Checks run in
// order: parameters, available balance, goal capacity. Both writes are
// conditional, so a row changed underneath still fails with the same
// typed error and the caller's transaction rolls back.
func contribute(ctx context.Context, q *storage.Queries, r ContributionRequest) (core.ContributionResult, error) {
	if err := r.validate(); err != nil {
		return core.ContributionResult{}, err
	}

	user, err := q.GetUserForUpdate(ctx, r.UserID)
	if err != nil {
		return core.ContributionResult{}, err
	}
	if r.Amount.Cents > user.AvailableBalance.Cents {
		return core.ContributionResult{}, core.InsufficientFunds(user.AvailableBalance, r.Amount)
	}

	goal, err := q.GetGoalForUpdate(ctx, r.GoalID)
	if err != nil {
		return core.ContributionResult{}, err
	}
	if !canSeeGoal(goal, user) {
		return core.ContributionResult{}, fmt.Errorf("goal %s: %w", goal.ID, core.ErrNotFound)
	}
	if goal.Accumulated.Cents+r.Amount.Cents > goal.Target.Cents {
		return core.ContributionResult{}, core.GoalOverflow(goal.Remaining())
	}

	newBalance, ok, err := q.DebitBalance(ctx, user.ID, r.Amount.Cents)
	if err != nil {
		return core.ContributionResult{}, err
	}
	if !ok {
		current, err := q.GetUser(ctx, user.ID)
		if err != nil {
			return core.ContributionResult{}, err
		}
		return core.ContributionResult{}, core.InsufficientFunds(current.AvailableBalance, r.Amount)
	}

	newGoal, ok, err := q.CreditGoal(ctx, goal.ID, r.Amount.Cents)
	if err != nil {
		return core.ContributionResult{}, err
	}
	if !ok {
		current, err := q.GetGoal(ctx, goal.ID)
		if err != nil {
			return core.ContributionResult{}, err
		}
		return core.ContributionResult{}, core.GoalOverflow(current.Remaining())
	}

	c, err := q.InsertContribution(ctx, core.Contribution{
		GoalID:     goal.ID,
		MovementID: r.MovementID,
		UserID:     user.ID,
		Amount:     r.Amount,
	})
	if err != nil {
		return core.ContributionResult{}, err
	}

	return core.ContributionResult{
		Success:       true,
		Contribution:  c.ID,
		NewBalance:    newBalance,
		NewGoalAmount: newGoal,
	}, nil
}

// canSeeGoal reports whether the goal is the user's own or belongs to the
// user's family.
func canSeeGoal(g core.Goal, u core.User) bool {
	if g.IsFamilyGoal {
		return g.FamilyID != "" && g.FamilyID == u.FamilyID
	}
	return g.OwnerUserID == u.ID
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fambudget/internal/amqp"
	"fambudget/internal/core"
	"fambudget/internal/storage"
)

// GoalInput carries the editable fields of a goal. The accumulated amount
// only moves through contributions.
type GoalInput struct {
	Name         string     `json:"name"`
	Target       core.Money `json:"target_amount"`
	Deadline     core.Date  `json:"deadline"`
	IsFamilyGoal bool       `json:"is_family_goal"`
}

// Goals is the goal ledger.
type Goals struct {
	store  *storage.Store
	events Publisher
}

func NewGoals(store *storage.Store, events Publisher) *Goals {
	return &Goals{store: store, events: events}
}

// List returns the user's own goals and the goals of the user's family,
// newest first.
func (g *Goals) List(ctx context.Context, userID string) ([]core.Goal, error) {
	u, err := g.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	goals, err := g.store.ListGoals(ctx, u.ID, u.FamilyID)
	if err != nil {
		return nil, err
	}
	if goals == nil {
		goals = []core.Goal{}
	}
	return goals, nil
}

func (g *Goals) Create(ctx context.Context, userID string, in GoalInput) (core.Goal, error) {
	u, err := g.store.GetUser(ctx, userID)
	if err != nil {
		return core.Goal{}, err
	}

	goal, err := bindGoal(core.Goal{
		Name:     strings.TrimSpace(in.Name),
		Target:   in.Target,
		Deadline: in.Deadline,
	}, u, in.IsFamilyGoal)
	if err != nil {
		return core.Goal{}, err
	}
	if err := goal.Validate(); err != nil {
		return core.Goal{}, core.Invalid(err)
	}

	goal, err = g.store.CreateGoal(ctx, goal)
	if err != nil {
		return core.Goal{}, fmt.Errorf("create goal: %w", err)
	}

	slog.InfoContext(ctx, "Goal created", "goal_id", goal.ID, "family_goal", goal.IsFamilyGoal)
	publish(ctx, g.events, amqp.NewEvent(amqp.GoalChanged, goal.ID, userID).WithGoal(goal.ID))
	return goal, nil
}

// Edit rewrites a goal and recomputes whether it belongs to the user or to
// the user's family from in.IsFamilyGoal.
func (g *Goals) Edit(ctx context.Context, userID, goalID string, in GoalInput) (core.Goal, error) {
	var goal core.Goal
	err := g.store.InTx(ctx, func(q *storage.Queries) error {
		u, err := q.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		current, err := q.GetGoalForUpdate(ctx, goalID)
		if err != nil {
			return err
		}
		if !canSeeGoal(current, u) {
			return fmt.Errorf("goal %s: %w", goalID, core.ErrNotFound)
		}

		current.Name = strings.TrimSpace(in.Name)
		current.Target = in.Target
		current.Deadline = in.Deadline
		if goal, err = bindGoal(current, u, in.IsFamilyGoal); err != nil {
			return err
		}
		if err := goal.Validate(); err != nil {
			return core.Invalid(err)
		}
		return q.UpdateGoal(ctx, goal)
	})
	if err != nil {
		return core.Goal{}, fmt.Errorf("edit goal: %w", err)
	}

	publish(ctx, g.events, amqp.NewEvent(amqp.GoalChanged, goal.ID, userID).WithGoal(goal.ID))
	return goal, nil
}

func (g *Goals) Delete(ctx context.Context, userID, goalID string) error {
	err := g.store.InTx(ctx, func(q *storage.Queries) error {
		u, err := q.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		goal, err := q.GetGoalForUpdate(ctx, goalID)
		if err != nil {
			return err
		}
		if !canSeeGoal(goal, u) {
			return fmt.Errorf("goal %s: %w", goalID, core.ErrNotFound)
		}
		return q.DeleteGoal(ctx, goalID)
	})
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}

	publish(ctx, g.events, amqp.NewEvent(amqp.GoalChanged, goalID, userID).WithGoal(goalID))
	return nil
}

// Contribute moves money from the user's balance into the goal in one
// transaction. On any error nothing is written.
func (g *Goals) Contribute(ctx context.Context, r ContributionRequest) (core.ContributionResult, error) {
	var res core.ContributionResult
	err := g.store.InTx(ctx, func(q *storage.Queries) error {
		var err error
		res, err = contribute(ctx, q, r)
		return err
	})
	if err != nil {
		return core.ContributionResult{}, err
	}

	slog.InfoContext(ctx, "Contribution applied",
		"goal_id", r.GoalID,
		"user_id", r.UserID,
		"amount", r.Amount.String(),
		"new_balance", res.NewBalance.String(),
		"new_goal_amount", res.NewGoalAmount.String())
	publish(ctx, g.events, amqp.NewEvent(amqp.GoalChanged, r.GoalID, r.UserID).WithGoal(r.GoalID))
	return res, nil
}

// bindGoal makes goal a family goal of the user's family or a personal goal
// of the user.
func bindGoal(goal core.Goal, u core.User, family bool) (core.Goal, error) {
	goal.IsFamilyGoal = family
	if family {
		if u.FamilyID == "" {
			return core.Goal{}, core.Invalid(errors.New("family goal requires a family"))
		}
		goal.FamilyID, goal.OwnerUserID = u.FamilyID, ""
		return goal, nil
	}
	goal.OwnerUserID, goal.FamilyID = u.ID, ""
	return goal, nil
}

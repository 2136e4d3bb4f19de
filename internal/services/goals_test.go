package services

import (
	"context"
	"errors"
	"testing"

	"fambudget/internal/core"
)

func TestGoalLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ana := f.user(t, "ana", 100000)
	bob := f.user(t, "bob", 0)

	fam, err := f.families.CreateFamily(ctx, ana.ID, "Casa")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.families.AddMember(ctx, ana.ID, fam.ID, bob.ID, "pareja"); err != nil {
		t.Fatal(err)
	}

	personal, err := f.goals.Create(ctx, ana.ID, GoalInput{Name: "Bici", Target: core.Cents(30000), Deadline: core.NewDate(2025, 12, 31)})
	if err != nil {
		t.Fatal(err)
	}
	if personal.OwnerUserID != ana.ID || personal.FamilyID != "" || personal.IsFamilyGoal {
		t.Fatalf("personal goal binding %+v", personal)
	}
	shared, err := f.goals.Create(ctx, bob.ID, GoalInput{Name: "Vacaciones", Target: core.Cents(200000), IsFamilyGoal: true})
	if err != nil {
		t.Fatal(err)
	}
	if shared.FamilyID != fam.ID || shared.OwnerUserID != "" {
		t.Fatalf("family goal binding %+v", shared)
	}

	goals, err := f.goals.List(ctx, ana.ID)
	if err != nil || len(goals) != 2 || goals[0].ID != shared.ID {
		t.Fatalf("ana's goals newest first = %+v, %v", goals, err)
	}
	goals, err = f.goals.List(ctx, bob.ID)
	if err != nil || len(goals) != 1 || goals[0].ID != shared.ID {
		t.Fatalf("bob sees only the family goal = %+v, %v", goals, err)
	}

	// Turning the personal goal into a family goal rebinds it.
	edited, err := f.goals.Edit(ctx, ana.ID, personal.ID, GoalInput{Name: "Bici nueva", Target: core.Cents(40000), IsFamilyGoal: true})
	if err != nil {
		t.Fatal(err)
	}
	if edited.FamilyID != fam.ID || edited.OwnerUserID != "" || edited.Name != "Bici nueva" {
		t.Fatalf("edited goal %+v", edited)
	}
	goals, _ = f.goals.List(ctx, bob.ID)
	if len(goals) != 2 {
		t.Fatalf("bob should now see both goals, got %d", len(goals))
	}

	if err := f.goals.Delete(ctx, bob.ID, edited.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.GetGoal(ctx, edited.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("deleted goal still readable: %v", err)
	}
}

func TestGoalValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ana := f.user(t, "ana", 100000)
	bob := f.user(t, "bob", 0)

	if _, err := f.goals.Create(ctx, ana.ID, GoalInput{Name: "x", Target: core.Cents(100), IsFamilyGoal: true}); !errors.Is(err, core.ErrInvalidParameters) {
		t.Fatalf("family goal without family: %v", err)
	}
	if _, err := f.goals.Create(ctx, ana.ID, GoalInput{Name: "", Target: core.Cents(100)}); !errors.Is(err, core.ErrInvalidParameters) {
		t.Fatalf("empty name: %v", err)
	}
	if _, err := f.goals.Create(ctx, ana.ID, GoalInput{Name: "x"}); !errors.Is(err, core.ErrInvalidParameters) {
		t.Fatalf("zero target: %v", err)
	}
	if _, err := f.goals.Create(ctx, "nope", GoalInput{Name: "x", Target: core.Cents(100)}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("unknown user: %v", err)
	}

	g, err := f.goals.Create(ctx, ana.ID, GoalInput{Name: "x", Target: core.Cents(10000)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.goals.Contribute(ctx, ContributionRequest{GoalID: g.ID, UserID: ana.ID, Amount: core.Cents(6000)}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.goals.Edit(ctx, ana.ID, g.ID, GoalInput{Name: "x", Target: core.Cents(5000)}); !errors.Is(err, core.ErrInvalidParameters) {
		t.Fatalf("target below accumulated: %v", err)
	}
	if _, err := f.goals.Edit(ctx, bob.ID, g.ID, GoalInput{Name: "x", Target: core.Cents(50000)}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign edit: %v", err)
	}
	if err := f.goals.Delete(ctx, bob.ID, g.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign delete: %v", err)
	}
	if got := f.accumulated(t, g.ID); got != 6000 {
		t.Fatalf("edit must keep the accumulated amount, got %d", got)
	}
}

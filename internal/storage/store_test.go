package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"fambudget/internal/core"
)

// newTestStore opens a fresh SQLite database with a clock that advances one
// second per call so creation order is deterministic.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	var tick atomic.Int64
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := Open(context.Background(), Config{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "fambudget.db"),
		Now: func() time.Time {
			return base.Add(time.Duration(tick.Add(1)) * time.Second)
		},
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustUser(t *testing.T, s *Store, name string, balance int64) core.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), core.User{
		AuthIdentity:     "auth-" + name,
		DisplayName:      name,
		Email:            name + "@example.com",
		AvailableBalance: core.Cents(balance),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestUserBalance(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := mustUser(t, s, "ana", 10000)

	bal, err := s.AdjustBalance(ctx, u.ID, 2500)
	if err != nil || bal.Cents != 12500 {
		t.Fatalf("AdjustBalance = %v, %v", bal, err)
	}

	bal, ok, err := s.DebitBalance(ctx, u.ID, 12500)
	if err != nil || !ok || bal.Cents != 0 {
		t.Fatalf("DebitBalance = %v, %v, %v", bal, ok, err)
	}

	_, ok, err = s.DebitBalance(ctx, u.ID, 1)
	if err != nil || ok {
		t.Fatalf("debit over balance should not apply: ok=%v err=%v", ok, err)
	}

	if _, err := s.GetUser(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.AdjustBalance(ctx, "missing", 1); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	got, err := s.GetUserByIdentity(ctx, "auth-ana")
	if err != nil || got.ID != u.ID || got.Role != core.FamilyMember {
		t.Fatalf("GetUserByIdentity = %+v, %v", got, err)
	}
}

func TestCategoryScopes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	fam, err := s.CreateFamily(ctx, "Family of ana")
	if err != nil {
		t.Fatal(err)
	}
	other, err := s.CreateFamily(ctx, "Family of bob")
	if err != nil {
		t.Fatal(err)
	}

	for _, c := range []core.Category{
		{Name: "Sueldo", Kind: core.Income, FamilyID: fam.ID},
		{Name: "Comida", Kind: core.Expense, FamilyID: fam.ID},
		{Name: "Comida", Kind: core.Expense, FamilyID: other.ID},
		{Name: "Impuestos", Kind: core.Expense},
	} {
		if _, err := s.CreateCategory(ctx, c); err != nil {
			t.Fatalf("create %s: %v", c.Name, err)
		}
	}

	_, err = s.CreateCategory(ctx, core.Category{Name: "Comida", Kind: core.Expense, FamilyID: fam.ID})
	if !errors.Is(err, core.ErrDuplicateName) {
		t.Fatalf("unique index should surface ErrDuplicateName, got %v", err)
	}

	all, err := s.ListCategories(ctx, fam.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Name != "Comida" || all[1].Name != "Impuestos" || all[2].Name != "Sueldo" {
		t.Fatalf("unexpected categories %+v", all)
	}

	expenses, err := s.ListCategories(ctx, fam.ID, core.Expense)
	if err != nil || len(expenses) != 2 {
		t.Fatalf("expense categories = %+v, %v", expenses, err)
	}

	global, err := s.ListCategories(ctx, "", "")
	if err != nil || len(global) != 1 {
		t.Fatalf("global categories = %+v, %v", global, err)
	}

	exists, err := s.CategoryNameExists(ctx, fam.ID, "Comida", "")
	if err != nil || !exists {
		t.Fatalf("expected Comida to exist: %v", err)
	}
	exists, err = s.CategoryNameExists(ctx, fam.ID, "Comida", all[0].ID)
	if err != nil || exists {
		t.Fatalf("excluded id must not count: %v", err)
	}
	exists, err = s.CategoryNameExists(ctx, "", "Impuestos", "")
	if err != nil || !exists {
		t.Fatalf("expected global Impuestos to exist: %v", err)
	}
}

func TestMovementSumsAndListing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := mustUser(t, s, "ana", 0)
	v := mustUser(t, s, "bob", 0)

	add := func(user string, kind core.Kind, cents int64, date core.Date) {
		t.Helper()
		if _, err := s.CreateMovement(ctx, core.Movement{UserID: user, Kind: kind, Amount: core.Cents(cents), Date: date}); err != nil {
			t.Fatal(err)
		}
	}
	add(u.ID, core.Income, 1000, core.NewDate(2025, 3, 1))
	add(u.ID, core.Income, 500, core.NewDate(2025, 3, 1))
	add(u.ID, core.Income, 700, core.NewDate(2025, 3, 31))
	add(u.ID, core.Expense, 300, core.NewDate(2025, 3, 15))
	add(u.ID, core.Income, 900, core.NewDate(2025, 4, 1))
	add(v.ID, core.Income, 4000, core.NewDate(2025, 3, 1))

	day := core.NewDate(2025, 3, 1)
	next := core.Date{Time: day.AddDate(0, 0, 1)}
	total, err := s.SumMovements(ctx, []string{u.ID}, core.Income, day, next)
	if err != nil || total.Cents != 1500 {
		t.Fatalf("day income = %v, %v", total, err)
	}

	from, to, _ := core.MonthRange(2025, 3)
	total, err = s.SumMovements(ctx, []string{u.ID, v.ID}, core.Income, from, to)
	if err != nil || total.Cents != 6200 {
		t.Fatalf("family month income = %v, %v", total, err)
	}

	total, err = s.SumMovements(ctx, nil, core.Income, from, to)
	if err != nil || total.Cents != 0 {
		t.Fatalf("no users should sum to zero: %v, %v", total, err)
	}

	list, err := s.ListMovements(ctx, MovementFilter{UserID: u.ID, From: from, To: to})
	if err != nil || len(list) != 4 {
		t.Fatalf("march movements = %d, %v", len(list), err)
	}
	if list[0].Date.String() != "2025-03-31" {
		t.Fatalf("newest first expected, got %s", list[0].Date)
	}

	list, err = s.ListMovements(ctx, MovementFilter{UserID: u.ID, Ascending: true, Limit: 2})
	if err != nil || len(list) != 2 || list[0].Date.String() != "2025-03-01" {
		t.Fatalf("ascending with limit = %+v, %v", list, err)
	}
}

func TestPendingExports(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := mustUser(t, s, "ana", 0)

	m, err := s.CreateMovement(ctx, core.Movement{UserID: u.ID, Kind: core.Expense, Amount: core.Cents(100), Date: core.NewDate(2025, 1, 2)})
	if err != nil {
		t.Fatal(err)
	}

	pending, err := s.PendingExports(ctx, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending = %d, %v", len(pending), err)
	}

	for i := 0; i < MaxExportAttempts; i++ {
		if err := s.MarkExportError(ctx, m.ID, "sheet unavailable"); err != nil {
			t.Fatal(err)
		}
	}
	pending, _ = s.PendingExports(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("exhausted movement should leave the sweep, got %d", len(pending))
	}

	if year, err := s.ExportYear(ctx, m.ID); err != nil || year != 0 {
		t.Fatalf("ExportYear before export = %d, %v", year, err)
	}
	if err := s.MarkExported(ctx, m.ID, "row-1", 2025); err != nil {
		t.Fatal(err)
	}
	exported, err := s.IsExported(ctx, m.ID)
	if err != nil || !exported {
		t.Fatalf("IsExported = %v, %v", exported, err)
	}

	m.Date = core.NewDate(2026, 1, 2)
	if err := s.UpdateMovement(ctx, m); err != nil {
		t.Fatal(err)
	}
	exported, _ = s.IsExported(ctx, m.ID)
	year, err := s.ExportYear(ctx, m.ID)
	if exported || err != nil || year != 2025 {
		t.Fatalf("after update: exported=%v year=%d err=%v", exported, year, err)
	}
}

func TestGoalCreditIsConditional(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := mustUser(t, s, "ana", 0)

	g, err := s.CreateGoal(ctx, core.Goal{Name: "Bici", Target: core.Cents(50000), Accumulated: core.Cents(48000), OwnerUserID: u.ID})
	if err != nil {
		t.Fatal(err)
	}

	if _, ok, err := s.CreditGoal(ctx, g.ID, 3000); err != nil || ok {
		t.Fatalf("overflowing credit must not apply: ok=%v err=%v", ok, err)
	}
	acc, ok, err := s.CreditGoal(ctx, g.ID, 2000)
	if err != nil || !ok || acc.Cents != 50000 {
		t.Fatalf("CreditGoal = %v, %v, %v", acc, ok, err)
	}
}

func TestListGoalsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	fam, _ := s.CreateFamily(ctx, "Family of ana")
	u := mustUser(t, s, "ana", 0)
	v := mustUser(t, s, "bob", 0)
	if err := s.SetUserFamily(ctx, u.ID, fam.ID, core.Administrator, ""); err != nil {
		t.Fatal(err)
	}

	mk := func(g core.Goal) core.Goal {
		t.Helper()
		g.Target = core.Cents(1000)
		created, err := s.CreateGoal(ctx, g)
		if err != nil {
			t.Fatal(err)
		}
		return created
	}
	first := mk(core.Goal{Name: "mine", OwnerUserID: u.ID})
	second := mk(core.Goal{Name: "ours", FamilyID: fam.ID, IsFamilyGoal: true})
	mk(core.Goal{Name: "theirs", OwnerUserID: v.ID})

	goals, err := s.ListGoals(ctx, u.ID, fam.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(goals) != 2 || goals[0].ID != second.ID || goals[1].ID != first.ID {
		t.Fatalf("unexpected goals %+v", goals)
	}
	if !goals[0].IsFamilyGoal {
		t.Fatal("family flag lost")
	}
}

func TestDeleteFamily(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	fam, _ := s.CreateFamily(ctx, "Family of ana")
	u := mustUser(t, s, "ana", 0)
	if err := s.SetUserFamily(ctx, u.ID, fam.ID, core.Administrator, "madre"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateCategory(ctx, core.Category{Name: "Luz", Kind: core.Expense, FamilyID: fam.ID}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateGoal(ctx, core.Goal{Name: "Casa", Target: core.Cents(1), FamilyID: fam.ID, IsFamilyGoal: true}); err != nil {
		t.Fatal(err)
	}

	if err := s.InTx(ctx, func(q *Queries) error { return q.DeleteFamily(ctx, fam.ID) }); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetUser(ctx, u.ID)
	if got.FamilyID != "" || got.Relationship != "" {
		t.Fatalf("member still bound: %+v", got)
	}
	cats, _ := s.ListCategories(ctx, fam.ID, "")
	if len(cats) != 0 {
		t.Fatalf("family categories survived: %+v", cats)
	}
	if err := s.DeleteFamily(ctx, fam.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := mustUser(t, s, "ana", 1000)

	boom := errors.New("boom")
	err := s.InTx(ctx, func(q *Queries) error {
		if _, err := q.AdjustBalance(ctx, u.ID, 500); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("callback error must be returned unchanged, got %v", err)
	}
	got, _ := s.GetUser(ctx, u.ID)
	if got.AvailableBalance.Cents != 1000 {
		t.Fatalf("balance changed after rollback: %v", got.AvailableBalance)
	}
}

func TestResetTokens(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.CreateIdentity(ctx, " Ana@Example.com ", "hash")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateIdentity(ctx, "ana@example.com", "hash"); !errors.Is(err, core.ErrDuplicateName) {
		t.Fatalf("expected duplicate email, got %v", err)
	}

	if err := s.CreateResetToken(ctx, "tok", id.ID, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateResetToken(ctx, "old", id.ID, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}

	var stored string
	if err := s.queryRow(ctx, `SELECT token_hash FROM password_resets WHERE identity_id = ? AND expires_at > 1700000000`, id.ID).Scan(&stored); err != nil {
		t.Fatal(err)
	}
	if stored == "tok" || stored != hashResetToken("tok") || len(stored) != 64 {
		t.Fatalf("reset token stored as %q", stored)
	}

	got, err := s.ConsumeResetToken(ctx, "tok")
	if err != nil || got != id.ID {
		t.Fatalf("ConsumeResetToken = %q, %v", got, err)
	}
	if _, err := s.ConsumeResetToken(ctx, "tok"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("token reuse must fail, got %v", err)
	}
	if _, err := s.ConsumeResetToken(ctx, "old"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expired token must fail, got %v", err)
	}
}

func TestDrifts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := mustUser(t, s, "ana", 0)

	m, _ := s.CreateMovement(ctx, core.Movement{UserID: u.ID, Kind: core.Income, Amount: core.Cents(1000), Date: core.NewDate(2025, 1, 1)})
	s.AdjustBalance(ctx, u.ID, 1000)

	drifts, err := s.BalanceDrifts(ctx)
	if err != nil || len(drifts) != 0 {
		t.Fatalf("consistent data reported drift: %+v, %v", drifts, err)
	}

	g, _ := s.CreateGoal(ctx, core.Goal{Name: "x", Target: core.Cents(5000), OwnerUserID: u.ID})
	s.CreditGoal(ctx, g.ID, 400)
	s.DebitBalance(ctx, u.ID, 400)
	s.InsertContribution(ctx, core.Contribution{GoalID: g.ID, UserID: u.ID, MovementID: m.ID, Amount: core.Cents(400)})

	// The income now counts as goal-routed, so the 1000 credit is drift.
	drifts, err = s.BalanceDrifts(ctx)
	if err != nil || len(drifts) != 1 || drifts[0].Delta().Cents != 1000 {
		t.Fatalf("expected one user drift of 10.00, got %+v, %v", drifts, err)
	}

	goalDrifts, err := s.GoalDrifts(ctx)
	if err != nil || len(goalDrifts) != 0 {
		t.Fatalf("goal drift on consistent goal: %+v, %v", goalDrifts, err)
	}
}

func TestDeletingGoalsKeepsContributions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	fam, _ := s.CreateFamily(ctx, "Family of ana")
	u := mustUser(t, s, "ana", 0)
	if err := s.SetUserFamily(ctx, u.ID, fam.ID, core.Administrator, "madre"); err != nil {
		t.Fatal(err)
	}

	s.CreateMovement(ctx, core.Movement{UserID: u.ID, Kind: core.Income, Amount: core.Cents(10000), Date: core.NewDate(2025, 1, 1)})
	s.AdjustBalance(ctx, u.ID, 10000)

	own, _ := s.CreateGoal(ctx, core.Goal{Name: "Bici", Target: core.Cents(100000), OwnerUserID: u.ID})
	shared, _ := s.CreateGoal(ctx, core.Goal{Name: "Casa", Target: core.Cents(100000), FamilyID: fam.ID, IsFamilyGoal: true})
	for _, g := range []core.Goal{own, shared} {
		s.CreditGoal(ctx, g.ID, 2000)
		s.DebitBalance(ctx, u.ID, 2000)
		if _, err := s.InsertContribution(ctx, core.Contribution{GoalID: g.ID, UserID: u.ID, Amount: core.Cents(2000)}); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.InTx(ctx, func(q *Queries) error { return q.DeleteGoal(ctx, own.ID) }); err != nil {
		t.Fatal(err)
	}
	if drifts, err := s.BalanceDrifts(ctx); err != nil || len(drifts) != 0 {
		t.Fatalf("drift after deleting a goal: %+v, %v", drifts, err)
	}

	if err := s.InTx(ctx, func(q *Queries) error { return q.DeleteFamily(ctx, fam.ID) }); err != nil {
		t.Fatal(err)
	}
	if drifts, err := s.BalanceDrifts(ctx); err != nil || len(drifts) != 0 {
		t.Fatalf("drift after deleting a family: %+v, %v", drifts, err)
	}
	if drifts, err := s.GoalDrifts(ctx); err != nil || len(drifts) != 0 {
		t.Fatalf("goal drift after deletes: %+v, %v", drifts, err)
	}

	var kept int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM aportes_meta WHERE user_id = ? AND goal_id IS NULL`, u.ID).Scan(&kept); err != nil {
		t.Fatal(err)
	}
	if kept != 2 {
		t.Fatalf("detached contributions = %d, want 2", kept)
	}
}

func TestRebind(t *testing.T) {
	got := Postgres{}.Rebind("SELECT a FROM t WHERE b = ? AND c IN (?, ?)")
	want := "SELECT a FROM t WHERE b = $1 AND c IN ($2, $3)"
	if got != want {
		t.Fatalf("Rebind = %q, want %q", got, want)
	}
	if (SQLite{}).Rebind("x = ?") != "x = ?" {
		t.Fatal("sqlite must keep ? placeholders")
	}
	if _, ok := DialectFor("mysql"); ok {
		t.Fatal("mysql is not supported")
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fambudget/internal/amqp"
	"fambudget/internal/cache"
	"fambudget/internal/core"
	"fambudget/internal/storage"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// MovementInput describes a new movement. GoalID and GoalAmount route part
// of an income into a goal instead of the available balance.
type MovementInput struct {
	UserID     string     `json:"-"`
	CategoryID string     `json:"category_id"`
	Kind       core.Kind  `json:"kind"`
	Amount     core.Money `json:"amount"`
	Comment    string     `json:"comment"`
	Date       core.Date  `json:"date"`
	GoalID     string     `json:"goal_id"`
	GoalAmount core.Money `json:"goal_amount"`
}

func (in MovementInput) fundsGoal() bool {
	return in.Kind == core.Income && in.GoalID != "" && in.GoalAmount.Cents > 0
}

type MovementResult struct {
	Movement     core.Movement            `json:"movement"`
	NewBalance   core.Money               `json:"new_balance"`
	Contribution *core.ContributionResult `json:"contribution,omitempty"`
}

// MovementPatch changes the mutable fields of a movement. Nil fields are
// left untouched.
type MovementPatch struct {
	Amount  *core.Money `json:"amount"`
	Date    *core.Date  `json:"date"`
	Comment *string     `json:"comment"`
}

// Period selects either one day or one calendar month.
type Period struct {
	Date  core.Date
	Month int
	Year  int
}

func (p Period) bounds() (core.Date, core.Date, error) {
	if !p.Date.IsZero() {
		return p.Date, core.Date{Time: p.Date.AddDate(0, 0, 1)}, nil
	}
	if p.Month == 0 || p.Year == 0 {
		return core.Date{}, core.Date{}, core.Invalid(errors.New("period needs a date or a month and year"))
	}
	from, to, err := core.MonthRange(p.Year, p.Month)
	if err != nil {
		return core.Date{}, core.Date{}, core.Invalid(err)
	}
	return from, to, nil
}

type ListOptions struct {
	Limit     int
	Ascending bool
	Month     int
	Year      int
}

type BalanceQuery struct {
	UserID string
	Start  core.Date
	End    core.Date // inclusive
	Scope  core.Scope
}

// Ledger records movements and keeps the available balance in step with
// them.
type Ledger struct {
	store  *storage.Store
	events Publisher
	now    func() time.Time
	totals cache.Cache[core.Money]

	// generations counts invalidations per user so a total read before a
	// concurrent write is never cached after it.
	genMu       sync.Mutex
	generations map[string]uint64
}

func NewLedger(store *storage.Store, events Publisher) *Ledger {
	return &Ledger{store: store, events: events, now: time.Now}
}

// WithTotalsCache memoizes TotalByKind per user. Entries of a user are
// dropped whenever one of the user's movements is written.
func (l *Ledger) WithTotalsCache(c cache.Cache[core.Money]) *Ledger {
	l.totals = c
	l.generations = map[string]uint64{}
	return l
}

func totalsKey(userID string, kind core.Kind, from, to core.Date) string {
	return userID + "|" + string(kind) + "|" + from.String() + "|" + to.String()
}

func (l *Ledger) invalidateTotals(userID string) {
	if l.totals == nil {
		return
	}
	l.genMu.Lock()
	defer l.genMu.Unlock()
	l.generations[userID]++
	l.totals.DeletePrefix(userID + "|")
}

func (l *Ledger) totalsGeneration(userID string) uint64 {
	l.genMu.Lock()
	defer l.genMu.Unlock()
	return l.generations[userID]
}

// cacheTotal stores total unless the user's movements changed since gen
// was read.
func (l *Ledger) cacheTotal(userID string, gen uint64, key string, total core.Money) bool {
	l.genMu.Lock()
	defer l.genMu.Unlock()
	if l.generations[userID] != gen {
		return false
	}
	l.totals.Set(key, total)
	return true
}

// CreateMovement stores a movement and applies its effect in one
// transaction. An income that names a goal and a positive goal amount runs
// a contribution of that amount and does not credit the balance; every
// other movement adds or subtracts its amount.
func (l *Ledger) CreateMovement(ctx context.Context, in MovementInput) (MovementResult, error) {
	if in.Date.IsZero() {
		y, m, d := l.now().Date()
		in.Date = core.NewDate(y, int(m), d)
	}
	mv := core.Movement{
		UserID:     in.UserID,
		CategoryID: in.CategoryID,
		Kind:       in.Kind,
		Amount:     in.Amount,
		Comment:    in.Comment,
		Date:       in.Date,
	}
	if err := mv.Validate(); err != nil {
		return MovementResult{}, core.Invalid(err)
	}
	if in.GoalID != "" && in.Kind != core.Income {
		return MovementResult{}, core.Invalid(errors.New("only income can fund a goal"))
	}
	if in.GoalAmount.Cents > in.Amount.Cents {
		return MovementResult{}, core.Invalid(fmt.Errorf("goal amount %s exceeds movement amount %s", in.GoalAmount, in.Amount))
	}

	var res MovementResult
	err := l.store.InTx(ctx, func(q *storage.Queries) error {
		u, err := q.GetUserForUpdate(ctx, in.UserID)
		if err != nil {
			return err
		}
		if err := checkCategory(ctx, q, u, in.CategoryID, in.Kind); err != nil {
			return err
		}

		if res.Movement, err = q.CreateMovement(ctx, mv); err != nil {
			return err
		}

		if in.fundsGoal() {
			c, err := contribute(ctx, q, ContributionRequest{
				GoalID:     in.GoalID,
				Amount:     in.GoalAmount,
				UserID:     u.ID,
				MovementID: res.Movement.ID,
			})
			if err != nil {
				return err
			}
			res.Contribution = &c
			res.NewBalance = c.NewBalance
			return nil
		}

		res.NewBalance, err = q.AdjustBalance(ctx, u.ID, in.Kind.Sign()*in.Amount.Cents)
		return err
	})
	if err != nil {
		return MovementResult{}, fmt.Errorf("create movement: %w", err)
	}

	l.invalidateTotals(in.UserID)
	slog.InfoContext(ctx, "Movement created",
		"movement_id", res.Movement.ID,
		"kind", res.Movement.Kind,
		"amount", res.Movement.Amount.String(),
		"funds_goal", res.Contribution != nil)

	events := []amqp.Event{amqp.NewEvent(amqp.MovementCreated, res.Movement.ID, in.UserID)}
	if res.Contribution != nil {
		events = append(events, amqp.NewEvent(amqp.GoalChanged, in.GoalID, in.UserID).WithGoal(in.GoalID))
	}
	publish(ctx, l.events, events...)
	return res, nil
}

// checkCategory verifies a referenced category exists, is visible to the
// user and has the movement's kind.
func checkCategory(ctx context.Context, q *storage.Queries, u core.User, categoryID string, kind core.Kind) error {
	if categoryID == "" {
		return nil
	}
	cat, err := q.GetCategory(ctx, categoryID)
	if err != nil {
		return err
	}
	if cat.FamilyID != "" && cat.FamilyID != u.FamilyID {
		return fmt.Errorf("category %s: %w", categoryID, core.ErrNotFound)
	}
	if cat.Kind != kind {
		return core.Invalid(fmt.Errorf("category %q is %s, movement is %s", cat.Name, cat.Kind, kind))
	}
	return nil
}

// UpdateMovement changes amount, date or comment of the user's movement
// and moves the balance by the signed amount difference. A movement that
// funded a goal keeps its amount.
func (l *Ledger) UpdateMovement(ctx context.Context, userID, id string, p MovementPatch) (core.Movement, error) {
	var mv core.Movement
	err := l.store.InTx(ctx, func(q *storage.Queries) error {
		var err error
		if mv, err = q.GetMovement(ctx, id); err != nil {
			return err
		}
		if mv.UserID != userID {
			return fmt.Errorf("movement %s: %w", id, core.ErrNotFound)
		}

		old := mv.Amount
		if p.Amount != nil {
			mv.Amount = *p.Amount
		}
		if p.Date != nil {
			mv.Date = *p.Date
		}
		if p.Comment != nil {
			mv.Comment = *p.Comment
		}
		if err := mv.Validate(); err != nil {
			return core.Invalid(err)
		}

		if delta := mv.Amount.Cents - old.Cents; delta != 0 {
			funded, err := q.MovementFundedGoal(ctx, mv.ID)
			if err != nil {
				return err
			}
			if funded {
				return core.Invalid(errors.New("amount of a movement that funded a goal cannot change"))
			}
			if _, err := q.AdjustBalance(ctx, mv.UserID, mv.Kind.Sign()*delta); err != nil {
				return err
			}
		}
		return q.UpdateMovement(ctx, mv)
	})
	if err != nil {
		return core.Movement{}, fmt.Errorf("update movement: %w", err)
	}

	l.invalidateTotals(userID)
	publish(ctx, l.events, amqp.NewEvent(amqp.MovementUpdated, mv.ID, userID))
	return mv, nil
}

// TotalByKind sums the user's movements of kind in the period; 0 when none
// match.
func (l *Ledger) TotalByKind(ctx context.Context, userID string, kind core.Kind, p Period) (core.Money, error) {
	if err := kind.Validate(); err != nil {
		return core.Money{}, core.Invalid(err)
	}
	from, to, err := p.bounds()
	if err != nil {
		return core.Money{}, err
	}

	key := totalsKey(userID, kind, from, to)
	var gen uint64
	if l.totals != nil {
		if total, ok := l.totals.Get(key); ok {
			return total, nil
		}
		gen = l.totalsGeneration(userID)
	}
	total, err := l.store.SumMovements(ctx, []string{userID}, kind, from, to)
	if err != nil {
		return core.Money{}, err
	}
	if l.totals != nil {
		l.cacheTotal(userID, gen, key, total)
	}
	return total, nil
}

// ListByUser lists the user's movements, newest first unless Ascending.
func (l *Ledger) ListByUser(ctx context.Context, userID string, opts ListOptions) ([]core.Movement, error) {
	f := storage.MovementFilter{UserID: userID, Ascending: opts.Ascending, Limit: opts.Limit}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultListLimit
	case f.Limit > MaxListLimit:
		f.Limit = MaxListLimit
	}

	if opts.Month != 0 || opts.Year != 0 {
		from, to, err := Period{Month: opts.Month, Year: opts.Year}.bounds()
		if err != nil {
			return nil, err
		}
		f.From, f.To = from, to
	}

	list, err := l.store.ListMovements(ctx, f)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []core.Movement{}
	}
	return list, nil
}

// BalanceBetween totals income and expense in [Start, End] for the user or
// for every member of the user's family. A family scope with no members
// yields zero totals without touching the movements table.
func (l *Ledger) BalanceBetween(ctx context.Context, bq BalanceQuery) (core.BalanceSummary, error) {
	if bq.Scope == "" {
		bq.Scope = core.ScopeUser
	}
	if bq.Start.IsZero() || bq.End.IsZero() || bq.End.Before(bq.Start.Time) {
		return core.BalanceSummary{}, core.Invalid(errors.New("invalid date range"))
	}
	sum := core.BalanceSummary{Start: bq.Start, End: bq.End, Scope: bq.Scope, UserIDs: []string{}}

	u, err := l.store.GetUser(ctx, bq.UserID)
	if err != nil {
		return core.BalanceSummary{}, err
	}
	switch bq.Scope {
	case core.ScopeUser:
		sum.UserIDs = []string{u.ID}
	case core.ScopeFamily:
		if u.FamilyID == "" {
			return sum, nil
		}
		ids, err := l.store.FamilyMemberIDs(ctx, u.FamilyID)
		if err != nil {
			return core.BalanceSummary{}, err
		}
		if len(ids) == 0 {
			return sum, nil
		}
		sum.UserIDs = ids
	default:
		return core.BalanceSummary{}, core.Invalid(fmt.Errorf("unknown scope %q", bq.Scope))
	}

	end := core.Date{Time: bq.End.AddDate(0, 0, 1)}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sum.Income, err = l.store.SumMovements(gctx, sum.UserIDs, core.Income, bq.Start, end)
		return err
	})
	g.Go(func() error {
		var err error
		sum.Expense, err = l.store.SumMovements(gctx, sum.UserIDs, core.Expense, bq.Start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.BalanceSummary{}, fmt.Errorf("balance between: %w", err)
	}
	sum.Net = sum.Income.Sub(sum.Expense)
	return sum, nil
}

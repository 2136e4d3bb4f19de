package core

// Scope selects whose movements a balance covers.
type Scope string

const (
	ScopeUser   Scope = "user"
	ScopeFamily Scope = "family"
)

// BalanceSummary aggregates movements over a date range.
type BalanceSummary struct {
	Start   Date     `json:"start"`
	End     Date     `json:"end"`
	Scope   Scope    `json:"scope"`
	UserIDs []string `json:"user_ids"`
	Income  Money    `json:"income"`
	Expense Money    `json:"expense"`
	Net     Money    `json:"net"`
}

// ContributionResult is the outcome of moving money into a goal.
type ContributionResult struct {
	Success       bool   `json:"success"`
	Contribution  string `json:"contribution_id,omitempty"`
	NewBalance    Money  `json:"new_balance"`
	NewGoalAmount Money  `json:"new_goal_amount"`
}

// Drift is a mismatch found by reconciliation between a stored running
// amount and the value recomputed from the movement history.
type Drift struct {
	Subject  string // "user" or "goal"
	ID       string
	Stored   Money
	Expected Money
}

func (d Drift) Delta() Money { return d.Stored.Sub(d.Expected) }

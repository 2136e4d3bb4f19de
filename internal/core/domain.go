package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

const (
	Administrator Role = "administrator"
	FamilyMember  Role = "family_member"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

const (
	maxNameLen    = 100
	maxCommentLen = 500
)

type (
	// Kind classifies categories and movements.
	Kind string

	Role string

	Date struct {
		time.Time
	}

	User struct {
		ID               string `json:"id"`
		AuthIdentity     string `json:"-"`
		DisplayName      string `json:"display_name"`
		Email            string `json:"email"`
		Role             Role   `json:"role"`
		FamilyID         string `json:"family_id,omitempty"`
		Relationship     string `json:"relationship,omitempty"`
		AvailableBalance Money  `json:"available_balance"`
	}

	Family struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	// Category is a named income or expense bucket. An empty FamilyID marks
	// a global category visible to everybody.
	Category struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Kind     Kind   `json:"kind"`
		Period   string `json:"period,omitempty"`
		FamilyID string `json:"family_id,omitempty"`
	}

	Movement struct {
		ID         string `json:"id"`
		UserID     string `json:"user_id"`
		CategoryID string `json:"category_id,omitempty"`
		Kind       Kind   `json:"kind"`
		Amount     Money  `json:"amount"`
		Comment    string `json:"comment,omitempty"`
		Date       Date   `json:"date"`
	}

	// Goal is owned either by a single user or by a family, never both.
	Goal struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		Target       Money  `json:"target_amount"`
		Accumulated  Money  `json:"accumulated_amount"`
		Deadline     Date   `json:"deadline"`
		OwnerUserID  string `json:"owner_user_id,omitempty"`
		FamilyID     string `json:"family_id,omitempty"`
		IsFamilyGoal bool   `json:"is_family_goal"`
	}

	Contribution struct {
		ID         string `json:"id"`
		GoalID     string `json:"goal_id"`
		MovementID string `json:"movement_id,omitempty"`
		UserID     string `json:"user_id"`
		Amount     Money  `json:"amount"`
	}
)

var (
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidMonth   = errors.New("invalid month")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidKind    = errors.New("invalid kind")
	ErrEmptyName      = errors.New("empty name")
	ErrNameTooLong    = errors.New("name too long")
	ErrCommentTooLong = errors.New("comment too long")
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Income, Expense:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

func (k Kind) Validate() error {
	if k != Income && k != Expense {
		return ErrInvalidKind
	}
	return nil
}

// Sign is +1 for income and -1 for expense.
func (k Kind) Sign() int64 {
	if k == Income {
		return 1
	}
	return -1
}

func (r Role) Valid() bool {
	return r == Administrator || r == FamilyMember
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate reads a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String returns the YYYY-MM-DD form, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MonthRange returns the first day of month and the first day of the next
// month, for half-open range filters.
func MonthRange(year, month int) (Date, Date, error) {
	if month < 1 || month > 12 {
		return Date{}, Date{}, ErrInvalidMonth
	}
	start := NewDate(year, month, 1)
	return start, Date{Time: start.AddDate(0, 1, 0)}, nil
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > maxNameLen {
		return ErrNameTooLong
	}
	return nil
}

func (c Category) Validate() error {
	if err := validateName(c.Name); err != nil {
		return err
	}
	return c.Kind.Validate()
}

func (m Movement) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return errors.New("missing user")
	}
	if err := m.Kind.Validate(); err != nil {
		return err
	}
	if err := m.Amount.Validate(); err != nil {
		return err
	}
	if err := m.Date.Validate(); err != nil {
		return err
	}
	if len(m.Comment) > maxCommentLen {
		return ErrCommentTooLong
	}
	return nil
}

func (g Goal) Validate() error {
	if err := validateName(g.Name); err != nil {
		return err
	}
	if err := g.Target.Validate(); err != nil {
		return fmt.Errorf("target: %w", err)
	}
	if g.Accumulated.Cents < 0 || g.Accumulated.Cents > g.Target.Cents {
		return fmt.Errorf("accumulated %s outside [0, %s]", g.Accumulated, g.Target)
	}
	if g.IsFamilyGoal && g.FamilyID == "" {
		return errors.New("family goal without family")
	}
	if !g.IsFamilyGoal && g.OwnerUserID == "" {
		return errors.New("personal goal without owner")
	}
	return nil
}

// Remaining is how much the goal can still receive.
func (g Goal) Remaining() Money {
	return g.Target.Sub(g.Accumulated)
}

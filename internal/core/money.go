// Package core holds the FamBudget domain: users, families, categories,
// movements, goals and contributions, plus money and date handling.
//
// This file contains money parsing and formatting. Amounts are kept as
// integer cents everywhere; decimal text is only an input/output format.
package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in cents. Negative values only appear in computed
// results such as a net balance.
type Money struct {
	Cents int64
}

var hundred = decimal.NewFromInt(100)

// Cents builds a Money from a cents value.
func Cents(c int64) Money { return Money{Cents: c} }

// ParseAmount converts decimal text to Money.
//
// Both dot (12.34) and comma (12,34) separators are accepted. Values with
// more than two decimals are rounded half-up. The result must be positive.
//
//	ParseAmount("12.34")  -> 1234
//	ParseAmount("12,345") -> 1235
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	if strings.Count(s, ",") > 0 && strings.Count(s, ".") > 0 {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Mul(hundred).Round(0)
	if !cents.IsPositive() || cents.GreaterThan(maxDecimalCents) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// maxCents caps parsed amounts well below int64 overflow so sums stay safe.
const maxCents = int64(1) << 53

var maxDecimalCents = decimal.NewFromInt(maxCents)

// Decimal returns the amount as a decimal number of currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with two decimals, e.g. "20.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (m Money) IsZero() bool { return m.Cents == 0 }

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// MarshalJSON emits the amount as a decimal string ("40.00") so clients
// never see floating point.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts a decimal string or a JSON number. Zero and negative
// values are accepted here; operations validate their own bounds.
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, string(b))
	}
	cents := d.Mul(hundred).Round(0)
	if cents.GreaterThan(maxDecimalCents) || cents.LessThan(maxDecimalCents.Neg()) {
		return fmt.Errorf("%w: %s out of range", ErrInvalidAmount, string(b))
	}
	m.Cents = cents.IntPart()
	return nil
}

// Package sheets exports movements to a spreadsheet, one sheet per year.
package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"fambudget/internal/core"
)

// DefaultSheetBase is the sheet name suffix; the movement year is prefixed.
const DefaultSheetBase = "Movimientos"

// Ports for outbound adapters.
type (
	// MovementExporter writes a movement row and returns a reference to it.
	// Exporting the same movement again rewrites its row.
	MovementExporter interface {
		Export(ctx context.Context, row Row) (ref string, err error)
	}
)

// Row is a movement with the display names the sheet shows.
type Row struct {
	Movement     core.Movement
	UserName     string
	CategoryName string
	// PreviousYear is the year of the sheet the movement was last exported
	// to, 0 if never.
	PreviousYear int
}

// MovedFrom returns the year sheet holding a stale copy of the row after
// the movement's date changed year, and false when there is none.
func (r Row) MovedFrom() (int, bool) {
	if r.PreviousYear == 0 || r.PreviousYear == r.Movement.Date.Year() {
		return 0, false
	}
	return r.PreviousYear, true
}

// Values returns the cells [date, user, kind, category, amount, comment, id].
func (r Row) Values() []any {
	m := r.Movement
	return []any{m.Date.String(), r.UserName, string(m.Kind), r.CategoryName, m.Amount.String(), m.Comment, m.ID}
}

func (r Row) Validate() error {
	if r.Movement.ID == "" {
		return fmt.Errorf("%w: missing movement id", core.ErrInvalidParameters)
	}
	return r.Movement.Validate()
}

// SheetName returns "<year> <base>" unless base already starts with a
// 4-digit year.
func SheetName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = DefaultSheetBase
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

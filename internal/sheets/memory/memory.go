package memory

import (
	"context"
	"fmt"
	"sync"

	"fambudget/internal/sheets"
)

// Exporter keeps exported rows in memory, grouped by sheet. It stands in
// for the spreadsheet when none is configured.
type Exporter struct {
	mu     sync.Mutex
	base   string
	sheets map[string][]sheets.Row
}

var _ sheets.MovementExporter = (*Exporter)(nil)

func New(base string) *Exporter {
	return &Exporter{base: base, sheets: map[string][]sheets.Row{}}
}

// Export appends the row, or replaces the row of the same movement. A row
// left in another year's sheet by a date change is removed.
func (e *Exporter) Export(_ context.Context, row sheets.Row) (string, error) {
	if err := row.Validate(); err != nil {
		return "", err
	}
	name := sheets.SheetName(e.base, row.Movement.Date.Year())

	e.mu.Lock()
	defer e.mu.Unlock()
	if year, ok := row.MovedFrom(); ok {
		old := sheets.SheetName(e.base, year)
		kept := e.sheets[old][:0]
		for _, r := range e.sheets[old] {
			if r.Movement.ID != row.Movement.ID {
				kept = append(kept, r)
			}
		}
		e.sheets[old] = kept
	}
	rows := e.sheets[name]
	for i, r := range rows {
		if r.Movement.ID == row.Movement.ID {
			rows[i] = row
			return fmt.Sprintf("mem:%s:%d", name, i+1), nil
		}
	}
	e.sheets[name] = append(rows, row)
	return fmt.Sprintf("mem:%s:%d", name, len(rows)+1), nil
}

// Rows returns a copy of the rows of a sheet.
func (e *Exporter) Rows(sheet string) []sheets.Row {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]sheets.Row(nil), e.sheets[sheet]...)
}

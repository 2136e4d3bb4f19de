// Package worker runs the background side of FamBudget: it reacts to domain
// events, exports movements to the spreadsheet and reconciles balances.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fambudget/internal/amqp"
	"fambudget/internal/core"
	"fambudget/internal/sheets"
	"fambudget/internal/storage"
)

const DefaultBatchSize = 10

// Exporter copies movements from the store to the spreadsheet and records
// the outcome on the movement.
type Exporter struct {
	store     *storage.Store
	sink      sheets.MovementExporter
	batchSize int
}

func NewExporter(store *storage.Store, sink sheets.MovementExporter, batchSize int) *Exporter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Exporter{store: store, sink: sink, batchSize: batchSize}
}

// HandleEvent is the AMQP handler. Goal events need no export.
func (e *Exporter) HandleEvent(ctx context.Context, ev amqp.Event) error {
	switch ev.Type {
	case amqp.MovementCreated, amqp.MovementUpdated:
		slog.InfoContext(ctx, "Processing movement event", "type", ev.Type, "movement_id", ev.ID)
		return e.ExportMovement(ctx, ev.ID)
	case amqp.GoalChanged:
		slog.DebugContext(ctx, "Goal changed", "goal_id", ev.GoalID)
		return nil
	default:
		slog.WarnContext(ctx, "Ignoring unknown event", "type", ev.Type, "id", ev.ID)
		return nil
	}
}

// ExportMovement exports one movement unless it is already exported. A
// movement that no longer exists is skipped.
func (e *Exporter) ExportMovement(ctx context.Context, id string) error {
	exported, err := e.store.IsExported(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Movement to export not found", "movement_id", id)
		return nil
	}
	if err != nil {
		return err
	}
	if exported {
		slog.DebugContext(ctx, "Movement already exported", "movement_id", id)
		return nil
	}

	row, err := e.row(ctx, id)
	if err != nil {
		return fmt.Errorf("load movement %s: %w", id, err)
	}

	ref, err := e.sink.Export(ctx, row)
	if err != nil {
		if markErr := e.store.MarkExportError(ctx, id, err.Error()); markErr != nil {
			slog.ErrorContext(ctx, "Failed to record export error", "movement_id", id, "error", markErr)
		}
		return fmt.Errorf("export movement %s: %w", id, err)
	}

	if err := e.store.MarkExported(ctx, id, ref, row.Movement.Date.Year()); err != nil {
		// The row is in the sheet; a later export rewrites it in place.
		slog.ErrorContext(ctx, "Failed to mark movement exported", "movement_id", id, "error", err)
	}

	slog.InfoContext(ctx, "Exported movement",
		"movement_id", id,
		"ref", ref,
		"amount", row.Movement.Amount.String())
	return nil
}

func (e *Exporter) row(ctx context.Context, id string) (sheets.Row, error) {
	m, err := e.store.GetMovement(ctx, id)
	if err != nil {
		return sheets.Row{}, err
	}
	u, err := e.store.GetUser(ctx, m.UserID)
	if err != nil {
		return sheets.Row{}, err
	}
	prev, err := e.store.ExportYear(ctx, id)
	if err != nil {
		return sheets.Row{}, err
	}
	row := sheets.Row{Movement: m, UserName: u.DisplayName, PreviousYear: prev}
	if m.CategoryID != "" {
		c, err := e.store.GetCategory(ctx, m.CategoryID)
		switch {
		case err == nil:
			row.CategoryName = c.Name
		case !errors.Is(err, core.ErrNotFound):
			return sheets.Row{}, err
		}
	}
	return row, nil
}

// ProcessPending exports one batch of movements that missed their event or
// failed before. It returns how many were exported.
func (e *Exporter) ProcessPending(ctx context.Context) (int, error) {
	pending, err := e.store.PendingExports(ctx, e.batchSize)
	if err != nil {
		return 0, fmt.Errorf("get pending exports: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))
	exported := 0
	for _, m := range pending {
		if ctx.Err() != nil {
			return exported, ctx.Err()
		}
		if err := e.ExportMovement(ctx, m.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export movement", "movement_id", m.ID, "error", err)
			continue
		}
		exported++
	}
	return exported, nil
}

package services

import (
	"context"
	"log/slog"

	"fambudget/internal/amqp"
)

// Publisher delivers domain events after a successful commit.
type Publisher interface {
	Publish(ctx context.Context, ev amqp.Event) error
}

// publish never fails the caller: the data is already committed and the
// export sweep picks up anything an event missed.
func publish(ctx context.Context, p Publisher, events ...amqp.Event) {
	if p == nil {
		slog.DebugContext(ctx, "Event publisher not available, skipping events", "count", len(events))
		return
	}
	for _, ev := range events {
		if err := p.Publish(ctx, ev); err != nil {
			slog.ErrorContext(ctx, "Failed to publish event",
				"type", ev.Type, "id", ev.ID, "error", err)
		}
	}
}

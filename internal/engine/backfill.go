package engine

import (
	"context"
	"log/slog"
)

// Backfill refills slots freed by declines, expiries and cancellations.
// It runs synchronously right after the freeing transaction commits.
type Backfill struct {
	c       *core
	lottery *Lottery
}

// TriggerReplacement draws up to count replacements from the waiting
// pool.  It is a no-op when the event is cancelled, not drawable, past
// its backfill deadline, or has nobody waiting.
func (b *Backfill) TriggerReplacement(ctx context.Context, eventID string, count int) (*DrawResult, error) {
	if count < 0 {
		return nil, validationf("count must be >= 0, got %d", count)
	}
	return b.lottery.draw(ctx, eventID, count, OriginBackfill)
}

// replace runs a replacement draw on behalf of an operation that has
// already committed.  A failure is logged and returned as text for the
// caller's result; it never fails the operation itself.
func (b *Backfill) replace(ctx context.Context, eventID string, count int) (*DrawResult, string) {
	res, err := b.TriggerReplacement(ctx, eventID, count)
	if err != nil {
		b.c.log.ErrorContext(ctx, "replacement draw failed",
			slog.String("err", err.Error()),
			slog.String("event_id", eventID),
			slog.Int("count", count),
		)
		return nil, err.Error()
	}
	return res, ""
}

// Package sweeper periodically expires overdue invitations so that
// replacements are drawn even when nobody reads the affected events.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/enrollment-lottery/internal/engine"
)

// Engine is the part of engine.Engine the sweeper needs.
type Engine interface {
	OverdueEvents(ctx context.Context) ([]string, error)
	SweepExpired(ctx context.Context, eventID string) (*engine.SweepResult, error)
}

// Worker runs SweepExpired for every event with overdue invitations on
// each tick.
type Worker struct {
	eng      Engine
	interval time.Duration
	log      *slog.Logger
}

// New returns a worker ticking every interval.
func New(eng Engine, interval time.Duration, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{eng: eng, interval: interval, log: log}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SweepOnce(ctx); err != nil {
				w.log.ErrorContext(ctx, "can't sweep overdue invitations",
					slog.String("err", err.Error()),
				)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// SweepOnce sweeps every event that currently has overdue invitations and
// returns how many invitations it expired.  A failing event is logged and
// skipped.
func (w *Worker) SweepOnce(ctx context.Context) (int, error) {
	ids, err := w.eng.OverdueEvents(ctx)
	if err != nil {
		return 0, fmt.Errorf("can't list events with overdue invitations: %w", err)
	}

	expired := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		res, err := w.eng.SweepExpired(ctx, id)
		if err != nil {
			w.log.ErrorContext(ctx, "can't sweep event",
				slog.String("err", err.Error()),
				slog.String("event_id", id),
			)
			continue
		}
		expired += len(res.Expired)
	}
	return expired, nil
}

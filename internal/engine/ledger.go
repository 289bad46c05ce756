package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/iliyamo/enrollment-lottery/internal/model"
	"github.com/iliyamo/enrollment-lottery/internal/notify"
	"github.com/iliyamo/enrollment-lottery/internal/repository"
)

// Cancellation is returned by Ledger.Cancel.
type Cancellation struct {
	Registration     model.Registration `json:"registration"`
	Replacement      *DrawResult        `json:"replacement,omitempty"`
	ReplacementError string             `json:"replacement_error,omitempty"`
}

// Ledger records confirmed admissions.
type Ledger struct {
	c        *core
	backfill *Backfill
	sweeper  *Invitations
}

// Enroll creates an Active registration inside the caller's transaction r.
// It fails with ErrConflict when the entrant already holds an active
// registration and with ErrCapacityExceeded when the event is full.
func (l *Ledger) Enroll(ctx context.Context, r repository.Repository, ev *model.Event, entrantID, invitationID string) (*model.Registration, error) {
	_, err := r.Registrations().GetActive(ctx, ev.ID, entrantID)
	switch {
	case err == nil:
		return nil, conflictf("entrant %s is already registered for event %s", entrantID, ev.ID)
	case !isNotFound(err):
		return nil, err
	}

	if !ev.Unlimited() {
		active, err := r.Registrations().CountActive(ctx, ev.ID)
		if err != nil {
			return nil, err
		}
		if active >= ev.Capacity {
			return nil, capacityf("event %s is full (%d/%d)", ev.ID, active, ev.Capacity)
		}
	}

	reg := &model.Registration{
		ID:           l.c.newID(),
		EventID:      ev.ID,
		EntrantID:    entrantID,
		InvitationID: invitationID,
		Status:       model.RegistrationActive,
		CreatedAt:    r.Now(),
	}
	if err := r.Registrations().Create(ctx, reg); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflictf("entrant %s is already registered for event %s", entrantID, ev.ID)
		}
		return nil, err
	}
	return reg, nil
}

// Cancel soft-cancels the entrant's active registration and requests a
// replacement for the freed slot.
func (l *Ledger) Cancel(ctx context.Context, eventID, entrantID string, by model.CancelledBy) (*Cancellation, error) {
	if !by.Valid() {
		return nil, validationf("unknown canceller %q", by)
	}
	if strings.TrimSpace(eventID) == "" || strings.TrimSpace(entrantID) == "" {
		return nil, validationf("event and entrant are required")
	}

	var reg *model.Registration
	err := l.c.tx(ctx, func(ctx context.Context, r repository.Repository) error {
		ev, err := event(ctx, r, eventID)
		if err != nil {
			return err
		}
		reg, err = r.Registrations().GetLatest(ctx, ev.ID, entrantID)
		if err != nil {
			if isNotFound(err) {
				return notFoundf("no registration of entrant %s for event %s", entrantID, eventID)
			}
			return err
		}
		if reg.Status != model.RegistrationActive {
			return statef("registration %s is already %s", reg.ID, reg.Status)
		}
		now := r.Now()
		status := by.RegistrationStatus()
		if err := r.Registrations().Cancel(ctx, reg.ID, status, now); err != nil {
			return err
		}
		reg.Status = status
		reg.CancelledAt = &now
		return r.Events().Touch(ctx, ev.ID, ev.Version)
	})
	if err != nil {
		return nil, err
	}

	l.c.log.InfoContext(ctx, "registration cancelled",
		slog.String("registration_id", reg.ID),
		slog.String("event_id", eventID),
		slog.String("by", string(by)),
	)
	l.c.dispatch(ctx, []notify.Notification{notify.RegistrationCancelled(*reg, by, *reg.CancelledAt)})

	out := &Cancellation{Registration: *reg}
	out.Replacement, out.ReplacementError = l.backfill.replace(ctx, eventID, 1)
	return out, nil
}

// List returns the event's registrations ordered by creation time.  An
// empty status returns all of them.
func (l *Ledger) List(ctx context.Context, eventID string, status model.RegistrationStatus) ([]model.Registration, error) {
	if status != "" && !status.Valid() {
		return nil, validationf("unknown registration status %q", status)
	}
	if err := l.sweeper.lazySweep(ctx, eventID); err != nil {
		return nil, err
	}
	list, err := l.c.store.Registrations().ListByEvent(ctx, eventID, status)
	return list, mapStoreErr(err)
}

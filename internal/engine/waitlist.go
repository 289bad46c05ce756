package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/enrollment-lottery/internal/model"
	"github.com/iliyamo/enrollment-lottery/internal/repository"
)

// WaitlistStore manages the per-event pool of candidates.
type WaitlistStore struct {
	c       *core
	sweeper *Invitations
}

// Join adds the entrant to the pool while the registration window is
// open.  An entrant gets one entry per event for good: joining again,
// even after leaving, fails with ErrConflict.
func (s *WaitlistStore) Join(ctx context.Context, eventID, entrantID string) (*model.WaitlistEntry, error) {
	if strings.TrimSpace(eventID) == "" || strings.TrimSpace(entrantID) == "" {
		return nil, validationf("event and entrant are required")
	}

	var entry *model.WaitlistEntry
	err := s.c.tx(ctx, func(ctx context.Context, r repository.Repository) error {
		ev, err := event(ctx, r, eventID)
		if err != nil {
			return err
		}
		now := r.Now()
		if !ev.RegistrationOpen(now) {
			return statef("registration for event %s is not open", ev.ID)
		}

		switch cur, err := r.Waitlist().Get(ctx, ev.ID, entrantID); {
		case err == nil:
			return conflictf("entrant %s already has a %s waitlist entry for event %s", entrantID, cur.Status, ev.ID)
		case !isNotFound(err):
			return err
		}

		if ev.WaitingListLimit != nil {
			waiting, err := r.Waitlist().CountByStatus(ctx, ev.ID, model.WaitlistWaiting)
			if err != nil {
				return err
			}
			if waiting >= *ev.WaitingListLimit {
				return capacityf("waiting list of event %s is full (%d)", ev.ID, *ev.WaitingListLimit)
			}
		}

		entry = &model.WaitlistEntry{
			ID:        s.c.newID(),
			EventID:   ev.ID,
			EntrantID: entrantID,
			Status:    model.WaitlistWaiting,
			JoinedAt:  now,
			UpdatedAt: now,
		}
		if err := r.Waitlist().Create(ctx, entry); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return conflictf("entrant %s already joined event %s", entrantID, ev.ID)
			}
			return err
		}
		return r.Events().Touch(ctx, ev.ID, ev.Version)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Leave withdraws a waiting entrant.  Leaving twice is a no-op; an entrant
// who was already drawn must answer the invitation instead.
func (s *WaitlistStore) Leave(ctx context.Context, eventID, entrantID string) (*model.WaitlistEntry, error) {
	if strings.TrimSpace(eventID) == "" || strings.TrimSpace(entrantID) == "" {
		return nil, validationf("event and entrant are required")
	}

	var entry *model.WaitlistEntry
	err := s.c.tx(ctx, func(ctx context.Context, r repository.Repository) error {
		ev, err := event(ctx, r, eventID)
		if err != nil {
			return err
		}
		entry, err = r.Waitlist().Get(ctx, ev.ID, entrantID)
		if err != nil {
			if isNotFound(err) {
				return notFoundf("entrant %s is not on the waitlist of event %s", entrantID, eventID)
			}
			return err
		}
		switch entry.Status {
		case model.WaitlistCancelled:
			return nil
		case model.WaitlistChosen:
			return statef("entrant %s was already drawn for event %s", entrantID, eventID)
		}
		now := r.Now()
		if err := r.Waitlist().UpdateStatus(ctx, entry.ID, model.WaitlistWaiting, model.WaitlistCancelled, now); err != nil {
			return err
		}
		entry.Status = model.WaitlistCancelled
		entry.UpdatedAt = now
		return r.Events().Touch(ctx, ev.ID, ev.Version)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListWaiting returns the entries still waiting, ordered by join time.
func (s *WaitlistStore) ListWaiting(ctx context.Context, eventID string) ([]model.WaitlistEntry, error) {
	if err := s.sweeper.lazySweep(ctx, eventID); err != nil {
		return nil, err
	}
	list, err := s.c.store.Waitlist().ListByStatus(ctx, eventID, model.WaitlistWaiting)
	return list, mapStoreErr(err)
}

package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/enrollment-lottery/internal/model"
	"github.com/iliyamo/enrollment-lottery/internal/notify"
	"github.com/iliyamo/enrollment-lottery/internal/repository"
)

// Outcome is the result of a successful response to an invitation.
type Outcome string

const (
	OutcomeAccepted Outcome = "ACCEPTED"
	OutcomeDeclined Outcome = "DECLINED"
	// OutcomeForcedExpired means the entrant accepted but the event was
	// already full, so the invitation was expired instead.
	OutcomeForcedExpired Outcome = "FORCED_EXPIRED"
)

// Response is returned by Respond.
type Response struct {
	Invitation       model.Invitation    `json:"invitation"`
	Outcome          Outcome             `json:"outcome"`
	Registration     *model.Registration `json:"registration,omitempty"`
	Replacement      *DrawResult         `json:"replacement,omitempty"`
	ReplacementError string              `json:"replacement_error,omitempty"`
}

// SweepResult is returned by SweepExpired.
type SweepResult struct {
	EventID           string             `json:"event_id"`
	Expired           []model.Invitation `json:"expired"`
	Replacements      []*DrawResult      `json:"replacements,omitempty"`
	ReplacementErrors []string           `json:"replacement_errors,omitempty"`
}

// Invitations manages the lifecycle of issued invitations.
type Invitations struct {
	c        *core
	ledger   *Ledger
	backfill *Backfill
}

// Respond resolves a pending invitation on behalf of its entrant.
//
// Accepting enrolls the entrant in the same transaction.  If the event is
// full by then, the invitation is expired instead and the call still
// succeeds with OutcomeForcedExpired.  Declining frees the slot for a
// replacement.  Answering after the deadline expires the invitation and
// fails with ErrState.
func (m *Invitations) Respond(ctx context.Context, invitationID, entrantID string, accept bool) (*Response, error) {
	if strings.TrimSpace(invitationID) == "" || strings.TrimSpace(entrantID) == "" {
		return nil, validationf("invitation and entrant are required")
	}

	var (
		resp    *Response
		overdue bool
	)
	err := m.c.tx(ctx, func(ctx context.Context, r repository.Repository) error {
		resp, overdue = &Response{}, false

		inv, err := r.Invitations().Get(ctx, invitationID)
		if err != nil {
			if isNotFound(err) {
				return notFoundf("invitation %s", invitationID)
			}
			return err
		}
		if inv.EntrantID != entrantID {
			return notFoundf("invitation %s", invitationID)
		}
		if inv.Status != model.InvitationPending {
			return statef("invitation %s is already %s", inv.ID, inv.Status)
		}
		ev, err := event(ctx, r, inv.EventID)
		if err != nil {
			return err
		}
		now := r.Now()

		switch {
		case inv.Overdue(now):
			overdue = true
			err = resolve(ctx, r, inv, model.InvitationExpired, now)
		case !accept:
			resp.Outcome = OutcomeDeclined
			err = resolve(ctx, r, inv, model.InvitationDeclined, now)
		default:
			reg, enrollErr := m.ledger.Enroll(ctx, r, ev, inv.EntrantID, inv.ID)
			switch {
			case enrollErr == nil:
				resp.Outcome = OutcomeAccepted
				resp.Registration = reg
				err = resolve(ctx, r, inv, model.InvitationAccepted, now)
			case errors.Is(enrollErr, ErrCapacityExceeded):
				resp.Outcome = OutcomeForcedExpired
				err = resolve(ctx, r, inv, model.InvitationExpired, now)
			default:
				return enrollErr
			}
		}
		if err != nil {
			return err
		}
		resp.Invitation = *inv
		return r.Events().Touch(ctx, ev.ID, ev.Version)
	})
	if err != nil {
		return nil, err
	}

	inv := resp.Invitation
	if overdue {
		m.backfill.replace(ctx, inv.EventID, 1)
		return nil, statef("invitation %s expired at %s", inv.ID, inv.ReplyBy.Format(time.RFC3339))
	}

	m.c.log.InfoContext(ctx, "invitation resolved",
		slog.String("invitation_id", inv.ID),
		slog.String("event_id", inv.EventID),
		slog.String("outcome", string(resp.Outcome)),
	)
	if resp.Outcome == OutcomeForcedExpired {
		m.c.dispatch(ctx, []notify.Notification{notify.LotteryLost(inv.EventID, inv.EntrantID, *inv.RespondedAt)})
	}
	if resp.Outcome != OutcomeAccepted {
		resp.Replacement, resp.ReplacementError = m.backfill.replace(ctx, inv.EventID, 1)
	}
	return resp, nil
}

// SweepExpired expires every overdue pending invitation of the event and
// requests one replacement per expired invitation.
func (m *Invitations) SweepExpired(ctx context.Context, eventID string) (*SweepResult, error) {
	var expired []model.Invitation
	err := m.c.tx(ctx, func(ctx context.Context, r repository.Repository) error {
		ev, err := event(ctx, r, eventID)
		if err != nil {
			return err
		}
		expired, err = expireOverdue(ctx, r, ev.ID, r.Now())
		if err != nil || len(expired) == 0 {
			return err
		}
		return r.Events().Touch(ctx, ev.ID, ev.Version)
	})
	if err != nil {
		return nil, err
	}

	res := &SweepResult{EventID: eventID, Expired: expired}
	if len(expired) == 0 {
		return res, nil
	}
	m.c.log.InfoContext(ctx, "expired overdue invitations",
		slog.String("event_id", eventID),
		slog.Int("count", len(expired)),
	)
	for range expired {
		d, msg := m.backfill.replace(ctx, eventID, 1)
		if msg != "" {
			res.ReplacementErrors = append(res.ReplacementErrors, msg)
			continue
		}
		res.Replacements = append(res.Replacements, d)
	}
	return res, nil
}

// lazySweep runs SweepExpired ahead of a read.  Only ErrNotFound is
// returned; any other failure is logged so the read can still be served.
func (m *Invitations) lazySweep(ctx context.Context, eventID string) error {
	if _, err := m.SweepExpired(ctx, eventID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		m.c.log.WarnContext(ctx, "lazy sweep failed",
			slog.String("err", err.Error()),
			slog.String("event_id", eventID),
		)
	}
	return nil
}

// ListForEntrant returns every invitation of the entrant, newest first,
// after expiring overdue invitations of the events involved.
func (m *Invitations) ListForEntrant(ctx context.Context, entrantID string) ([]model.Invitation, error) {
	if strings.TrimSpace(entrantID) == "" {
		return nil, validationf("entrant is required")
	}
	ids, err := m.c.store.Invitations().PendingEventIDs(ctx, entrantID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	for _, id := range ids {
		// The event may have vanished between the two reads.
		_ = m.lazySweep(ctx, id)
	}
	list, err := m.c.store.Invitations().ListByEntrant(ctx, entrantID)
	return list, mapStoreErr(err)
}

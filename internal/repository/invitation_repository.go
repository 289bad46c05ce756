package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/enrollment-lottery/internal/model"
)

type invitationRepo struct {
	q sqlx.ExtContext
}

const invitationColumns = `id, event_id, entrant_id, waitlist_entry_id, status, issued_at, reply_by, responded_at`

func checkInvitations(list []model.Invitation) error {
	for i := range list {
		if !list[i].Status.Valid() {
			return fmt.Errorf("%w: invitation %s has status %q", ErrCorruptRow, list[i].ID, list[i].Status)
		}
	}
	return nil
}

// Get returns the invitation with the given id.
func (r *invitationRepo) Get(ctx context.Context, id string) (*model.Invitation, error) {
	var inv model.Invitation
	if err := sqlx.GetContext(ctx, r.q, &inv, `SELECT `+invitationColumns+` FROM invitations WHERE id = ?`, id); err != nil {
		return nil, translate(err)
	}
	if err := checkInvitations([]model.Invitation{inv}); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Create inserts a new invitation.
func (r *invitationRepo) Create(ctx context.Context, inv *model.Invitation) error {
	const q = `INSERT INTO invitations (id, event_id, entrant_id, waitlist_entry_id, status, issued_at, reply_by, responded_at)
               VALUES (:id, :event_id, :entrant_id, :waitlist_entry_id, :status, :issued_at, :reply_by, :responded_at)`
	_, err := sqlx.NamedExecContext(ctx, r.q, q, inv)
	return translate(err)
}

// Resolve moves a PENDING invitation to a terminal status.
func (r *invitationRepo) Resolve(ctx context.Context, id string, status model.InvitationStatus, at time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE invitations SET status = ?, responded_at = ? WHERE id = ? AND status = ?`,
		status, at, id, model.InvitationPending)
	return expectOne(res, err)
}

// ListByEvent returns the event's invitations, optionally of one status.
func (r *invitationRepo) ListByEvent(ctx context.Context, eventID string, status model.InvitationStatus) ([]model.Invitation, error) {
	q := `SELECT ` + invitationColumns + ` FROM invitations WHERE event_id = ?`
	args := []interface{}{eventID}
	if status != "" {
		q += ` AND status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY issued_at, id`
	return r.list(ctx, q, args...)
}

// ListByEntrant returns every invitation of the entrant, newest first.
func (r *invitationRepo) ListByEntrant(ctx context.Context, entrantID string) ([]model.Invitation, error) {
	return r.list(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE entrant_id = ? ORDER BY issued_at DESC, id`, entrantID)
}

// CountPending counts the event's PENDING invitations.
func (r *invitationRepo) CountPending(ctx context.Context, eventID string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.q, &n,
		`SELECT COUNT(*) FROM invitations WHERE event_id = ? AND status = ?`, eventID, model.InvitationPending)
	return n, translate(err)
}

// ListOverdue returns PENDING invitations whose deadline lies before now.
func (r *invitationRepo) ListOverdue(ctx context.Context, eventID string, now time.Time) ([]model.Invitation, error) {
	return r.list(ctx,
		`SELECT `+invitationColumns+` FROM invitations
         WHERE event_id = ? AND status = ? AND reply_by < ? ORDER BY reply_by, id`,
		eventID, model.InvitationPending, now)
}

// PendingEventIDs returns the events where the entrant has a PENDING
// invitation.
func (r *invitationRepo) PendingEventIDs(ctx context.Context, entrantID string) ([]string, error) {
	ids := []string{}
	err := sqlx.SelectContext(ctx, r.q, &ids,
		`SELECT DISTINCT event_id FROM invitations WHERE entrant_id = ? AND status = ? ORDER BY event_id`,
		entrantID, model.InvitationPending)
	if err != nil {
		return nil, translate(err)
	}
	return ids, nil
}

func (r *invitationRepo) list(ctx context.Context, q string, args ...interface{}) ([]model.Invitation, error) {
	out := []model.Invitation{}
	if err := sqlx.SelectContext(ctx, r.q, &out, q, args...); err != nil {
		return nil, translate(err)
	}
	if err := checkInvitations(out); err != nil {
		return nil, err
	}
	return out, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/enrollment-lottery/internal/model"
)

type eventRepo struct {
	q sqlx.ExtContext
}

const eventColumns = `id, owner_id, title, capacity, waiting_list_limit, registration_opens_at,
       registration_closes_at, backfill_closes_at, status, version, created_at, updated_at`

// Get returns the event with the given id or ErrNotFound.
func (r *eventRepo) Get(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	if err := sqlx.GetContext(ctx, r.q, &e, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id); err != nil {
		return nil, translate(err)
	}
	if !e.Status.Valid() {
		return nil, fmt.Errorf("%w: event %s has status %q", ErrCorruptRow, e.ID, e.Status)
	}
	return &e, nil
}

// Create inserts a new event.  Version starts at zero.
func (r *eventRepo) Create(ctx context.Context, e *model.Event) error {
	const q = `INSERT INTO events (id, owner_id, title, capacity, waiting_list_limit, registration_opens_at,
                                   registration_closes_at, backfill_closes_at, status, version, created_at, updated_at)
               VALUES (:id, :owner_id, :title, :capacity, :waiting_list_limit, :registration_opens_at,
                       :registration_closes_at, :backfill_closes_at, :status, :version, :created_at, :updated_at)`
	_, err := sqlx.NamedExecContext(ctx, r.q, q, e)
	return translate(err)
}

// Touch performs the compare-and-set on events.version.
func (r *eventRepo) Touch(ctx context.Context, id string, version int64) error {
	res, err := r.q.ExecContext(ctx, `UPDATE events SET version = version + 1 WHERE id = ? AND version = ?`, id, version)
	return expectOne(res, err)
}

// ListWithOverdueInvitations returns ids of events holding PENDING
// invitations past their reply_by.
func (r *eventRepo) ListWithOverdueInvitations(ctx context.Context, now time.Time) ([]string, error) {
	ids := []string{}
	err := sqlx.SelectContext(ctx, r.q, &ids,
		`SELECT DISTINCT event_id FROM invitations WHERE status = ? AND reply_by < ? ORDER BY event_id`,
		model.InvitationPending, now)
	if err != nil {
		return nil, translate(err)
	}
	return ids, nil
}

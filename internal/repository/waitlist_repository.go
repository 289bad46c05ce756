package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/enrollment-lottery/internal/model"
)

type waitlistRepo struct {
	q sqlx.ExtContext
}

const waitlistColumns = `id, event_id, entrant_id, status, joined_at, updated_at`

func checkEntry(w *model.WaitlistEntry) error {
	if !w.Status.Valid() {
		return fmt.Errorf("%w: waitlist entry %s has status %q", ErrCorruptRow, w.ID, w.Status)
	}
	return nil
}

// Get returns the entry of the (event, entrant) pair in any status.
func (r *waitlistRepo) Get(ctx context.Context, eventID, entrantID string) (*model.WaitlistEntry, error) {
	var w model.WaitlistEntry
	err := sqlx.GetContext(ctx, r.q, &w,
		`SELECT `+waitlistColumns+` FROM waitlist_entries WHERE event_id = ? AND entrant_id = ?`, eventID, entrantID)
	if err != nil {
		return nil, translate(err)
	}
	return &w, checkEntry(&w)
}

// GetByID returns the entry with the given id.
func (r *waitlistRepo) GetByID(ctx context.Context, id string) (*model.WaitlistEntry, error) {
	var w model.WaitlistEntry
	if err := sqlx.GetContext(ctx, r.q, &w, `SELECT `+waitlistColumns+` FROM waitlist_entries WHERE id = ?`, id); err != nil {
		return nil, translate(err)
	}
	return &w, checkEntry(&w)
}

// Create inserts a new entry.  The unique key on (event_id, entrant_id)
// turns a second join into ErrDuplicate.
func (r *waitlistRepo) Create(ctx context.Context, w *model.WaitlistEntry) error {
	const q = `INSERT INTO waitlist_entries (id, event_id, entrant_id, status, joined_at, updated_at)
               VALUES (:id, :event_id, :entrant_id, :status, :joined_at, :updated_at)`
	_, err := sqlx.NamedExecContext(ctx, r.q, q, w)
	return translate(err)
}

// UpdateStatus moves an entry between statuses.
func (r *waitlistRepo) UpdateStatus(ctx context.Context, id string, from, to model.WaitlistStatus, at time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE waitlist_entries SET status = ?, updated_at = ? WHERE id = ? AND status = ?`, to, at, id, from)
	return expectOne(res, err)
}

// ListByStatus returns the entries of one status ordered by join time.
func (r *waitlistRepo) ListByStatus(ctx context.Context, eventID string, status model.WaitlistStatus) ([]model.WaitlistEntry, error) {
	out := []model.WaitlistEntry{}
	err := sqlx.SelectContext(ctx, r.q, &out,
		`SELECT `+waitlistColumns+` FROM waitlist_entries WHERE event_id = ? AND status = ? ORDER BY joined_at, id`,
		eventID, status)
	if err != nil {
		return nil, translate(err)
	}
	for i := range out {
		if err := checkEntry(&out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CountByStatus counts the entries of one status.
func (r *waitlistRepo) CountByStatus(ctx context.Context, eventID string, status model.WaitlistStatus) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.q, &n,
		`SELECT COUNT(*) FROM waitlist_entries WHERE event_id = ? AND status = ?`, eventID, status)
	return n, translate(err)
}

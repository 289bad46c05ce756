package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/enrollment-lottery/internal/model"
)

type registrationRepo struct {
	q sqlx.ExtContext
}

const registrationColumns = `id, event_id, entrant_id, invitation_id, status, created_at, cancelled_at`

func checkRegistrations(list []model.Registration) error {
	for i := range list {
		if !list[i].Status.Valid() {
			return fmt.Errorf("%w: registration %s has status %q", ErrCorruptRow, list[i].ID, list[i].Status)
		}
	}
	return nil
}

func (r *registrationRepo) one(ctx context.Context, q string, args ...interface{}) (*model.Registration, error) {
	var reg model.Registration
	if err := sqlx.GetContext(ctx, r.q, &reg, q, args...); err != nil {
		return nil, translate(err)
	}
	if err := checkRegistrations([]model.Registration{reg}); err != nil {
		return nil, err
	}
	return &reg, nil
}

// GetActive returns the ACTIVE registration of the pair.
func (r *registrationRepo) GetActive(ctx context.Context, eventID, entrantID string) (*model.Registration, error) {
	return r.one(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE event_id = ? AND entrant_id = ? AND status = ?`,
		eventID, entrantID, model.RegistrationActive)
}

// GetLatest returns the newest registration of the pair in any status.
func (r *registrationRepo) GetLatest(ctx context.Context, eventID, entrantID string) (*model.Registration, error) {
	return r.one(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE event_id = ? AND entrant_id = ?
         ORDER BY created_at DESC, id DESC LIMIT 1`,
		eventID, entrantID)
}

// Create inserts a registration.  The generated active_key column keeps at
// most one ACTIVE row per pair even if the engine check were bypassed.
func (r *registrationRepo) Create(ctx context.Context, reg *model.Registration) error {
	const q = `INSERT INTO registrations (id, event_id, entrant_id, invitation_id, status, created_at, cancelled_at)
               VALUES (:id, :event_id, :entrant_id, :invitation_id, :status, :created_at, :cancelled_at)`
	_, err := sqlx.NamedExecContext(ctx, r.q, q, reg)
	return translate(err)
}

// Cancel soft-cancels an ACTIVE registration.
func (r *registrationRepo) Cancel(ctx context.Context, id string, status model.RegistrationStatus, at time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE registrations SET status = ?, cancelled_at = ? WHERE id = ? AND status = ?`,
		status, at, id, model.RegistrationActive)
	return expectOne(res, err)
}

// ListByEvent returns the event's registrations, optionally of one status.
func (r *registrationRepo) ListByEvent(ctx context.Context, eventID string, status model.RegistrationStatus) ([]model.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM registrations WHERE event_id = ?`
	args := []interface{}{eventID}
	if status != "" {
		q += ` AND status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY created_at, id`
	out := []model.Registration{}
	if err := sqlx.SelectContext(ctx, r.q, &out, q, args...); err != nil {
		return nil, translate(err)
	}
	if err := checkRegistrations(out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountActive counts the event's ACTIVE registrations.
func (r *registrationRepo) CountActive(ctx context.Context, eventID string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.q, &n,
		`SELECT COUNT(*) FROM registrations WHERE event_id = ? AND status = ?`, eventID, model.RegistrationActive)
	return n, translate(err)
}

package repository

import (
	"context"
	"time"

	"github.com/iliyamo/enrollment-lottery/internal/model"
)

// EventRepository reads events and performs the optimistic commit check.
type EventRepository interface {
	Get(ctx context.Context, id string) (*model.Event, error)
	Create(ctx context.Context, e *model.Event) error
	// Touch bumps the event version if it still equals version and
	// returns ErrTxConflict otherwise.  Every mutating transaction of the
	// engine calls Touch last, so two transactions that read the same
	// event version cannot both commit.
	Touch(ctx context.Context, id string, version int64) error
	// ListWithOverdueInvitations returns ids of events that have PENDING
	// invitations whose reply_by lies before now.
	ListWithOverdueInvitations(ctx context.Context, now time.Time) ([]string, error)
}

// WaitlistRepository stores the per-event candidate pool.
type WaitlistRepository interface {
	Get(ctx context.Context, eventID, entrantID string) (*model.WaitlistEntry, error)
	GetByID(ctx context.Context, id string) (*model.WaitlistEntry, error)
	Create(ctx context.Context, w *model.WaitlistEntry) error
	// UpdateStatus moves the entry from one status to another and returns
	// ErrTxConflict when the entry is no longer in from.
	UpdateStatus(ctx context.Context, id string, from, to model.WaitlistStatus, at time.Time) error
	// ListByStatus returns entries ordered by joined_at then id.
	ListByStatus(ctx context.Context, eventID string, status model.WaitlistStatus) ([]model.WaitlistEntry, error)
	CountByStatus(ctx context.Context, eventID string, status model.WaitlistStatus) (int, error)
}

// InvitationRepository stores invitations issued by draws.
type InvitationRepository interface {
	Get(ctx context.Context, id string) (*model.Invitation, error)
	Create(ctx context.Context, inv *model.Invitation) error
	// Resolve moves a PENDING invitation to a terminal status and returns
	// ErrTxConflict when it is no longer pending.
	Resolve(ctx context.Context, id string, status model.InvitationStatus, at time.Time) error
	// ListByEvent returns the event's invitations, optionally filtered by
	// status (empty = all), ordered by issued_at then id.
	ListByEvent(ctx context.Context, eventID string, status model.InvitationStatus) ([]model.Invitation, error)
	// ListByEntrant returns every invitation of the entrant, newest first.
	ListByEntrant(ctx context.Context, entrantID string) ([]model.Invitation, error)
	CountPending(ctx context.Context, eventID string) (int, error)
	// ListOverdue returns PENDING invitations of the event with reply_by
	// before now, ordered by reply_by then id.
	ListOverdue(ctx context.Context, eventID string, now time.Time) ([]model.Invitation, error)
	// PendingEventIDs returns the distinct events where the entrant holds a
	// PENDING invitation.
	PendingEventIDs(ctx context.Context, entrantID string) ([]string, error)
}

// RegistrationRepository is the ledger of admitted entrants.
type RegistrationRepository interface {
	// GetActive returns the ACTIVE registration of the pair or ErrNotFound.
	GetActive(ctx context.Context, eventID, entrantID string) (*model.Registration, error)
	// GetLatest returns the most recent registration of the pair in any
	// status or ErrNotFound.
	GetLatest(ctx context.Context, eventID, entrantID string) (*model.Registration, error)
	Create(ctx context.Context, r *model.Registration) error
	// Cancel moves an ACTIVE registration to a cancelled status and returns
	// ErrTxConflict when it is no longer active.
	Cancel(ctx context.Context, id string, status model.RegistrationStatus, at time.Time) error
	// ListByEvent returns registrations ordered by created_at then id,
	// optionally filtered by status (empty = all).
	ListByEvent(ctx context.Context, eventID string, status model.RegistrationStatus) ([]model.Registration, error)
	CountActive(ctx context.Context, eventID string) (int, error)
}

// Repository bundles the collections of the store.  Inside a transaction
// every collection shares the transaction and Now is frozen.
type Repository interface {
	Events() EventRepository
	Waitlist() WaitlistRepository
	Invitations() InvitationRepository
	Registrations() RegistrationRepository
	Now() time.Time
}

// Store is the persistent store consumed by the engine.  Tx runs fn with
// transactional read-then-write access.  If fn (or the commit) fails with a
// retryable conflict, Tx rolls back and runs fn again according to its
// RetryPolicy; fn must therefore be free of side effects outside the
// Repository it is given.
type Store interface {
	Repository
	Tx(ctx context.Context, fn func(ctx context.Context, r Repository) error) error
}

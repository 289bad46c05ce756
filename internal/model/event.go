package model

import (
	"math"
	"time"
)

// Event is a capacity-limited happening that entrants compete for through
// the waitlist lottery.  It is owned by its organizer; the allocation
// engine only ever bumps Version.
//
// Fields:
//  ID                   – primary key (uuid).
//  OwnerID              – organizer who created the event.
//  Title                – display title.
//  Capacity             – maximum simultaneous ACTIVE registrations; 0 means unlimited.
//  WaitingListLimit     – optional cap on the number of WAITING entries (nil = none).
//  RegistrationOpensAt  – start of the join window.
//  RegistrationClosesAt – end of the join window; draws are allowed afterwards.
//  BackfillClosesAt     – optional instant after which no replacement draws happen.
//  Status               – DRAFT, PUBLISHED, CLOSED or CANCELLED.
//  Version              – optimistic concurrency counter.
//  CreatedAt            – creation timestamp.
//  UpdatedAt            – last update timestamp.
type Event struct {
	ID                   string      `db:"id" json:"id"`
	OwnerID              string      `db:"owner_id" json:"owner_id"`
	Title                string      `db:"title" json:"title"`
	Capacity             int         `db:"capacity" json:"capacity"`
	WaitingListLimit     *int        `db:"waiting_list_limit" json:"waiting_list_limit,omitempty"`
	RegistrationOpensAt  time.Time   `db:"registration_opens_at" json:"registration_opens_at"`
	RegistrationClosesAt time.Time   `db:"registration_closes_at" json:"registration_closes_at"`
	BackfillClosesAt     *time.Time  `db:"backfill_closes_at" json:"backfill_closes_at,omitempty"`
	Status               EventStatus `db:"status" json:"status"`
	Version              int64       `db:"version" json:"version"`
	CreatedAt            time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time   `db:"updated_at" json:"updated_at"`
}

// Unlimited reports whether the event admits any number of entrants.
func (e *Event) Unlimited() bool { return e.Capacity == 0 }

// RegistrationOpen reports whether entrants may join the waitlist at now.
func (e *Event) RegistrationOpen(now time.Time) bool {
	if e.Status != EventPublished {
		return false
	}
	return !now.Before(e.RegistrationOpensAt) && now.Before(e.RegistrationClosesAt)
}

// Drawable reports whether a lottery draw may run at now: the event is
// CLOSED, or PUBLISHED with its registration window behind it.
func (e *Event) Drawable(now time.Time) bool {
	switch e.Status {
	case EventClosed:
		return true
	case EventPublished:
		return !now.Before(e.RegistrationClosesAt)
	}
	return false
}

// BackfillOpen reports whether vacated slots may still be refilled at now.
func (e *Event) BackfillOpen(now time.Time) bool {
	if !e.Drawable(now) {
		return false
	}
	return e.BackfillClosesAt == nil || now.Before(*e.BackfillClosesAt)
}

// Available returns how many more invitations may be issued given the
// current active and pending counts.  The result may be negative when the
// organizer lowered capacity below the admitted count.
func (e *Event) Available(active, pending int) int {
	if e.Unlimited() {
		return math.MaxInt
	}
	return e.Capacity - (active + pending)
}

package model

import "time"

// Registration is a confirmed admission created by accepting an
// invitation.  Registrations are soft-cancelled and never deleted so the
// ledger doubles as an audit trail.
//
// Fields:
//  ID           – primary key (uuid).
//  EventID      – event the entrant is admitted to.
//  EntrantID    – admitted entrant.
//  InvitationID – accepted invitation that produced the registration.
//  Status       – ACTIVE, CANCELLED_BY_ENTRANT or CANCELLED_BY_ORGANIZER.
//  CreatedAt    – admission timestamp.
//  CancelledAt  – cancellation timestamp (nil while active).
type Registration struct {
	ID           string             `db:"id" json:"id"`
	EventID      string             `db:"event_id" json:"event_id"`
	EntrantID    string             `db:"entrant_id" json:"entrant_id"`
	InvitationID string             `db:"invitation_id" json:"invitation_id"`
	Status       RegistrationStatus `db:"status" json:"status"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
	CancelledAt  *time.Time         `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

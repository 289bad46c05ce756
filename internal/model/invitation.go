package model

import "time"

// Invitation is a time-boxed offer of admission issued by a draw.
// Once it leaves PENDING it is never modified again.
//
// Fields:
//  ID              – primary key (uuid).
//  EventID         – event the offer is for.
//  EntrantID       – entrant who may respond.
//  WaitlistEntryID – pool entry that was drawn.
//  Status          – PENDING, ACCEPTED, DECLINED or EXPIRED.
//  IssuedAt        – when the draw created the offer.
//  ReplyBy         – deadline; a response after it is treated as expired.
//  RespondedAt     – when the offer was resolved (nil while pending).
type Invitation struct {
	ID              string           `db:"id" json:"id"`
	EventID         string           `db:"event_id" json:"event_id"`
	EntrantID       string           `db:"entrant_id" json:"entrant_id"`
	WaitlistEntryID string           `db:"waitlist_entry_id" json:"waitlist_entry_id"`
	Status          InvitationStatus `db:"status" json:"status"`
	IssuedAt        time.Time        `db:"issued_at" json:"issued_at"`
	ReplyBy         time.Time        `db:"reply_by" json:"reply_by"`
	RespondedAt     *time.Time       `db:"responded_at" json:"responded_at,omitempty"`
}

// Overdue reports whether a pending invitation has passed its deadline.
func (i *Invitation) Overdue(now time.Time) bool {
	return i.Status == InvitationPending && now.After(i.ReplyBy)
}

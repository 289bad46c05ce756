package model

import "time"

// WaitlistEntry places one entrant in the candidate pool of one event.
// An entry moves WAITING → CHOSEN when drawn and CHOSEN → CANCELLED when
// the resulting invitation is declined or expires; WAITING → CANCELLED
// when the entrant leaves.  It never returns to WAITING.
//
// Fields:
//  ID        – primary key (uuid); also the stable tie-breaker for draws.
//  EventID   – event whose pool this entry belongs to.
//  EntrantID – entrant who joined.
//  Status    – WAITING, CHOSEN or CANCELLED.
//  JoinedAt  – server-assigned join timestamp.
//  UpdatedAt – last status change.
type WaitlistEntry struct {
	ID        string         `db:"id" json:"id"`
	EventID   string         `db:"event_id" json:"event_id"`
	EntrantID string         `db:"entrant_id" json:"entrant_id"`
	Status    WaitlistStatus `db:"status" json:"status"`
	JoinedAt  time.Time      `db:"joined_at" json:"joined_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// Package notify carries engine events to the external notification
// service.  Delivery is best-effort: Dispatch never blocks the caller and
// never reports failures back, so a broken broker cannot undo a committed
// draw, response or cancellation.
package notify

import (
	"context"
	"time"

	"github.com/iliyamo/enrollment-lottery/internal/model"
)

// Kind names a notification type.
type Kind string

const (
	KindLotteryWon            Kind = "LOTTERY_WON"
	KindLotteryLost           Kind = "LOTTERY_LOST"
	KindInvitationIssued      Kind = "INVITATION_ISSUED"
	KindRegistrationCancelled Kind = "REGISTRATION_CANCELLED"
)

// Notification is the payload published to the broker.  Fields that do
// not apply to a kind are omitted from the JSON.
type Notification struct {
	Kind         Kind              `json:"kind"`
	EventID      string            `json:"event_id"`
	EntrantID    string            `json:"entrant_id"`
	InvitationID string            `json:"invitation_id,omitempty"`
	ReplyBy      *time.Time        `json:"reply_by,omitempty"`
	By           model.CancelledBy `json:"by,omitempty"`
	OccurredAt   time.Time         `json:"occurred_at"`
}

// Dispatcher accepts notifications for asynchronous delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification)
}

// LotteryWon tells an entrant they were drawn.
func LotteryWon(eventID, entrantID, invitationID string, at time.Time) Notification {
	return Notification{Kind: KindLotteryWon, EventID: eventID, EntrantID: entrantID, InvitationID: invitationID, OccurredAt: at}
}

// LotteryLost tells an entrant they were not admitted this round.
func LotteryLost(eventID, entrantID string, at time.Time) Notification {
	return Notification{Kind: KindLotteryLost, EventID: eventID, EntrantID: entrantID, OccurredAt: at}
}

// InvitationIssued carries the response deadline of a new invitation.
func InvitationIssued(inv model.Invitation) Notification {
	replyBy := inv.ReplyBy
	return Notification{
		Kind:         KindInvitationIssued,
		EventID:      inv.EventID,
		EntrantID:    inv.EntrantID,
		InvitationID: inv.ID,
		ReplyBy:      &replyBy,
		OccurredAt:   inv.IssuedAt,
	}
}

// RegistrationCancelled reports who cancelled a registration.
func RegistrationCancelled(reg model.Registration, by model.CancelledBy, at time.Time) Notification {
	return Notification{Kind: KindRegistrationCancelled, EventID: reg.EventID, EntrantID: reg.EntrantID, By: by, OccurredAt: at}
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Dispatch(context.Context, Notification) {}

package model

// Every status column is a closed set.  The repository layer refuses rows
// whose status is not one of the constants below, so a stray legacy value
// ("waiting", "PENDING ", ...) surfaces as a read error instead of silently
// matching nothing.

// EventStatus is the lifecycle state of an event as set by its organizer.
type EventStatus string

const (
	EventDraft     EventStatus = "DRAFT"
	EventPublished EventStatus = "PUBLISHED"
	EventClosed    EventStatus = "CLOSED"
	EventCancelled EventStatus = "CANCELLED"
)

// Valid reports whether s is a known event status.
func (s EventStatus) Valid() bool {
	switch s {
	case EventDraft, EventPublished, EventClosed, EventCancelled:
		return true
	}
	return false
}

// WaitlistStatus is the state of a single entrant in an event's pool.
type WaitlistStatus string

const (
	WaitlistWaiting   WaitlistStatus = "WAITING"
	WaitlistChosen    WaitlistStatus = "CHOSEN"
	WaitlistCancelled WaitlistStatus = "CANCELLED"
)

// Valid reports whether s is a known waitlist status.
func (s WaitlistStatus) Valid() bool {
	switch s {
	case WaitlistWaiting, WaitlistChosen, WaitlistCancelled:
		return true
	}
	return false
}

// InvitationStatus is the state of an invitation.  Everything except
// Pending is terminal.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationDeclined InvitationStatus = "DECLINED"
	InvitationExpired  InvitationStatus = "EXPIRED"
)

// Valid reports whether s is a known invitation status.
func (s InvitationStatus) Valid() bool {
	switch s {
	case InvitationPending, InvitationAccepted, InvitationDeclined, InvitationExpired:
		return true
	}
	return false
}

// Terminal reports whether the invitation can no longer change.
func (s InvitationStatus) Terminal() bool { return s != InvitationPending }

// RegistrationStatus is the state of a confirmed admission.
type RegistrationStatus string

const (
	RegistrationActive               RegistrationStatus = "ACTIVE"
	RegistrationCancelledByEntrant   RegistrationStatus = "CANCELLED_BY_ENTRANT"
	RegistrationCancelledByOrganizer RegistrationStatus = "CANCELLED_BY_ORGANIZER"
)

// Valid reports whether s is a known registration status.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationActive, RegistrationCancelledByEntrant, RegistrationCancelledByOrganizer:
		return true
	}
	return false
}

// CancelledBy identifies who cancelled a registration.
type CancelledBy string

const (
	ByEntrant   CancelledBy = "ENTRANT"
	ByOrganizer CancelledBy = "ORGANIZER"
)

// Valid reports whether b is a known canceller.
func (b CancelledBy) Valid() bool { return b == ByEntrant || b == ByOrganizer }

// RegistrationStatus maps the canceller to the terminal status it produces.
func (b CancelledBy) RegistrationStatus() RegistrationStatus {
	if b == ByOrganizer {
		return RegistrationCancelledByOrganizer
	}
	return RegistrationCancelledByEntrant
}

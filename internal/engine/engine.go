// Package engine admits entrants into capacity-limited events through a
// waitlist, a random lottery draw, time-boxed invitations and automatic
// backfill.
//
// All state lives in a repository.Store.  Every multi-step transition runs
// in one Store.Tx that ends with a compare-and-set on the event version,
// so concurrent callers on the same event serialize through retries while
// different events proceed in parallel.  Notifications are dispatched
// only after the transaction that produced them has committed.  The
// engine starts no goroutines; expiry is driven by reads and by an
// external trigger calling SweepExpired.
package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/enrollment-lottery/internal/model"
	"github.com/iliyamo/enrollment-lottery/internal/notify"
	"github.com/iliyamo/enrollment-lottery/internal/repository"
)

// DefaultResponseWindow is how long an entrant has to answer an invitation.
const DefaultResponseWindow = 48 * time.Hour

// core is shared by the components.
type core struct {
	store  repository.Store
	notify notify.Dispatcher
	rand   Rand
	log    *slog.Logger
	window time.Duration
	newID  func() string
}

// tx runs fn in a store transaction and maps what escapes to engine errors.
func (c *core) tx(ctx context.Context, fn func(ctx context.Context, r repository.Repository) error) error {
	return mapStoreErr(c.store.Tx(ctx, fn))
}

func (c *core) dispatch(ctx context.Context, ns []notify.Notification) {
	for _, n := range ns {
		c.notify.Dispatch(ctx, n)
	}
}

// event loads the event or returns ErrNotFound.
func event(ctx context.Context, r repository.Repository, id string) (*model.Event, error) {
	ev, err := r.Events().Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, notFoundf("event %s", id)
		}
		return nil, err
	}
	return ev, nil
}

// Option configures an Engine.
type Option func(*core)

// WithResponseWindow sets the invitation response window.
func WithResponseWindow(d time.Duration) Option {
	return func(c *core) {
		if d > 0 {
			c.window = d
		}
	}
}

// WithRand replaces the random source used for draws.
func WithRand(r Rand) Option { return func(c *core) { c.rand = r } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *core) { c.log = l } }

// WithIDGenerator replaces uuid generation; tests use it for stable
// ordering of waitlist entries.
func WithIDGenerator(fn func() string) Option { return func(c *core) { c.newID = fn } }

// Engine wires the components together and exposes the operations used by
// the HTTP layer and the CLI.
type Engine struct {
	Waitlist    *WaitlistStore
	Lottery     *Lottery
	Invitations *Invitations
	Ledger      *Ledger
	Backfill    *Backfill

	c *core
}

// New returns an engine over store.  A nil dispatcher discards
// notifications.
func New(store repository.Store, d notify.Dispatcher, opts ...Option) *Engine {
	if d == nil {
		d = notify.Discard{}
	}
	c := &core{
		store:  store,
		notify: d,
		rand:   NewCryptoRand(),
		log:    slog.Default(),
		window: DefaultResponseWindow,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}

	lottery := &Lottery{c: c}
	backfill := &Backfill{c: c, lottery: lottery}
	ledger := &Ledger{c: c, backfill: backfill}
	invitations := &Invitations{c: c, ledger: ledger, backfill: backfill}
	ledger.sweeper = invitations
	return &Engine{
		Waitlist:    &WaitlistStore{c: c, sweeper: invitations},
		Lottery:     lottery,
		Invitations: invitations,
		Ledger:      ledger,
		Backfill:    backfill,
		c:           c,
	}
}

// NewEvent is the input of CreateEvent.
type NewEvent struct {
	OwnerID              string
	Title                string
	Capacity             int
	WaitingListLimit     *int
	RegistrationOpensAt  time.Time
	RegistrationClosesAt time.Time
	BackfillClosesAt     *time.Time
	Status               model.EventStatus // PUBLISHED when empty
}

func (in NewEvent) validate() error {
	switch {
	case strings.TrimSpace(in.OwnerID) == "":
		return validationf("owner is required")
	case strings.TrimSpace(in.Title) == "":
		return validationf("title is required")
	case in.Capacity < 0:
		return validationf("capacity must be >= 0")
	case in.WaitingListLimit != nil && *in.WaitingListLimit < 0:
		return validationf("waiting_list_limit must be >= 0")
	case in.RegistrationOpensAt.IsZero() || in.RegistrationClosesAt.IsZero():
		return validationf("registration window is required")
	case !in.RegistrationClosesAt.After(in.RegistrationOpensAt):
		return validationf("registration must close after it opens")
	case in.BackfillClosesAt != nil && in.BackfillClosesAt.Before(in.RegistrationClosesAt):
		return validationf("backfill must close after registration closes")
	case in.Status != "" && !in.Status.Valid():
		return validationf("unknown status %q", in.Status)
	}
	return nil
}

// CreateEvent stores a new event.  Event administration beyond creation
// belongs to the organizer tooling, not to the engine.
func (e *Engine) CreateEvent(ctx context.Context, in NewEvent) (*model.Event, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = model.EventPublished
	}
	now := e.c.store.Now()
	ev := &model.Event{
		ID:                   e.c.newID(),
		OwnerID:              in.OwnerID,
		Title:                strings.TrimSpace(in.Title),
		Capacity:             in.Capacity,
		WaitingListLimit:     in.WaitingListLimit,
		RegistrationOpensAt:  in.RegistrationOpensAt.UTC(),
		RegistrationClosesAt: in.RegistrationClosesAt.UTC(),
		Status:               status,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if in.BackfillClosesAt != nil {
		t := in.BackfillClosesAt.UTC()
		ev.BackfillClosesAt = &t
	}
	if err := e.c.store.Events().Create(ctx, ev); err != nil {
		return nil, mapStoreErr(err)
	}
	return ev, nil
}

// GetEvent returns the event or ErrNotFound after expiring its overdue
// invitations.
func (e *Engine) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if err := e.Invitations.lazySweep(ctx, id); err != nil {
		return nil, err
	}
	ev, err := event(ctx, e.c.store, id)
	return ev, mapStoreErr(err)
}

// Join adds the entrant to the event's waitlist.
func (e *Engine) Join(ctx context.Context, eventID, entrantID string) (*model.WaitlistEntry, error) {
	return e.Waitlist.Join(ctx, eventID, entrantID)
}

// Leave withdraws the entrant from the event's waitlist.
func (e *Engine) Leave(ctx context.Context, eventID, entrantID string) (*model.WaitlistEntry, error) {
	return e.Waitlist.Leave(ctx, eventID, entrantID)
}

// DrawLottery runs an organizer-triggered draw of up to n winners.
func (e *Engine) DrawLottery(ctx context.Context, eventID string, n int) (*DrawResult, error) {
	return e.Lottery.Draw(ctx, eventID, n)
}

// RespondToInvitation accepts or declines an invitation.
func (e *Engine) RespondToInvitation(ctx context.Context, invitationID, entrantID string, accept bool) (*Response, error) {
	return e.Invitations.Respond(ctx, invitationID, entrantID, accept)
}

// CancelRegistration cancels the entrant's active registration.
func (e *Engine) CancelRegistration(ctx context.Context, eventID, entrantID string, by model.CancelledBy) (*Cancellation, error) {
	return e.Ledger.Cancel(ctx, eventID, entrantID, by)
}

// ListWaitlist returns the entrants still waiting for the event.
func (e *Engine) ListWaitlist(ctx context.Context, eventID string) ([]model.WaitlistEntry, error) {
	return e.Waitlist.ListWaiting(ctx, eventID)
}

// ListInvitations returns every invitation of the entrant, newest first.
func (e *Engine) ListInvitations(ctx context.Context, entrantID string) ([]model.Invitation, error) {
	return e.Invitations.ListForEntrant(ctx, entrantID)
}

// ListRegistrations returns the event's registrations, optionally filtered.
func (e *Engine) ListRegistrations(ctx context.Context, eventID string, status model.RegistrationStatus) ([]model.Registration, error) {
	return e.Ledger.List(ctx, eventID, status)
}

// SweepExpired expires overdue invitations of the event and backfills.
func (e *Engine) SweepExpired(ctx context.Context, eventID string) (*SweepResult, error) {
	return e.Invitations.SweepExpired(ctx, eventID)
}

// OverdueEvents lists events that currently hold overdue invitations.
func (e *Engine) OverdueEvents(ctx context.Context) ([]string, error) {
	ids, err := e.c.store.Events().ListWithOverdueInvitations(ctx, e.c.store.Now())
	return ids, mapStoreErr(err)
}

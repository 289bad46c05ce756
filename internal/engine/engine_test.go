package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/enrollment-lottery/internal/model"
	"github.com/iliyamo/enrollment-lottery/internal/notify"
	"github.com/iliyamo/enrollment-lottery/internal/repository"
	"github.com/iliyamo/enrollment-lottery/internal/repository/memstore"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recorder struct {
	mu sync.Mutex
	ns []notify.Notification
}

func (r *recorder) Dispatch(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ns = append(r.ns, n)
}

func (r *recorder) take() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.ns
	r.ns = nil
	return out
}

func kinds(ns []notify.Notification, k notify.Kind) []string {
	var out []string
	for _, n := range ns {
		if n.Kind == k {
			out = append(out, n.EntrantID)
		}
	}
	return out
}

// scriptedRand returns the scripted values in order, then zeros.
type scriptedRand struct {
	mu   sync.Mutex
	vals []int
}

func (s *scriptedRand) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.vals) == 0 {
		return 0
	}
	v := s.vals[0]
	s.vals = s.vals[1:]
	return v % n
}

type fixture struct {
	eng   *Engine
	store *memstore.Store
	clock *testClock
	notes *recorder
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	clk := &testClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := memstore.New(repository.RetryPolicy{
		MaxAttempts: 100,
		BaseBackoff: 50 * time.Microsecond,
		MaxBackoff:  2 * time.Millisecond,
	}).WithClock(clk.Now)
	var seq atomic.Int64
	rec := &recorder{}
	base := []Option{
		WithRand(NewSeededRand(7)),
		WithIDGenerator(func() string { return fmt.Sprintf("id-%05d", seq.Add(1)) }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithResponseWindow(24 * time.Hour),
	}
	eng := New(store, rec, append(base, opts...)...)
	return &fixture{eng: eng, store: store, clock: clk, notes: rec}
}

// event creates a published event whose registration window is open for
// another hour.
func (f *fixture) event(t *testing.T, capacity int, mod ...func(*NewEvent)) *model.Event {
	t.Helper()
	now := f.clock.Now()
	in := NewEvent{
		OwnerID:              "organizer-1",
		Title:                "Spring workshop",
		Capacity:             capacity,
		RegistrationOpensAt:  now.Add(-time.Hour),
		RegistrationClosesAt: now.Add(time.Hour),
	}
	for _, m := range mod {
		m(&in)
	}
	ev, err := f.eng.CreateEvent(context.Background(), in)
	require.NoError(t, err)
	return ev
}

func (f *fixture) join(t *testing.T, eventID string, entrants ...string) {
	t.Helper()
	for _, id := range entrants {
		_, err := f.eng.Join(context.Background(), eventID, id)
		require.NoError(t, err)
	}
}

func (f *fixture) closeRegistration() { f.clock.Advance(2 * time.Hour) }

func (f *fixture) pendingFor(t *testing.T, eventID, entrantID string) model.Invitation {
	t.Helper()
	list, err := f.store.Invitations().ListByEvent(context.Background(), eventID, model.InvitationPending)
	require.NoError(t, err)
	for _, inv := range list {
		if inv.EntrantID == entrantID {
			return inv
		}
	}
	t.Fatalf("no pending invitation for %s", entrantID)
	return model.Invitation{}
}

func (f *fixture) waiting(t *testing.T, eventID string) []string {
	t.Helper()
	list, err := f.store.Waitlist().ListByStatus(context.Background(), eventID, model.WaitlistWaiting)
	require.NoError(t, err)
	out := []string{}
	for _, w := range list {
		out = append(out, w.EntrantID)
	}
	return out
}

// checkInvariants asserts the capacity, single pending and single
// enrollment invariants for the event.
func (f *fixture) checkInvariants(t *testing.T, ev *model.Event) {
	t.Helper()
	ctx := context.Background()
	regs, err := f.store.Registrations().ListByEvent(ctx, ev.ID, "")
	require.NoError(t, err)
	invs, err := f.store.Invitations().ListByEvent(ctx, ev.ID, "")
	require.NoError(t, err)

	active, pending := 0, 0
	activeBy := map[string]int{}
	pendingBy := map[string]int{}
	for _, r := range regs {
		if r.Status == model.RegistrationActive {
			active++
			activeBy[r.EntrantID]++
		}
	}
	for _, inv := range invs {
		if inv.Status == model.InvitationPending {
			pending++
			pendingBy[inv.EntrantID]++
		}
	}
	if !ev.Unlimited() {
		assert.LessOrEqual(t, active, ev.Capacity, "active registrations exceed capacity")
		assert.LessOrEqual(t, active+pending, ev.Capacity, "active+pending exceed capacity")
	}
	for who, n := range activeBy {
		assert.Equal(t, 1, n, "entrant %s has %d active registrations", who, n)
	}
	for who, n := range pendingBy {
		assert.Equal(t, 1, n, "entrant %s has %d pending invitations", who, n)
	}
}

func TestScenario(t *testing.T) {
	ctx := context.Background()
	// Pool sorted by id is A,B,C,D,E.  Draw 2 picks B then D, the
	// replacement after B declines picks C out of A,C,E, and the one after
	// D is cancelled picks A out of A,E.
	f := newFixture(t, WithRand(&scriptedRand{vals: []int{1, 2, 1, 0}}))
	ev := f.event(t, 2)
	f.join(t, ev.ID, "A", "B", "C", "D", "E")
	f.closeRegistration()

	res, err := f.eng.DrawLottery(ctx, ev.ID, 2)
	require.NoError(t, err)
	require.Len(t, res.Invitations, 2)
	assert.Equal(t, "B", res.Invitations[0].EntrantID)
	assert.Equal(t, "D", res.Invitations[1].EntrantID)
	for _, inv := range res.Invitations {
		assert.Equal(t, model.InvitationPending, inv.Status)
		assert.Equal(t, inv.IssuedAt.Add(24*time.Hour), inv.ReplyBy)
	}
	ns := f.notes.take()
	assert.ElementsMatch(t, []string{"B", "D"}, kinds(ns, notify.KindLotteryWon))
	assert.ElementsMatch(t, []string{"B", "D"}, kinds(ns, notify.KindInvitationIssued))
	assert.ElementsMatch(t, []string{"A", "C", "E"}, kinds(ns, notify.KindLotteryLost))
	f.checkInvariants(t, ev)

	invB := f.pendingFor(t, ev.ID, "B")
	resp, err := f.eng.RespondToInvitation(ctx, invB.ID, "B", false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeclined, resp.Outcome)
	assert.Equal(t, model.InvitationDeclined, resp.Invitation.Status)
	require.NotNil(t, resp.Replacement)
	require.Len(t, resp.Replacement.Invitations, 1)
	assert.Equal(t, "C", resp.Replacement.Invitations[0].EntrantID)
	assert.Equal(t, OriginBackfill, resp.Replacement.Origin)
	entryB, err := f.store.Waitlist().Get(ctx, ev.ID, "B")
	require.NoError(t, err)
	assert.Equal(t, model.WaitlistCancelled, entryB.Status)
	ns = f.notes.take()
	assert.Equal(t, []string{"C"}, kinds(ns, notify.KindLotteryWon))
	assert.Empty(t, kinds(ns, notify.KindLotteryLost), "backfill draws do not notify losers")
	f.checkInvariants(t, ev)

	invD := f.pendingFor(t, ev.ID, "D")
	resp, err = f.eng.RespondToInvitation(ctx, invD.ID, "D", true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, resp.Outcome)
	require.NotNil(t, resp.Registration)
	assert.Equal(t, model.RegistrationActive, resp.Registration.Status)
	assert.Equal(t, invD.ID, resp.Registration.InvitationID)

	invC := f.pendingFor(t, ev.ID, "C")
	resp, err = f.eng.RespondToInvitation(ctx, invC.ID, "C", true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, resp.Outcome)

	active, err := f.eng.ListRegistrations(ctx, ev.ID, model.RegistrationActive)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.ElementsMatch(t, []string{"D", "C"}, []string{active[0].EntrantID, active[1].EntrantID})
	f.checkInvariants(t, ev)

	// Full: further draws are no-ops.
	res, err = f.eng.DrawLottery(ctx, ev.ID, 3)
	require.NoError(t, err)
	assert.Empty(t, res.Invitations)
	assert.ElementsMatch(t, []string{"A", "E"}, f.waiting(t, ev.ID))

	// Cancelling D reopens one slot, filled from A and E.
	f.notes.take()
	c, err := f.eng.CancelRegistration(ctx, ev.ID, "D", model.ByOrganizer)
	require.NoError(t, err)
	assert.Equal(t, model.RegistrationCancelledByOrganizer, c.Registration.Status)
	require.NotNil(t, c.Registration.CancelledAt)
	require.NotNil(t, c.Replacement)
	require.Len(t, c.Replacement.Invitations, 1)
	assert.Equal(t, "A", c.Replacement.Invitations[0].EntrantID)
	assert.Equal(t, []string{"E"}, f.waiting(t, ev.ID))
	ns = f.notes.take()
	require.NotEmpty(t, ns)
	assert.Equal(t, notify.KindRegistrationCancelled, ns[0].Kind)
	assert.Equal(t, model.ByOrganizer, ns[0].By)
	f.checkInvariants(t, ev)
}

func TestDrawSaturation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.event(t, 10)
	f.join(t, ev.ID, "a", "b", "c")
	f.closeRegistration()

	res, err := f.eng.DrawLottery(ctx, ev.ID, 5)
	require.NoError(t, err)
	assert.Len(t, res.Invitations, 3)
	assert.Empty(t, f.waiting(t, ev.ID))
	assert.Empty(t, kinds(f.notes.take(), notify.KindLotteryLost))
	f.checkInvariants(t, ev)
}

func TestDrawUnlimitedCapacity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.event(t, 0)
	f.join(t, ev.ID, "a", "b", "c", "d")
	f.closeRegistration()

	res, err := f.eng.DrawLottery(ctx, ev.ID, 100)
	require.NoError(t, err)
	assert.Len(t, res.Invitations, 4)
}

func TestDrawErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	open := f.event(t, 2)
	draft := f.event(t, 2, func(in *NewEvent) { in.Status = model.EventDraft })
	closed := f.event(t, 2, func(in *NewEvent) { in.Status = model.EventClosed })

	tests := []struct {
		name    string
		eventID string
		n       int
		want    error
	}{
		{name: "negative count", eventID: open.ID, n: -1, want: ErrValidation},
		{name: "unknown event", eventID: "missing", n: 1, want: ErrNotFound},
		{name: "registration still open", eventID: open.ID, n: 1, want: ErrState},
		{name: "draft event", eventID: draft.ID, n: 1, want: ErrState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.eng.DrawLottery(ctx, tt.eventID, tt.n)
			require.ErrorIs(t, err, tt.want)
		})
	}

	// A CLOSED event is drawable even inside its window.
	res, err := f.eng.DrawLottery(ctx, closed.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, res.Invitations)
}

func TestRespondTwiceProducesOneRegistration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.event(t, 3)
	f.join(t, ev.ID, "a")
	f.closeRegistration()
	_, err := f.eng.DrawLottery(ctx, ev.ID, 1)
	require.NoError(t, err)
	inv := f.pendingFor(t, ev.ID, "a")

	_, err = f.eng.RespondToInvitation(ctx, inv.ID, "a", true)
	require.NoError(t, err)
	_, err = f.eng.RespondToInvitation(ctx, inv.ID, "a", true)
	require.ErrorIs(t, err, ErrState)

	regs, err := f.eng.ListRegistrations(ctx, ev.ID, "")
	require.NoError(t, err)
	assert.Len(t, regs, 1)
}

func TestRespondValidatesOwnership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.event(t, 3)
	f.join(t, ev.ID, "a")
	f.closeRegistration()
	_, err := f.eng.DrawLottery(ctx, ev.ID, 1)
	require.NoError(t, err)
	inv := f.pendingFor(t, ev.ID, "a")

	_, err = f.eng.RespondToInvitation(ctx, inv.ID, "mallory", true)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.eng.RespondToInvitation(ctx, "missing", "a", true)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.eng.RespondToInvitation(ctx, "", "a", true)
	require.ErrorIs(t, err, ErrValidation)
}

func TestRespondAfterDeadlineExpiresAndBackfills(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.event(t, 1)
	f.join(t, ev.ID, "a", "b")
	f.closeRegistration()
	res, err := f.eng.DrawLottery(ctx, ev.ID, 1)
	require.NoError(t, err)
	require.Len(t, res.Invitations, 1)
	first := res.Invitations[0]
	other := "a"
	if first.EntrantID == "a" {
		other = "b"
	}

	f.clock.Advance(25 * time.Hour)
	_, err = f.eng.RespondToInvitation(ctx, first.ID, first.EntrantID, true)
	require.ErrorIs(t, err, ErrState)

	got, err := f.store.Invitations().Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationExpired, got.Status)
	entry, err := f.store.Waitlist().Get(ctx, ev.ID, first.EntrantID)
	require.NoError(t, err)
	assert.Equal(t, model.WaitlistCancelled, entry.Status)

	// The replacement went to the other entrant.
	f.pendingFor(t, ev.ID, other)
	f.checkInvariants(t, ev)
}

func TestAcceptWhenFullForcesExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.event(t, 1)
	f.join(t, ev.ID, "a", "b")
	f.closeRegistration()
	res, err := f.eng.DrawLottery(ctx, ev.ID, 1)
	require.NoError(t, err)
	inv := res.Invitations[0]

	// A registration admitted outside the lottery takes the only slot.
	require.NoError(t, f.store.Registrations().Create(ctx, &model.Registration{
		ID: "manual", EventID: ev.ID, EntrantID: "vip", InvitationID: "none",
		Status: model.RegistrationActive, CreatedAt: f.clock.Now(),
	}))
	f.notes.take()

	resp, err := f.eng.RespondToInvitation(ctx, inv.ID, inv.EntrantID, true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeForcedExpired, resp.Outcome)
	assert.Nil(t, resp.Registration)
	assert.Equal(t, model.InvitationExpired, resp.Invitation.Status)
	require.NotNil(t, resp.Replacement)
	assert.Empty(t, resp.Replacement.Invitations, "no room for a replacement")

	entry, err := f.store.Waitlist().Get(ctx, ev.ID, inv.EntrantID)
	require.NoError(t, err)
	assert.Equal(t, model.WaitlistCancelled, entry.Status)
	assert.Equal(t, []string{inv.EntrantID}, kinds(f.notes.take(), notify.KindLotteryLost))
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.event(t, 2)
	f.join(t, ev.ID, "a", "b", "c", "d", "e")
	f.closeRegistration()
	_, err := f.eng.DrawLottery(ctx, ev.ID, 2)
	require.NoError(t, err)

	res, err := f.eng.SweepExpired(ctx, ev.ID)
	require.NoError(t, err)
	assert.Empty(t, res.Expired, "nothing is overdue yet")

	f.clock.Advance(24*time.Hour + time.Second)
	res, err = f.eng.SweepExpired(ctx, ev.ID)
	require.NoError(t, err)
	assert.Len(t, res.Expired, 2)
	require.Len(t, res.Replacements, 2)
	issued := 0
	for _, d := range res.Replacements {
		issued += len(d.Invitations)
	}
	assert.Equal(t, 2, issued)
	assert.Len(t, f.waiting(t, ev.ID), 1)
	f.checkInvariants(t, ev)

	_, err = f.eng.SweepExpired(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDrawExpiresOverdueInvitationsFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.event(t, 1)
	f.join(t, ev.ID, "a", "b")
	f.closeRegistration()
	_, err := f.eng.DrawLottery(ctx, ev.ID, 1)
	require.NoError(t, err)

	f.clock.Advance(48 * time.Hour)
	res, err := f.eng.DrawLottery(ctx, ev.ID, 1)
	require.NoError(t, err)
	assert.Len(t, res.Expired, 1)
	assert.Len(t, res.Invitations, 1)
	f.checkInvariants(t, ev)
}

func TestListsSweepLazily(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.event(t, 1)
	f.join(t, ev.ID, "a", "b")
	f.closeRegistration()
	res, err := f.eng.DrawLottery(ctx, ev.ID, 1)
	require.NoError(t, err)
	winner := res.Invitations[0].EntrantID

	f.clock.Advance(30 * time.Hour)
	invs, err := f.eng.ListInvitations(ctx, winner)
	require.NoError(t, err)
	require.Len(t, invs, 1)
	assert.Equal(t, model.InvitationExpired, invs[0].Status)

	waiting, err := f.eng.ListWaitlist(ctx, ev.ID)
	require.NoError(t, err)
	assert.Empty(t, waiting, "the other entrant was drawn as a replacement")

	_, err = f.eng.ListWaitlist(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.eng.ListRegistrations(ctx, ev.ID, "BOGUS")
	require.ErrorIs(t, err, ErrValidation)
}

func TestGetEventSweepsLazily(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.event(t, 1)
	f.join(t, ev.ID, "a", "b")
	f.closeRegistration()
	res, err := f.eng.DrawLottery(ctx, ev.ID, 1)
	require.NoError(t, err)
	first := res.Invitations[0]

	f.clock.Advance(30 * time.Hour)
	got, err := f.eng.GetEvent(ctx, ev.ID)
	require.NoError(t, err)

	inv, err := f.store.Invitations().Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationExpired, inv.Status)
	assert.Empty(t, f.waiting(t, ev.ID), "the other entrant was drawn as a replacement")
	f.checkInvariants(t, got)

	_, err = f.eng.GetEvent(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBackfillNoOps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := f.clock.Now()
	deadline := now.Add(90 * time.Minute)
	withDeadline := f.event(t, 2, func(in *NewEvent) { in.BackfillClosesAt = &deadline })
	cancelled := f.event(t, 2, func(in *NewEvent) { in.Status = model.EventCancelled })
	empty := f.event(t, 2)
	f.join(t, withDeadline.ID, "a")
	f.clock.Advance(3 * time.Hour)

	for _, id := range []string{withDeadline.ID, cancelled.ID, empty.ID} {
		res, err := f.eng.Backfill.TriggerReplacement(ctx, id, 1)
		require.NoError(t, err)
		assert.Empty(t, res.Invitations)
	}
	_, err := f.eng.Backfill.TriggerReplacement(ctx, empty.ID, -1)
	require.ErrorIs(t, err, ErrValidation)
}

func TestJoin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	limit := 2
	ev := f.event(t, 5, func(in *NewEvent) { in.WaitingListLimit = &limit })
	later := f.event(t, 5, func(in *NewEvent) {
		in.RegistrationOpensAt = f.clock.Now().Add(time.Hour)
		in.RegistrationClosesAt = f.clock.Now().Add(2 * time.Hour)
	})

	entry, err := f.eng.Join(ctx, ev.ID, "a")
	require.NoError(t, err)
	assert.Equal(t, model.WaitlistWaiting, entry.Status)
	assert.Equal(t, f.clock.Now(), entry.JoinedAt)

	_, err = f.eng.Join(ctx, ev.ID, "a")
	require.ErrorIs(t, err, ErrConflict)

	_, err = f.eng.Join(ctx, ev.ID, "b")
	require.NoError(t, err)
	_, err = f.eng.Join(ctx, ev.ID, "c")
	require.ErrorIs(t, err, ErrCapacityExceeded)

	// Leaving frees a place on the list but not a second entry.
	_, err = f.eng.Leave(ctx, ev.ID, "b")
	require.NoError(t, err)
	_, err = f.eng.Join(ctx, ev.ID, "b")
	require.ErrorIs(t, err, ErrConflict)
	_, err = f.eng.Join(ctx, ev.ID, "c")
	require.NoError(t, err)

	_, err = f.eng.Join(ctx, later.ID, "a")
	require.ErrorIs(t, err, ErrState)
	_, err = f.eng.Join(ctx, "missing", "a")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.eng.Join(ctx, ev.ID, " ")
	require.ErrorIs(t, err, ErrValidation)
}

func TestLeave(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.event(t, 1)
	f.join(t, ev.ID, "a", "b")

	entry, err := f.eng.Leave(ctx, ev.ID, "a")
	require.NoError(t, err)
	assert.Equal(t, model.WaitlistCancelled, entry.Status)
	entry, err = f.eng.Leave(ctx, ev.ID, "a")
	require.NoError(t, err, "leaving twice is a no-op")
	assert.Equal(t, model.WaitlistCancelled, entry.Status)

	_, err = f.eng.Leave(ctx, ev.ID, "nobody")
	require.ErrorIs(t, err, ErrNotFound)

	f.closeRegistration()
	_, err = f.eng.DrawLottery(ctx, ev.ID, 1)
	require.NoError(t, err)
	_, err = f.eng.Leave(ctx, ev.ID, "b")
	require.ErrorIs(t, err, ErrState)
}

func TestCancelErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.event(t, 1)
	f.join(t, ev.ID, "a")
	f.closeRegistration()
	res, err := f.eng.DrawLottery(ctx, ev.ID, 1)
	require.NoError(t, err)

	_, err = f.eng.CancelRegistration(ctx, ev.ID, "a", "SOMEONE")
	require.ErrorIs(t, err, ErrValidation)
	_, err = f.eng.CancelRegistration(ctx, ev.ID, "a", model.ByEntrant)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.eng.RespondToInvitation(ctx, res.Invitations[0].ID, "a", true)
	require.NoError(t, err)
	c, err := f.eng.CancelRegistration(ctx, ev.ID, "a", model.ByEntrant)
	require.NoError(t, err)
	assert.Equal(t, model.RegistrationCancelledByEntrant, c.Registration.Status)
	_, err = f.eng.CancelRegistration(ctx, ev.ID, "a", model.ByEntrant)
	require.ErrorIs(t, err, ErrState)
}

func TestCreateEventValidation(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()
	valid := NewEvent{
		OwnerID: "o", Title: "t", Capacity: 1,
		RegistrationOpensAt: now, RegistrationClosesAt: now.Add(time.Hour),
	}
	tests := []struct {
		name string
		mod  func(*NewEvent)
	}{
		{name: "no owner", mod: func(in *NewEvent) { in.OwnerID = "" }},
		{name: "no title", mod: func(in *NewEvent) { in.Title = "  " }},
		{name: "negative capacity", mod: func(in *NewEvent) { in.Capacity = -1 }},
		{name: "window reversed", mod: func(in *NewEvent) { in.RegistrationClosesAt = now.Add(-time.Hour) }},
		{name: "unknown status", mod: func(in *NewEvent) { in.Status = "OPEN" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mod(&in)
			_, err := f.eng.CreateEvent(context.Background(), in)
			require.ErrorIs(t, err, ErrValidation)
		})
	}

	ev, err := f.eng.CreateEvent(context.Background(), valid)
	require.NoError(t, err)
	assert.Equal(t, model.EventPublished, ev.Status)
	got, err := f.eng.GetEvent(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, ev.Title, got.Title)
}

func TestConcurrentDrawsRespectCapacity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.event(t, 5)
	for i := 0; i < 40; i++ {
		f.join(t, ev.ID, fmt.Sprintf("entrant-%02d", i))
	}
	f.closeRegistration()

	var (
		wg     sync.WaitGroup
		issued atomic.Int64
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.eng.DrawLottery(ctx, ev.ID, 3)
			if err != nil {
				assert.ErrorIs(t, err, ErrConflict)
				return
			}
			issued.Add(int64(len(res.Invitations)))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), issued.Load())
	pending, err := f.store.Invitations().CountPending(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, pending)
	assert.Len(t, f.waiting(t, ev.ID), 35)
	f.checkInvariants(t, ev)
}

func TestConcurrentAcceptsRespectCapacity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.event(t, 4)
	for i := 0; i < 10; i++ {
		f.join(t, ev.ID, fmt.Sprintf("entrant-%02d", i))
	}
	f.closeRegistration()
	res, err := f.eng.DrawLottery(ctx, ev.ID, 4)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, inv := range res.Invitations {
		wg.Add(1)
		go func(inv model.Invitation) {
			defer wg.Done()
			_, err := f.eng.RespondToInvitation(ctx, inv.ID, inv.EntrantID, inv.EntrantID != "entrant-00")
			if err != nil {
				assert.ErrorIs(t, err, ErrConflict)
			}
		}(inv)
	}
	wg.Wait()
	f.checkInvariants(t, ev)
}

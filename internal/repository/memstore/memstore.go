// Package memstore is an in-memory implementation of repository.Store.
//
// Every document carries a revision.  A transaction works on a private
// snapshot taken at begin and remembers which documents it wrote; commit
// fails with repository.ErrTxConflict if any of those documents changed
// in the meantime, so two transactions that both Touch the same event can
// never both commit.  Snapshots copy the whole state, which is fine for
// tests and single-node development but not for large data sets.
package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/enrollment-lottery/internal/model"
	"github.com/iliyamo/enrollment-lottery/internal/repository"
)

type table[T any] struct {
	rows  map[string]T
	revs  map[string]uint64
	dirty map[string]struct{} // nil on the committed state
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: map[string]T{}, revs: map[string]uint64{}}
}

func (t *table[T]) snapshot() *table[T] {
	c := &table[T]{
		rows:  make(map[string]T, len(t.rows)),
		revs:  make(map[string]uint64, len(t.revs)),
		dirty: map[string]struct{}{},
	}
	for k, v := range t.rows {
		c.rows[k] = v
	}
	for k, v := range t.revs {
		c.revs[k] = v
	}
	return c
}

func (t *table[T]) put(id string, v T) {
	t.rows[id] = v
	if t.dirty != nil {
		t.dirty[id] = struct{}{}
		return
	}
	t.revs[id]++
}

func (t *table[T]) validate(base *table[T]) error {
	for id := range t.dirty {
		if base.revs[id] != t.revs[id] {
			return repository.ErrTxConflict
		}
	}
	return nil
}

func (t *table[T]) apply(base *table[T]) {
	for id := range t.dirty {
		base.rows[id] = t.rows[id]
		base.revs[id]++
	}
}

type state struct {
	events        *table[model.Event]
	waitlist      *table[model.WaitlistEntry]
	invitations   *table[model.Invitation]
	registrations *table[model.Registration]
}

func newState() *state {
	return &state{
		events:        newTable[model.Event](),
		waitlist:      newTable[model.WaitlistEntry](),
		invitations:   newTable[model.Invitation](),
		registrations: newTable[model.Registration](),
	}
}

func (s *state) snapshot() *state {
	return &state{
		events:        s.events.snapshot(),
		waitlist:      s.waitlist.snapshot(),
		invitations:   s.invitations.snapshot(),
		registrations: s.registrations.snapshot(),
	}
}

func (s *state) validate(base *state) error {
	return errors.Join(
		s.events.validate(base.events),
		s.waitlist.validate(base.waitlist),
		s.invitations.validate(base.invitations),
		s.registrations.validate(base.registrations),
	)
}

func (s *state) apply(base *state) {
	s.events.apply(base.events)
	s.waitlist.apply(base.waitlist)
	s.invitations.apply(base.invitations)
	s.registrations.apply(base.registrations)
}

// Store is the in-memory repository.Store.
type Store struct {
	mu     sync.RWMutex
	st     *state
	policy repository.RetryPolicy
	clock  func() time.Time
}

// New returns an empty store using the wall clock.
func New(policy repository.RetryPolicy) *Store {
	return &Store{st: newState(), policy: policy, clock: time.Now}
}

// WithClock replaces the clock; tests use it to move time forward.
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.clock = clock
	return s
}

func (s *Store) direct() *txn { return &txn{s: s} }

func (s *Store) Events() repository.EventRepository           { return eventRepo{s.direct()} }
func (s *Store) Waitlist() repository.WaitlistRepository      { return waitlistRepo{s.direct()} }
func (s *Store) Invitations() repository.InvitationRepository { return invitationRepo{s.direct()} }

func (s *Store) Registrations() repository.RegistrationRepository {
	return registrationRepo{s.direct()}
}

func (s *Store) Now() time.Time { return s.clock().UTC() }

// Tx runs fn on a snapshot and commits its writes if none of the written
// documents changed since the snapshot was taken.
func (s *Store) Tx(ctx context.Context, fn func(ctx context.Context, r repository.Repository) error) error {
	retryable := func(err error) bool { return errors.Is(err, repository.ErrTxConflict) }
	return repository.RunTx(ctx, s.policy, retryable, func() error {
		s.mu.RLock()
		snap := s.st.snapshot()
		s.mu.RUnlock()

		t := &txn{s: s, snap: snap, ts: s.Now()}
		if err := fn(ctx, t); err != nil {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if err := snap.validate(s.st); err != nil {
			return err
		}
		snap.apply(s.st)
		return nil
	})
}

// txn is either bound to a snapshot (inside Tx) or operates directly on
// the committed state under the store lock.
type txn struct {
	s    *Store
	snap *state
	ts   time.Time
}

func (t *txn) Events() repository.EventRepository               { return eventRepo{t} }
func (t *txn) Waitlist() repository.WaitlistRepository          { return waitlistRepo{t} }
func (t *txn) Invitations() repository.InvitationRepository     { return invitationRepo{t} }
func (t *txn) Registrations() repository.RegistrationRepository { return registrationRepo{t} }

func (t *txn) Now() time.Time {
	if t.snap != nil {
		return t.ts
	}
	return t.s.Now()
}

func (t *txn) read(fn func(st *state)) {
	if t.snap != nil {
		fn(t.snap)
		return
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	fn(t.s.st)
}

func (t *txn) write(fn func(st *state) error) error {
	if t.snap != nil {
		return fn(t.snap)
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return fn(t.s.st)
}

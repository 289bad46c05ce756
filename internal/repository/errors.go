// Package repository defines the persistence contract consumed by the
// allocation engine and its MySQL implementation.  The sentinel values
// below are shared by every implementation (including memstore) so that
// higher layers can distinguish failure scenarios with errors.Is.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a uniqueness rule,
// e.g. a second waitlist entry for the same (event, entrant) pair.
var ErrDuplicate = errors.New("duplicate")

// ErrTxConflict is returned when a transaction lost an optimistic
// concurrency race: the event version it read changed before commit, or a
// conditional update matched no row.  Store.Tx retries it internally and
// surfaces it only after the retry budget is spent.
var ErrTxConflict = errors.New("transaction conflict")

// ErrCorruptRow is returned when a stored status is not part of its closed
// set.
var ErrCorruptRow = errors.New("corrupt row")

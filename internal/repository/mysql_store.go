package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// MySQL error numbers the store reacts to.
const (
	mysqlErrDuplicate       = 1062
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// MySQLStore implements Store on top of MySQL.  Outside a transaction the
// collections query the pool directly; inside Tx they share one *sqlx.Tx
// and Now is frozen to the transaction start.
type MySQLStore struct {
	db     *sqlx.DB
	q      sqlx.ExtContext
	ts     time.Time
	policy RetryPolicy
	clock  func() time.Time
}

// NewMySQLStore wraps an open database handle.
func NewMySQLStore(db *sqlx.DB, policy RetryPolicy) *MySQLStore {
	return &MySQLStore{db: db, q: db, policy: policy, clock: time.Now}
}

// WithClock replaces the wall clock; used by tests.
func (s *MySQLStore) WithClock(clock func() time.Time) *MySQLStore {
	s.clock = clock
	return s
}

func (s *MySQLStore) Events() EventRepository               { return &eventRepo{q: s.q} }
func (s *MySQLStore) Waitlist() WaitlistRepository          { return &waitlistRepo{q: s.q} }
func (s *MySQLStore) Invitations() InvitationRepository     { return &invitationRepo{q: s.q} }
func (s *MySQLStore) Registrations() RegistrationRepository { return &registrationRepo{q: s.q} }

// Now returns the current UTC time truncated to the DATETIME(6) precision.
// It is frozen during transactions.
func (s *MySQLStore) Now() time.Time {
	if !s.ts.IsZero() {
		return s.ts
	}
	return s.clock().UTC().Truncate(time.Microsecond)
}

// Tx starts a transaction and executes fn with a Repository bound to it.
// It rolls back when fn returns an error.  Optimistic conflicts, deadlocks
// and lock wait timeouts re-run fn according to the retry policy; any
// other error is returned unchanged so callers can use errors.Is on their
// own sentinels.
func (s *MySQLStore) Tx(ctx context.Context, fn func(ctx context.Context, r Repository) error) error {
	return RunTx(ctx, s.policy, IsRetryable, func() error {
		tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		scoped := &MySQLStore{db: s.db, q: tx, ts: s.Now(), policy: s.policy, clock: s.clock}
		if err := fn(ctx, scoped); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", translate(err))
		}
		return nil
	})
}

// IsRetryable reports whether err means the transaction lost a race and
// may succeed when re-run.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrTxConflict) {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlErrDeadlock || me.Number == mysqlErrLockWaitTimeout
	}
	return false
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlErrDuplicate:
			return fmt.Errorf("%w: %s", ErrDuplicate, me.Message)
		case mysqlErrDeadlock, mysqlErrLockWaitTimeout:
			return fmt.Errorf("%w: %s", ErrTxConflict, me.Message)
		}
	}
	return err
}

// expectOne turns a conditional update that matched nothing into
// ErrTxConflict.
func expectOne(res sql.Result, err error) error {
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTxConflict
	}
	return nil
}

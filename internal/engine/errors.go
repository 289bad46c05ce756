package engine

import (
	"errors"
	"fmt"

	"github.com/iliyamo/enrollment-lottery/internal/repository"
)

// Error kinds returned by the engine.  Callers classify with errors.Is;
// the wrapped message carries the detail.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrConflict         = errors.New("conflict")
	ErrState            = errors.New("invalid state")
	ErrForbidden        = errors.New("forbidden")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func statef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrState, fmt.Sprintf(format, args...))
}

func conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func capacityf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCapacityExceeded, fmt.Sprintf(format, args...))
}

// mapStoreErr translates what escapes Store.Tx into engine kinds.  Engine
// errors pass through untouched.
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound), errors.Is(err, ErrCapacityExceeded),
		errors.Is(err, ErrConflict), errors.Is(err, ErrState), errors.Is(err, ErrForbidden):
		return err
	case errors.Is(err, repository.ErrTxConflict):
		return fmt.Errorf("%w: concurrent update, retry later: %v", ErrConflict, err)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

func isNotFound(err error) bool { return errors.Is(err, repository.ErrNotFound) }

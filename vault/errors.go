package vault

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no document is stored under a name.
	ErrNotFound = errors.New("document not found")
	// ErrRollback is returned when storage holds an older version of a
	// document than this process has already seen.
	ErrRollback = errors.New("rollback detected: stored version is older than the version already seen")
	// ErrConflict is returned when a document was changed by someone else
	// between reading its version and writing the new one.
	ErrConflict = errors.New("document was modified concurrently")
	// ErrInvalidName is returned for names that cannot be used as storage ids.
	ErrInvalidName = errors.New("invalid name")
)

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidName, fmt.Sprintf(format, args...))
}

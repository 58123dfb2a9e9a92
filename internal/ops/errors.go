package ops

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/seantiz/runjs/internal/ledger"
)

var (
	// ErrUnknownOp is returned when a script names an op that is not in the catalog.
	ErrUnknownOp = errors.New("unknown op")

	// ErrArgument is wrapped by argument decoding failures.
	ErrArgument = errors.New("invalid op argument")

	// ErrFetch is the single failure scripts see for any network problem.
	ErrFetch = errors.New("fetch failed")
)

// Error classes surfaced to scripts as the name of the thrown Error.
const (
	ClassError            = "Error"
	ClassTypeError        = "TypeError"
	ClassNotFound         = "NotFound"
	ClassPermissionDenied = "PermissionDenied"
	ClassAlreadyExists    = "AlreadyExists"
	ClassLockError        = "LockError"
)

// ErrorClass maps an op failure to the class name a script can branch on.
func ErrorClass(err error) string {
	switch {
	case errors.Is(err, ledger.ErrPoisoned):
		return ClassLockError
	case errors.Is(err, ErrArgument), errors.Is(err, ErrUnknownOp):
		return ClassTypeError
	case errors.Is(err, fs.ErrNotExist):
		return ClassNotFound
	case errors.Is(err, fs.ErrPermission):
		return ClassPermissionDenied
	case errors.Is(err, fs.ErrExist):
		return ClassAlreadyExists
	default:
		return ClassError
	}
}

func fetchError(url string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrFetch, url, err)
}

package archive

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a directory or file does not exist on the
// archive.
//
// Implementations should return an error that satisfies
// errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("archive path not found")

// TransientError marks a failure worth retrying: dropped connections,
// timeouts, overloaded-server replies. Everything else is permanent.
type TransientError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient archive failure: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

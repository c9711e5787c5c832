package accession

import (
	"errors"
	"fmt"
)

// ErrMalformed is the sentinel matched by all parse failures.
//
// Use errors.Is(err, ErrMalformed) to detect them without caring about the
// concrete reason.
var ErrMalformed = errors.New("malformed accession")

// MalformedAccessionError reports a token that does not have the expected
// shape. It wraps ErrMalformed.
type MalformedAccessionError struct {
	Token  string
	Reason string
}

func (e *MalformedAccessionError) Error() string {
	return fmt.Sprintf("malformed accession %q: %s", e.Token, e.Reason)
}

func (e *MalformedAccessionError) Unwrap() error { return ErrMalformed }

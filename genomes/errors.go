package genomes

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoRecord is the sentinel for a parent directory that contains no
	// entry for the requested record.
	ErrNoRecord = errors.New("record directory not found")

	// ErrAmbiguousRecord is the sentinel for a parent directory that
	// contains more than one entry for the requested record. The
	// one-directory-per-record assumption is violated; resolution never
	// guesses.
	ErrAmbiguousRecord = errors.New("ambiguous record directory")
)

// NoRecordError reports that no directory entry matched the accession's
// record prefix. It wraps ErrNoRecord.
type NoRecordError struct {
	Accession string
	Dir       string
}

func (e *NoRecordError) Error() string {
	return fmt.Sprintf("no record directory for %s under %s", e.Accession, e.Dir)
}

func (e *NoRecordError) Unwrap() error { return ErrNoRecord }

// AmbiguousRecordError reports multiple directory entries matching the same
// record. It wraps ErrAmbiguousRecord.
type AmbiguousRecordError struct {
	Accession string
	Matches   []string
}

func (e *AmbiguousRecordError) Error() string {
	return fmt.Sprintf("ambiguous record for %s: %d matching directories (%s)",
		e.Accession, len(e.Matches), strings.Join(e.Matches, ", "))
}

func (e *AmbiguousRecordError) Unwrap() error { return ErrAmbiguousRecord }

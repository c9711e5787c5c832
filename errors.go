package transfers

import (
	"errors"
	"fmt"

	"github.com/kbase/cdm-transfers/archive"
	"github.com/kbase/cdm-transfers/genomes"
	"github.com/kbase/cdm-transfers/objectstore"
)

var (
	// ErrNotFound unifies the not-found conditions of the lower layers:
	// a missing archive directory, an accession without a record, or a
	// missing object. The original error remains available via errors.Is
	// against the layer's own sentinel.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable means the object store failed its reachability
	// check. Batches refuse to start in this state.
	ErrStoreUnavailable = errors.New("object store unavailable")
)

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if errors.Is(err, archive.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, genomes.ErrNoRecord) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, objectstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return err
}

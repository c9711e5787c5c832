package staging

import (
	"errors"
	"fmt"

	"github.com/kbase/cdm-transfers/genomes"
)

var (
	// ErrChecksumMismatch marks staged bytes that do not match the
	// archive's manifest (or fail the gzip probe). Treated as transient:
	// a truncated transfer looks exactly like this.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrLowDiskSpace is returned when the scratch volume is below the
	// configured floor.
	ErrLowDiskSpace = errors.New("insufficient scratch space")
)

// FileError is a single file that could not be staged after all attempts.
type FileError struct {
	File     genomes.SelectedFile
	Attempts int
	Err      error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("stage %s (%d attempts): %v", e.File.Name, e.Attempts, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

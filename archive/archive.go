// Package archive abstracts read-only access to a remote file archive.
//
// The genome pipeline needs two operations from the archive: listing a
// directory and fetching a file. Backends live in subpackages (ftp);
// MemoryArchive is an in-memory implementation for tests.
package archive

import (
	"context"
	"io"
)

// Entry is one directory listing entry.
type Entry struct {
	Name string
	Dir  bool
	Size int64
}

// Archive is read-only access to a remote file archive.
type Archive interface {
	// List returns the entries of a directory, sorted by name.
	// A missing directory fails with an error satisfying
	// errors.Is(err, ErrNotFound).
	List(ctx context.Context, dir string) ([]Entry, error)

	// Fetch opens a file for reading. The caller must close the reader.
	// A missing file fails with an error satisfying
	// errors.Is(err, ErrNotFound).
	Fetch(ctx context.Context, path string) (io.ReadCloser, error)
}

// Names extracts the entry names from a listing, preserving order.
func Names(entries []Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// DirNames extracts the names of directory entries, preserving order.
func DirNames(entries []Entry) []string {
	var names []string
	for _, e := range entries {
		if e.Dir {
			names = append(names, e.Name)
		}
	}
	return names
}

// FileNames extracts the names of file entries, preserving order.
func FileNames(entries []Entry) []string {
	var names []string
	for _, e := range entries {
		if !e.Dir {
			names = append(names, e.Name)
		}
	}
	return names
}

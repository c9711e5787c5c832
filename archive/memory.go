package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// MemoryArchive is an in-memory Archive implementation for testing. The
// directory tree is implied by the file paths. Thread-safe.
type MemoryArchive struct {
	mu      sync.RWMutex
	files   map[string][]byte
	fetches map[string]int
	faults  map[string]*fault
}

type fault struct {
	remaining int
	err       error
}

// NewMemoryArchive creates an empty in-memory archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{
		files:   make(map[string][]byte),
		fetches: make(map[string]int),
		faults:  make(map[string]*fault),
	}
}

// AddFile stores a file under the given slash-separated path. Parent
// directories come into existence implicitly.
func (m *MemoryArchive) AddFile(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Copy to prevent external mutation
	copied := make([]byte, len(data))
	copy(copied, data)
	m.files[clean(path)] = copied
}

// FailFetch makes the next n fetches of path fail with err. A nil err means
// a TransientError, which staging retries.
func (m *MemoryArchive) FailFetch(path string, n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		err = &TransientError{Op: "fetch", Path: path, Err: fmt.Errorf("injected fault")}
	}
	m.faults[clean(path)] = &fault{remaining: n, err: err}
}

// Fetches returns how many times path has been fetched, counting failed
// attempts.
func (m *MemoryArchive) Fetches(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fetches[clean(path)]
}

// List returns the entries directly under dir.
func (m *MemoryArchive) List(_ context.Context, dir string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dir = clean(dir)
	prefix := dir + "/"
	if dir == "" {
		prefix = ""
	}

	seen := make(map[string]Entry)
	for path, data := range m.files {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rest := strings.TrimPrefix(path, prefix)
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			name := rest[:i]
			seen[name] = Entry{Name: name, Dir: true}
		} else {
			seen[rest] = Entry{Name: rest, Size: int64(len(data))}
		}
	}

	if len(seen) == 0 {
		return nil, fmt.Errorf("list %s: %w", dir, ErrNotFound)
	}

	entries := make([]Entry, 0, len(seen))
	for _, e := range seen {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Fetch opens a file for reading.
func (m *MemoryArchive) Fetch(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = clean(path)
	m.fetches[path]++

	if f, ok := m.faults[path]; ok && f.remaining > 0 {
		f.remaining--
		return nil, f.err
	}

	data, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("fetch %s: %w", path, ErrNotFound)
	}

	// Return a copy to prevent external mutation
	copied := make([]byte, len(data))
	copy(copied, data)
	return io.NopCloser(bytes.NewReader(copied)), nil
}

func clean(path string) string {
	return strings.Trim(path, "/")
}

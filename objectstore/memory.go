package objectstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store implementation for testing. It tracks
// per-key upload counts so tests can assert idempotency. Thread-safe.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string
	puts    map[string]int
	putErr  map[string]error
	pingErr error
}

// NewMemoryStore creates a new in-memory object store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
		puts:    make(map[string]int),
		putErr:  make(map[string]error),
	}
}

// FailPut makes every upload to key fail with err until cleared with a nil
// err.
func (m *MemoryStore) FailPut(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.putErr, key)
		return
	}
	m.putErr[key] = err
}

// SetPingErr makes Ping fail with err.
func (m *MemoryStore) SetPingErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingErr = err
}

// Puts returns how many uploads have been attempted for key, counting
// failed ones.
func (m *MemoryStore) Puts(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts[key]
}

// ContentType returns the content type the object was uploaded with.
func (m *MemoryStore) ContentType(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.types[key]
}

// Data returns a copy of the object stored under key.
func (m *MemoryStore) Data(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, false
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	return copied, true
}

// Exists reports whether the key holds an object.
func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.objects[key]
	return ok, nil
}

// Stat returns object metadata. The ETag is the plain MD5 of the content,
// matching what stores report for single-part uploads.
func (m *MemoryStore) Stat(_ context.Context, key string) (ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[key]
	if !ok {
		return ObjectInfo{}, &Error{Op: "stat", Bucket: "memory", Key: key, Err: ErrNotFound}
	}

	sum := md5.Sum(data)
	return ObjectInfo{
		Key:  key,
		Size: int64(len(data)),
		ETag: hex.EncodeToString(sum[:]),
	}, nil
}

// Put uploads an object.
func (m *MemoryStore) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.puts[key]++
	if err := m.putErr[key]; err != nil {
		return &Error{Op: "put", Bucket: "memory", Key: key, Err: err}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return &Error{Op: "put", Bucket: "memory", Key: key, Err: err}
	}
	if size >= 0 && int64(len(data)) != size {
		return &Error{Op: "put", Bucket: "memory", Key: key,
			Err: fmt.Errorf("size mismatch: declared %d, read %d", size, len(data))}
	}

	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

// PutFile uploads a local file.
func (m *MemoryStore) PutFile(ctx context.Context, key, path, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		return &Error{Op: "put", Bucket: "memory", Key: key, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &Error{Op: "put", Bucket: "memory", Key: key, Err: err}
	}

	return m.Put(ctx, key, f, info.Size(), contentType)
}

// Get opens an object for reading.
func (m *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, &Error{Op: "get", Bucket: "memory", Key: key, Err: ErrNotFound}
	}

	// Return a copy to prevent external mutation
	copied := make([]byte, len(data))
	copy(copied, data)
	return io.NopCloser(bytes.NewReader(copied)), nil
}

// List returns the objects under prefix, sorted by key.
func (m *MemoryStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var infos []ObjectInfo
	for key, data := range m.objects {
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		sum := md5.Sum(data)
		infos = append(infos, ObjectInfo{
			Key:  key,
			Size: int64(len(data)),
			ETag: hex.EncodeToString(sum[:]),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// Ping reports the injected reachability state.
func (m *MemoryStore) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingErr
}

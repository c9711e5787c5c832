// Package objectstore abstracts the key-value byte store records are
// published into.
//
// Backends live in subpackages (minio for MinIO-compatible endpoints, s3 for
// AWS); MemoryStore is an in-memory implementation for testing. Keys are
// full object keys; buckets and any parent prefixes are expected to exist.
package objectstore

import (
	"context"
	"io"
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key  string
	Size int64
	// ETag is the store's content tag, without quotes. For single-part
	// uploads this is the hex MD5 of the content; multipart tags contain
	// a dash and are not comparable to a digest.
	ETag string
}

// Store is the object-store capability used by the publisher.
type Store interface {
	// Exists reports whether the key holds an object.
	Exists(ctx context.Context, key string) (bool, error)

	// Stat returns object metadata. A missing key fails with an error
	// satisfying errors.Is(err, ErrNotFound).
	Stat(ctx context.Context, key string) (ObjectInfo, error)

	// Put uploads size bytes from r under key. size must be exact.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// PutFile uploads a local file under key.
	PutFile(ctx context.Context, key, path, contentType string) error

	// Get opens an object for reading. The caller must close the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// List returns the objects under prefix, sorted by key.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Ping verifies the store is reachable and the bucket exists. The
	// pipeline refuses to start a batch against an unreachable store.
	Ping(ctx context.Context) error
}

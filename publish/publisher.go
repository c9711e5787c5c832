// Package publish commits staged files to the object store.
//
// Every publish starts with an exists-check, so reruns over the same input
// converge instead of re-uploading: keys already present are reported as
// AlreadyPresent and left alone. The one exception is a verified digest
// mismatch against a plain remote ETag, which replaces the object.
package publish

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/kbase/cdm-transfers/objectstore"
	"github.com/kbase/cdm-transfers/staging"
)

// Status is the outcome of publishing one object.
type Status int

const (
	// StatusFailed means the object is not in the store (or not known to
	// be) and the publish error says why.
	StatusFailed Status = iota

	// StatusCommitted means the object was uploaded by this call.
	StatusCommitted

	// StatusAlreadyPresent means the key already held an object and no
	// upload happened.
	StatusAlreadyPresent

	// StatusReplaced means the key held an object whose ETag contradicted
	// the verified local digest, and it was re-uploaded. Callers usually
	// warn on this.
	StatusReplaced
)

func (s Status) String() string {
	switch s {
	case StatusCommitted:
		return "committed"
	case StatusAlreadyPresent:
		return "already-present"
	case StatusReplaced:
		return "replaced"
	default:
		return "failed"
	}
}

type options struct {
	reverify bool
}

// Option configures a Publisher.
type Option func(*options)

// WithReverify toggles digest re-verification of existing objects. Enabled
// by default; only applies when the staged file was checksum-verified and
// the remote ETag is a plain single-part tag.
func WithReverify(enabled bool) Option {
	return func(o *options) {
		o.reverify = enabled
	}
}

// Publisher uploads staged files under their object keys.
type Publisher struct {
	store objectstore.Store
	opts  options
}

// NewPublisher creates a Publisher writing to the given store.
func NewPublisher(store objectstore.Store, optFns ...Option) *Publisher {
	opts := options{reverify: true}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Publisher{store: store, opts: opts}
}

// Publish uploads one staged file unless its key already holds an object.
// On StatusFailed the error carries the store context; for the other
// statuses the error is nil.
func (p *Publisher) Publish(ctx context.Context, f staging.StagedFile) (Status, error) {
	info, err := p.store.Stat(ctx, f.Key)

	switch {
	case err == nil:
		if p.shouldReplace(f, info) {
			if err := p.upload(ctx, f); err != nil {
				return StatusFailed, err
			}

			return StatusReplaced, nil
		}

		return StatusAlreadyPresent, nil

	case objectstore.IsNotFound(err):
		if err := p.upload(ctx, f); err != nil {
			return StatusFailed, err
		}

		return StatusCommitted, nil

	default:
		return StatusFailed, err
	}
}

// PublishBytes uploads an in-memory document under key with the same
// exists-check idempotency as Publish. Used for generated documents such as
// record descriptors.
func (p *Publisher) PublishBytes(ctx context.Context, key string, data []byte, contentType string) (Status, error) {
	ok, err := p.store.Exists(ctx, key)
	if err != nil {
		return StatusFailed, err
	}

	if ok {
		return StatusAlreadyPresent, nil
	}

	if err := p.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return StatusFailed, err
	}

	return StatusCommitted, nil
}

// shouldReplace reports whether an existing object contradicts the staged
// file.
func (p *Publisher) shouldReplace(f staging.StagedFile, info objectstore.ObjectInfo) bool {
	if !p.opts.reverify || !f.Verified {
		return false
	}

	return ETagMismatch(info.ETag, f.MD5)
}

// ETagMismatch reports whether a plain single-part ETag contradicts the
// given hex digest. Multipart tags contain a dash and are not digest
// comparable, so they never mismatch.
func ETagMismatch(etag, digest string) bool {
	if etag == "" || digest == "" || strings.Contains(etag, "-") {
		return false
	}

	return !strings.EqualFold(etag, digest)
}

func (p *Publisher) upload(ctx context.Context, f staging.StagedFile) error {
	return p.store.PutFile(ctx, f.Key, f.LocalPath, contentTypeFor(f.LocalPath, f.Name))
}

// contentTypeFor sniffs the staged file's content type, falling back to a
// suffix table when detection is inconclusive.
func contentTypeFor(path, name string) string {
	if mt, err := mimetype.DetectFile(path); err == nil && mt.String() != "application/octet-stream" {
		return mt.String()
	}

	return fallbackType(name)
}

func fallbackType(name string) string {
	switch filepath.Ext(name) {
	case ".gz":
		return "application/gzip"
	case ".tsv":
		return "text/tab-separated-values"
	case ".txt":
		return "text/plain"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// Package minio provides an objectstore.Store for MinIO and S3-compatible
// endpoints. This is the production backend for the data lake.
package minio

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kbase/cdm-transfers/objectstore"
)

// Local development defaults, matching the compose setup the lake runs
// under.
const (
	DefaultEndpoint  = "localhost:9000"
	DefaultAccessKey = "minioadmin"
	DefaultSecretKey = "minioadmin"
)

type options struct {
	endpoint  string
	accessKey string
	secretKey string
	secure    bool
}

// Option configures the MinIO store.
type Option func(*options)

// WithEndpoint sets the endpoint, either host:port or a http(s) URL. A URL
// scheme decides TLS use.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.endpoint = endpoint
	}
}

// WithCredentials sets the access and secret keys.
func WithCredentials(accessKey, secretKey string) Option {
	return func(o *options) {
		o.accessKey = accessKey
		o.secretKey = secretKey
	}
}

// WithSecure forces TLS for scheme-less endpoints.
func WithSecure(secure bool) Option {
	return func(o *options) {
		o.secure = secure
	}
}

// Store implements objectstore.Store for MinIO.
type Store struct {
	client *minio.Client
	bucket string
}

// New creates a MinIO store for the given bucket.
func New(bucket string, optFns ...Option) (*Store, error) {
	opts := options{
		endpoint:  DefaultEndpoint,
		accessKey: DefaultAccessKey,
		secretKey: DefaultSecretKey,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&opts)
		}
	}

	host, schemeSecure, hasScheme := parseEndpoint(opts.endpoint)
	secure := opts.secure
	if hasScheme {
		secure = schemeSecure
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.accessKey, opts.secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, &objectstore.Error{Op: "connect", Bucket: bucket, Err: err}
	}

	return &Store{client: client, bucket: bucket}, nil
}

// NewWithClient wraps an existing MinIO client.
func NewWithClient(client *minio.Client, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

// parseEndpoint splits a possibly URL-shaped endpoint into host and TLS
// choice.
func parseEndpoint(endpoint string) (host string, secure, hasScheme bool) {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "https://"), "/"), true, true
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "http://"), "/"), false, true
	default:
		return endpoint, false, false
	}
}

// Exists reports whether the key holds an object.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, &objectstore.Error{Op: "stat", Bucket: s.bucket, Key: key, Err: err}
	}
	return true, nil
}

// Stat returns object metadata.
func (s *Store) Stat(ctx context.Context, key string) (objectstore.ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return objectstore.ObjectInfo{}, &objectstore.Error{Op: "stat", Bucket: s.bucket, Key: key, Err: objectstore.ErrNotFound}
		}
		return objectstore.ObjectInfo{}, &objectstore.Error{Op: "stat", Bucket: s.bucket, Key: key, Err: err}
	}

	return objectstore.ObjectInfo{
		Key:  key,
		Size: info.Size,
		ETag: strings.Trim(info.ETag, `"`),
	}, nil
}

// Put uploads size bytes from r under key.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return &objectstore.Error{Op: "put", Bucket: s.bucket, Key: key, Err: err}
	}
	return nil
}

// PutFile uploads a local file under key.
func (s *Store) PutFile(ctx context.Context, key, path, contentType string) error {
	_, err := s.client.FPutObject(ctx, s.bucket, key, path, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return &objectstore.Error{Op: "put", Bucket: s.bucket, Key: key, Err: err}
	}
	return nil
}

// Get opens an object for reading.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	// Stat first: GetObject defers errors to the first read.
	if _, err := s.Stat(ctx, key); err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, &objectstore.Error{Op: "get", Bucket: s.bucket, Key: key, Err: err}
	}
	return obj, nil
}

// List returns the objects under prefix, sorted by key.
func (s *Store) List(ctx context.Context, prefix string) ([]objectstore.ObjectInfo, error) {
	var infos []objectstore.ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, &objectstore.Error{Op: "list", Bucket: s.bucket, Key: prefix, Err: obj.Err}
		}
		infos = append(infos, objectstore.ObjectInfo{
			Key:  obj.Key,
			Size: obj.Size,
			ETag: strings.Trim(obj.ETag, `"`),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// Ping verifies the endpoint is reachable and the bucket exists.
func (s *Store) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return &objectstore.Error{Op: "ping", Bucket: s.bucket, Err: err}
	}
	if !ok {
		return &objectstore.Error{Op: "ping", Bucket: s.bucket, Err: objectstore.ErrNotFound}
	}
	return nil
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NotFound"
}

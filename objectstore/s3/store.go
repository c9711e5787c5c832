// Package s3 provides an objectstore.Store for AWS S3, for lakes hosted on
// AWS rather than a local MinIO deployment.
package s3

import (
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kbase/cdm-transfers/objectstore"
)

type options struct {
	client *s3.Client
}

// Option configures the S3 store.
type Option func(*options)

// WithClient supplies a preconfigured client instead of loading the default
// AWS config.
func WithClient(client *s3.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// Store implements objectstore.Store for S3.
type Store struct {
	client   *s3.Client
	bucket   string
	uploader *manager.Uploader
}

// New creates an S3 store for the given bucket. Without WithClient, the
// default AWS config chain (env, shared config, instance role) is used.
func New(ctx context.Context, bucket string, optFns ...Option) (*Store, error) {
	var opts options
	for _, fn := range optFns {
		if fn != nil {
			fn(&opts)
		}
	}

	client := opts.client
	if client == nil {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, &objectstore.Error{Op: "connect", Bucket: bucket, Err: err}
		}
		client = s3.NewFromConfig(cfg)
	}

	return &Store{
		client:   client,
		bucket:   bucket,
		uploader: manager.NewUploader(client),
	}, nil
}

// Exists reports whether the key holds an object.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, &objectstore.Error{Op: "stat", Bucket: s.bucket, Key: key, Err: err}
	}
	return true, nil
}

// Stat returns object metadata.
func (s *Store) Stat(ctx context.Context, key string) (objectstore.ObjectInfo, error) {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return objectstore.ObjectInfo{}, &objectstore.Error{Op: "stat", Bucket: s.bucket, Key: key, Err: objectstore.ErrNotFound}
		}
		return objectstore.ObjectInfo{}, &objectstore.Error{Op: "stat", Bucket: s.bucket, Key: key, Err: err}
	}

	return objectstore.ObjectInfo{
		Key:  key,
		Size: aws.ToInt64(head.ContentLength),
		ETag: strings.Trim(aws.ToString(head.ETag), `"`),
	}, nil
}

// Put uploads from r under key. The managed uploader switches to multipart
// for large bodies; size is advisory here.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return &objectstore.Error{Op: "put", Bucket: s.bucket, Key: key, Err: err}
	}
	return nil
}

// PutFile uploads a local file under key.
func (s *Store) PutFile(ctx context.Context, key, path, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		return &objectstore.Error{Op: "put", Bucket: s.bucket, Key: key, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &objectstore.Error{Op: "put", Bucket: s.bucket, Key: key, Err: err}
	}

	return s.Put(ctx, key, f, info.Size(), contentType)
}

// Get opens an object for reading.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, &objectstore.Error{Op: "get", Bucket: s.bucket, Key: key, Err: objectstore.ErrNotFound}
		}
		return nil, &objectstore.Error{Op: "get", Bucket: s.bucket, Key: key, Err: err}
	}
	return resp.Body, nil
}

// List returns the objects under prefix, sorted by key.
func (s *Store) List(ctx context.Context, prefix string) ([]objectstore.ObjectInfo, error) {
	var infos []objectstore.ObjectInfo

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, &objectstore.Error{Op: "list", Bucket: s.bucket, Key: prefix, Err: err}
		}
		for _, obj := range page.Contents {
			infos = append(infos, objectstore.ObjectInfo{
				Key:  aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
				ETag: strings.Trim(aws.ToString(obj.ETag), `"`),
			})
		}
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// Ping verifies the bucket is reachable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return &objectstore.Error{Op: "ping", Bucket: s.bucket, Err: err}
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	return errors.As(err, &nsk)
}

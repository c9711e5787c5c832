package minio

import (
	"bytes"
	"context"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbase/cdm-transfers/objectstore"
)

func TestParseEndpoint(t *testing.T) {
	host, secure, hasScheme := parseEndpoint("localhost:9000")
	assert.Equal(t, "localhost:9000", host)
	assert.False(t, secure)
	assert.False(t, hasScheme)

	host, secure, hasScheme = parseEndpoint("http://localhost:9000")
	assert.Equal(t, "localhost:9000", host)
	assert.False(t, secure)
	assert.True(t, hasScheme)

	host, secure, hasScheme = parseEndpoint("https://lake.example.org/")
	assert.Equal(t, "lake.example.org", host)
	assert.True(t, secure)
	assert.True(t, hasScheme)
}

func TestNew_EndpointForms(t *testing.T) {
	// Construction validates the endpoint but performs no network calls.
	_, err := New("cdm-lake", WithEndpoint("http://localhost:9000"))
	require.NoError(t, err)

	_, err = New("cdm-lake", WithEndpoint("localhost:9000"), WithCredentials("ak", "sk"))
	require.NoError(t, err)
}

// TestStore_Integration requires a running MinIO instance on the local
// development endpoint. Skip if not available.
func TestStore_Integration(t *testing.T) {
	endpoint := DefaultEndpoint
	bucket := "cdm-transfers-test"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(DefaultAccessKey, DefaultSecretKey, ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	// Check if MinIO is reachable
	if _, err = client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	// Ensure bucket exists
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewWithClient(client, bucket)
	require.NoError(t, store.Ping(ctx))

	// Absent key
	ok, err := store.Exists(ctx, "it/missing.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Stat(ctx, "it/missing.txt")
	assert.True(t, objectstore.IsNotFound(err))

	// Upload and stat
	data := []byte("hello object store")
	require.NoError(t, store.Put(ctx, "it/test.txt", bytes.NewReader(data), int64(len(data)), "text/plain"))

	ok, err = store.Exists(ctx, "it/test.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	info, err := store.Stat(ctx, "it/test.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), info.Size)
	assert.NotEmpty(t, info.ETag)

	// List under the prefix
	infos, err := store.List(ctx, "it/")
	require.NoError(t, err)
	require.NotEmpty(t, infos)
	assert.Equal(t, "it/test.txt", infos[0].Key)

	// Cleanup
	require.NoError(t, client.RemoveObject(ctx, bucket, "it/test.txt", minio.RemoveObjectOptions{}))
}

package objectstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Lifecycle(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	key := "prefix/raw_data/GCA/000/195/005/rec/file.txt"
	data := []byte("staged bytes")

	// 1. Absent before upload
	ok, err := m.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = m.Stat(ctx, key)
	assert.True(t, errors.Is(err, ErrNotFound))

	// 2. Upload
	err = m.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "text/plain")
	require.NoError(t, err)

	ok, err = m.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	// 3. Stat reports size and a plain MD5 tag
	info, err := m.Stat(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), info.Size)

	sum := md5.Sum(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), info.ETag)

	// 4. Get round-trips the bytes
	rc, err := m.Get(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, data, got)

	assert.Equal(t, 1, m.Puts(key))
}

func TestMemoryStore_PutSizeMismatch(t *testing.T) {
	m := NewMemoryStore()

	err := m.Put(context.Background(), "k", bytes.NewReader([]byte("abc")), 5, "")
	require.Error(t, err)

	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "put", se.Op)
	assert.Equal(t, "k", se.Key)
}

func TestMemoryStore_PutFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.bin")
	require.NoError(t, os.WriteFile(path, []byte("from disk"), 0o644))

	m := NewMemoryStore()
	require.NoError(t, m.PutFile(context.Background(), "k", path, "application/octet-stream"))

	data, ok := m.Data("k")
	require.True(t, ok)
	assert.Equal(t, "from disk", string(data))
}

func TestMemoryStore_List(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "a/2.txt", bytes.NewReader([]byte("2")), 1, ""))
	require.NoError(t, m.Put(ctx, "a/1.txt", bytes.NewReader([]byte("1")), 1, ""))
	require.NoError(t, m.Put(ctx, "b/3.txt", bytes.NewReader([]byte("3")), 1, ""))

	infos, err := m.List(ctx, "a/")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "a/1.txt", infos[0].Key)
	assert.Equal(t, "a/2.txt", infos[1].Key)

	all, err := m.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryStore_FailPut(t *testing.T) {
	m := NewMemoryStore()
	boom := errors.New("boom")
	m.FailPut("k", boom)

	err := m.Put(context.Background(), "k", bytes.NewReader([]byte("x")), 1, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, 1, m.Puts("k"))

	// Clearing the fault lets uploads through again.
	m.FailPut("k", nil)
	require.NoError(t, m.Put(context.Background(), "k", bytes.NewReader([]byte("x")), 1, ""))
	assert.Equal(t, 2, m.Puts("k"))
}

func TestMemoryStore_Ping(t *testing.T) {
	m := NewMemoryStore()
	require.NoError(t, m.Ping(context.Background()))

	m.SetPingErr(errors.New("unreachable"))
	assert.Error(t, m.Ping(context.Background()))
}

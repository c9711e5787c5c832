package staging

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbase/cdm-transfers/accession"
	"github.com/kbase/cdm-transfers/archive"
	"github.com/kbase/cdm-transfers/genomes"
	"github.com/kbase/cdm-transfers/internal/fs"
	"github.com/kbase/cdm-transfers/resource"
)

const testBasePrefix = "tenant-general-warehouse/kbase/datasets/ncbi"

func testSelection(t *testing.T, names ...string) []genomes.SelectedFile {
	t.Helper()

	res := genomes.Resolution{
		Accession: accession.MustParse("GB_GCA_000195005.1"),
		RecordDir: "GCA_000195005.1_ASM19500v1",
	}

	files := make([]genomes.SelectedFile, 0, len(names))
	for _, name := range names {
		files = append(files, genomes.SelectedFile{
			Name:       name,
			RemotePath: res.RemotePath(name),
			Key:        res.ObjectKey(testBasePrefix, name),
		})
	}

	return files
}

func md5hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func gzipped(t *testing.T, payload string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return buf.Bytes()
}

func TestStagerLifecycle(t *testing.T) {
	ctx := context.Background()

	fna := gzipped(t, ">contig1\nACGT\n")
	report := []byte("# Assembly name:  ASM19500v1\n")
	stats := []byte("# Global statistics\n")

	files := testSelection(t, "GCA_000195005.1_ASM19500v1_genomic.fna.gz", "GCA_000195005.1_ASM19500v1_assembly_report.txt", "GCA_000195005.1_ASM19500v1_assembly_stats.txt")

	arc := archive.NewMemoryArchive()
	arc.AddFile(files[0].RemotePath, fna)
	arc.AddFile(files[1].RemotePath, report)
	arc.AddFile(files[2].RemotePath, stats)

	// Manifest covers two of the three files.
	checksums := map[string]string{
		files[0].Name: md5hex(fna),
		files[1].Name: md5hex(report),
	}

	stager := NewStager(arc, WithRoot(t.TempDir()), WithBackoff(time.Millisecond))

	// 1. Stage all three files
	result, err := stager.Stage(ctx, files, checksums)
	require.NoError(t, err)
	require.Len(t, result.Files, 3)
	require.Empty(t, result.Failed)

	assert.Contains(t, result.Dir, "cdm-transfer-")

	// 2. Input order is preserved
	for i, staged := range result.Files {
		assert.Equal(t, files[i].Name, staged.Name)
		assert.Equal(t, files[i].Key, staged.Key)
		assert.Equal(t, 1, staged.Attempts)
	}

	// 3. Checksummed files are verified, the rest staged as-is
	assert.True(t, result.Files[0].Verified)
	assert.True(t, result.Files[1].Verified)
	assert.False(t, result.Files[2].Verified)
	assert.Equal(t, md5hex(stats), result.Files[2].MD5)

	// 4. Bytes on disk match the archive
	data, err := os.ReadFile(result.Files[0].LocalPath)
	require.NoError(t, err)
	assert.Equal(t, fna, data)
	assert.Equal(t, int64(len(fna)), result.Files[0].Size)

	// 5. Cleanup removes the scratch directory, twice is fine
	dir := result.Dir
	require.NoError(t, result.Cleanup())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, result.Cleanup())
}

func TestStagerRetriesTransient(t *testing.T) {
	ctx := context.Background()

	payload := []byte("# Assembly name:  ASM19500v1\n")
	files := testSelection(t, "GCA_000195005.1_ASM19500v1_assembly_report.txt")

	arc := archive.NewMemoryArchive()
	arc.AddFile(files[0].RemotePath, payload)
	arc.FailFetch(files[0].RemotePath, 2, nil)

	stager := NewStager(arc, WithRoot(t.TempDir()), WithAttempts(3), WithBackoff(time.Millisecond))

	result, err := stager.Stage(ctx, files, nil)
	require.NoError(t, err)
	defer result.Cleanup()

	require.Len(t, result.Files, 1)
	assert.Equal(t, 3, result.Files[0].Attempts)
	assert.Equal(t, 3, arc.Fetches(files[0].RemotePath))
}

func TestStagerPartialFailure(t *testing.T) {
	ctx := context.Background()

	files := testSelection(t, "GCA_000195005.1_ASM19500v1_assembly_report.txt", "GCA_000195005.1_ASM19500v1_assembly_stats.txt", "GCA_000195005.1_ASM19500v1_protein.faa.gz")

	arc := archive.NewMemoryArchive()
	arc.AddFile(files[0].RemotePath, []byte("report\n"))
	arc.AddFile(files[1].RemotePath, []byte("stats\n"))
	arc.AddFile(files[2].RemotePath, gzipped(t, ">WP_0001\nMKV\n"))
	arc.FailFetch(files[1].RemotePath, 3, nil)

	stager := NewStager(arc, WithRoot(t.TempDir()), WithAttempts(3), WithBackoff(time.Millisecond))

	result, err := stager.Stage(ctx, files, nil)
	require.NoError(t, err)
	defer result.Cleanup()

	// The healthy files survive the broken one.
	require.Len(t, result.Files, 2)
	assert.Equal(t, files[0].Name, result.Files[0].Name)
	assert.Equal(t, files[2].Name, result.Files[1].Name)

	require.Len(t, result.Failed, 1)
	ferr := result.Failed[0]
	assert.Equal(t, files[1].Name, ferr.File.Name)
	assert.Equal(t, 3, ferr.Attempts)
	assert.True(t, archive.IsTransient(ferr.Err))
	assert.Contains(t, ferr.Error(), "3 attempts")
}

func TestStagerChecksumMismatch(t *testing.T) {
	ctx := context.Background()

	payload := []byte("# Assembly name:  ASM19500v1\n")
	files := testSelection(t, "GCA_000195005.1_ASM19500v1_assembly_report.txt")

	arc := archive.NewMemoryArchive()
	arc.AddFile(files[0].RemotePath, payload)

	checksums := map[string]string{
		files[0].Name: "00000000000000000000000000000000",
	}

	stager := NewStager(arc, WithRoot(t.TempDir()), WithAttempts(2), WithBackoff(time.Millisecond))

	result, err := stager.Stage(ctx, files, checksums)
	require.NoError(t, err)
	defer result.Cleanup()

	require.Empty(t, result.Files)
	require.Len(t, result.Failed, 1)
	assert.ErrorIs(t, result.Failed[0].Err, ErrChecksumMismatch)
	assert.Equal(t, 2, result.Failed[0].Attempts)

	// A mismatch is retried like a failed transfer.
	assert.Equal(t, 2, arc.Fetches(files[0].RemotePath))

	// The corrupt file does not linger in scratch.
	entries, err := os.ReadDir(result.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStagerGzipProbe(t *testing.T) {
	ctx := context.Background()

	files := testSelection(t, "GCA_000195005.1_ASM19500v1_genomic.fna.gz", "GCA_000195005.1_ASM19500v1_protein.faa.gz")

	arc := archive.NewMemoryArchive()
	arc.AddFile(files[0].RemotePath, gzipped(t, ">contig1\nACGT\n"))
	arc.AddFile(files[1].RemotePath, []byte("not gzip at all"))

	stager := NewStager(arc, WithRoot(t.TempDir()), WithAttempts(2), WithBackoff(time.Millisecond))

	result, err := stager.Stage(ctx, files, nil)
	require.NoError(t, err)
	defer result.Cleanup()

	require.Len(t, result.Files, 1)
	assert.Equal(t, files[0].Name, result.Files[0].Name)
	assert.False(t, result.Files[0].Verified)

	require.Len(t, result.Failed, 1)
	assert.Equal(t, files[1].Name, result.Failed[0].File.Name)
	assert.ErrorIs(t, result.Failed[0].Err, ErrChecksumMismatch)
}

func TestStagerGzipProbeDisabled(t *testing.T) {
	ctx := context.Background()

	files := testSelection(t, "GCA_000195005.1_ASM19500v1_genomic.fna.gz")

	arc := archive.NewMemoryArchive()
	arc.AddFile(files[0].RemotePath, []byte("not gzip at all"))

	stager := NewStager(arc, WithRoot(t.TempDir()), WithGzipProbe(false))

	result, err := stager.Stage(ctx, files, nil)
	require.NoError(t, err)
	defer result.Cleanup()

	require.Len(t, result.Files, 1)
	require.Empty(t, result.Failed)
}

func TestStagerPermanentErrorNoRetry(t *testing.T) {
	ctx := context.Background()

	files := testSelection(t, "GCA_000195005.1_ASM19500v1_genomic.gff.gz")

	// Archive has no such file, which is a permanent condition.
	arc := archive.NewMemoryArchive()
	arc.AddFile("genomes/all/GCA/000/195/005/GCA_000195005.1_ASM19500v1/unrelated.txt", []byte("x"))

	stager := NewStager(arc, WithRoot(t.TempDir()), WithAttempts(3), WithBackoff(time.Millisecond))

	result, err := stager.Stage(ctx, files, nil)
	require.NoError(t, err)
	defer result.Cleanup()

	require.Len(t, result.Failed, 1)
	assert.ErrorIs(t, result.Failed[0].Err, archive.ErrNotFound)
	assert.Equal(t, 1, result.Failed[0].Attempts)
	assert.Equal(t, 1, arc.Fetches(files[0].RemotePath))
}

func TestStagerLocalWriteFailure(t *testing.T) {
	ctx := context.Background()

	files := testSelection(t, "GCA_000195005.1_ASM19500v1_assembly_report.txt", "GCA_000195005.1_ASM19500v1_assembly_stats.txt")

	arc := archive.NewMemoryArchive()
	arc.AddFile(files[0].RemotePath, []byte("report\n"))
	arc.AddFile(files[1].RemotePath, []byte("stats\n"))

	diskErr := errors.New("no space left on device")

	faulty := fs.NewFaultyFS(nil)
	faulty.AddRule("_assembly_stats.txt", fs.Fault{FailAfterBytes: 0, Err: diskErr})

	stager := NewStager(arc, WithRoot(t.TempDir()), WithAttempts(3), WithBackoff(time.Millisecond))
	stager.fsys = faulty

	result, err := stager.Stage(ctx, files, nil)
	require.NoError(t, err)
	defer result.Cleanup()

	require.Len(t, result.Files, 1)
	assert.Equal(t, files[0].Name, result.Files[0].Name)

	// Disk trouble is not retried against the archive.
	require.Len(t, result.Failed, 1)
	assert.ErrorIs(t, result.Failed[0].Err, diskErr)
	assert.Equal(t, 1, result.Failed[0].Attempts)
	assert.Equal(t, 1, arc.Fetches(files[1].RemotePath))
}

func TestStagerScratchDirFailure(t *testing.T) {
	ctx := context.Background()

	files := testSelection(t, "GCA_000195005.1_ASM19500v1_assembly_report.txt")

	arc := archive.NewMemoryArchive()
	arc.AddFile(files[0].RemotePath, []byte("report\n"))

	faulty := fs.NewFaultyFS(nil)
	faulty.MkdirTempErr = errors.New("read-only file system")

	stager := NewStager(arc, WithRoot(t.TempDir()))
	stager.fsys = faulty

	_, err := stager.Stage(ctx, files, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scratch")
}

func TestStagerEmptyInput(t *testing.T) {
	ctx := context.Background()

	stager := NewStager(archive.NewMemoryArchive(), WithRoot(t.TempDir()))

	result, err := stager.Stage(ctx, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Dir)
	assert.Empty(t, result.Files)
	assert.Empty(t, result.Failed)
	require.NoError(t, result.Cleanup())
}

func TestStagerMinFreeBytes(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("free-space probe unsupported on this platform")
	}

	ctx := context.Background()

	files := testSelection(t, "GCA_000195005.1_ASM19500v1_assembly_report.txt")

	arc := archive.NewMemoryArchive()
	arc.AddFile(files[0].RemotePath, []byte("report\n"))

	stager := NewStager(arc, WithRoot(t.TempDir()), WithMinFreeBytes(math.MaxInt64))

	_, err := stager.Stage(ctx, files, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLowDiskSpace)
}

func TestStagerScratchAccounting(t *testing.T) {
	ctx := context.Background()

	payload := []byte("# Assembly name:  ASM19500v1\n")
	files := testSelection(t, "GCA_000195005.1_ASM19500v1_assembly_report.txt")

	arc := archive.NewMemoryArchive()
	arc.AddFile(files[0].RemotePath, payload)

	ctrl := resource.NewController(resource.Config{ScratchLimitBytes: 1 << 20})

	stager := NewStager(arc, WithRoot(t.TempDir()), WithController(ctrl))

	result, err := stager.Stage(ctx, files, nil)
	require.NoError(t, err)
	require.Len(t, result.Files, 1)

	assert.Equal(t, int64(len(payload)), ctrl.ScratchUsage())

	require.NoError(t, result.Cleanup())
	assert.Equal(t, int64(0), ctrl.ScratchUsage())
}

func TestStagerCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	files := testSelection(t, "GCA_000195005.1_ASM19500v1_assembly_report.txt", "GCA_000195005.1_ASM19500v1_assembly_stats.txt")

	arc := archive.NewMemoryArchive()
	arc.AddFile(files[0].RemotePath, []byte("report\n"))
	arc.AddFile(files[1].RemotePath, []byte("stats\n"))

	stager := NewStager(arc, WithRoot(t.TempDir()))

	result, err := stager.Stage(ctx, files, nil)
	require.ErrorIs(t, err, context.Canceled)
	defer result.Cleanup()

	require.Len(t, result.Failed, 2)
	for _, ferr := range result.Failed {
		assert.ErrorIs(t, ferr.Err, context.Canceled)
	}
}

func TestFileErrorUnwrap(t *testing.T) {
	inner := fmt.Errorf("wrapped: %w", archive.ErrNotFound)
	ferr := &FileError{File: genomes.SelectedFile{Name: "x.txt"}, Attempts: 1, Err: inner}

	assert.ErrorIs(t, ferr, archive.ErrNotFound)
	assert.Contains(t, ferr.Error(), "x.txt")
}

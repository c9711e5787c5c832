// Package staging downloads selected archive files into a scoped scratch
// directory, verifying each file before it is handed to the publisher.
//
// A Stage call is all-or-nothing per file, not per accession: files that
// fail after the retry budget land in Result.Failed while the rest stay
// usable. The caller owns the scratch directory through Result.Cleanup.
package staging

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/klauspost/compress/gzip"

	"github.com/kbase/cdm-transfers/archive"
	"github.com/kbase/cdm-transfers/genomes"
	"github.com/kbase/cdm-transfers/internal/fs"
	"github.com/kbase/cdm-transfers/resource"
)

const scratchPattern = "cdm-transfer-*"

type options struct {
	root           string
	attempts       int
	backoffInitial time.Duration
	minFreeBytes   int64
	gzipProbe      bool
	controller     *resource.Controller
}

// Option configures a Stager.
type Option func(*options)

// WithRoot sets the parent directory for scratch directories. Defaults to
// the system temp directory.
func WithRoot(root string) Option {
	return func(o *options) {
		o.root = root
	}
}

// WithAttempts sets the per-file download budget, including the first try.
func WithAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.attempts = n
		}
	}
}

// WithBackoff sets the initial retry delay. Delays grow exponentially from
// here between attempts on the same file.
func WithBackoff(initial time.Duration) Option {
	return func(o *options) {
		o.backoffInitial = initial
	}
}

// WithMinFreeBytes refuses to stage when the scratch volume reports less
// free space than this. Zero disables the guard.
func WithMinFreeBytes(n int64) Option {
	return func(o *options) {
		o.minFreeBytes = n
	}
}

// WithGzipProbe toggles the gzip header check applied to .gz files that
// have no manifest checksum. Enabled by default.
func WithGzipProbe(enabled bool) Option {
	return func(o *options) {
		o.gzipProbe = enabled
	}
}

// WithController attaches a resource controller for scratch-space
// accounting and download throughput limiting.
func WithController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}

func applyOptions(optFns ...Option) options {
	opts := options{
		root:           os.TempDir(),
		attempts:       3,
		backoffInitial: 500 * time.Millisecond,
		gzipProbe:      true,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return opts
}

// StagedFile is one successfully downloaded and verified file.
type StagedFile struct {
	genomes.SelectedFile

	// LocalPath is the file's location inside the scratch directory.
	LocalPath string

	// Size is the number of bytes staged.
	Size int64

	// MD5 is the hex digest of the staged bytes.
	MD5 string

	// Verified reports whether MD5 matched a manifest checksum. False
	// means no checksum was available, not that verification failed.
	Verified bool

	// Attempts is the number of downloads it took, including the final
	// successful one.
	Attempts int
}

// Result holds the outcome of staging one record's files.
type Result struct {
	// Dir is the scratch directory. Empty when nothing was staged.
	Dir string

	// Files are the successfully staged files, in input order.
	Files []StagedFile

	// Failed are the files that exhausted their retry budget.
	Failed []*FileError

	fsys     fs.FileSystem
	ctrl     *resource.Controller
	reserved int64
}

// Cleanup removes the scratch directory and returns any reserved scratch
// budget. Safe to call on an empty Result and safe to call twice.
func (r *Result) Cleanup() error {
	if r.ctrl != nil && r.reserved > 0 {
		r.ctrl.ReleaseScratch(r.reserved)
		r.reserved = 0
	}

	if r.Dir == "" {
		return nil
	}

	dir := r.Dir
	r.Dir = ""

	return r.fsys.RemoveAll(dir)
}

// Stager downloads files from an archive into local scratch directories.
type Stager struct {
	archive archive.Archive
	fsys    fs.FileSystem
	opts    options
}

// NewStager creates a Stager reading from the given archive.
func NewStager(a archive.Archive, optFns ...Option) *Stager {
	return &Stager{
		archive: a,
		fsys:    fs.Default,
		opts:    applyOptions(optFns...),
	}
}

// Stage downloads the given files into a fresh scratch directory. Checksums
// maps file names to expected hex MD5 digests; files without an entry are
// staged unverified. Per-file failures are collected in Result.Failed, not
// returned as an error. The error return covers conditions that fail the
// whole record: no scratch space, an unusable scratch volume, or a canceled
// context.
func (s *Stager) Stage(ctx context.Context, files []genomes.SelectedFile, checksums map[string]string) (*Result, error) {
	result := &Result{fsys: s.fsys, ctrl: s.opts.controller}

	if len(files) == 0 {
		return result, nil
	}

	if s.opts.minFreeBytes > 0 {
		free, err := freeSpace(s.opts.root)
		if err == nil && free >= 0 && free < s.opts.minFreeBytes {
			return nil, fmt.Errorf("%w: %d bytes free on %s, need %d", ErrLowDiskSpace, free, s.opts.root, s.opts.minFreeBytes)
		}
	}

	dir, err := s.fsys.MkdirTemp(s.opts.root, scratchPattern)
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	result.Dir = dir

	for i, f := range files {
		if ctx.Err() != nil {
			for _, rest := range files[i:] {
				result.Failed = append(result.Failed, &FileError{File: rest, Err: ctx.Err()})
			}

			return result, ctx.Err()
		}

		staged, ferr := s.downloadOne(ctx, result, f, checksums[f.Name])
		if ferr != nil {
			result.Failed = append(result.Failed, ferr)
			continue
		}

		result.Files = append(result.Files, staged)
	}

	return result, nil
}

func (s *Stager) downloadOne(ctx context.Context, result *Result, f genomes.SelectedFile, expected string) (StagedFile, *FileError) {
	var (
		attempts int
		staged   StagedFile
	)

	op := func() error {
		attempts++

		err := s.fetchToFile(ctx, result, f, expected, &staged)
		if err == nil {
			return nil
		}

		if archive.IsTransient(err) || errors.Is(err, ErrChecksumMismatch) {
			return err
		}

		return backoff.Permanent(err)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.opts.backoffInitial

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.opts.attempts-1)), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		return StagedFile{}, &FileError{File: f, Attempts: attempts, Err: err}
	}

	staged.Attempts = attempts

	return staged, nil
}

// fetchToFile downloads one file and verifies it. A retry overwrites the
// previous attempt's partial file via O_TRUNC.
func (s *Stager) fetchToFile(ctx context.Context, result *Result, f genomes.SelectedFile, expected string, out *StagedFile) error {
	rc, err := s.archive.Fetch(ctx, f.RemotePath)
	if err != nil {
		return err
	}
	defer rc.Close()

	// Read errors mid-body are connection trouble and retryable. Tagging
	// them here keeps write-side errors (disk) permanent.
	var reader io.Reader = &taggedReader{r: rc, path: f.RemotePath}
	if s.opts.controller != nil {
		reader = resource.NewRateLimitedReader(reader, s.opts.controller, ctx)
	}

	local := filepath.Join(result.Dir, f.Name)

	file, err := s.fsys.OpenFile(local, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", local, err)
	}

	var dst io.Writer = file
	if s.opts.controller != nil {
		dst = &scratchWriter{ctx: ctx, ctrl: s.opts.controller, w: file, reserved: &result.reserved}
	}

	hash := md5.New()

	n, err := io.Copy(io.MultiWriter(dst, hash), reader)
	if err != nil {
		file.Close()
		s.discard(local)

		return err
	}

	if err := file.Sync(); err != nil {
		file.Close()
		s.discard(local)

		return fmt.Errorf("sync %s: %w", local, err)
	}

	if err := file.Close(); err != nil {
		s.discard(local)

		return fmt.Errorf("close %s: %w", local, err)
	}

	digest := hex.EncodeToString(hash.Sum(nil))

	verified := false

	switch {
	case expected != "":
		if digest != expected {
			s.discard(local)

			return fmt.Errorf("%s: got %s, want %s: %w", f.Name, digest, expected, ErrChecksumMismatch)
		}

		verified = true
	case s.opts.gzipProbe && strings.HasSuffix(f.Name, ".gz"):
		if err := s.probeGzip(local); err != nil {
			s.discard(local)

			return fmt.Errorf("%s: gzip probe: %v: %w", f.Name, err, ErrChecksumMismatch)
		}
	}

	*out = StagedFile{
		SelectedFile: f,
		LocalPath:    local,
		Size:         n,
		MD5:          digest,
		Verified:     verified,
	}

	return nil
}

// probeGzip checks that the file starts with a readable gzip stream. It
// does not decompress the whole file.
func (s *Stager) probeGzip(path string) error {
	file, err := s.fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return err
	}

	return zr.Close()
}

func (s *Stager) discard(path string) {
	_ = s.fsys.Remove(path)
}

// taggedReader wraps body-read errors as transient so the retry policy can
// tell them apart from local write failures.
type taggedReader struct {
	r    io.Reader
	path string
}

func (t *taggedReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		return n, &archive.TransientError{Op: "read", Path: t.path, Err: err}
	}

	return n, err
}

// scratchWriter charges written bytes against the controller's scratch
// budget before they hit disk. Reservations accumulate in *reserved and are
// returned in one piece by Result.Cleanup.
type scratchWriter struct {
	ctx      context.Context
	ctrl     *resource.Controller
	w        io.Writer
	reserved *int64
}

func (s *scratchWriter) Write(p []byte) (int, error) {
	if err := s.ctrl.AcquireScratch(s.ctx, int64(len(p))); err != nil {
		return 0, err
	}

	*s.reserved += int64(len(p))

	return s.w.Write(p)
}

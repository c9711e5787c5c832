package transfers

import (
	"log/slog"
	"time"

	"github.com/kbase/cdm-transfers/codec"
	"github.com/kbase/cdm-transfers/resource"
)

// DefaultBasePrefix is where genome records land in the lake bucket unless
// configured otherwise.
const DefaultBasePrefix = "tenant-general-warehouse/kbase/datasets/ncbi"

type options struct {
	codec       codec.Codec
	logger      *Logger
	metrics     MetricsCollector
	controller  *resource.Controller
	basePrefix  string
	stagingRoot string
	concurrency int
	limit       int
	dryRun      bool
	attempts    int
	backoff     time.Duration
	minFree     int64
	reverify    bool
	descriptor  bool
}

// Option configures Pipeline behavior.
type Option func(*options)

// WithCodec configures the codec used for generated JSON documents.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithBasePrefix sets the object-key prefix records are published under.
func WithBasePrefix(prefix string) Option {
	return func(o *options) {
		o.basePrefix = prefix
	}
}

// WithStagingRoot sets the parent directory for per-accession scratch
// directories. Defaults to the system temp directory.
func WithStagingRoot(dir string) Option {
	return func(o *options) {
		o.stagingRoot = dir
	}
}

// WithConcurrency processes up to n accessions in parallel. Values below 2
// keep the default sequential behavior. Each accession stays owned by
// exactly one worker, so no two workers ever write the same key prefix.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithLimit processes only the first n accessions of the batch. Zero means
// no limit.
func WithLimit(n int) Option {
	return func(o *options) {
		o.limit = n
	}
}

// WithDryRun resolves, lists and selects but neither stages nor publishes.
// Results report the keys that would be written.
func WithDryRun(enabled bool) Option {
	return func(o *options) {
		o.dryRun = enabled
	}
}

// WithController attaches a resource controller shared by staging and
// archive pacing.
func WithController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}

// WithDownloadAttempts sets the per-file download budget, including the
// first try.
func WithDownloadAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.attempts = n
		}
	}
}

// WithDownloadBackoff sets the initial delay between download attempts on
// the same file.
func WithDownloadBackoff(d time.Duration) Option {
	return func(o *options) {
		o.backoff = d
	}
}

// WithMinFreeBytes refuses to stage an accession when the scratch volume
// reports less free space than this. Zero disables the guard.
func WithMinFreeBytes(n int64) Option {
	return func(o *options) {
		o.minFree = n
	}
}

// WithReverify toggles digest re-verification of objects that already exist
// in the store. Enabled by default.
func WithReverify(enabled bool) Option {
	return func(o *options) {
		o.reverify = enabled
	}
}

// WithDescriptor toggles publishing a datapackage.json descriptor per
// record. Enabled by default.
func WithDescriptor(enabled bool) Option {
	return func(o *options) {
		o.descriptor = enabled
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &transfers.BasicMetricsCollector{}
//	p, _ := transfers.New(arc, store, transfers.WithMetricsCollector(metrics))
//	// ... run ...
//	stats := metrics.GetStats()
//	fmt.Printf("Staged: %d files, %d bytes\n", stats.StagedFiles, stats.StagedBytes)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metrics = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := transfers.NewJSONLogger(slog.LevelInfo)
//	p, _ := transfers.New(arc, store, transfers.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:      codec.Default,
		logger:     NoopLogger(),
		metrics:    NoopMetricsCollector{},
		basePrefix: DefaultBasePrefix,
		attempts:   3,
		backoff:    500 * time.Millisecond,
		reverify:   true,
		descriptor: true,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}

	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metrics == nil {
		o.metrics = NoopMetricsCollector{}
	}

	return o
}

package transfers

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    transferCounter prometheus.Counter
//	    uploadHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordTransfer(duration time.Duration, err error) {
//	    p.transferCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordTransfer is called after each accession finishes, successful
	// or not. duration is the wall time for the whole accession.
	RecordTransfer(duration time.Duration, err error)

	// RecordListing is called after each archive directory listing.
	RecordListing(duration time.Duration, err error)

	// RecordStagedFile is called per file staged from the archive.
	// bytes is the staged size; err is non-nil when the file exhausted
	// its retry budget.
	RecordStagedFile(bytes int64, attempts int, err error)

	// RecordPublish is called per object publish with the outcome status
	// string ("committed", "already-present", "replaced", "failed").
	RecordPublish(bytes int64, status string)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordTransfer(time.Duration, error) {}
func (NoopMetricsCollector) RecordListing(time.Duration, error)  {}
func (NoopMetricsCollector) RecordStagedFile(int64, int, error)  {}
func (NoopMetricsCollector) RecordPublish(int64, string)         {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	TransferCount      atomic.Int64
	TransferErrors     atomic.Int64
	TransferTotalNanos atomic.Int64
	ListingCount       atomic.Int64
	ListingErrors      atomic.Int64
	StagedFiles        atomic.Int64
	StagedBytes        atomic.Int64
	StagedRetries      atomic.Int64
	StageErrors        atomic.Int64
	Committed          atomic.Int64
	AlreadyPresent     atomic.Int64
	Replaced           atomic.Int64
	PublishErrors      atomic.Int64
	UploadedBytes      atomic.Int64
}

// RecordTransfer implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTransfer(duration time.Duration, err error) {
	b.TransferCount.Add(1)
	b.TransferTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.TransferErrors.Add(1)
	}
}

// RecordListing implements MetricsCollector.
func (b *BasicMetricsCollector) RecordListing(duration time.Duration, err error) {
	b.ListingCount.Add(1)
	if err != nil {
		b.ListingErrors.Add(1)
	}
}

// RecordStagedFile implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStagedFile(bytes int64, attempts int, err error) {
	if attempts > 1 {
		b.StagedRetries.Add(int64(attempts - 1))
	}
	if err != nil {
		b.StageErrors.Add(1)
		return
	}
	b.StagedFiles.Add(1)
	b.StagedBytes.Add(bytes)
}

// RecordPublish implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPublish(bytes int64, status string) {
	switch status {
	case "committed":
		b.Committed.Add(1)
		b.UploadedBytes.Add(bytes)
	case "already-present":
		b.AlreadyPresent.Add(1)
	case "replaced":
		b.Replaced.Add(1)
		b.UploadedBytes.Add(bytes)
	default:
		b.PublishErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		TransferCount:    b.TransferCount.Load(),
		TransferErrors:   b.TransferErrors.Load(),
		TransferAvgNanos: b.getAvgTransferNanos(),
		ListingCount:     b.ListingCount.Load(),
		ListingErrors:    b.ListingErrors.Load(),
		StagedFiles:      b.StagedFiles.Load(),
		StagedBytes:      b.StagedBytes.Load(),
		StagedRetries:    b.StagedRetries.Load(),
		StageErrors:      b.StageErrors.Load(),
		Committed:        b.Committed.Load(),
		AlreadyPresent:   b.AlreadyPresent.Load(),
		Replaced:         b.Replaced.Load(),
		PublishErrors:    b.PublishErrors.Load(),
		UploadedBytes:    b.UploadedBytes.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgTransferNanos() int64 {
	count := b.TransferCount.Load()
	if count == 0 {
		return 0
	}
	return b.TransferTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	TransferCount    int64
	TransferErrors   int64
	TransferAvgNanos int64
	ListingCount     int64
	ListingErrors    int64
	StagedFiles      int64
	StagedBytes      int64
	StagedRetries    int64
	StageErrors      int64
	Committed        int64
	AlreadyPresent   int64
	Replaced         int64
	PublishErrors    int64
	UploadedBytes    int64
}

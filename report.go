package transfers

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbase/cdm-transfers/accession"
)

// Stage identifies how far an accession got through the pipeline. A failed
// Result carries the stage it failed in; a successful one is StageDone.
type Stage int

const (
	StageParsing Stage = iota
	StageResolving
	StageListing
	StageSelecting
	StageStaging
	StagePublishing
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageParsing:
		return "parsing"
	case StageResolving:
		return "resolving"
	case StageListing:
		return "listing"
	case StageSelecting:
		return "selecting"
	case StageStaging:
		return "staging"
	case StagePublishing:
		return "publishing"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// File outcome statuses beyond the publish statuses.
const (
	// OutcomeSkipped marks a file that failed staging while its siblings
	// went through.
	OutcomeSkipped = "skipped"

	// OutcomePlanned marks a file a dry run would have transferred.
	OutcomePlanned = "planned"
)

// FileOutcome records what happened to one selected file.
type FileOutcome struct {
	// Name is the file name inside the record directory.
	Name string

	// Key is the destination object key.
	Key string

	// Status is one of the publish statuses, OutcomeSkipped or
	// OutcomePlanned.
	Status string

	// Bytes is the staged size. Zero for skipped and planned files.
	Bytes int64

	// Attempts is the number of download attempts spent on the file.
	Attempts int

	// Err explains skipped and failed outcomes.
	Err error
}

// Result is the terminal record for one accession.
type Result struct {
	// Token is the accession as it appeared in the input.
	Token string

	// Accession is the parsed accession. Zero when parsing failed.
	Accession accession.Accession

	// Stage is the stage reached: StageDone on success, otherwise the
	// stage that failed.
	Stage Stage

	// RecordDir is the resolved record directory, once known.
	RecordDir string

	// Files holds one outcome per selected file, in selection order.
	Files []FileOutcome

	// ManifestKey is the key of the published md5checksums.txt, when one
	// was written.
	ManifestKey string

	// DescriptorKey is the key of the published datapackage.json, when
	// one was written.
	DescriptorKey string

	// Err is nil exactly when the accession succeeded.
	Err error

	// Elapsed is the wall time spent on the accession.
	Elapsed time.Duration
}

// Failed reports whether the accession failed.
func (r Result) Failed() bool { return r.Err != nil }

// Report aggregates the results of one batch run.
type Report struct {
	// RunID tags every log line and result of this batch.
	RunID string

	Started  time.Time
	Finished time.Time

	mu      sync.Mutex
	results []Result
}

func newReport() *Report {
	return &Report{
		RunID:   uuid.NewString(),
		Started: time.Now(),
	}
}

func (r *Report) add(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *Report) finish() {
	r.Finished = time.Now()
}

// Results returns the per-accession results in input order.
func (r *Report) Results() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Result, len(r.results))
	copy(out, r.results)
	return out
}

// Succeeded counts accessions that completed.
func (r *Report) Succeeded() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, res := range r.results {
		if !res.Failed() {
			n++
		}
	}
	return n
}

// Failed counts accessions that did not complete.
func (r *Report) Failed() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, res := range r.results {
		if res.Failed() {
			n++
		}
	}
	return n
}

// FileCount counts file outcomes with the given status across the batch.
func (r *Report) FileCount(status string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, res := range r.results {
		for _, f := range res.Files {
			if f.Status == status {
				n++
			}
		}
	}
	return n
}

// Summary renders a one-line batch summary.
func (r *Report) Summary() string {
	succeeded := r.Succeeded()
	failed := r.Failed()

	return fmt.Sprintf(
		"run %s: %d accessions (%d ok, %d failed), files: %d committed, %d already present, %d replaced, %d skipped",
		r.RunID,
		succeeded+failed,
		succeeded,
		failed,
		r.FileCount("committed"),
		r.FileCount("already-present"),
		r.FileCount("replaced"),
		r.FileCount(OutcomeSkipped),
	)
}

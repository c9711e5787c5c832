package transfers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kbase/cdm-transfers/accession"
	"github.com/kbase/cdm-transfers/archive"
	"github.com/kbase/cdm-transfers/datapackage"
	"github.com/kbase/cdm-transfers/genomes"
	"github.com/kbase/cdm-transfers/objectstore"
	"github.com/kbase/cdm-transfers/publish"
	"github.com/kbase/cdm-transfers/staging"
)

// Pipeline moves genome records from an archive into an object store.
//
// One Pipeline handles one batch at a time; the zero value is not usable,
// construct with New. All mutable per-accession state lives on the stack of
// the worker processing it, so a Pipeline is safe for concurrent batches
// only insofar as the underlying Archive and Store are.
type Pipeline struct {
	archive archive.Archive
	store   objectstore.Store
	stager  *staging.Stager
	pub     *publish.Publisher
	opts    options
}

// New creates a Pipeline reading from the given archive and publishing to
// the given store.
func New(arc archive.Archive, store objectstore.Store, optFns ...Option) (*Pipeline, error) {
	if arc == nil {
		return nil, errors.New("transfers: archive is nil")
	}
	if store == nil {
		return nil, errors.New("transfers: store is nil")
	}

	opts := applyOptions(optFns)

	stagerOpts := []staging.Option{
		staging.WithAttempts(opts.attempts),
		staging.WithBackoff(opts.backoff),
	}
	if opts.stagingRoot != "" {
		stagerOpts = append(stagerOpts, staging.WithRoot(opts.stagingRoot))
	}
	if opts.minFree > 0 {
		stagerOpts = append(stagerOpts, staging.WithMinFreeBytes(opts.minFree))
	}
	if opts.controller != nil {
		stagerOpts = append(stagerOpts, staging.WithController(opts.controller))
	}

	return &Pipeline{
		archive: arc,
		store:   store,
		stager:  staging.NewStager(arc, stagerOpts...),
		pub:     publish.NewPublisher(store, publish.WithReverify(opts.reverify)),
		opts:    opts,
	}, nil
}

// Run processes a batch of accessions and reports per-accession outcomes.
// Individual accession failures never abort the batch; the returned error
// covers only batch-fatal conditions, currently an unreachable store.
func (p *Pipeline) Run(ctx context.Context, accs []accession.Accession) (*Report, error) {
	report := newReport()

	if err := p.runBatch(ctx, report, accs); err != nil {
		return nil, err
	}

	report.finish()
	p.opts.logger.WithRun(report.RunID).LogBatch(ctx, report.Succeeded(), report.Failed(), report.Finished.Sub(report.Started))

	return report, nil
}

// RunList reads an accession list (one accession per line, blank lines and
// #-comments ignored) and processes it like Run. Malformed lines become
// failed Results, they do not abort the batch.
func (p *Pipeline) RunList(ctx context.Context, r io.Reader) (*Report, error) {
	accs, malformed, err := accession.ParseList(r)
	if err != nil {
		return nil, fmt.Errorf("read accession list: %w", err)
	}

	report := newReport()

	for _, me := range malformed {
		report.add(Result{
			Token: me.Token,
			Stage: StageParsing,
			Err:   me,
		})
	}

	if err := p.runBatch(ctx, report, accs); err != nil {
		return nil, err
	}

	report.finish()
	p.opts.logger.WithRun(report.RunID).LogBatch(ctx, report.Succeeded(), report.Failed(), report.Finished.Sub(report.Started))

	return report, nil
}

func (p *Pipeline) runBatch(ctx context.Context, report *Report, accs []accession.Accession) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	accs = dedupe(accs)

	if p.opts.limit > 0 && len(accs) > p.opts.limit {
		accs = accs[:p.opts.limit]
	}

	if len(accs) == 0 {
		return nil
	}

	log := p.opts.logger.WithRun(report.RunID)

	// Results are index-addressed so the report keeps input order even
	// with workers racing.
	results := make([]Result, len(accs))

	g := new(errgroup.Group)

	workers := p.opts.concurrency
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for i, acc := range accs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{Token: acc.String(), Accession: acc, Stage: StageResolving, Err: err}
				return nil
			}

			if c := p.opts.controller; c != nil {
				if err := c.AcquireTransfer(ctx); err != nil {
					results[i] = Result{Token: acc.String(), Accession: acc, Stage: StageResolving, Err: err}
					return nil
				}
				defer c.ReleaseTransfer()
			}

			results[i] = p.transferOne(ctx, log, acc)
			return nil
		})
	}

	_ = g.Wait()

	for _, res := range results {
		report.add(res)
	}

	return nil
}

// transferOne runs the full state machine for a single accession. Every
// error is converted into the returned Result; nothing escapes to the batch.
func (p *Pipeline) transferOne(ctx context.Context, log *Logger, acc accession.Accession) Result {
	start := time.Now()
	log = log.WithAccession(acc.Key())

	res := Result{
		Token:     acc.String(),
		Accession: acc,
		Stage:     StageResolving,
	}

	fail := func(stage Stage, err error) Result {
		res.Stage = stage
		res.Err = translateError(err)
		p.finishResult(ctx, log, &res, start)
		return res
	}

	// Resolving, phase one: the parent directory follows from the
	// accession alone.
	parentDir := genomes.DirectoryPath(acc)

	// Listing: fetch the parent listing that phase two needs.
	res.Stage = StageListing

	entries, err := p.list(ctx, parentDir)
	if err != nil {
		return fail(StageListing, err)
	}

	// Resolving, phase two: match the record directory. Failures here are
	// resolution outcomes (no record, or more than one).
	resolution, err := genomes.ResolveRecord(archive.DirNames(entries), acc)
	if err != nil {
		return fail(StageResolving, err)
	}

	res.RecordDir = resolution.RecordDir
	log.LogResolve(ctx, resolution.RecordDir, nil)

	// Selecting
	res.Stage = StageSelecting

	recordEntries, err := p.list(ctx, resolution.RemoteDir())
	if err != nil {
		return fail(StageSelecting, err)
	}

	names := archive.FileNames(recordEntries)
	selected := resolution.Selection(names, p.opts.basePrefix)
	log.LogSelect(ctx, len(names), len(selected))

	// A record with no matching files is complete, not failed.
	if len(selected) == 0 {
		res.Stage = StageDone
		p.finishResult(ctx, log, &res, start)
		return res
	}

	if p.opts.dryRun {
		for _, sf := range selected {
			res.Files = append(res.Files, FileOutcome{Name: sf.Name, Key: sf.Key, Status: OutcomePlanned})
		}
		res.Stage = StageDone
		p.finishResult(ctx, log, &res, start)
		return res
	}

	var (
		manifestData []byte
		sums         map[string]string
	)
	if slices.Contains(names, genomes.ChecksumManifest) {
		manifestData, sums = p.fetchChecksums(ctx, log, resolution)
	}

	// Existing keys are settled without touching the archive; only
	// missing (or digest-mismatched) files are staged.
	outcomes := make(map[string]FileOutcome, len(selected))
	needs := make([]genomes.SelectedFile, 0, len(selected))

	for _, sf := range selected {
		info, err := p.store.Stat(ctx, sf.Key)
		switch {
		case err == nil:
			if p.opts.reverify && publish.ETagMismatch(info.ETag, sums[sf.Name]) {
				needs = append(needs, sf)
				continue
			}
			outcomes[sf.Name] = FileOutcome{Name: sf.Name, Key: sf.Key, Status: publish.StatusAlreadyPresent.String(), Bytes: info.Size}
			p.opts.metrics.RecordPublish(0, publish.StatusAlreadyPresent.String())
		case objectstore.IsNotFound(err):
			needs = append(needs, sf)
		default:
			outcomes[sf.Name] = FileOutcome{Name: sf.Name, Key: sf.Key, Status: publish.StatusFailed.String(), Err: translateError(err)}
			p.opts.metrics.RecordPublish(0, publish.StatusFailed.String())
		}
	}

	if len(needs) > 0 {
		// Staging
		res.Stage = StageStaging

		staged, err := p.stager.Stage(ctx, needs, sums)
		if staged != nil {
			defer func() {
				if cerr := staged.Cleanup(); cerr != nil {
					log.WarnContext(ctx, "scratch cleanup failed", "dir", staged.Dir, "error", cerr)
				}
			}()
		}
		if err != nil {
			return fail(StageStaging, err)
		}

		log.LogStage(ctx, len(staged.Files), len(staged.Failed), staged.Dir)

		for _, fe := range staged.Failed {
			p.opts.metrics.RecordStagedFile(0, fe.Attempts, fe.Err)
			outcomes[fe.File.Name] = FileOutcome{
				Name:     fe.File.Name,
				Key:      fe.File.Key,
				Status:   OutcomeSkipped,
				Attempts: fe.Attempts,
				Err:      translateError(fe.Err),
			}
		}

		// Nothing staged and nothing already present means the whole
		// accession failed.
		if len(staged.Files) == 0 && len(outcomes) == len(staged.Failed) {
			errs := make([]error, 0, len(staged.Failed))
			for _, fe := range staged.Failed {
				errs = append(errs, fe)
			}
			return fail(StageStaging, fmt.Errorf("all %d selected files failed to stage: %w", len(staged.Failed), errors.Join(errs...)))
		}

		// Publishing
		res.Stage = StagePublishing

		for _, sf := range staged.Files {
			p.opts.metrics.RecordStagedFile(sf.Size, sf.Attempts, nil)

			status, perr := p.pub.Publish(ctx, sf)
			log.LogPublish(ctx, sf.Key, status.String(), sf.Size, perr)
			p.opts.metrics.RecordPublish(sf.Size, status.String())

			if perr != nil {
				outcomes[sf.Name] = FileOutcome{Name: sf.Name, Key: sf.Key, Status: status.String(), Attempts: sf.Attempts, Err: translateError(perr)}
				continue
			}

			if status == publish.StatusReplaced {
				log.LogReplaced(ctx, sf.Key)
			}

			outcomes[sf.Name] = FileOutcome{Name: sf.Name, Key: sf.Key, Status: status.String(), Bytes: sf.Size, Attempts: sf.Attempts}
		}

		if manifestData != nil {
			key := resolution.ObjectKey(p.opts.basePrefix, genomes.ChecksumManifest)
			if _, err := p.pub.PublishBytes(ctx, key, manifestData, "text/plain"); err != nil {
				log.WarnContext(ctx, "manifest publish failed", "key", key, "error", err)
			} else {
				res.ManifestKey = key
			}
		}

		if p.opts.descriptor {
			p.publishDescriptor(ctx, log, &res, resolution, staged.Files, outcomes)
		}
	}

	// Emit outcomes in selection order.
	res.Files = make([]FileOutcome, 0, len(selected))
	for _, sf := range selected {
		if o, ok := outcomes[sf.Name]; ok {
			res.Files = append(res.Files, o)
		}
	}

	res.Stage = StageDone
	p.finishResult(ctx, log, &res, start)
	return res
}

// publishDescriptor writes the record's datapackage.json covering the files
// committed by this run. Descriptor trouble downgrades to a warning; the
// accession's files are already safe in the store.
func (p *Pipeline) publishDescriptor(ctx context.Context, log *Logger, res *Result, resolution genomes.Resolution, staged []staging.StagedFile, outcomes map[string]FileOutcome) {
	committed := make([]staging.StagedFile, 0, len(staged))
	for _, sf := range staged {
		o := outcomes[sf.Name]
		if o.Err == nil && (o.Status == publish.StatusCommitted.String() || o.Status == publish.StatusReplaced.String()) {
			committed = append(committed, sf)
		}
	}

	if len(committed) == 0 {
		return
	}

	data, err := datapackage.New(resolution, committed).Encode(p.opts.codec)
	if err != nil {
		log.WarnContext(ctx, "descriptor encode failed", "error", err)
		return
	}

	key := resolution.ObjectKey(p.opts.basePrefix, datapackage.FileName)
	if _, err := p.pub.PublishBytes(ctx, key, data, "application/json"); err != nil {
		log.WarnContext(ctx, "descriptor publish failed", "key", key, "error", err)
		return
	}

	res.DescriptorKey = key
}

// fetchChecksums downloads and parses the record's md5checksums.txt. Any
// trouble downgrades the record to unverified staging rather than failing
// it. The raw bytes are kept so the manifest can be published alongside the
// files it describes.
func (p *Pipeline) fetchChecksums(ctx context.Context, log *Logger, resolution genomes.Resolution) ([]byte, map[string]string) {
	rc, err := p.archive.Fetch(ctx, resolution.RemotePath(genomes.ChecksumManifest))
	if err != nil {
		log.WarnContext(ctx, "checksum manifest unavailable, staging unverified", "error", err)
		return nil, nil
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		log.WarnContext(ctx, "checksum manifest read failed, staging unverified", "error", err)
		return nil, nil
	}

	sums, err := genomes.ParseChecksums(bytes.NewReader(data))
	if err != nil {
		log.WarnContext(ctx, "checksum manifest unparseable, staging unverified", "error", err)
		return data, nil
	}

	return data, sums
}

func (p *Pipeline) list(ctx context.Context, dir string) ([]archive.Entry, error) {
	t0 := time.Now()
	entries, err := p.archive.List(ctx, dir)
	p.opts.metrics.RecordListing(time.Since(t0), err)
	return entries, err
}

func (p *Pipeline) finishResult(ctx context.Context, log *Logger, res *Result, start time.Time) {
	res.Elapsed = time.Since(start)
	p.opts.metrics.RecordTransfer(res.Elapsed, res.Err)
	log.LogTransfer(ctx, res.Stage.String(), res.Elapsed, res.Err)
}

// recordDirPattern recognizes record directories during prefix scans.
var recordDirPattern = regexp.MustCompile(`^GC[AF]_[0-9]{9}\.[0-9]+_.+`)

// threeDigits recognizes the sharding levels between the database root and
// the record parents.
var threeDigits = regexp.MustCompile(`^[0-9]{3}$`)

// ScanPrefix walks an entire database shard of the archive
// (genomes/all/{database}) and reconstructs the accessions of every record
// directory found three levels down. The result feeds Run like an input
// list would.
//
// Expensive against a live archive: a full GCA scan issues tens of
// thousands of listings. Combine with WithLimit during trials.
func (p *Pipeline) ScanPrefix(ctx context.Context, database string) ([]accession.Accession, error) {
	database = strings.ToUpper(database)
	if database != "GCA" && database != "GCF" {
		return nil, fmt.Errorf("unknown database %q (want GCA or GCF)", database)
	}

	root := genomes.DatabaseRoot(database)

	seen := make(map[string]accession.Accession)

	level1, err := p.scanLevel(ctx, root)
	if err != nil {
		return nil, err
	}

	for _, p1 := range level1 {
		level2, err := p.scanLevel(ctx, path.Join(root, p1))
		if err != nil {
			return nil, err
		}

		for _, p2 := range level2 {
			level3, err := p.scanLevel(ctx, path.Join(root, p1, p2))
			if err != nil {
				return nil, err
			}

			for _, p3 := range level3 {
				parent := path.Join(root, p1, p2, p3)

				entries, err := p.list(ctx, parent)
				if err != nil {
					return nil, fmt.Errorf("scan %s: %w", parent, err)
				}

				for _, name := range archive.DirNames(entries) {
					acc, ok := accessionFromRecordDir(name)
					if !ok {
						continue
					}
					seen[acc.Key()] = acc
				}
			}
		}
	}

	accs := make([]accession.Accession, 0, len(seen))
	for _, acc := range seen {
		accs = append(accs, acc)
	}
	sort.Slice(accs, func(i, j int) bool { return accs[i].Key() < accs[j].Key() })

	return accs, nil
}

// scanLevel lists one sharding level and keeps only the three-digit
// directories that continue the walk.
func (p *Pipeline) scanLevel(ctx context.Context, dir string) ([]string, error) {
	entries, err := p.list(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	var out []string
	for _, name := range archive.DirNames(entries) {
		if threeDigits.MatchString(name) {
			out = append(out, name)
		}
	}

	return out, nil
}

// accessionFromRecordDir reconstructs the accession named by a record
// directory such as GCA_000195005.1_ASM19500v1.
func accessionFromRecordDir(name string) (accession.Accession, bool) {
	if !recordDirPattern.MatchString(name) {
		return accession.Accession{}, false
	}

	parts := strings.SplitN(name, "_", 3)
	if len(parts) < 3 {
		return accession.Accession{}, false
	}

	acc, err := accession.Parse(parts[0] + "_" + parts[1])
	if err != nil {
		return accession.Accession{}, false
	}

	return acc, true
}

func dedupe(accs []accession.Accession) []accession.Accession {
	seen := make(map[string]struct{}, len(accs))
	out := accs[:0:0]

	for _, acc := range accs {
		key := acc.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, acc)
	}

	return out
}

// Package nayfach loads the Nayfach et al. 2020 GEM catalog supplement into
// the object store.
//
// The paper's supplementary workbook (doi:10.1038/s41587-020-0718-6) carries
// two sheets of interest: S1 describes the source metagenomes, S2 the
// metagenome-assembled genomes recovered from them. Each row becomes one
// JSON document in the store, keyed by the row's catalog identifier:
//
//	{base}/raw_data/metagenomes/{IMG_TAXON_ID}/metagenome.json
//	{base}/raw_data/mags/{genome_id}/mag.json
//
// Loading is idempotent: documents already in the store are left alone.
package nayfach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kbase/cdm-transfers/codec"
	"github.com/kbase/cdm-transfers/objectstore"
	"github.com/kbase/cdm-transfers/publish"
)

// DefaultBasePrefix is where the catalog lands inside the bucket.
const DefaultBasePrefix = "tenant-general-warehouse/kbase/datasets/jgi"

// Sheet and identifier-column names inside the supplementary workbook.
const (
	SheetMetagenomes = "S1"
	SheetMAGs        = "S2"

	metagenomeIDColumn = "IMG_TAXON_ID"
	magIDColumn        = "genome_id"
)

type options struct {
	codec      codec.Codec
	logger     *slog.Logger
	basePrefix string
	limit      int
	dryRun     bool
}

// Option customizes a Loader.
type Option func(*options)

// WithCodec sets the codec used to render row documents.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithBasePrefix overrides the object key prefix the catalog is published
// under.
func WithBasePrefix(prefix string) Option {
	return func(o *options) {
		o.basePrefix = strings.Trim(prefix, "/")
	}
}

// WithLimit caps how many rows of each sheet are processed. Zero means all.
func WithLimit(n int) Option {
	return func(o *options) {
		o.limit = n
	}
}

// WithDryRun reports what would be uploaded without writing anything.
func WithDryRun(dryRun bool) Option {
	return func(o *options) {
		o.dryRun = dryRun
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:      codec.Default,
		logger:     slog.New(slog.DiscardHandler),
		basePrefix: DefaultBasePrefix,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// Stats counts row outcomes of a load.
type Stats struct {
	// Uploaded rows were written to the store by this load.
	Uploaded int

	// Present rows already had their document in the store.
	Present int

	// Failed rows could not be published or carried no identifier.
	Failed int

	// Planned rows would have been uploaded by a dry run.
	Planned int
}

func (s *Stats) merge(o *Stats) {
	s.Uploaded += o.Uploaded
	s.Present += o.Present
	s.Failed += o.Failed
	s.Planned += o.Planned
}

// Rows returns the total number of rows seen.
func (s *Stats) Rows() int {
	return s.Uploaded + s.Present + s.Failed + s.Planned
}

// Loader publishes workbook rows as JSON documents.
type Loader struct {
	store objectstore.Store
	pub   *publish.Publisher
	opts  options
}

// NewLoader creates a Loader publishing to the given store.
func NewLoader(store objectstore.Store, optFns ...Option) (*Loader, error) {
	if store == nil {
		return nil, errors.New("nayfach: store is nil")
	}

	return &Loader{
		store: store,
		pub:   publish.NewPublisher(store),
		opts:  applyOptions(optFns),
	}, nil
}

// LoadWorkbook opens the supplementary workbook and loads both sheets. It
// fails fast when the store is unreachable; row-level trouble is counted in
// the returned Stats instead of aborting the load.
func (l *Loader) LoadWorkbook(ctx context.Context, workbookPath string) (*Stats, error) {
	if err := l.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("object store unreachable: %w", err)
	}

	wb, err := excelize.OpenFile(workbookPath)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	total := &Stats{}

	stats, err := l.LoadMetagenomes(ctx, wb)
	if err != nil {
		return nil, err
	}
	total.merge(stats)

	stats, err = l.LoadMAGs(ctx, wb)
	if err != nil {
		return nil, err
	}
	total.merge(stats)

	return total, nil
}

// LoadMetagenomes publishes the S1 sheet, one metagenome.json per
// IMG taxon.
func (l *Loader) LoadMetagenomes(ctx context.Context, wb *excelize.File) (*Stats, error) {
	return l.loadSheet(ctx, wb, sheetSpec{
		name:          SheetMetagenomes,
		idColumn:      metagenomeIDColumn,
		segment:       "metagenomes",
		document:      "metagenome.json",
		progressEvery: 100,
	})
}

// LoadMAGs publishes the S2 sheet, one mag.json per genome.
func (l *Loader) LoadMAGs(ctx context.Context, wb *excelize.File) (*Stats, error) {
	return l.loadSheet(ctx, wb, sheetSpec{
		name:          SheetMAGs,
		idColumn:      magIDColumn,
		segment:       "mags",
		document:      "mag.json",
		progressEvery: 500,
	})
}

type sheetSpec struct {
	name          string
	idColumn      string
	segment       string
	document      string
	progressEvery int
}

func (l *Loader) loadSheet(ctx context.Context, wb *excelize.File, spec sheetSpec) (*Stats, error) {
	rows, err := wb.GetRows(spec.name)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", spec.name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", spec.name)
	}

	header := rows[0]
	idIndex := -1
	for i, col := range header {
		if col == spec.idColumn {
			idIndex = i
			break
		}
	}
	if idIndex < 0 {
		return nil, fmt.Errorf("sheet %s has no %s column", spec.name, spec.idColumn)
	}

	data := rows[1:]
	if l.opts.limit > 0 && len(data) > l.opts.limit {
		data = data[:l.opts.limit]
	}

	log := l.opts.logger.With("sheet", spec.name)
	log.InfoContext(ctx, "loading sheet", "rows", len(data))

	stats := &Stats{}

	for i, row := range data {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		id := rowID(row, idIndex)
		if id == "" {
			log.WarnContext(ctx, "row has no identifier, skipping", "row", i+2)
			stats.Failed++
			continue
		}

		key := path.Join(l.opts.basePrefix, "raw_data", spec.segment, id, spec.document)

		if l.opts.dryRun {
			log.InfoContext(ctx, "would upload", "key", key)
			stats.Planned++
			continue
		}

		doc, err := l.opts.codec.MarshalIndent(recordFor(header, row), "", "  ")
		if err != nil {
			log.WarnContext(ctx, "row encode failed, skipping", "row", i+2, "error", err)
			stats.Failed++
			continue
		}

		status, err := l.pub.PublishBytes(ctx, key, doc, "application/json")
		if err != nil {
			log.WarnContext(ctx, "publish failed", "key", key, "error", err)
			stats.Failed++
			continue
		}

		switch status {
		case publish.StatusAlreadyPresent:
			stats.Present++
		default:
			stats.Uploaded++
		}

		if spec.progressEvery > 0 && (i+1)%spec.progressEvery == 0 {
			log.InfoContext(ctx, "progress", "done", i+1, "total", len(data))
		}
	}

	log.InfoContext(ctx, "sheet loaded",
		"uploaded", stats.Uploaded,
		"present", stats.Present,
		"failed", stats.Failed,
		"planned", stats.Planned,
	)

	return stats, nil
}

// recordFor turns one sheet row into a document keyed by column name.
// Numeric cells become JSON numbers, blank cells null, everything else
// strings, mirroring how the catalog is distributed.
func recordFor(header, row []string) map[string]any {
	record := make(map[string]any, len(header))

	for i, col := range header {
		if col == "" {
			continue
		}

		var cell string
		if i < len(row) {
			cell = strings.TrimSpace(row[i])
		}

		record[col] = cellValue(cell)
	}

	return record
}

func cellValue(cell string) any {
	if cell == "" || cell == "NA" || cell == "NaN" {
		return nil
	}

	if n, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}

	return cell
}

// rowID extracts and normalizes the identifier cell. Spreadsheet tools
// sometimes render integer identifiers with a trailing ".0"; those come
// back as the plain integer.
func rowID(row []string, idIndex int) string {
	if idIndex >= len(row) {
		return ""
	}

	id := strings.TrimSpace(row[idIndex])
	if id == "" {
		return ""
	}

	if f, err := strconv.ParseFloat(id, 64); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
		return strconv.FormatInt(int64(f), 10)
	}

	return id
}

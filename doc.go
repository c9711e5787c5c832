// Package transfers moves NCBI genome records from an FTP archive into an
// S3-compatible object store.
//
// A Pipeline takes genome accessions (GB_GCA_000195005.1, RS_GCF_...),
// derives each record's archive directory, selects the standard set of
// record files, stages them through local scratch space with checksum
// verification, and publishes them under a deterministic key layout.
// Re-running a batch is cheap: objects already in the store are detected
// and skipped.
//
// # Quick Start
//
//	ctx := context.Background()
//
//	arc := ftp.New("ftp.ncbi.nlm.nih.gov:21")
//	store, _ := minio.New("cdm-lake",
//		minio.WithEndpoint("localhost:9000"),
//		minio.WithCredentials("minioadmin", "minioadmin"),
//	)
//
//	pipe, _ := transfers.New(arc, store,
//		transfers.WithConcurrency(4),
//		transfers.WithLogger(transfers.NewTextLogger(slog.LevelInfo)),
//	)
//
//	f, _ := os.Open("accessions.txt")
//	report, _ := pipe.RunList(ctx, f)
//	fmt.Println(report.Summary())
//
// # Failure Model
//
// One bad accession never takes down a batch. Each accession runs its own
// state machine and records its outcome in the Report; Run returns an error
// only for batch-fatal conditions such as an unreachable store. Within an
// accession, individual file failures degrade rather than abort: files that
// cannot be staged are skipped with a note, and files that fail to publish
// are recorded while the rest of the record completes.
//
// # Key Layout
//
// Objects land under a fixed prefix mirroring the archive's sharding:
//
//	{base}/raw_data/GCA/000/195/005/GCA_000195005.1_ASM19500v1/GCA_000195005.1_ASM19500v1_genomic.fna.gz
//	{base}/raw_data/GCA/000/195/005/GCA_000195005.1_ASM19500v1/md5checksums.txt
//	{base}/raw_data/GCA/000/195/005/GCA_000195005.1_ASM19500v1/datapackage.json
//
// The datapackage.json descriptor is generated per record and covers the
// files committed by the run that wrote it.
package transfers

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	transfers "github.com/kbase/cdm-transfers"
	"github.com/kbase/cdm-transfers/archive/ftp"
	"github.com/kbase/cdm-transfers/resource"
)

var (
	ftpHostMsg     = "NCBI genomes FTP host:port."
	concurrencyMsg = "Number of accessions transferred in parallel."
	limitMsg       = "Process only the first N accessions. Zero means all."
	dryRunMsg      = "Resolve and list records but upload nothing."
	stagingRootMsg = "Directory for per-accession scratch space. Defaults to the system temp dir."
	attemptsMsg    = "Download attempts per file before it is skipped."
	backoffMsg     = "Initial retry backoff for flaky downloads."
	minFreeMsg     = "Refuse to stage when the scratch volume has fewer free bytes. Zero disables the check."
	reverifyMsg    = "Replace stored objects whose digest no longer matches the record's checksum manifest."
	descriptorMsg  = "Publish a datapackage.json descriptor per record."
	ftpOpsMsg      = "Archive operations per second. The public NCBI servers expect polite clients."
	ioLimitMsg     = "Download throughput cap in bytes per second. Zero means unlimited."
	scratchMsg     = "Hard cap for staged bytes held on scratch at once. Zero disables the cap."
	reportMsg      = "Write the batch report as JSON to this file."
)

var (
	ftpHost      string
	concurrency  int
	limit        int
	dryRun       bool
	stagingRoot  string
	attempts     int
	backoff      time.Duration
	minFree      int64
	reverify     bool
	descriptor   bool
	ftpOps       float64
	ioLimit      int64
	scratchLimit int64
	reportPath   string
)

func init() {
	rootCmd.AddCommand(genomesCmd)

	genomesCmd.Flags().StringVar(&ftpHost, "ftp-host", ftp.DefaultHost, ftpHostMsg)
	genomesCmd.Flags().IntVar(&concurrency, "concurrency", 1, concurrencyMsg)
	genomesCmd.Flags().IntVar(&limit, "limit", 0, limitMsg)
	genomesCmd.Flags().BoolVar(&dryRun, "dry-run", false, dryRunMsg)
	genomesCmd.Flags().StringVar(&stagingRoot, "staging-root", "", stagingRootMsg)
	genomesCmd.Flags().IntVar(&attempts, "attempts", 3, attemptsMsg)
	genomesCmd.Flags().DurationVar(&backoff, "backoff", 500*time.Millisecond, backoffMsg)
	genomesCmd.Flags().Int64Var(&minFree, "min-free", 0, minFreeMsg)
	genomesCmd.Flags().BoolVar(&reverify, "reverify", true, reverifyMsg)
	genomesCmd.Flags().BoolVar(&descriptor, "descriptor", true, descriptorMsg)
	genomesCmd.Flags().Float64Var(&ftpOps, "ftp-ops", 2, ftpOpsMsg)
	genomesCmd.Flags().Int64Var(&ioLimit, "io-limit", 0, ioLimitMsg)
	genomesCmd.Flags().Int64Var(&scratchLimit, "scratch-limit", 0, scratchMsg)
	genomesCmd.Flags().StringVar(&reportPath, "report", "", reportMsg)
}

var genomesCmd = &cobra.Command{
	Use:   "genomes [accession list file]",
	Short: "Transfer the NCBI genome records named by an accession list",
	Long: `Reads an accession list (one NCBI assembly accession per line, # comments
allowed), resolves each record on the genomes FTP archive, and publishes the
record files into the object store.

Individual accession failures are reported but do not fail the command; the
exit status is nonzero only when the input is unreadable or the object store
cannot be reached. Pass "-" to read the list from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		foldEnvVarsIntoFlagValues()

		in, err := openInput(args[0])
		if err != nil {
			return err
		}
		defer in.Close()

		pipe, err := newPipeline()
		if err != nil {
			return err
		}

		report, err := pipe.RunList(cmd.Context(), in)
		if err != nil {
			return err
		}

		printReport(report)
		if reportPath != "" {
			return writeReport(reportPath, report)
		}
		return nil
	},
}

func openInput(arg string) (io.ReadCloser, error) {
	if arg == "-" {
		return io.NopCloser(os.Stdin), nil
	}

	f, err := os.Open(arg)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't open accession list file at: %s", arg)
	}
	return f, nil
}

func newPipeline() (*transfers.Pipeline, error) {
	store, err := newStore()
	if err != nil {
		return nil, err
	}

	ctrl := resource.NewController(resource.Config{
		MaxTransfers:       int64(concurrency),
		ScratchLimitBytes:  scratchLimit,
		ArchiveOpsPerSec:   ftpOps,
		IOLimitBytesPerSec: ioLimit,
	})

	arc := ftp.New(ftpHost, ftp.WithController(ctrl))

	return transfers.New(arc, store,
		transfers.WithLogger(newLogger()),
		transfers.WithController(ctrl),
		transfers.WithConcurrency(concurrency),
		transfers.WithLimit(limit),
		transfers.WithDryRun(dryRun),
		transfers.WithStagingRoot(stagingRoot),
		transfers.WithDownloadAttempts(attempts),
		transfers.WithDownloadBackoff(backoff),
		transfers.WithMinFreeBytes(minFree),
		transfers.WithReverify(reverify),
		transfers.WithDescriptor(descriptor),
	)
}

func printReport(report *transfers.Report) {
	fmt.Println(report.Summary())

	for _, res := range report.Results() {
		if !res.Failed() {
			continue
		}
		fmt.Printf("  failed %s at %s: %v\n", res.Token, res.Stage, res.Err)
	}
}

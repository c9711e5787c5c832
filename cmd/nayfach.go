package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/kbase/cdm-transfers/nayfach"
)

var (
	dataDirMsg       = "Directory the supplementary workbook is downloaded into."
	forceDownloadMsg = "Re-download the workbook even when it is already on disk."
	skipDownloadMsg  = "Use the workbook already on disk, never download."
	workbookMsg      = "Load this workbook file and skip the download entirely."
	nayfachDryRunMsg = "Show what would be uploaded without actually uploading."
	nayfachLimitMsg  = "Load only the first N rows of each sheet. Zero means all."
)

var (
	dataDir       string
	forceDownload bool
	skipDownload  bool
	workbookFile  string
	nayfachDryRun bool
	nayfachLimit  int
)

func init() {
	rootCmd.AddCommand(nayfachCmd)

	nayfachCmd.Flags().StringVar(&dataDir, "data-dir", "data", dataDirMsg)
	nayfachCmd.Flags().BoolVar(&forceDownload, "force-download", false, forceDownloadMsg)
	nayfachCmd.Flags().BoolVar(&skipDownload, "skip-download", false, skipDownloadMsg)
	nayfachCmd.Flags().StringVar(&workbookFile, "workbook", "", workbookMsg)
	nayfachCmd.Flags().BoolVar(&nayfachDryRun, "dry-run", false, nayfachDryRunMsg)
	nayfachCmd.Flags().IntVar(&nayfachLimit, "limit", 0, nayfachLimitMsg)
}

var nayfachCmd = &cobra.Command{
	Use:   "nayfach",
	Short: "Load the Nayfach 2020 GEM catalog supplement into the object store",
	Long: `Downloads the supplementary workbook of Nayfach et al. 2020, "A genomic
catalog of Earth's microbiomes" (doi:10.1038/s41587-020-0718-6), and loads
its metagenome (S1) and MAG (S2) sheets as JSON documents. Documents already
in the store are left alone, so reruns are cheap.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		foldEnvVarsIntoFlagValues()
		ctx := cmd.Context()

		var workbookPath string
		switch {
		case workbookFile != "":
			workbookPath = workbookFile
			if _, err := os.Stat(workbookPath); err != nil {
				return errors.Wrapf(err, "no workbook at: %s", workbookPath)
			}
		case skipDownload:
			workbookPath = filepath.Join(dataDir, nayfach.WorkbookFileName)
			if _, err := os.Stat(workbookPath); err != nil {
				return errors.Wrapf(err, "no workbook at %s, run without --skip-download to fetch it", workbookPath)
			}
		default:
			var err error
			workbookPath, err = nayfach.FetchWorkbook(ctx, nayfach.WorkbookURL, dataDir, forceDownload)
			if err != nil {
				return err
			}
		}

		store, err := newStore()
		if err != nil {
			return err
		}

		loader, err := nayfach.NewLoader(store,
			nayfach.WithLogger(newLogger().Logger),
			nayfach.WithDryRun(nayfachDryRun),
			nayfach.WithLimit(nayfachLimit),
		)
		if err != nil {
			return err
		}

		stats, err := loader.LoadWorkbook(ctx, workbookPath)
		if err != nil {
			return err
		}

		fmt.Printf("%d rows: %d uploaded, %d already present, %d failed, %d planned\n",
			stats.Rows(), stats.Uploaded, stats.Present, stats.Failed, stats.Planned)
		return nil
	},
}

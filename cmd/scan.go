package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	scanTransferMsg = "Transfer every discovered record instead of printing accessions."
)

var scanTransfer bool

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().BoolVar(&scanTransfer, "transfer", false, scanTransferMsg)

	// The scan walks the same archive and feeds the same pipeline the
	// genomes command uses, so it shares that command's tuning flags.
	scanCmd.Flags().AddFlagSet(genomesCmd.Flags())
}

var scanCmd = &cobra.Command{
	Use:   "scan [GCA|GCF]",
	Short: "Discover every record in an archive database shard",
	Long: `Walks one database shard of the genomes FTP archive (genomes/all/GCA or
genomes/all/GCF) and reconstructs the accession of every record directory
found. By default the accessions are printed one per line, ready to be fed
back into the genomes command; with --transfer they are processed
immediately.

A full shard walk issues tens of thousands of directory listings. Combine
with --limit while trialing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		foldEnvVarsIntoFlagValues()

		pipe, err := newPipeline()
		if err != nil {
			return err
		}

		accs, err := pipe.ScanPrefix(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if limit > 0 && len(accs) > limit {
			accs = accs[:limit]
		}

		if !scanTransfer {
			for _, acc := range accs {
				fmt.Println(acc.Key())
			}
			return nil
		}

		report, err := pipe.Run(cmd.Context(), accs)
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

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is overridden at build time via
// -ldflags "-X github.com/kbase/cdm-transfers/cmd.version=...".
var version = "0.2.0"

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of cdm-transfer",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cdm-transfer -- %s\n", version)
	},
}

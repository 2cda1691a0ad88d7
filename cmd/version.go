package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print dta version and supported PostgreSQL versions",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dta %s (commit: %s, built: %s)\n\n", Version, CommitSHA, BuildDate)
		fmt.Println("Supported PostgreSQL versions:")
		fmt.Println("  • PostgreSQL 13 – 17")
		fmt.Println("  • EXPLAIN (GENERIC_PLAN) used automatically on 16+")
		fmt.Println()
		fmt.Println("Requires the hypopg extension to be installed in the target database.")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

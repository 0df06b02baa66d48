package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "crashscan",
	Short: "Crash log scanner for Bethesda games",
	Long: `crashscan reads crash generator logs, matches them against known crash
signatures and writes an AUTOSCAN report next to every log.

Running crashscan without a subcommand scans the configured directories.`,
	SilenceUsage: true,
	RunE:         runScan,
}

func main() {
	rootCmd.Version = Version

	rootCmd.PersistentFlags().String("config", "", "settings file (default ./crashscan.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "directory holding the rule databases")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log at debug level")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error)")

	addScanFlags(rootCmd)

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(recordsCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

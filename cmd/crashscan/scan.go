package main

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/crashscan/backend/internal/models"
	"github.com/crashscan/backend/internal/report"
	"github.com/crashscan/backend/internal/scanner"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan every crash log in the scan directories",
	Long: `Scan crash logs found in the working directory, the script extender log
folder and the configured scan path. A report is written next to every log.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	addScanFlags(scanCmd)
}

// addScanFlags declares the flags that override scan settings. Their names
// are bound to settings keys by config.Load.
func addScanFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Bool("fcx-mode", false, "check game files and settings (slower)")
	f.Bool("simplify-logs", false, "drop noise lines before scanning")
	f.Bool("show-values", false, "look up record descriptions")
	f.Bool("vr-mode", false, "scan logs of the VR edition")
	f.String("scan-path", "", "extra directory to scan")
	f.String("ini-path", "", "game documents folder holding the script extender logs")
	f.String("game-path", "", "game installation folder")
	f.Int("jobs", 0, "logs scanned at once (0 = number of CPUs)")
	f.String("export", "", "also export each report as json or msgpack")
}

func runScan(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if !report.ValidFormat(a.cfg.Settings.ExportFormat) {
		return fmt.Errorf("unsupported export format %q", a.cfg.Settings.ExportFormat)
	}

	paths, err := scanner.Discover(a.cfg.ScanDirs()...)
	if err != nil {
		return err
	}
	a.log.WithField("logs", len(paths)).Info("scan started")

	start := time.Now()
	stats := a.runner().Run(commandContext(cmd), paths)
	elapsed := time.Since(start)

	a.log.WithFields(logrus.Fields{
		"scanned":    stats.Scanned,
		"incomplete": stats.Incomplete,
		"failed":     stats.Failed,
		"elapsed":    elapsed,
	}).Info("scan finished")

	printSummary(os.Stdout, stats, elapsed, randomHint(a.cfg.Game.Hints))
	return nil
}

func printSummary(w io.Writer, stats models.ScanStats, elapsed time.Duration, hint string) {
	bold := color.New(color.Bold)
	good := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)
	bad := color.New(color.FgRed)

	total := stats.Scanned + stats.Incomplete + stats.Failed
	if total == 0 {
		warn.Fprintln(w, "No crash logs were found. Copy your crash-*.log files next to crashscan or set scan_path.")
		return
	}

	bold.Fprintln(w, "SCAN COMPLETE")
	fmt.Fprintf(w, "Scanned all available logs in %.2f seconds.\n", elapsed.Seconds())
	good.Fprintf(w, "Scanned:    %d\n", stats.Scanned)
	if stats.Incomplete > 0 {
		warn.Fprintf(w, "Incomplete: %d (no plugin list, some checks were skipped)\n", stats.Incomplete)
	}
	if stats.Failed > 0 {
		bad.Fprintf(w, "Failed:     %d (see the journal for details)\n", stats.Failed)
	}
	fmt.Fprintln(w, "Reports were written next to each log as *-AUTOSCAN.md.")

	if hint != "" {
		fmt.Fprintln(w)
		bold.Fprint(w, "Random hint: ")
		fmt.Fprintln(w, hint)
	}
}

func randomHint(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return hints[rand.Intn(len(hints))]
}

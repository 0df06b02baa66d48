package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/crashscan/backend/internal/scanner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Scan new crash logs as they are written",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	addScanFlags(watchCmd)
	watchCmd.Flags().Duration("settle", scanner.DefaultSettle, "how long a new log must stay unchanged before it is scanned")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settle, _ := cmd.Flags().GetDuration("settle")
	w := scanner.NewWatcher(a.runner(), a.cfg.ScanDirs(), settle)

	ok := color.New(color.FgGreen)
	fail := color.New(color.FgRed)
	w.OnScan = func(path string, err error) {
		if err != nil {
			fail.Printf("FAILED  %s: %v\n", filepath.Base(path), err)
			return
		}
		ok.Printf("SCANNED %s\n", filepath.Base(path))
	}

	color.New(color.Bold).Println("Watching for new crash logs, press Ctrl+C to stop.")
	return w.Run(ctx)
}

package main

import (
	"fmt"
	"strings"

	"github.com/crashscan/backend/internal/config"
	"github.com/crashscan/backend/internal/logging"
	"github.com/crashscan/backend/internal/records"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Manage the record description database",
}

var recordsCompileCmd = &cobra.Command{
	Use:   "compile [reference-file]",
	Short: "Compile a reference file into the record store",
	Long: `Compile "plugin | id | description" lines into the DuckDB record store
named by records.store_path. The first reference file is used when no file
is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRecordsCompile,
}

var recordsLookupCmd = &cobra.Command{
	Use:   "lookup <id> <plugin>",
	Short: "Look up the description of one record",
	Args:  cobra.ExactArgs(2),
	RunE:  runRecordsLookup,
}

func init() {
	recordsCmd.AddCommand(recordsCompileCmd)
	recordsCmd.AddCommand(recordsLookupCmd)
}

func runRecordsCompile(cmd *cobra.Command, args []string) error {
	settingsFile, _ := cmd.Flags().GetString("config")
	if settingsFile == "" {
		settingsFile = config.DefaultSettingsFile
	}
	settings, err := config.LoadSettings(settingsFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := logging.New(settings.Log)
	if err != nil {
		return err
	}

	src := ""
	if len(args) > 0 {
		src = args[0]
	} else if len(settings.Records.ReferenceFiles) > 0 {
		src = settings.Records.ReferenceFiles[0]
	}
	if src == "" {
		return fmt.Errorf("no reference file given and none configured")
	}
	dst := settings.Records.StorePath
	if !strings.HasSuffix(strings.ToLower(dst), ".duckdb") {
		return fmt.Errorf("records.store_path must end in .duckdb to be compiled, got %s", dst)
	}

	n, err := records.CompileDuckStore(src, dst, logger)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Printf("Compiled %d records into %s\n", n, dst)
	return nil
}

func runRecordsLookup(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, appOptions{forceRecords: true})
	if err != nil {
		return err
	}
	defer a.Close()

	id := strings.TrimPrefix(strings.ToUpper(args[0]), "0X")
	desc, ok := a.resolver.Resolve(commandContext(cmd), id, args[1])
	if !ok {
		color.New(color.FgYellow).Printf("No record %s found in %s\n", id, args[1])
		return nil
	}
	fmt.Printf("%s | %s | %s\n", args[1], id, desc)
	return nil
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

type versionPayload struct {
	Tool      string `json:"tool"`
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

var versionFormat string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := versionPayload{
			Tool:      "crashscan",
			Version:   Version,
			BuildTime: BuildTime,
			GoVersion: runtime.Version(),
		}
		switch versionFormat {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		case "pretty", "":
			fmt.Printf("%s %s (built %s, %s)\n", p.Tool, p.Version, p.BuildTime, p.GoVersion)
			return nil
		default:
			return fmt.Errorf("unknown format %q (want pretty or json)", versionFormat)
		}
	},
}

func init() {
	versionCmd.Flags().StringVar(&versionFormat, "format", "pretty", "output format (pretty|json)")
}

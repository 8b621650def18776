package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"

	"github.com/emberlang/embergc/app/core/gc/scheduler"
)

// Build-time variables, set via -ldflags.
var (
	cliVersion = "dev"
	cliCommit  = "unknown"
	buildDate  = "unknown"
)

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display embergctl and config-schema version information",
	Run:   runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Output in JSON format")
}

type versionOutput struct {
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	BuildDate     string `json:"build_date"`
	Platform      string `json:"platform"`
	ConfigSchema  string `json:"config_schema_version"`
}

func runVersion(cmd *cobra.Command, args []string) {
	out := versionOutput{
		Version:      cliVersion,
		Commit:       cliCommit,
		BuildDate:    buildDate,
		Platform:     runtime.GOOS + "/" + runtime.GOARCH,
		ConfigSchema: scheduler.ConfigSchemaVersion,
	}

	if _, err := semver.NewVersion(scheduler.ConfigSchemaVersion); err != nil {
		fmt.Fprintf(os.Stderr, "warning: compiled config schema version %q is not valid semver: %v\n",
			scheduler.ConfigSchemaVersion, err)
	}

	if versionJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
		return
	}

	fmt.Printf("embergctl %s (commit %s, %s, %s)\n", out.Version, shortCommit(out.Commit), out.BuildDate, out.Platform)
	fmt.Printf("config schema: %s\n", out.ConfigSchema)
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}

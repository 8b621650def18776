package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "embergctl",
	Short: "embergc control CLI",
	Long: `
embergctl — operator tooling for embergc

embergc has no server process and no wire protocol to attach to: every
subcommand here drives its own in-process collector against a synthetic
mutator workload, the way a language runtime's own diagnostics would
watch a live GC from inside the same process.

COMMANDS:
  stats     Run a short workload and print epoch counters and heap stats
  tune      Print the effective scheduler configuration after overrides
  stress    Drive a longer synthetic workload, showing live progress
  observe   Launch a live TUI dashboard over a running workload
  version   Display embergctl and config-schema version information
`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// Execute runs the root command, exiting the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Print the effective scheduler configuration after overrides",
	Long: `
Loads the scheduler configuration from the same layered sources the
collector itself uses (compiled-in defaults, an optional YAML file, then
environment variables), applies any CLI overrides on top, and prints the
result without running a collector — useful for checking what a real
invocation would use before committing to it.

USAGE:
  embergctl tune --config ./gc.yaml --threshold 5000
`,
	RunE: runTune,
}

var tuneFlags configFlags

func init() {
	rootCmd.AddCommand(tuneCmd)
	tuneFlags.register(tuneCmd)
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := tuneFlags.load()
	if err != nil {
		return err
	}
	kind, err := tuneFlags.kind()
	if err != nil {
		return err
	}

	fmt.Printf("schema_version:                     %s\n", cfg.SchemaVersion)
	fmt.Printf("policy:                              %s\n", kind)
	fmt.Printf("threshold:                           %d\n", cfg.Threshold())
	fmt.Printf("thread_allocation_threshold_bytes:    %d\n", cfg.ThreadAllocationThresholdBytes())
	fmt.Printf("auto_tune:                            %t\n", cfg.AutoTune())
	fmt.Printf("regular_gc_interval_us:               %d\n", cfg.RegularGcIntervalUs())
	fmt.Printf("target_heap_bytes:                    %d\n", cfg.TargetHeapBytes())
	fmt.Printf("target_heap_utilization:              %.2f\n", cfg.TargetHeapUtilization())
	fmt.Printf("min_heap_bytes:                       %d\n", cfg.MinHeapBytes())
	fmt.Printf("max_heap_bytes:                       %d\n", cfg.MaxHeapBytes())
	return nil
}

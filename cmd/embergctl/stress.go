package main

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/emberlang/embergc/app/core/gc/hostmetrics"
)

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Drive a longer synthetic mutator workload against an in-process collector",
	Long: `
Stress runs a heavier, longer-lived synthetic workload than stats,
showing live progress and forcing an out-of-memory-style synchronous
collection via OnOOM once the workload completes — a stand-in for what
an allocator would do when it fails to satisfy a request.

USAGE:
  embergctl stress --duration 30s --mutators 8 --object-size 1024
`,
	RunE: runStress,
}

var (
	stressFlags    configFlags
	stressDuration time.Duration
	stressMutators int
	stressObjSize  int64
	stressHostLoad bool
)

func init() {
	rootCmd.AddCommand(stressCmd)
	stressFlags.register(stressCmd)
	stressCmd.Flags().DurationVar(&stressDuration, "duration", 30*time.Second, "How long to run the synthetic workload")
	stressCmd.Flags().IntVar(&stressMutators, "mutators", 8, "Number of simulated mutator threads")
	stressCmd.Flags().Int64Var(&stressObjSize, "object-size", 1024, "Size in bytes of each simulated allocation")
	stressCmd.Flags().BoolVar(&stressHostLoad, "host-load", false, "Print host CPU load once the workload finishes")
}

func runStress(cmd *cobra.Command, args []string) error {
	cfg, err := stressFlags.load()
	if err != nil {
		return err
	}
	kind, err := stressFlags.kind()
	if err != nil {
		return err
	}

	h := newHarness(kind, cfg, stressMutators)

	ticks := int(stressDuration / (200 * time.Millisecond))
	if ticks < 1 {
		ticks = 1
	}
	bar := progressbar.NewOptions(ticks,
		progressbar.OptionSetDescription("stress workload"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
	)

	done := make(chan struct{}, len(h.threads))
	for _, td := range h.threads {
		td := td
		go func() {
			h.runMutator(td, stressDuration, stressObjSize)
			done <- struct{}{}
		}()
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	remaining := len(h.threads)
	for remaining > 0 {
		select {
		case <-done:
			remaining--
		case <-ticker.C:
			_ = bar.Add(1)
		}
	}
	_ = bar.Finish()

	if len(h.threads) > 0 {
		h.collector.OnOOMWithFinalizers(h.threads[0])
	}
	h.shutdown()

	scheduled, started, finished, finalized := h.collector.Snapshot()
	fmt.Printf("\nworkload complete: scheduled=%d started=%d finished=%d finalized=%d\n",
		scheduled, started, finished, finalized)

	if stressHostLoad {
		load, err := hostmetrics.HostLoadPercent()
		if err != nil {
			fmt.Printf("host load: unavailable (%v)\n", err)
		} else {
			fmt.Printf("host load: %.1f%%\n", load)
		}
	}
	return nil
}

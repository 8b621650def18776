package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Run a short synthetic workload and report collector statistics",
	Long: `
Drives an in-process collector against a synthetic mutator workload for
a fixed duration, then prints the epoch counters, the most recent cycle,
and a rolling collections/sec rate.

USAGE:
  embergctl stats --duration 3s --mutators 4 --object-size 256
`,
	RunE: runStats,
}

var (
	statsFlags    configFlags
	statsDuration time.Duration
	statsMutators int
	statsObjSize  int64
	statsJSON     bool
)

func init() {
	rootCmd.AddCommand(statsCmd)
	statsFlags.register(statsCmd)
	statsCmd.Flags().DurationVar(&statsDuration, "duration", 3*time.Second, "How long to run the synthetic workload")
	statsCmd.Flags().IntVar(&statsMutators, "mutators", 4, "Number of simulated mutator threads")
	statsCmd.Flags().Int64Var(&statsObjSize, "object-size", 256, "Size in bytes of each simulated allocation")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output as JSON")
}

type statsOutput struct {
	Scheduled       int64   `json:"scheduled"`
	Started         int64   `json:"started"`
	Finished        int64   `json:"finished"`
	Finalized       int64   `json:"finalized"`
	CollectionsRate float64 `json:"collections_per_sec"`
	LatestCycle     *cycleOutput `json:"latest_cycle,omitempty"`
}

type cycleOutput struct {
	Epoch                 int64 `json:"epoch"`
	ObjectsCollected      int   `json:"objects_collected"`
	ExtraObjectsDestroyed int   `json:"extra_objects_destroyed"`
	AliveSetBytes         int64 `json:"alive_set_bytes"`
	TargetHeapBytes       int64 `json:"target_heap_bytes"`
	DurationNs            int64 `json:"duration_ns"`
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := statsFlags.load()
	if err != nil {
		return err
	}
	kind, err := statsFlags.kind()
	if err != nil {
		return err
	}

	h := newHarness(kind, cfg, statsMutators)
	runWorkload(h, statsDuration, statsObjSize)
	h.collector.ScheduleAndWaitFullGC()
	h.shutdown()

	scheduled, started, finished, finalized := h.collector.Snapshot()
	out := statsOutput{
		Scheduled:       scheduled,
		Started:         started,
		Finished:        finished,
		Finalized:       finalized,
		CollectionsRate: h.collector.Rate(statsDuration),
	}

	if samples := h.collector.Samples(); len(samples) > 0 {
		last := samples[len(samples)-1]
		out.LatestCycle = &cycleOutput{
			Epoch:                 last.Epoch,
			ObjectsCollected:      last.ObjectsCollected,
			ExtraObjectsDestroyed: last.ExtraObjectsDestroyed,
			AliveSetBytes:         last.AliveSetBytes,
			TargetHeapBytes:       last.TargetHeapBytes,
			DurationNs:            last.DurationNs,
		}
	}

	if statsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("epochs:      scheduled=%d started=%d finished=%d finalized=%d\n",
		out.Scheduled, out.Started, out.Finished, out.Finalized)
	fmt.Printf("rate:        %.2f collections/sec\n", out.CollectionsRate)
	if out.LatestCycle != nil {
		c := out.LatestCycle
		fmt.Printf("last cycle:  epoch=%d collected=%d extra-destroyed=%d alive=%dB target=%dB duration=%s\n",
			c.Epoch, c.ObjectsCollected, c.ExtraObjectsDestroyed, c.AliveSetBytes, c.TargetHeapBytes,
			time.Duration(c.DurationNs))
	}
	return nil
}

// runWorkload runs mutatorCount simulated mutator threads concurrently
// for duration, blocking until they have all finished.
func runWorkload(h *harness, duration time.Duration, objectSizeBytes int64) {
	done := make(chan struct{}, len(h.threads))
	for _, td := range h.threads {
		td := td
		go func() {
			h.runMutator(td, duration, objectSizeBytes)
			done <- struct{}{}
		}()
	}
	for range h.threads {
		<-done
	}
}

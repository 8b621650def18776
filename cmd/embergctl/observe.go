package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/emberlang/embergc/cmd/embergctl/observe"
)

var observeCmd = &cobra.Command{
	Use:   "observe",
	Short: "Launch a live TUI dashboard over a running synthetic workload",
	Long: `
Observe starts the same synthetic mutator workload as stress, but
renders a live terminal dashboard over the collector's epoch counters,
scheduler configuration, and recent cycle samples instead of a
progress bar.

USAGE:
  embergctl observe --mutators 6 --object-size 512
`,
	RunE: runObserveCmd,
}

var (
	observeFlags    configFlags
	observeMutators int
	observeObjSize  int64
)

func init() {
	rootCmd.AddCommand(observeCmd)
	observeFlags.register(observeCmd)
	observeCmd.Flags().IntVar(&observeMutators, "mutators", 6, "Number of simulated mutator threads")
	observeCmd.Flags().Int64Var(&observeObjSize, "object-size", 512, "Size in bytes of each simulated allocation")
}

func runObserveCmd(cmd *cobra.Command, args []string) error {
	cfg, err := observeFlags.load()
	if err != nil {
		return err
	}
	kind, err := observeFlags.kind()
	if err != nil {
		return err
	}

	h := newHarness(kind, cfg, observeMutators)
	defer h.shutdown()

	stopWorkload := make(chan struct{})
	for _, td := range h.threads {
		td := td
		go func() {
			for {
				select {
				case <-stopWorkload:
					return
				default:
					h.runMutator(td, 500*time.Millisecond, observeObjSize)
				}
			}
		}()
	}
	defer close(stopWorkload)

	sub, unsubscribe := h.collector.Subscribe()
	defer unsubscribe()

	model := observe.NewModel(h.collector, cfg, kind.String(), sub)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "observe:", err)
		os.Exit(1)
	}
	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emberlang/embergc/app/core/gc/scheduler"
)

// configFlags holds the common set of flags every workload-driving
// subcommand exposes for loading and overriding the scheduler
// configuration.
type configFlags struct {
	configPath string
	envPath    string
	policy     string

	setThreshold  int64
	setTargetHeap int64
	setAutoTune   bool
}

func (f *configFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configPath, "config", "", "Path to a scheduler config YAML file")
	cmd.Flags().StringVar(&f.envPath, "env-file", "", "Path to a .env file with EMBERGC_* overrides")
	cmd.Flags().StringVar(&f.policy, "policy", "with-timer", "Scheduling policy: disabled, with-timer, on-safepoints, aggressive")
	cmd.Flags().Int64Var(&f.setThreshold, "threshold", 0, "Override the regular-safepoint threshold")
	cmd.Flags().Int64Var(&f.setTargetHeap, "target-heap-bytes", 0, "Override the target heap size in bytes")
	cmd.Flags().BoolVar(&f.setAutoTune, "auto-tune", true, "Enable heap-target autotuning")
}

// load builds a *scheduler.Config from the layered sources (compiled-in
// defaults, YAML file, environment) and applies any explicit CLI
// overrides on top, the CLI flags winning over everything else.
func (f *configFlags) load() (*scheduler.Config, error) {
	cfg := scheduler.DefaultConfig()

	if f.configPath != "" {
		data, err := os.ReadFile(f.configPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		cfg, err = scheduler.LoadYAML(data)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := cfg.ApplyEnv(f.envPath); err != nil {
		return nil, err
	}

	if f.setThreshold > 0 {
		cfg.SetThreshold(f.setThreshold)
	}
	if f.setTargetHeap > 0 {
		cfg.SetTargetHeapBytes(f.setTargetHeap)
	}
	cfg.SetAutoTune(f.setAutoTune)

	return cfg, nil
}

func (f *configFlags) kind() (scheduler.Kind, error) {
	switch f.policy {
	case "disabled":
		return scheduler.Disabled, nil
	case "with-timer":
		return scheduler.WithTimer, nil
	case "on-safepoints":
		return scheduler.OnSafepoints, nil
	case "aggressive":
		return scheduler.Aggressive, nil
	default:
		return 0, fmt.Errorf("unknown policy %q", f.policy)
	}
}

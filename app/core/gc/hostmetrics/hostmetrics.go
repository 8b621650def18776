// Package hostmetrics periodically samples process and host resource
// usage (RSS, CPU load) and feeds it to the telemetry sink alongside GC
// cycle samples, so a reader of that sink can show collector pressure
// next to the process's actual footprint. It is
// ambient tooling: nothing under app/core/gc's collector, scheduler,
// sweep, safepoint, or epoch packages imports it.
package hostmetrics

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/process"

	"github.com/emberlang/embergc/app/core/gc/telemetry"
	"github.com/emberlang/embergc/app/safego"
)

// sampleName is this monitor's stream name in the shared telemetry
// sink, distinct from the collector's own "gc.cycle" stream so the two
// series never collide while still sharing one Sink (and therefore one
// Subscribe feed) for the TUI dashboard.
const sampleName = "host"

// Snapshot is one point-in-time reading of the host process's footprint.
type Snapshot struct {
	TakenAt      time.Time
	RSSBytes     uint64
	VirtualBytes uint64
	CPUPercent   float64
}

// Monitor periodically samples the current process and records what it
// finds into a telemetry sink under the "host" event kind, so it shows
// up interleaved with GC cycle samples on the same timeline.
type Monitor struct {
	proc     *process.Process
	sink     *telemetry.Sink
	interval time.Duration

	cancel context.CancelFunc
}

// NewMonitor constructs a Monitor for the current OS process. Start must
// be called to begin sampling.
func NewMonitor(sink *telemetry.Sink, interval time.Duration) (*Monitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Monitor{proc: proc, sink: sink, interval: interval}, nil
}

// Start launches the sampling loop in a panic-contained background
// goroutine. Stop must be called to release its ticker.
func (m *Monitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	safego.Go("hostmetrics-monitor", func() { m.run(ctx) })
}

// Stop halts the sampling loop.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := m.sample()
			if err != nil {
				slog.Warn("hostmetrics: sample failed", slog.Any("error", err))
				continue
			}
			m.sink.Record(telemetry.Sample{
				Name:           sampleName,
				StartedAt:      snap.TakenAt,
				HostRSSBytes:   snap.RSSBytes,
				HostVMBytes:    snap.VirtualBytes,
				HostCPUPercent: snap.CPUPercent,
			})
		}
	}
}

// sample reads memory and CPU usage for the monitored process. CPU
// percent uses a 0-duration interval (gopsutil's non-blocking delta
// mode against its own internal last-read timestamp) so sampling never
// stalls the monitor goroutine.
func (m *Monitor) sample() (Snapshot, error) {
	memInfo, err := m.proc.MemoryInfo()
	if err != nil {
		return Snapshot{}, err
	}
	pct, err := m.proc.Percent(0)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		TakenAt:      time.Now(),
		RSSBytes:     memInfo.RSS,
		VirtualBytes: memInfo.VMS,
		CPUPercent:   pct,
	}, nil
}

// HostLoadPercent reports system-wide CPU load (as opposed to the
// monitored process's own share), printed by the CLI's stress command
// when run with --host-load.
func HostLoadPercent() (float64, error) {
	percentages, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, nil
	}
	return percentages[0], nil
}

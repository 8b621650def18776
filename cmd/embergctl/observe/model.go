// Package observe implements the embergctl `observe` live TUI dashboard:
// a terminal view over a running collector's epoch counters, scheduler
// configuration, and recent cycle samples.
package observe

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/emberlang/embergc/app/core/gc"
	"github.com/emberlang/embergc/app/core/gc/scheduler"
	"github.com/emberlang/embergc/app/core/gc/telemetry"
)

// Tab is one of the dashboard's views.
type Tab int

const (
	TabCycles Tab = iota
	TabConfig
)

// Model is the Bubbletea model for the observe dashboard.
type Model struct {
	collector  *gc.Collector
	cfg        *scheduler.Config
	policyName string
	sub        telemetry.Subscriber

	activeTab Tab
	samples   []telemetry.Sample
	viewport  viewport.Model

	width  int
	height int

	scheduled, started, finished, finalized int64
	rate                                     float64
}

type tickMsg time.Time
type sampleMsg telemetry.Sample

// NewModel constructs an observe dashboard over collector, reading
// scheduler configuration from cfg and consuming new cycle samples from
// sub.
func NewModel(collector *gc.Collector, cfg *scheduler.Config, policyName string, sub telemetry.Subscriber) Model {
	return Model{
		collector:  collector,
		cfg:        cfg,
		policyName: policyName,
		sub:        sub,
		samples:    collector.Samples(),
	}
}

// Init starts the polling tick and the sample-subscription read loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), waitForSample(m.sub))
}

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForSample(sub telemetry.Subscriber) tea.Cmd {
	return func() tea.Msg {
		sample, ok := <-sub
		if !ok {
			return nil
		}
		return sampleMsg(sample)
	}
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = msg.Height - 8
		m.viewport.SetContent(m.renderCycles())

	case tickMsg:
		m.scheduled, m.started, m.finished, m.finalized = m.collector.Snapshot()
		m.rate = m.collector.Rate(10 * time.Second)
		return m, tickCmd()

	case sampleMsg:
		sample := telemetry.Sample(msg)
		m.samples = append(m.samples, sample)
		if len(m.samples) > 200 {
			m.samples = m.samples[1:]
		}
		m.viewport.SetContent(m.renderCycles())
		return m, waitForSample(m.sub)
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "1":
		m.activeTab = TabCycles
		return m, nil
	case "2":
		m.activeTab = TabConfig
		return m, nil
	}

	if m.activeTab == TabCycles {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(" embergc observe ") + "  ")
	b.WriteString(m.renderEpochs())
	b.WriteString("\n\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(mutedColor).Render(strings.Repeat("─", min(m.width-2, 100))))
	b.WriteString("\n")

	switch m.activeTab {
	case TabCycles:
		b.WriteString(m.viewport.View())
	case TabConfig:
		b.WriteString(m.renderConfig())
	}

	b.WriteString("\n" + helpStyle.Render("[1] Cycles  [2] Config  [Q] Quit"))
	return b.String()
}

func (m Model) renderEpochs() string {
	return statLabelStyle.Render("scheduled=") + statValueStyle.Render(fmt.Sprintf("%d", m.scheduled)) +
		statLabelStyle.Render(" started=") + statValueStyle.Render(fmt.Sprintf("%d", m.started)) +
		statLabelStyle.Render(" finished=") + statValueStyle.Render(fmt.Sprintf("%d", m.finished)) +
		statLabelStyle.Render(" finalized=") + statValueStyle.Render(fmt.Sprintf("%d", m.finalized)) +
		statLabelStyle.Render(" rate=") + successStyle.Render(fmt.Sprintf("%.2f/s", m.rate))
}

func (m Model) renderTabs() string {
	tabs := []struct {
		name string
		tab  Tab
	}{
		{"[1] Cycles", TabCycles},
		{"[2] Config", TabConfig},
	}
	var out string
	for _, t := range tabs {
		if t.tab == m.activeTab {
			out += activeTabStyle.Render(t.name) + "  "
		} else {
			out += inactiveTabStyle.Render(t.name) + "  "
		}
	}
	return out
}

func (m Model) renderCycles() string {
	if len(m.samples) == 0 {
		return lipgloss.NewStyle().Foreground(mutedColor).Render("  No cycles recorded yet.")
	}

	header := fmt.Sprintf("  %-12s %8s %10s %10s %12s %10s",
		"TIME", "EPOCH", "COLLECTED", "EXTRA-DEL", "ALIVE-BYTES", "DURATION")
	var rows string
	rows += lipgloss.NewStyle().Foreground(mutedColor).Render(header) + "\n"

	start := 0
	if len(m.samples) > 30 {
		start = len(m.samples) - 30
	}
	for _, s := range m.samples[start:] {
		rows += fmt.Sprintf("  %s %8d %10d %10d %12d %10s\n",
			timestampStyle.Render(s.StartedAt.Format("15:04:05.000")),
			s.Epoch, s.ObjectsCollected, s.ExtraObjectsDestroyed, s.AliveSetBytes,
			time.Duration(s.DurationNs).String())
	}
	return rows
}

func (m Model) renderConfig() string {
	var b strings.Builder
	b.WriteString("  " + statLabelStyle.Render("Policy: ") + statValueStyle.Render(m.policyName) + "\n")
	b.WriteString("  " + statLabelStyle.Render("Threshold: ") + statValueStyle.Render(fmt.Sprintf("%d", m.cfg.Threshold())) + "\n")
	b.WriteString("  " + statLabelStyle.Render("Thread alloc threshold bytes: ") + statValueStyle.Render(fmt.Sprintf("%d", m.cfg.ThreadAllocationThresholdBytes())) + "\n")
	b.WriteString("  " + statLabelStyle.Render("Auto-tune: ") + statValueStyle.Render(fmt.Sprintf("%t", m.cfg.AutoTune())) + "\n")
	b.WriteString("  " + statLabelStyle.Render("Regular GC interval: ") + statValueStyle.Render(time.Duration(m.cfg.RegularGcIntervalUs()*int64(time.Microsecond)).String()) + "\n")
	b.WriteString("  " + statLabelStyle.Render("Target heap bytes: ") + statValueStyle.Render(fmt.Sprintf("%d", m.cfg.TargetHeapBytes())) + "\n")
	b.WriteString("  " + statLabelStyle.Render("Target heap utilization: ") + statValueStyle.Render(fmt.Sprintf("%.2f", m.cfg.TargetHeapUtilization())) + "\n")
	b.WriteString("  " + statLabelStyle.Render("Min/max heap bytes: ") + statValueStyle.Render(fmt.Sprintf("%d / %d", m.cfg.MinHeapBytes(), m.cfg.MaxHeapBytes())) + "\n")
	return b.String()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

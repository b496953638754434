// Package tui provides a live terminal dashboard for one catchunks fetch.
//
// The TUI uses Bubble Tea for the application framework and Lipgloss for
// styling. It displays the same figures the -S statistics line does —
// segment progress, throughput, congestion window, RTT percentiles — as a
// dashboard instead of a scrolling log, for interactive use.
package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ndn-tools/catchunks-go/internal/stats"
)

// StatsMsg carries one statistics tick from the fetch into the dashboard.
type StatsMsg struct {
	Tick stats.Tick
}

// DoneMsg signals the fetch reached a terminal outcome.
type DoneMsg struct {
	ExitCode int
	Reason   string
}

// Model represents the TUI state for one fetch.
type Model struct {
	name          string
	faceAddr      string
	discoveryMode string

	tick    stats.Tick
	hasTick bool

	startTime time.Time

	width  int
	height int

	done     bool
	exitCode int
	failure  string

	quitting bool
}

// Config holds TUI configuration.
type Config struct {
	Name          string
	FaceAddr      string
	DiscoveryMode string
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		name:          cfg.Name,
		faceAddr:      cfg.FaceAddr,
		discoveryMode: cfg.DiscoveryMode,
		startTime:     time.Now(),
		width:         80,
		height:        24,
	}
}

// Init initializes the model. The dashboard has no ticking of its own: it
// is entirely driven by StatsMsg/DoneMsg sent from the fetch's own
// statistics-tick hook, so there's nothing to schedule here.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case StatsMsg:
		m.tick = msg.Tick
		m.hasTick = true
		return m, nil

	case DoneMsg:
		m.done = true
		m.exitCode = msg.ExitCode
		m.failure = msg.Reason
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderSummaryView()
}

// Elapsed returns the time since the fetch started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// =============================================================================
// Helper for external use
// =============================================================================

// SendTick sends a statistics tick to the TUI.
func SendTick(p *tea.Program, tick stats.Tick) {
	if p != nil {
		p.Send(StatsMsg{Tick: tick})
	}
}

// SendDone sends the fetch's terminal outcome to the TUI.
func SendDone(p *tea.Program, exitCode int, reason string) {
	if p != nil {
		p.Send(DoneMsg{ExitCode: exitCode, Reason: reason})
	}
}

// =============================================================================
// Formatting helpers (used by view.go)
// =============================================================================

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatRate formats a bytes/sec rate using the same binary-unit suffixes
// as the -S statistics line.
func formatRate(bytesPerSec float64) string {
	return stats.FormatBytes(int64(bytesPerSec)) + "/s"
}

// formatMs formats a duration in milliseconds.
func formatMs(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d ms", d.Milliseconds())
}

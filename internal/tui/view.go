package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/ndn-tools/catchunks-go/internal/stats"
)

// =============================================================================
// Main View Rendering
// =============================================================================

func (m Model) renderSummaryView() string {
	sections := []string{
		m.renderHeader(),
		m.renderProgress(),
	}

	if m.hasTick {
		sections = append(sections, m.renderThroughput(), m.renderRTT())
	}

	if m.done {
		sections = append(sections, m.renderOutcome())
	}

	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	header := fmt.Sprintf(
		" catchunks │ %s │ discovery: %s │ elapsed: %s ",
		m.name,
		m.discoveryMode,
		formatDuration(m.Elapsed()),
	)
	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Progress
// =============================================================================

func (m Model) renderProgress() string {
	progress := m.tick.PercentComplete()

	barWidth := m.width - 30
	if barWidth < 20 {
		barWidth = 20
	}

	var progressBar, status string
	if !m.hasTick || progress < 0 {
		progressBar = RenderProgressBar(0, barWidth)
		status = statusInfo.Render("Discovering FinalBlockId...")
	} else {
		progressBar = RenderProgressBar(progress/100, barWidth)
		status = statusInfo.Render(fmt.Sprintf("%d/%d segments", m.tick.SegmentsReceived, m.tick.SegmentsTotal))
		if progress >= 100 {
			status = statusOK.Render("✓ fetch complete")
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render("Progress"),
		progressBar,
		status,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Throughput / window
// =============================================================================

func (m Model) renderThroughput() string {
	t := m.tick
	rows := []string{
		RenderKeyValue("Bytes received", stats.FormatBytes(t.BytesTotal)),
		RenderKeyValue("Throughput", formatRate(float64(t.BytesInterval))),
		RenderKeyValue("Window size", fmt.Sprintf("%.2f", t.WindowSize)),
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Transfer")}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// RTT
// =============================================================================

func (m Model) renderRTT() string {
	t := m.tick
	rows := []string{
		RenderKeyValue("Mean RTT", formatMs(t.RTTMean)),
	}
	if t.RTTP50 > 0 {
		rows = append(rows,
			RenderKeyValue("p50", formatMs(t.RTTP50)),
			RenderKeyValue("p90", formatMs(t.RTTP90)),
			RenderKeyValue("p99", formatMs(t.RTTP99)),
		)
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("RTT")}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Outcome
// =============================================================================

func (m Model) renderOutcome() string {
	style := statusOK
	text := "success"
	if m.exitCode != 0 {
		style = statusError
		text = m.failure
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render("Outcome"),
		style.Render(fmt.Sprintf("exit %d: %s", m.exitCode, text)),
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	left := dimStyle.Render("q: quit")
	right := dimStyle.Render("face: " + m.faceAddr)

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}

	return footerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Left,
			left,
			lipgloss.NewStyle().Width(padding).Render(""),
			right,
		),
	)
}

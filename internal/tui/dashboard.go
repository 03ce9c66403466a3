// Package tui implements the live terminal dashboard shown by
// `culverin attack --live`. Grounded on the teacher's tui.Model and
// views.DashboardView, generalized from a fixed RPS/users run to the
// rate/duration attack model and from a *runner.Runner-shaped stats
// snapshot to metrics.Aggregator.Snapshot.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"culverin/internal/attack"
	"culverin/internal/metrics"
	"culverin/internal/tui/components"
	"culverin/internal/tui/styles"
)

const tickInterval = 250 * time.Millisecond

type tickMsg time.Time

// DoneMsg tells the dashboard the attack finished, so it can quit its own
// event loop instead of waiting for a 'q' keypress.
type DoneMsg struct{}

// Model polls agg on a fixed tick rather than reacting to individual
// Results, since Aggregator is already the strict-online, bounded-memory
// reducer the rest of the pipeline shares — the dashboard just samples it.
type Model struct {
	cfg   attack.Config
	agg   *metrics.Aggregator
	start time.Time

	progress progress.Model
	rps      components.Sparkline
	latency  components.Sparkline

	lastCount uint64
	quitting  bool
}

// NewModel builds a dashboard Model for cfg, sampling agg on every tick.
func NewModel(cfg attack.Config, agg *metrics.Aggregator) Model {
	return Model{
		cfg:   cfg,
		agg:   agg,
		start: time.Now(),
		progress: progress.New(
			progress.WithGradient("#7D56F4", "#04B575"),
			progress.WithoutPercentage(),
		),
		rps:     components.NewSparkline(40, 1, "requests/sec", styles.Value),
		latency: components.NewSparkline(40, 1, "p99 latency (ms)", styles.Warn),
	}
}

func (m Model) Init() tea.Cmd { return tick() }

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.progress.Width = msg.Width - 10
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.quitting = true
			return m, tea.Quit
		}

	case DoneMsg:
		m.quitting = true
		return m, tea.Quit

	case tickMsg:
		snap := m.agg.Snapshot()
		delta := snap.TotalRequests - m.lastCount
		m.lastCount = snap.TotalRequests
		m.rps.Add(uint64(float64(delta) / tickInterval.Seconds()))
		m.latency.Add(uint64(snap.Latencies.P99.Milliseconds()))

		var pct float64
		if m.cfg.Duration > 0 {
			pct = float64(time.Since(m.start)) / float64(m.cfg.Duration)
			if pct > 1 {
				pct = 1
			}
		}
		cmd := m.progress.SetPercent(pct)
		return m, tea.Batch(cmd, tick())

	case progress.FrameMsg:
		p, cmd := m.progress.Update(msg)
		m.progress = p.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	snap := m.agg.Snapshot()
	l := snap.Latencies

	body := strings.Builder{}
	body.WriteString(styles.Title.Render(fmt.Sprintf("culverin attack %q", m.cfg.Name)))
	body.WriteString("\n\n")
	body.WriteString(m.progress.View())
	body.WriteString("\n\n")
	body.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		card("Requests", fmt.Sprintf("%d", snap.TotalRequests)),
		card("Success", fmt.Sprintf("%.1f%%", snap.SuccessRate*100)),
		card("P50", l.P50.Round(time.Millisecond).String()),
		card("P99", l.P99.Round(time.Millisecond).String()),
	))
	body.WriteString("\n\n")
	body.WriteString(m.rps.View())
	body.WriteString("\n")
	body.WriteString(m.latency.View())
	body.WriteString("\n\n")
	body.WriteString(styles.Subtle.Render("Press q to quit early"))

	return styles.Panel.Render(body.String())
}

func card(title, value string) string {
	return styles.Box.Width(18).Align(lipgloss.Center).Render(
		fmt.Sprintf("%s\n%s", styles.Subtle.Render(title), styles.Value.Render(value)))
}

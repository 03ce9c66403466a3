package main

import (
	tea "github.com/charmbracelet/bubbletea"

	"culverin/internal/attack"
	"culverin/internal/metrics"
	"culverin/internal/tui"
)

// dashboard wraps a bubbletea program running the live attack view so
// attack.go can start it alongside the engine and stop it once the run
// finishes, without the engine or its tap knowing a TUI is attached.
type dashboard struct {
	program *tea.Program
	done    chan struct{}
}

func newDashboard(cfg attack.Config, agg *metrics.Aggregator) *dashboard {
	return &dashboard{
		program: tea.NewProgram(tui.NewModel(cfg, agg)),
		done:    make(chan struct{}),
	}
}

func (d *dashboard) run() {
	defer close(d.done)
	_, _ = d.program.Run()
}

func (d *dashboard) stop() {
	d.program.Send(tui.DoneMsg{})
	<-d.done
}

// Package tui renders live fetch-run progress with bubbletea. The view
// polls a RunTracker snapshot; non-TTY invocations skip the TUI entirely
// and rely on log output.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// StatusProvider returns the current run snapshot for rendering.
type StatusProvider func() Snapshot

type model struct {
	provider   StatusProvider
	snap       Snapshot
	spinnerIdx int
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tickMsg:
		m.snap = m.provider()
		m.spinnerIdx++
		if m.snap.Done {
			// Final frame renders the run outcome before the program exits.
			return m, tea.Quit
		}
		return m, tickCmd()
	}
	return m, nil
}

var (
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	itemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func (m model) View() string {
	snap := m.snap
	if snap.RunID == "" {
		return dimStyle.Render("Waiting for run to start...") + "\n"
	}

	var b strings.Builder

	elapsed := time.Since(snap.StartedAt).Truncate(time.Second)
	header := fmt.Sprintf("biofetch run %s  %s", snap.RunID, elapsed)
	if snap.Done {
		header = fmt.Sprintf("biofetch run %s  %s in %s", snap.RunID, snap.Status, elapsed)
	}
	b.WriteString(header + "\n\n")

	spin := []string{"|", "/", "-", "\\"}[m.spinnerIdx%4]
	activeSeen := false
	for _, sp := range snap.Symbols {
		icon := "·"
		switch {
		case sp.Done && sp.Err != "":
			icon = "✗"
		case sp.Done:
			icon = "✓"
		case !activeSeen:
			// Symbols are processed in order, so the first unfinished
			// one is the one in flight.
			icon = spin
			activeSeen = true
		}
		line := fmt.Sprintf("  %s %-10s %-10s %d/%d datasets  %d records",
			icon, sp.Symbol, sp.Accession, sp.Datasets, snap.DatasetCount, sp.Records)
		if sp.Err != "" {
			line += "  " + errStyle.Render(sp.Err)
		}
		b.WriteString(itemStyle.Render(line) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Artifacts: %d rows in %d appends   Mappings: %d\n",
		snap.RowsAppended, snap.Appends, snap.Mappings))
	if snap.LastEvent != "" {
		b.WriteString(dimStyle.Render("Last: "+snap.LastEvent) + "\n")
	}
	if snap.LastError != "" {
		b.WriteString(errStyle.Render("Error: "+snap.LastError) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("Press q to quit.") + "\n")

	return b.String()
}

// Run displays fetch progress until the run finishes, the user quits,
// or the context is canceled.
func Run(ctx context.Context, provider StatusProvider) error {
	defer bestEffortResetTTY()

	m := model{provider: provider, snap: provider()}
	p := tea.NewProgram(m)

	done := make(chan error, 1)
	go func() {
		_, err := p.Run()
		done <- err
	}()

	select {
	case <-ctx.Done():
		p.Quit()
		return ctx.Err()
	case err := <-done:
		return err
	}
}

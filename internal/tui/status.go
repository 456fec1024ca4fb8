// Package tui provides the live run status dashboard.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"meridian/internal/gatekeeper"
	"meridian/internal/runfs"
	"meridian/internal/stage"
	"meridian/internal/watchdog"
	"meridian/pkg/models"
)

// Status icons for stage states.
const (
	iconDone    = "[✓]"
	iconCurrent = "[●]"
	iconPending = "[ ]"
)

// refreshInterval controls how often the dashboard re-reads the run root.
const refreshInterval = 2 * time.Second

// refreshMsg triggers a re-read of the manifest and gates documents.
type refreshMsg time.Time

// StatusApp is the bubbletea model for the run dashboard.
type StatusApp struct {
	layout runfs.Layout
	runID  string

	manifest *models.Manifest
	gates    *models.GatesDoc
	readErr  string

	width    int
	height   int
	quitting bool

	titleStyle   lipgloss.Style
	headerStyle  lipgloss.Style
	currentStyle lipgloss.Style
	doneStyle    lipgloss.Style
	pendingStyle lipgloss.Style
	failStyle    lipgloss.Style
	warnStyle    lipgloss.Style
	dimStyle     lipgloss.Style
}

// NewStatusApp creates the dashboard for one run.
func NewStatusApp(layout runfs.Layout, runID string) *StatusApp {
	return &StatusApp{
		layout: layout,
		runID:  runID,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")),
		headerStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Bold(true),
		currentStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),
		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("28")),
		pendingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),
		failStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
		warnStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),
		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// Init implements tea.Model.
func (a *StatusApp) Init() tea.Cmd {
	return tea.Batch(a.reload, tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// reload re-reads the manifest and gates documents.
func (a *StatusApp) reload() tea.Msg {
	machine := stage.New(a.layout, a.runID)
	manifest, merr := machine.ReadManifest()
	if merr != nil {
		return loadedMsg{err: merr.Message}
	}
	gates, gerr := gatekeeper.New(a.layout, a.runID).Read()
	if gerr != nil {
		return loadedMsg{manifest: manifest, err: gerr.Message}
	}
	return loadedMsg{manifest: manifest, gates: gates}
}

type loadedMsg struct {
	manifest *models.Manifest
	gates    *models.GatesDoc
	err      string
}

// Update implements tea.Model.
func (a *StatusApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			a.quitting = true
			return a, tea.Quit
		case "r":
			return a, a.reload
		}
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
	case refreshMsg:
		return a, tea.Batch(a.reload, tick())
	case loadedMsg:
		a.manifest = msg.manifest
		a.gates = msg.gates
		a.readErr = msg.err
	}
	return a, nil
}

// View implements tea.Model.
func (a *StatusApp) View() string {
	if a.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(a.titleStyle.Render("meridian run "+a.runID) + "\n\n")

	if a.readErr != "" {
		b.WriteString(a.failStyle.Render("read error: "+a.readErr) + "\n")
	}
	if a.manifest == nil {
		b.WriteString(a.dimStyle.Render("waiting for manifest...") + "\n")
		return b.String()
	}

	b.WriteString(a.renderRunLine())
	b.WriteString("\n")
	b.WriteString(a.headerStyle.Render("Stages") + "\n")
	b.WriteString(a.renderStages())
	b.WriteString("\n")
	b.WriteString(a.headerStyle.Render("Gates") + "\n")
	b.WriteString(a.renderGates())
	b.WriteString("\n" + a.dimStyle.Render("q quit · r refresh") + "\n")
	return b.String()
}

func (a *StatusApp) renderRunLine() string {
	m := a.manifest
	statusStyle := a.currentStyle
	switch m.Status {
	case models.RunFailed:
		statusStyle = a.failStyle
	case models.RunCompleted:
		statusStyle = a.doneStyle
	}
	line := fmt.Sprintf("%s · %s mode · rev %d",
		statusStyle.Render(string(m.Status)), m.Mode, m.Revision)
	if m.Status == models.RunRunning {
		if budget, ok := watchdog.Timeout(m.Stage); ok {
			elapsed := time.Since(m.StageStartedAt).Round(time.Second)
			line += a.dimStyle.Render(fmt.Sprintf(" · stage clock %s/%s", elapsed, budget))
		}
	}
	return line + "\n"
}

func (a *StatusApp) renderStages() string {
	var b strings.Builder
	reached := map[models.Stage]bool{}
	for _, rec := range a.manifest.StageHistory {
		reached[rec.From] = true
	}
	for _, s := range models.AllStages() {
		icon, style := iconPending, a.pendingStyle
		switch {
		case reached[s]:
			icon, style = iconDone, a.doneStyle
		case s == a.manifest.Stage:
			icon, style = iconCurrent, a.currentStyle
		}
		b.WriteString("  " + style.Render(fmt.Sprintf("%s %s", icon, s)) + "\n")
	}
	return b.String()
}

func (a *StatusApp) renderGates() string {
	if a.gates == nil {
		return a.dimStyle.Render("  gates not readable") + "\n"
	}
	var b strings.Builder
	for _, id := range models.AllGates() {
		gate, ok := a.gates.Gates[id]
		if !ok {
			continue
		}
		style := a.pendingStyle
		switch gate.Status {
		case models.GatePass:
			style = a.doneStyle
		case models.GateFail:
			style = a.failStyle
		case models.GateWarn:
			style = a.warnStyle
		}
		line := fmt.Sprintf("  %s %-7s %s", id, gate.Status, a.dimStyle.Render(string(gate.Kind)))
		if gate.Notes != "" {
			line += "  " + a.dimStyle.Render(gate.Notes)
		}
		b.WriteString(style.Render(line) + "\n")
	}
	return b.String()
}

// Run starts the dashboard and blocks until the user quits.
func Run(layout runfs.Layout, runID string) error {
	p := tea.NewProgram(NewStatusApp(layout, runID), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/councilhq/council/internal/engine"
	"github.com/councilhq/council/pkg/models"
)

const maxEventLines = 200

// engineEventMsg wraps one engine lifecycle event.
type engineEventMsg struct {
	event engine.Event
}

// eventsClosedMsg indicates the engine event channel closed.
type eventsClosedMsg struct{}

// tickMsg drives periodic refresh.
type tickMsg time.Time

// Monitor is the top-level model for observing a run: status header,
// scrolling event log, and the gavel review view when a checkpoint is
// pending.
type Monitor struct {
	eng     *engine.Engine
	runID   string
	gavel   *GavelView
	width   int
	height  int
	refresh time.Duration

	// lines is the rendered event history, newest last.
	lines []string
	run   models.Run
	done  bool

	headerStyle lipgloss.Style
	statusStyle lipgloss.Style
	dimStyle    lipgloss.Style
	errStyle    lipgloss.Style
}

// NewMonitor creates a Monitor for a started run.
func NewMonitor(eng *engine.Engine, runID string, refresh time.Duration) *Monitor {
	if refresh <= 0 {
		refresh = 100 * time.Millisecond
	}
	return &Monitor{
		eng:     eng,
		runID:   runID,
		gavel:   NewGavelView(),
		width:   80,
		height:  24,
		refresh: refresh,

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Background(lipgloss.Color("236")).
			Padding(0, 2),
		statusStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true),
		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
		errStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")),
	}
}

// Init implements tea.Model.
func (m *Monitor) Init() tea.Cmd {
	return tea.Batch(m.waitForEvent(), m.waitForGavel(), m.tick())
}

// waitForEvent blocks on the next engine event.
func (m *Monitor) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.eng.Events()
		if !ok {
			return eventsClosedMsg{}
		}
		return engineEventMsg{event: ev}
	}
}

// waitForGavel blocks on the next gavel request.
func (m *Monitor) waitForGavel() tea.Cmd {
	return func() tea.Msg {
		req, ok := <-m.eng.GavelRequests()
		if !ok {
			return eventsClosedMsg{}
		}
		return GavelRequestMsg{Request: req}
	}
}

func (m *Monitor) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		var cmd tea.Cmd
		m.gavel, cmd = m.gavel.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.gavel.IsActive() {
			var cmd tea.Cmd
			m.gavel, cmd = m.gavel.Update(msg)
			return m, cmd
		}
		switch msg.String() {
		case "q", "ctrl+c":
			if !m.done {
				m.eng.Abort(m.runID)
			}
			return m, tea.Quit
		case "p":
			if err := m.eng.Pause(m.runID); err != nil {
				m.appendLine(m.errStyle.Render("pause: " + err.Error()))
			}
		case "r":
			if err := m.eng.Resume(m.runID); err != nil {
				m.appendLine(m.errStyle.Render("resume: " + err.Error()))
			}
		case "a":
			if err := m.eng.Abort(m.runID); err != nil {
				m.appendLine(m.errStyle.Render("abort: " + err.Error()))
			}
		}
		return m, nil

	case GavelRequestMsg:
		var cmd tea.Cmd
		m.gavel, cmd = m.gavel.Update(msg)
		return m, tea.Batch(cmd, m.waitForGavel())

	case GavelDecisionMsg:
		if err := m.eng.ResolveGavel(msg.Decision); err != nil {
			m.appendLine(m.errStyle.Render("gavel: " + err.Error()))
		}
		return m, nil

	case engineEventMsg:
		m.appendLine(m.renderEvent(msg.event))
		if msg.event.Status.Terminal() && msg.event.Type != engine.EventDelivered {
			m.done = true
		}
		return m, m.waitForEvent()

	case eventsClosedMsg:
		m.done = true
		return m, nil

	case tickMsg:
		if run, ok := m.eng.ActiveRun(); ok && run.ID == m.runID {
			m.run = run
		}
		return m, m.tick()
	}

	return m, nil
}

// View implements tea.Model.
func (m *Monitor) View() string {
	if m.gavel.IsActive() {
		return m.gavel.View()
	}

	var sb strings.Builder
	sb.WriteString(m.headerStyle.Render(" council run " + m.runID + " "))
	sb.WriteString("\n")
	sb.WriteString(m.statusStyle.Render(string(m.run.Status)))
	sb.WriteString(m.dimStyle.Render(fmt.Sprintf("  phase %d  action %d  stage %s",
		m.run.PhaseIndex, m.run.ActionIndex, m.run.Stage)))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", min(m.width, 80)))
	sb.WriteString("\n")

	visible := m.height - 6
	if visible < 3 {
		visible = 3
	}
	start := 0
	if len(m.lines) > visible {
		start = len(m.lines) - visible
	}
	for _, line := range m.lines[start:] {
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	sb.WriteString(strings.Repeat("-", min(m.width, 80)))
	sb.WriteString("\n")
	if m.done {
		sb.WriteString(m.dimStyle.Render("run finished  |  q quit"))
	} else {
		sb.WriteString(m.dimStyle.Render("p pause  r resume  a abort  q quit"))
	}
	return sb.String()
}

// renderEvent formats one engine event as a log line.
func (m *Monitor) renderEvent(ev engine.Event) string {
	ts := m.dimStyle.Render(ev.Timestamp.Format("15:04:05"))
	var body string
	switch ev.Type {
	case engine.EventPhaseStage:
		body = fmt.Sprintf("phase %s -> %s", ev.PhaseID, ev.Stage)
	case engine.EventActionStarted, engine.EventActionCompleted,
		engine.EventActionFailed, engine.EventActionSkipped:
		body = fmt.Sprintf("%s %s", ev.Type, ev.ActionID)
		if ev.AgentID != "" {
			body += " (" + ev.AgentID + ")"
		}
	case engine.EventGavelRequested, engine.EventGavelResolved:
		body = fmt.Sprintf("%s %s", ev.Type, ev.ActionID)
		if ev.Message != "" {
			body += ": " + ev.Message
		}
	default:
		body = string(ev.Type)
		if ev.Message != "" {
			body += ": " + ev.Message
		}
	}
	if ev.Err != nil {
		body += " " + m.errStyle.Render(ev.Err.Error())
	}
	return ts + " " + body
}

// appendLine adds a log line, capping history.
func (m *Monitor) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxEventLines {
		m.lines = m.lines[len(m.lines)-maxEventLines:]
	}
}

// Run starts the monitor UI and blocks until it exits.
func Run(eng *engine.Engine, runID string, refresh time.Duration) error {
	p := tea.NewProgram(NewMonitor(eng, runID, refresh), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

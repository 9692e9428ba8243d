// Package tui provides the terminal user interface for the council.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/councilhq/council/internal/engine"
)

// GavelRequestMsg is sent when a run pauses at a human review checkpoint.
type GavelRequestMsg struct {
	Request engine.GavelRequest
}

// GavelDecisionMsg is sent after the reviewer resolves the checkpoint.
type GavelDecisionMsg struct {
	Decision engine.GavelDecision
}

// GavelView displays gated text for human review and prompts for
// approve, edit-and-approve, or skip.
type GavelView struct {
	// width is the viewport width.
	width int
	// height is the viewport height.
	height int
	// active indicates a review is in progress.
	active bool
	// editing indicates the textarea edit mode is open.
	editing bool
	// request is the checkpoint under review.
	request engine.GavelRequest
	// textLines is the gated text split into lines for scrolling.
	textLines []string
	// scrollOffset is the current scroll position.
	scrollOffset int
	// editor holds the replacement text in edit mode.
	editor textarea.Model

	headerStyle  lipgloss.Style
	contextStyle lipgloss.Style
	promptStyle  lipgloss.Style
	titleStyle   lipgloss.Style
}

// NewGavelView creates a GavelView.
func NewGavelView() *GavelView {
	ed := textarea.New()
	ed.Placeholder = "Edit the text, then ctrl+s to approve..."
	ed.CharLimit = 0

	return &GavelView{
		width:  80,
		height: 24,
		editor: ed,

		headerStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true),
		contextStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
		promptStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true),
		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Background(lipgloss.Color("236")).
			Padding(0, 2),
	}
}

// IsActive returns true if a review is in progress.
func (g *GavelView) IsActive() bool {
	return g.active
}

// Update handles input for the gavel view.
func (g *GavelView) Update(msg tea.Msg) (*GavelView, tea.Cmd) {
	switch msg := msg.(type) {
	case GavelRequestMsg:
		g.request = msg.Request
		g.textLines = strings.Split(msg.Request.Text, "\n")
		g.scrollOffset = 0
		g.active = true
		g.editing = false
		return g, nil

	case tea.WindowSizeMsg:
		g.width = msg.Width
		g.height = msg.Height
		g.editor.SetWidth(msg.Width - 4)
		g.editor.SetHeight(max(5, msg.Height-10))
		return g, nil

	case tea.KeyMsg:
		if !g.active {
			return g, nil
		}
		if g.editing {
			return g.updateEditing(msg)
		}
		return g.updateReviewing(msg)
	}

	return g, nil
}

// updateReviewing handles keys in the scroll/decide mode.
func (g *GavelView) updateReviewing(msg tea.KeyMsg) (*GavelView, tea.Cmd) {
	switch msg.String() {
	case "a", "A":
		return g.decide(engine.GavelApprove, "")

	case "s", "S":
		return g.decide(engine.GavelSkip, "")

	case "e", "E":
		g.editing = true
		g.editor.SetValue(g.request.Text)
		g.editor.Focus()
		return g, textarea.Blink

	case "up", "k":
		if g.scrollOffset > 0 {
			g.scrollOffset--
		}
	case "down", "j":
		if g.scrollOffset < max(0, len(g.textLines)-g.viewportHeight()) {
			g.scrollOffset++
		}
	case "pgup", "b":
		g.scrollOffset = max(0, g.scrollOffset-g.viewportHeight())
	case "pgdown", "f", " ":
		g.scrollOffset = min(max(0, len(g.textLines)-g.viewportHeight()), g.scrollOffset+g.viewportHeight())
	case "home", "g":
		g.scrollOffset = 0
	case "end", "G":
		g.scrollOffset = max(0, len(g.textLines)-g.viewportHeight())
	}
	return g, nil
}

// updateEditing handles keys while the textarea is open.
func (g *GavelView) updateEditing(msg tea.KeyMsg) (*GavelView, tea.Cmd) {
	switch msg.String() {
	case "ctrl+s":
		return g.decide(engine.GavelEdit, g.editor.Value())
	case "esc":
		g.editing = false
		g.editor.Blur()
		return g, nil
	}

	var cmd tea.Cmd
	g.editor, cmd = g.editor.Update(msg)
	return g, cmd
}

// decide emits the reviewer decision and resets the view.
func (g *GavelView) decide(res engine.GavelResolution, replacement string) (*GavelView, tea.Cmd) {
	runID := g.request.RunID
	g.reset()
	return g, func() tea.Msg {
		return GavelDecisionMsg{Decision: engine.GavelDecision{
			RunID:           runID,
			Resolution:      res,
			ReplacementText: replacement,
		}}
	}
}

// View renders the gavel review UI.
func (g *GavelView) View() string {
	if !g.active {
		return ""
	}

	var sb strings.Builder

	sb.WriteString(g.titleStyle.Render(" Gavel: Human Review "))
	sb.WriteString("\n\n")
	sb.WriteString(g.headerStyle.Render("Run: "))
	sb.WriteString(g.request.RunID)
	sb.WriteString("  ")
	sb.WriteString(g.headerStyle.Render("Phase: "))
	sb.WriteString(g.request.PhaseID)
	sb.WriteString("  ")
	sb.WriteString(g.headerStyle.Render("Action: "))
	sb.WriteString(g.request.ActionID)
	sb.WriteString("\n\n")

	if g.editing {
		sb.WriteString(g.editor.View())
		sb.WriteString("\n\n")
		sb.WriteString(g.promptStyle.Render("ctrl+s approve edits / esc cancel"))
		return sb.String()
	}

	sb.WriteString(strings.Repeat("-", min(g.width, 80)))
	sb.WriteString("\n")

	h := g.viewportHeight()
	start := min(g.scrollOffset, max(0, len(g.textLines)-h))
	end := min(start+h, len(g.textLines))
	for i := start; i < end; i++ {
		sb.WriteString(g.textLines[i])
		sb.WriteString("\n")
	}

	if len(g.textLines) > h {
		sb.WriteString(g.contextStyle.Render(
			fmt.Sprintf("--- %d/%d lines ---", end, len(g.textLines))))
		sb.WriteString("\n")
	}

	sb.WriteString(strings.Repeat("-", min(g.width, 80)))
	sb.WriteString("\n\n")
	sb.WriteString(g.promptStyle.Render("[A]pprove / [E]dit / [S]kip"))
	sb.WriteString("\n")
	sb.WriteString(g.contextStyle.Render("(j/k or arrows to scroll)"))

	return sb.String()
}

// viewportHeight is the number of text lines visible at once.
func (g *GavelView) viewportHeight() int {
	h := g.height - 10
	if h < 5 {
		h = 5
	}
	return h
}

// reset clears the review state.
func (g *GavelView) reset() {
	g.active = false
	g.editing = false
	g.request = engine.GavelRequest{}
	g.textLines = nil
	g.scrollOffset = 0
	g.editor.Blur()
	g.editor.Reset()
}

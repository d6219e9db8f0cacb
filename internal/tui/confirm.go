// Package tui holds the interactive prompt shown before a sprint is
// completed.
package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/akyairhashvil/sprintledger/internal/lifecycle"
	"github.com/akyairhashvil/sprintledger/internal/models"
	"github.com/akyairhashvil/sprintledger/internal/report"
)

type keyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
	Details key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Confirm, k.Cancel, k.Details}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Confirm: key.NewBinding(key.WithKeys("y", "enter"), key.WithHelp("y/enter", "complete")),
	Cancel:  key.NewBinding(key.WithKeys("n", "esc", "q", "ctrl+c"), key.WithHelp("n/esc", "cancel")),
	Details: key.NewBinding(key.WithKeys("d", "tab"), key.WithHelp("d", "toggle tickets")),
}

// Summary is what the prompt shows about the pending completion.
type Summary struct {
	Sprint models.Sprint
	Action lifecycle.Action
	Target string
	Class  lifecycle.Classification
}

// ConfirmModel asks whether to complete a sprint.
type ConfirmModel struct {
	summary   Summary
	styles    report.Styles
	help      help.Model
	details   bool
	confirmed bool
	done      bool
}

// NewConfirmModel builds the prompt with styles bound to r.
func NewConfirmModel(s Summary, theme report.Theme, r *lipgloss.Renderer) ConfirmModel {
	return ConfirmModel{summary: s, styles: theme.Styles(r), help: help.New()}
}

func (m ConfirmModel) Init() tea.Cmd { return nil }

func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, keys.Confirm):
		m.confirmed, m.done = true, true
		return m, tea.Quit
	case key.Matches(keyMsg, keys.Cancel):
		m.done = true
		return m, tea.Quit
	case key.Matches(keyMsg, keys.Details):
		m.details = !m.details
	}
	return m, nil
}

// Confirmed reports whether the user accepted.
func (m ConfirmModel) Confirmed() bool { return m.confirmed }

func (m ConfirmModel) View() string {
	if m.done {
		return ""
	}
	s, st := m.summary, m.styles
	c := s.Class
	var b strings.Builder
	b.WriteString(st.Header.Render(fmt.Sprintf("Complete %q?", s.Sprint.Name)) + "\n\n")
	b.WriteString(fmt.Sprintf("%s %d tickets, %s points\n", st.Completed.Render("Done:    "),
		c.CompletedTicketCount, formatPoints(c.CompletedStoryPoints)))
	b.WriteString(fmt.Sprintf("%s %d tickets, %s points\n", st.Carried.Render("Not done:"),
		c.IncompleteTicketCount, formatPoints(c.IncompleteStoryPoints)))
	b.WriteString(st.Dim.Render(actionLine(s)) + "\n")
	if m.details {
		for _, tk := range c.Incomplete {
			b.WriteString(fmt.Sprintf("  #%d %s\n", tk.ID, tk.Title))
		}
	}
	b.WriteString("\n" + m.help.View(keys))
	return st.Box.Render(b.String()) + "\n"
}

func actionLine(s Summary) string {
	if s.Class.IncompleteTicketCount == 0 {
		return "No tickets to move."
	}
	switch s.Action {
	case lifecycle.CloseToNext:
		target := s.Target
		if target == "" {
			target = "a new sprint"
		}
		return fmt.Sprintf("Unfinished tickets carry over to %s.", target)
	case lifecycle.CloseToBacklog:
		return "Unfinished tickets return to the backlog."
	default:
		return "Unfinished tickets stay in this sprint."
	}
}

func formatPoints(p float64) string {
	if p == float64(int64(p)) {
		return fmt.Sprintf("%d", int64(p))
	}
	return fmt.Sprintf("%.1f", p)
}

// Confirm runs the prompt on in/out and returns the user's answer.
func Confirm(in io.Reader, out io.Writer, s Summary, theme report.Theme) (bool, error) {
	m := NewConfirmModel(s, theme, lipgloss.NewRenderer(out))
	final, err := tea.NewProgram(m, tea.WithInput(in), tea.WithOutput(out)).Run()
	if err != nil {
		return false, fmt.Errorf("confirm prompt: %w", err)
	}
	return final.(ConfirmModel).Confirmed(), nil
}

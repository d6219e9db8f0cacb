package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/akyairhashvil/sprintledger/internal/models"
)

const (
	minWidth     = 40
	defaultWidth = 80
)

// WriteTerminal renders r as a boxed summary no wider than width columns.
// Colour is used only when w is a terminal that supports it.
func WriteTerminal(w io.Writer, r SprintReport, theme Theme, width int) error {
	if width <= 0 {
		width = defaultWidth
	}
	if width < minWidth {
		width = minWidth
	}
	st := theme.Styles(lipgloss.NewRenderer(w))
	_, err := io.WriteString(w, st.Box.Render(renderBody(r, st, width-4))+"\n")
	return err
}

func renderBody(r SprintReport, st Styles, width int) string {
	var b strings.Builder
	s := r.Sprint
	b.WriteString(st.Header.Render(fmt.Sprintf("%s / %s", r.Project.Name, s.Name)))
	b.WriteString("  " + st.Dim.Render(string(s.Status)) + "\n")
	if s.Goal != nil && *s.Goal != "" {
		b.WriteString(st.Dim.Render(ansi.Truncate(*s.Goal, width, "…")) + "\n")
	}
	b.WriteString(dateLine(s) + "\n")

	if snap, ok := s.Snapshot(); ok {
		total := snap.CompletedStoryPoints + snap.IncompleteStoryPoints
		b.WriteString(fmt.Sprintf("%s %d done, %d not done\n", st.Label.Render("Tickets:"),
			snap.CompletedTicketCount, snap.IncompleteTicketCount))
		b.WriteString(fmt.Sprintf("%s %s of %s\n", st.Label.Render("Points: "),
			formatPoints(snap.CompletedStoryPoints), formatPoints(total)))
	}

	sections := []struct {
		title string
		exit  models.ExitStatus
		style lipgloss.Style
	}{
		{"Completed", models.ExitCompleted, st.Completed},
		{"Carried over", models.ExitCarriedOver, st.Carried},
		{"Removed", models.ExitRemoved, st.Removed},
		{"Open", models.ExitOpen, st.Open},
	}
	for _, sec := range sections {
		lines := r.Group(sec.exit)
		if len(lines) == 0 {
			continue
		}
		b.WriteString("\n" + st.Label.Render(fmt.Sprintf("%s (%d)", sec.title, len(lines))) + "\n")
		for _, l := range lines {
			pts := fmt.Sprintf(" [%s]", formatPoints(l.Points))
			prefix := fmt.Sprintf("  #%d ", l.Entry.TicketID)
			avail := width - ansi.StringWidth(prefix) - ansi.StringWidth(pts)
			if avail < 1 {
				avail = 1
			}
			title := ansi.Truncate(l.Title, avail, "…")
			b.WriteString(prefix + sec.style.Render(title) + st.Dim.Render(pts) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func dateLine(s models.Sprint) string {
	const layout = "2006-01-02"
	start, end := "-", "-"
	if s.StartDate != nil {
		start = s.StartDate.Format(layout)
	}
	if s.EndDate != nil {
		end = s.EndDate.Format(layout)
	}
	return start + " -> " + end
}

package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/akyairhashvil/sprintledger/internal/models"
)

// WritePDF renders r as an A4 document.
func WritePDF(w io.Writer, r SprintReport) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, tr(fmt.Sprintf("Sprint Report: %s", r.Sprint.Name)))
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 12)
	pdf.Cell(0, 8, tr(fmt.Sprintf("Project: %s", r.Project.Name)))
	pdf.Ln(6)
	pdf.Cell(0, 8, fmt.Sprintf("Status: %s    Dates: %s", r.Sprint.Status, dateLine(r.Sprint)))
	pdf.Ln(6)
	if r.Sprint.Goal != nil && *r.Sprint.Goal != "" {
		pdf.MultiCell(0, 8, tr("Goal: "+*r.Sprint.Goal), "", "", false)
	}

	s := r.Sprint
	if s.CompletedAt != nil {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(0, 8, "Summary")
		pdf.Ln(8)
		pdf.SetFont("Arial", "", 12)
		pdf.Cell(0, 8, fmt.Sprintf("Completed: %d tickets, %s points", intOr(s.CompletedTicketCount), formatPoints(floatOr(s.CompletedStoryPoints))))
		pdf.Ln(6)
		pdf.Cell(0, 8, fmt.Sprintf("Not completed: %d tickets, %s points", intOr(s.IncompleteTicketCount), formatPoints(floatOr(s.IncompleteStoryPoints))))
		pdf.Ln(6)
		pdf.Cell(0, 8, fmt.Sprintf("Closed at: %s", s.CompletedAt.Format("2006-01-02 15:04")))
		pdf.Ln(8)
	}

	sections := []struct {
		title string
		exit  models.ExitStatus
		mark  string
	}{
		{"Completed", models.ExitCompleted, "[x]"},
		{"Carried over", models.ExitCarriedOver, "[>]"},
		{"Removed", models.ExitRemoved, "[-]"},
		{"Open", models.ExitOpen, "[ ]"},
	}
	for _, sec := range sections {
		lines := r.Group(sec.exit)
		if len(lines) == 0 {
			continue
		}
		pdf.SetFont("Arial", "B", 14)
		pdf.Cell(0, 10, fmt.Sprintf("%s (%d)", sec.title, len(lines)))
		pdf.Ln(8)
		pdf.SetFont("Arial", "", 12)
		for _, l := range lines {
			text := fmt.Sprintf("  %s #%d %s (%s pts)", sec.mark, l.Entry.TicketID, l.Title, formatPoints(l.Points))
			pdf.MultiCell(0, 7, tr(text), "", "", false)
		}
		pdf.Ln(4)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

// SavePDF writes the report into dir and returns the file path.
func SavePDF(dir string, r SprintReport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("sprint_%d_%s.pdf", r.Sprint.ID, fileSafe(r.Sprint.Name)))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := WritePDF(f, r); err != nil {
		_ = f.Close()
		return "", err
	}
	return path, f.Close()
}

func fileSafe(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}

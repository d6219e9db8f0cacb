package report

import "github.com/charmbracelet/lipgloss"

// Theme is a named colour palette for terminal output.
type Theme struct {
	Name      string
	Border    lipgloss.Color
	Header    lipgloss.Color
	Completed lipgloss.Color
	Carried   lipgloss.Color
	Removed   lipgloss.Color
	Open      lipgloss.Color
	Dim       lipgloss.Color
}

var Themes = map[string]Theme{
	"default": {
		Name:      "Default",
		Border:    lipgloss.Color("63"),
		Header:    lipgloss.Color("205"),
		Completed: lipgloss.Color("42"),
		Carried:   lipgloss.Color("214"),
		Removed:   lipgloss.Color("244"),
		Open:      lipgloss.Color("81"),
		Dim:       lipgloss.Color("240"),
	},
	"dracula": {
		Name:      "Dracula",
		Border:    lipgloss.Color("62"),  // purple
		Header:    lipgloss.Color("50"),  // cyan
		Completed: lipgloss.Color("120"), // green
		Carried:   lipgloss.Color("215"), // orange
		Removed:   lipgloss.Color("60"),  // comment
		Open:      lipgloss.Color("141"),
		Dim:       lipgloss.Color("60"),
	},
}

// ThemeByName falls back to the default palette for unknown names.
func ThemeByName(name string) Theme {
	if t, ok := Themes[name]; ok {
		return t
	}
	return Themes["default"]
}

// Styles is a Theme bound to one renderer, so colour depends on the output.
type Styles struct {
	Box       lipgloss.Style
	Header    lipgloss.Style
	Label     lipgloss.Style
	Completed lipgloss.Style
	Carried   lipgloss.Style
	Removed   lipgloss.Style
	Open      lipgloss.Style
	Dim       lipgloss.Style
}

func (t Theme) Styles(r *lipgloss.Renderer) Styles {
	return Styles{
		Box:       r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Border).Padding(0, 1),
		Header:    r.NewStyle().Foreground(t.Header).Bold(true),
		Label:     r.NewStyle().Bold(true),
		Completed: r.NewStyle().Foreground(t.Completed),
		Carried:   r.NewStyle().Foreground(t.Carried),
		Removed:   r.NewStyle().Foreground(t.Removed).Strikethrough(true),
		Open:      r.NewStyle().Foreground(t.Open),
		Dim:       r.NewStyle().Foreground(t.Dim),
	}
}

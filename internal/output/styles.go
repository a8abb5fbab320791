package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles holds the lipgloss styles used for terminal output.
type Styles struct {
	Title   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Model   lipgloss.Style
	Low     lipgloss.Style
	Medium  lipgloss.Style
	High    lipgloss.Style
}

// NewStyles creates styles bound to w. Without color every style renders
// plain text.
func NewStyles(w io.Writer, color bool) *Styles {
	r := lipgloss.NewRenderer(w)
	if !color {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Styles{
		Title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Success: r.NewStyle().Foreground(lipgloss.Color("10")),
		Warning: r.NewStyle().Foreground(lipgloss.Color("11")),
		Error:   r.NewStyle().Foreground(lipgloss.Color("9")),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
		Model:   r.NewStyle().Foreground(lipgloss.Color("13")),
		Low:     r.NewStyle().Foreground(lipgloss.Color("10")),
		Medium:  r.NewStyle().Foreground(lipgloss.Color("11")),
		High:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
}

// Score returns the style for a score relative to the distribution of all
// scores: above mean+stddev is high, above the mean is medium.
func (s *Styles) Score(score, mean, stddev float64) lipgloss.Style {
	switch {
	case stddev > 0 && score > mean+stddev:
		return s.High
	case score > mean:
		return s.Medium
	default:
		return s.Low
	}
}

package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	header    lipgloss.Style
	label     lipgloss.Style
	value     lipgloss.Style
	reference lipgloss.Style
	measured  lipgloss.Style
	error     lipgloss.Style
	muted     lipgloss.Style
	panel     lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		header:    lipgloss.NewStyle().Foreground(t.Primary).Bold(true),
		label:     lipgloss.NewStyle().Foreground(t.Muted).Width(12),
		value:     lipgloss.NewStyle().Foreground(t.Text),
		reference: lipgloss.NewStyle().Foreground(t.Reference),
		measured:  lipgloss.NewStyle().Foreground(t.Measured),
		error:     lipgloss.NewStyle().Foreground(t.Error),
		muted:     lipgloss.NewStyle().Foreground(t.Muted),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Muted).
			Padding(0, 1),
	}
}

// Sparkline renders values as block characters, sampling down to width.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("─", max(width, 0))
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	step := max(len(values)/width, 1)

	var b strings.Builder
	for i := 0; i < width && i*step < len(values); i++ {
		norm := (values[i*step] - lo) / rng
		idx := int(norm * float64(len(chars)-1))
		idx = max(0, min(idx, len(chars)-1))
		b.WriteRune(chars[idx])
	}
	return b.String()
}

package viz

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/jointtorque/internal/storage"
)

// Viewer browses a pair of torque logs one joint at a time.
type Viewer struct {
	ref, read     [][]float64
	joint         int
	series        Series
	theme         Theme
	width, height int
	styles        styles
}

func NewViewer(ref, read [][]float64) (Viewer, error) {
	if len(ref) == 0 || len(read) == 0 {
		return Viewer{}, fmt.Errorf("viz: empty torque logs")
	}
	if len(ref) != len(read) {
		return Viewer{}, fmt.Errorf("viz: %d reference rows but %d measured rows", len(ref), len(read))
	}
	return Viewer{
		ref:    ref,
		read:   read,
		theme:  ThemeDefault,
		width:  80,
		height: 24,
		styles: newStyles(ThemeDefault),
	}, nil
}

// WithTheme returns a copy of v drawn with t.
func (v Viewer) WithTheme(t Theme) Viewer {
	v.theme = t
	v.styles = newStyles(t)
	return v
}

func (v Viewer) Joint() int        { return v.joint }
func (v Viewer) Series() Series    { return v.series }
func (v Viewer) ThemeName() string { return v.theme.Name }

func (v Viewer) joints() int { return len(v.ref[0]) }

func (v Viewer) Init() tea.Cmd { return nil }

func (v Viewer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return v, tea.Quit
		case "right", "l":
			v.joint = (v.joint + 1) % v.joints()
		case "left", "h":
			v.joint = (v.joint - 1 + v.joints()) % v.joints()
		case "tab":
			v.series = (v.series + 1) % (SeriesError + 1)
		case "t":
			v.theme = NextTheme(v.theme)
			v.styles = newStyles(v.theme)
		}
	case tea.WindowSizeMsg:
		v.width, v.height = msg.Width, msg.Height
	}
	return v, nil
}

func (v Viewer) View() string {
	var b strings.Builder

	b.WriteString(v.styles.header.Render(fmt.Sprintf("Joint %d of %d", v.joint+1, v.joints())))
	b.WriteString(v.styles.muted.Render(fmt.Sprintf("   %d iterations   %s", len(v.ref), v.series)))
	b.WriteString("\n\n")

	chart, err := AsciiTorques(v.ref, v.read, v.joint, ChartOptions{
		Width:  max(v.width-12, 20),
		Height: max(v.height-10, 5),
		Series: v.series,
	})
	if err != nil {
		b.WriteString(v.styles.error.Render(err.Error()))
	} else {
		b.WriteString(chart)
	}
	b.WriteString("\n\n")

	ref := storage.Column(v.ref, v.joint)
	read := storage.Column(v.read, v.joint)
	last := len(ref) - 1
	fmt.Fprintf(&b, "%s%s  %s%s  %s%s\n",
		v.styles.label.Render("final ref"), v.styles.reference.Render(fmt.Sprintf("%.6g", ref[last])),
		v.styles.label.Render("final read"), v.styles.measured.Render(fmt.Sprintf("%.6g", read[last])),
		v.styles.label.Render("final diff"), v.styles.error.Render(fmt.Sprintf("%.6g", ref[last]-read[last])),
	)
	diff := make([]float64, len(ref))
	for i := range diff {
		diff[i] = math.Abs(ref[i] - read[i])
	}
	fmt.Fprintf(&b, "%s%s\n", v.styles.label.Render("|diff|"), v.styles.error.Render(Sparkline(diff, max(v.width-14, 10))))
	b.WriteString(v.styles.muted.Render("←/→ joint  tab series  t theme  q quit"))
	return b.String()
}

package viz

import (
	"fmt"
	"io"
	"strings"

	"github.com/san-kum/jointtorque/internal/dynamo"
)

// Reporter prints the per-iteration diagnostics: the commanded, measured and
// difference torque of every joint, the iterations left and the joint error.
type Reporter struct {
	w      io.Writer
	every  int
	quiet  bool
	styles styles
}

func NewReporter(w io.Writer, every int, quiet bool) *Reporter {
	return &Reporter{
		w:      w,
		every:  max(every, 1),
		quiet:  quiet,
		styles: newStyles(ThemeDefault),
	}
}

func (r *Reporter) OnStep(s dynamo.Sample) {
	if r.quiet || s.Iteration%r.every != 0 {
		return
	}
	fmt.Fprint(r.w, r.Format(s))
}

func (r *Reporter) Format(s dynamo.Sample) string {
	var b strings.Builder
	b.WriteString(r.styles.header.Render("torques ref:   torques read:    error:"))
	b.WriteByte('\n')
	for i := range s.TorqueRef {
		ref := s.TorqueRef[i]
		read := 0.0
		if i < len(s.TorqueRead) {
			read = s.TorqueRead[i]
		}
		fmt.Fprintf(&b, "%s %s %s\n",
			r.styles.reference.Render(fmt.Sprintf("%12.6g", ref)),
			r.styles.measured.Render(fmt.Sprintf("%12.6g", read)),
			r.styles.error.Render(fmt.Sprintf("%12.6g", ref-read)),
		)
	}
	b.WriteString("  \n")
	fmt.Fprintf(&b, "%s%d\n", r.styles.muted.Render("Applying torques..."), s.Remaining)
	fmt.Fprintf(&b, "%s%s\n", r.styles.muted.Render("Error..."), r.styles.value.Render(fmt.Sprintf("%g", s.QError.Norm())))
	return b.String()
}

// Summary renders a run's metrics as a panel.
func Summary(iterations int, metrics map[string]float64, names []string) string {
	st := newStyles(ThemeDefault)
	var b strings.Builder
	b.WriteString(st.header.Render("Run summary"))
	b.WriteByte('\n')
	fmt.Fprintf(&b, "%s%s\n", st.label.Render("iterations"), st.value.Render(fmt.Sprintf("%d", iterations)))
	for _, name := range names {
		v, ok := metrics[name]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s%s\n", st.label.Width(22).Render(name), st.value.Render(fmt.Sprintf("%.6g", v)))
	}
	return st.panel.Render(strings.TrimRight(b.String(), "\n"))
}

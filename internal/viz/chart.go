package viz

import (
	"fmt"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/jointtorque/internal/storage"
)

type Series int

const (
	SeriesBoth Series = iota
	SeriesReference
	SeriesMeasured
	SeriesError
)

func (s Series) String() string {
	switch s {
	case SeriesReference:
		return "reference"
	case SeriesMeasured:
		return "measured"
	case SeriesError:
		return "error"
	default:
		return "reference + measured"
	}
}

type ChartOptions struct {
	Width  int
	Height int
	Series Series
}

// downsample keeps at most n evenly spaced points.
func downsample(v []float64, n int) []float64 {
	if n <= 0 || len(v) <= n {
		return v
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = v[i*len(v)/n]
	}
	return out
}

// AsciiTorques charts joint j (0-based) of the reference and measured logs.
func AsciiTorques(ref, read [][]float64, j int, opts ChartOptions) (string, error) {
	if len(ref) == 0 {
		return "", fmt.Errorf("viz: no rows to plot")
	}
	if j < 0 || j >= len(ref[0]) {
		return "", fmt.Errorf("viz: joint %d out of range [1, %d]", j+1, len(ref[0]))
	}
	if opts.Width <= 0 {
		opts.Width = 72
	}
	if opts.Height <= 0 {
		opts.Height = 12
	}

	r := downsample(storage.Column(ref, j), opts.Width)
	m := downsample(storage.Column(read, j), opts.Width)

	caption := fmt.Sprintf("tau%d %s", j+1, opts.Series)
	common := []asciigraph.Option{
		asciigraph.Height(opts.Height),
		asciigraph.Width(opts.Width),
		asciigraph.Caption(caption),
	}

	switch opts.Series {
	case SeriesReference:
		return asciigraph.Plot(r, append(common, asciigraph.SeriesColors(asciigraph.Blue))...), nil
	case SeriesMeasured:
		return asciigraph.Plot(m, append(common, asciigraph.SeriesColors(asciigraph.Red))...), nil
	case SeriesError:
		n := min(len(r), len(m))
		e := make([]float64, n)
		for i := range e {
			e[i] = r[i] - m[i]
		}
		return asciigraph.Plot(e, append(common, asciigraph.SeriesColors(asciigraph.Goldenrod))...), nil
	default:
		return asciigraph.PlotMany([][]float64{r, m}, append(common,
			asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red),
			asciigraph.SeriesLegends("ref", "read"),
		)...), nil
	}
}

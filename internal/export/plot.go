// Package export renders torque logs to image files.
package export

import (
	"bufio"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgsvg"

	"github.com/san-kum/jointtorque/internal/storage"
)

const (
	gridRows = 2
	gridCols = 4
)

var (
	referenceColor = color.RGBA{B: 255, A: 255}
	measuredColor  = color.RGBA{R: 255, A: 255}
)

type Options struct {
	// Width and Height of the whole figure.
	Width, Height vg.Length
	// DPI applies to PNG output only.
	DPI int
	// Dt converts iteration indices to seconds; zero plots against iterations.
	Dt float64
}

func DefaultOptions() Options {
	return Options{
		Width:  16 * vg.Inch,
		Height: 8 * vg.Inch,
		DPI:    150,
	}
}

// series drops NaN and ±Inf samples; a diverged run is plotted up to the
// point where it left the finite range.
func series(col []float64, dt float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(col))
	for i, v := range col {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		x := float64(i)
		if dt > 0 {
			x *= dt
		}
		pts = append(pts, plotter.XY{X: x, Y: v})
	}
	return pts
}

// jointPlot draws the reference (solid blue) and measured (dotted red)
// torque of joint j.
func jointPlot(ref, read [][]float64, j int, opts Options) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("τ%d", j+1)
	if opts.Dt > 0 {
		p.X.Label.Text = "time (s)"
	} else {
		p.X.Label.Text = "iteration"
	}
	p.Y.Label.Text = "torque (N·m)"
	p.Add(plotter.NewGrid())

	refPts := series(storage.Column(ref, j), opts.Dt)
	readPts := series(storage.Column(read, j), opts.Dt)
	if len(refPts) == 0 || len(readPts) == 0 {
		return nil, fmt.Errorf("joint %d: no finite torque samples", j+1)
	}

	refLine, err := plotter.NewLine(refPts)
	if err != nil {
		return nil, fmt.Errorf("joint %d reference: %w", j+1, err)
	}
	refLine.LineStyle.Color = referenceColor
	refLine.LineStyle.Width = vg.Points(1.5)

	readLine, err := plotter.NewLine(readPts)
	if err != nil {
		return nil, fmt.Errorf("joint %d measured: %w", j+1, err)
	}
	readLine.LineStyle.Color = measuredColor
	readLine.LineStyle.Width = vg.Points(1.5)
	readLine.LineStyle.Dashes = []vg.Length{vg.Points(1), vg.Points(3)}

	p.Add(refLine, readLine)
	p.Legend.Add("ref", refLine)
	p.Legend.Add("read", readLine)
	p.Legend.Top = true
	return p, nil
}

// PlotTorques lays out one plot per joint on a 2×4 grid.
func PlotTorques(ref, read [][]float64, opts Options) ([][]*plot.Plot, error) {
	if len(ref) == 0 {
		return nil, fmt.Errorf("export: no rows to plot")
	}
	if len(ref) != len(read) {
		return nil, fmt.Errorf("export: %d reference rows but %d measured rows", len(ref), len(read))
	}
	joints := len(ref[0])
	if joints > gridRows*gridCols {
		return nil, fmt.Errorf("export: %d joints do not fit a %dx%d grid", joints, gridRows, gridCols)
	}

	grid := make([][]*plot.Plot, gridRows)
	for r := range grid {
		grid[r] = make([]*plot.Plot, gridCols)
	}
	for j := 0; j < joints; j++ {
		p, err := jointPlot(ref, read, j, opts)
		if err != nil {
			return nil, err
		}
		grid[j/gridCols][j%gridCols] = p
	}
	return grid, nil
}

func drawGrid(grid [][]*plot.Plot, dc draw.Canvas) {
	tiles := draw.Tiles{
		Rows:      gridRows,
		Cols:      gridCols,
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	canvases := plot.Align(grid, tiles, dc)
	for r, row := range grid {
		for c, p := range row {
			if p != nil {
				p.Draw(canvases[r][c])
			}
		}
	}
}

// WriteTorques renders the grid as PNG or SVG to w.
func WriteTorques(w io.Writer, format string, ref, read [][]float64, opts Options) error {
	grid, err := PlotTorques(ref, read, opts)
	if err != nil {
		return err
	}

	var out io.WriterTo
	switch strings.ToLower(format) {
	case "png":
		c := vgimg.NewWith(vgimg.UseWH(opts.Width, opts.Height), vgimg.UseDPI(opts.DPI))
		drawGrid(grid, draw.New(c))
		out = vgimg.PngCanvas{Canvas: c}
	case "svg":
		c := vgsvg.New(opts.Width, opts.Height)
		drawGrid(grid, draw.New(c))
		out = c
	default:
		return fmt.Errorf("export: unsupported format %q (want png or svg)", format)
	}

	_, err = out.WriteTo(w)
	return err
}

// SaveTorques picks the format from the extension of filename.
func SaveTorques(filename string, ref, read [][]float64, opts Options) error {
	format := strings.TrimPrefix(filepath.Ext(filename), ".")
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cannot create directory: %w", err)
		}
	}

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := WriteTorques(bw, format, ref, read, opts); err != nil {
		f.Close()
		os.Remove(filename)
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

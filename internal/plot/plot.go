// Package plot draws captures and their reconstructed levels as PNG images
package plot

import (
	"errors"
	"fmt"
	"io"
	"os"

	"oscwave/internal/config"
	"oscwave/internal/wave"

	"golang.org/x/image/colornames"
	gonumplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const (
	yExpansion  = 1.4
	panelWidth  = 20 * vg.Inch
	panelHeight = 4 * vg.Inch
)

// Raw plots the samples From..To with both decision thresholds
func Raw(w *wave.Wave, win config.Window) (*gonumplot.Plot, error) {
	n := len(w.Samples)
	if win.From >= n {
		return nil, fmt.Errorf("window %d..%d starts after the last sample %d", win.From, win.To, n-1)
	}
	to := min(win.To, n-1)

	pts := make(plotter.XYs, 0, to-win.From+1)
	for i := win.From; i <= to; i++ {
		pts = append(pts, plotter.XY{X: float64(i), Y: w.Samples[i]})
	}

	p := gonumplot.New()
	p.Title.Text = "Samples"
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = w.Header.DataUnit
	if p.Y.Label.Text == "" {
		p.Y.Label.Text = "Value"
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("failed creating line for samples : %w", err)
	}

	t := w.Thresholds()
	high := plotter.NewFunction(func(float64) float64 { return t.High })
	high.Color = colornames.Red
	low := plotter.NewFunction(func(float64) float64 { return t.Low })
	low.Color = colornames.Blue

	p.Add(line, high, low)
	p.Legend.Add("Samples", line)
	p.Legend.Add("High threshold", high)
	p.Legend.Add("Low threshold", low)
	p.Legend.Top = true

	p.X.Min, p.X.Max = float64(win.From), float64(win.To)
	p.Y.Min = min(t.Min*yExpansion, t.Min)
	p.Y.Max = max(t.Max*yExpansion, t.Max)
	return p, nil
}

// Levels plots the level sequence as a 0/1 step trace shifted right by Slide
func Levels(seq *wave.LevelSequence, win config.Window) (*gonumplot.Plot, error) {
	var pts plotter.XYs
	var last wave.LevelEntry
	for _, e := range seq.Entries() {
		start := e.Position() + win.Slide
		end := e.End().Position + win.Slide
		if end < win.From || start > win.To {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(start), Y: float64(e.Level().Int())})
		last = e
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("no levels in window %d..%d", win.From, win.To)
	}
	pts = append(pts, plotter.XY{
		X: float64(last.End().Position + win.Slide),
		Y: float64(last.Level().Int()),
	})

	p := gonumplot.New()
	p.Title.Text = "Levels"
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = "Level"

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("failed creating line for levels : %w", err)
	}
	line.StepStyle = plotter.PostStep
	p.Add(line)

	p.X.Min, p.X.Max = float64(win.From), float64(win.To)
	p.Y.Min, p.Y.Max = -0.5, 1.5
	return p, nil
}

// Write renders the plots stacked vertically as one PNG
func Write(out io.Writer, plots ...*gonumplot.Plot) error {
	if len(plots) == 0 {
		return errors.New("nothing to plot")
	}

	img := vgimg.New(panelWidth, vg.Length(len(plots))*panelHeight)
	dc := draw.New(img)

	grid := make([][]*gonumplot.Plot, len(plots))
	for i, p := range plots {
		grid[i] = []*gonumplot.Plot{p}
	}
	canvases := gonumplot.Align(grid, draw.Tiles{Rows: len(plots), Cols: 1}, dc)
	for i := range grid {
		grid[i][0].Draw(canvases[i][0])
	}

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(out); err != nil {
		return fmt.Errorf("failed to write plot : %w", err)
	}
	return nil
}

// Save writes the plots to filename
func Save(filename string, plots ...*gonumplot.Plot) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create plot file: %w", err)
	}
	if err := Write(f, plots...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Package report renders diagnostic plots for a processed subject.
package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/Noofbiz/eegprep/epochs"
	"github.com/Noofbiz/eegprep/ica"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// palette cycles through class colours.
var palette = []color.RGBA{
	{R: 30, G: 90, B: 200, A: 255},
	{R: 200, G: 30, B: 30, A: 255},
	{R: 40, G: 150, B: 40, A: 255},
	{R: 200, G: 130, B: 20, A: 255},
	{R: 120, G: 40, B: 160, A: 255},
}

// ClassAverages returns, per class, the average over epochs and channels in
// microvolts, sample by sample. Classes without epochs map to nil.
func ClassAverages(set *epochs.EpochSet) [][]float64 {
	out := make([][]float64, len(set.Classes))
	counts := make([]int, len(set.Classes))
	for i, epoch := range set.Data {
		y := set.Labels[i]
		if out[y] == nil {
			out[y] = make([]float64, set.Length)
		}
		for _, row := range epoch {
			for k, v := range row {
				out[y][k] += v
			}
		}
		counts[y] += len(epoch)
	}
	for y, avg := range out {
		for k := range avg {
			avg[k] *= 1e6 / float64(counts[y])
		}
	}
	return out
}

// PlotClassAverages draws the class-average waveform of every class
// against time since the cue and saves it as an image at path.
func PlotClassAverages(set *epochs.EpochSet, path string) error {
	p := plot.New()
	p.Title.Text = "Class averages"
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "amplitude (µV)"
	p.Add(plotter.NewGrid())

	for y, avg := range ClassAverages(set) {
		if avg == nil {
			continue
		}
		xys := make(plotter.XYs, len(avg))
		for k, v := range avg {
			xys[k] = plotter.XY{X: float64(k) / set.SampleRate, Y: v}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Color = palette[y%len(palette)]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(set.Classes[y], line)
	}

	return save(p, path)
}

// PlotComponentScores draws, per component, the largest absolute
// correlation with any artifact reference channel. Excluded components are
// drawn in red.
func PlotComponentScores(rep ica.Report, path string) error {
	if len(rep.Scores) == 0 {
		return fmt.Errorf("no artifact scores to plot")
	}
	values := make(plotter.Values, len(rep.Scores[0]))
	for _, scores := range rep.Scores {
		for c, s := range scores {
			values[c] = math.Max(values[c], math.Abs(s))
		}
	}

	kept := make(plotter.Values, len(values))
	removed := make(plotter.Values, len(values))
	excluded := make(map[int]bool, len(rep.Excluded))
	for _, c := range rep.Excluded {
		excluded[c] = true
	}
	for c, v := range values {
		if excluded[c] {
			removed[c] = v
		} else {
			kept[c] = v
		}
	}

	p := plot.New()
	p.Title.Text = "Artifact correlation per component"
	p.X.Label.Text = "component"
	p.Y.Label.Text = "|r|"
	p.Y.Min, p.Y.Max = 0, 1

	w := vg.Points(8)
	for _, b := range []struct {
		values plotter.Values
		color  color.RGBA
		label  string
	}{
		{kept, color.RGBA{R: 120, G: 120, B: 120, A: 255}, "kept"},
		{removed, color.RGBA{R: 200, G: 30, B: 30, A: 255}, "excluded"},
	} {
		bars, err := plotter.NewBarChart(b.values, w)
		if err != nil {
			return err
		}
		bars.Color = b.color
		bars.LineStyle.Width = 0
		p.Add(bars)
		p.Legend.Add(b.label, bars)
	}

	return save(p, path)
}

func save(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}

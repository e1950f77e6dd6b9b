package main

import (
	"fmt"
	"image/color"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/crosstrack/crosstrack/internal/track"
)

// trailRecorder accumulates per-track center positions over a replay run
// so the trajectories can be plotted afterwards.
type trailRecorder struct {
	trails map[int]plotter.XYs
}

func newTrailRecorder() *trailRecorder {
	return &trailRecorder{trails: make(map[int]plotter.XYs)}
}

func (tr *trailRecorder) record(t *track.Track) {
	// Plot with y inverted so the image-space origin (top-left) reads
	// naturally top-to-bottom.
	tr.trails[t.ID] = append(tr.trails[t.ID], plotter.XY{X: t.Position.X, Y: 1 - t.Position.Y})
}

var trailPalette = []color.RGBA{
	{R: 31, G: 119, B: 180, A: 255},
	{R: 255, G: 127, B: 14, A: 255},
	{R: 44, G: 160, B: 44, A: 255},
	{R: 214, G: 39, B: 40, A: 255},
	{R: 148, G: 103, B: 189, A: 255},
	{R: 140, G: 86, B: 75, A: 255},
	{R: 227, G: 119, B: 194, A: 255},
	{R: 127, G: 127, B: 127, A: 255},
}

// savePNG writes all recorded trails to a single PNG.
func (tr *trailRecorder) savePNG(path string) error {
	p := plot.New()
	p.Title.Text = "Track trails"
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1

	ids := make([]int, 0, len(tr.trails))
	for id := range tr.trails {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		pts := tr.trails[id]
		if len(pts) < 2 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("track %d: %w", id, err)
		}
		line.Width = vg.Points(1)
		line.Color = trailPalette[id%len(trailPalette)]
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("track %d", id), line)
	}

	return p.Save(8*vg.Inch, 8*vg.Inch, path)
}

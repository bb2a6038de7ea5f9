// Package trend renders per-essay measurement history as PNG charts with
// the active thresholds overlaid.
package trend

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/mineoil-data/fleet.report/internal/oil"
	"github.com/mineoil-data/fleet.report/internal/stewart"
	"github.com/mineoil-data/fleet.report/internal/store"
)

var (
	seriesColor   = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 255}
	normalColor   = color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 255}
	alertColor    = color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 255}
	criticalColor = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 255}
)

// Plotter renders trend charts from the canonical sample history.
type Plotter struct {
	DB        *store.DB
	OutputDir string
}

// NewPlotter creates a plotter writing under outputDir.
func NewPlotter(db *store.DB, outputDir string) *Plotter {
	return &Plotter{DB: db, OutputDir: outputDir}
}

// Render writes one PNG of the (unit, component, essay) series. When the
// snapshot carries thresholds for the series' machine group, the three
// limits are drawn as horizontal lines. Returns the output file path.
func (tp *Plotter) Render(ctx context.Context, tenant, unitID, component, essay, machineName string, snap *stewart.Snapshot) (string, error) {
	series, err := tp.DB.MeasurementSeries(ctx, tenant, unitID, component, essay)
	if err != nil {
		return "", fmt.Errorf("trend: %w", err)
	}
	if len(series) == 0 {
		return "", fmt.Errorf("trend: no measurements of %s for %s/%s", essay, unitID, component)
	}

	var ts oil.ThresholdSet
	var hasThresholds bool
	if snap != nil {
		ts, hasThresholds = snap.Lookup(machineName, component, essay)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - %s / %s", essay, unitID, component)
	p.X.Label.Text = "Date"
	p.Y.Label.Text = essay
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}

	pts := make(plotter.XYs, 0, len(series))
	for _, sp := range series {
		pts = append(pts, plotter.XY{X: float64(sp.Date.Unix()), Y: sp.Value})
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return "", fmt.Errorf("trend: %w", err)
	}
	line.Color = seriesColor
	line.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add(essay, line)

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return "", fmt.Errorf("trend: %w", err)
	}
	scatter.Color = seriesColor
	scatter.Radius = vg.Points(2)
	p.Add(scatter)

	if hasThresholds {
		for _, lim := range []struct {
			label string
			value float64
			color color.Color
		}{
			{"normal limit", ts.Normal, normalColor},
			{"alert limit", ts.Alert, alertColor},
			{"critical limit", ts.Critical, criticalColor},
		} {
			hline := horizontalLine(series, lim.value)
			hl, err := plotter.NewLine(hline)
			if err != nil {
				return "", fmt.Errorf("trend: %w", err)
			}
			hl.Color = lim.color
			hl.Width = vg.Points(1)
			hl.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
			p.Add(hl)
			p.Legend.Add(lim.label, hl)
		}
	}

	p.Legend.Top = true
	p.Legend.Left = true

	if err := os.MkdirAll(tp.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("trend: failed to create output dir: %w", err)
	}
	out := filepath.Join(tp.OutputDir,
		fmt.Sprintf("%s_%s_%s_%s.png", tenant, unitID, component, essay))
	if err := p.Save(10*vg.Inch, 5*vg.Inch, out); err != nil {
		return "", fmt.Errorf("trend: failed to save plot: %w", err)
	}
	return out, nil
}

// horizontalLine spans the series' date range at a fixed value.
func horizontalLine(series []store.SeriesPoint, value float64) plotter.XYs {
	first := series[0].Date
	last := series[len(series)-1].Date
	if last.Equal(first) {
		last = first.Add(24 * time.Hour)
	}
	return plotter.XYs{
		{X: float64(first.Unix()), Y: value},
		{X: float64(last.Unix()), Y: value},
	}
}

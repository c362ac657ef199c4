// Package scope draws the host diameter plot.
package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/gofws/pkg/config"
	"github.com/itohio/gofws/pkg/sample"
	"github.com/itohio/gofws/pkg/trend"
)

const defaultMaxPoints = 1000

// ScopeWidget is a custom Fyne widget that plots both diameter traces over
// the tolerance band.
type ScopeWidget struct {
	widget.BaseWidget

	cfg *config.Config

	mu         sync.RWMutex
	excursions []trend.Excursion
	stats      trend.Stats

	// Reused for downsampling.
	displaySamples []sample.Sample

	view view

	maxDisplayPoints int
}

// New creates a new ScopeWidget instance.
func New(cfg *config.Config) *ScopeWidget {
	s := &ScopeWidget{
		cfg:              cfg,
		displaySamples:   make([]sample.Sample, 0, defaultMaxPoints),
		maxDisplayPoints: defaultMaxPoints,
	}
	s.view = autoScale(nil, cfg.Tolerance, time.Now())
	s.ExtendBaseWidget(s)
	s.Refresh()
	return s
}

// UpdateData replaces the plotted window. Call it from the tracker
// callback through fyne.Do.
func (s *ScopeWidget) UpdateData(samples []sample.Sample, excursions []trend.Excursion, stats trend.Stats) {
	s.mu.Lock()
	s.displaySamples = sample.DownsampleSamples(s.displaySamples, samples, s.maxDisplayPoints)
	s.excursions = excursions
	s.stats = stats
	s.view = autoScale(s.displaySamples, s.cfg.Tolerance, time.Now())
	s.mu.Unlock()

	s.Refresh()
}

// Clear removes all plotted data.
func (s *ScopeWidget) Clear() {
	s.UpdateData(nil, nil, trend.Stats{})
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &scopeRenderer{
		scope:   s,
		bg:      bg,
		objects: []fyne.CanvasObject{bg},
	}
}

// view is the visible data range of the plot.
type view struct {
	yMin, yMax float64
	xMin, xMax time.Time
}

// autoScale fits the y range to the samples and the tolerance band with a
// 10% margin. The x range covers at least the tolerance window.
func autoScale(samples []sample.Sample, tol config.ToleranceConfig, now time.Time) view {
	v := view{yMin: tol.MinMM, yMax: tol.MaxMM}
	if v.yMin > v.yMax {
		v.yMin, v.yMax = v.yMax, v.yMin
	}

	for _, s := range samples {
		for _, d := range [...]float64{s.S1, s.S2} {
			v.yMin = min(v.yMin, d)
			v.yMax = max(v.yMax, d)
		}
	}

	span := v.yMax - v.yMin
	if span == 0 {
		span = 0.1
	}
	v.yMin -= span * 0.1
	v.yMax += span * 0.1

	window := tol.WindowLength
	if window <= 0 {
		window = 10 * time.Second
	}
	if len(samples) == 0 {
		v.xMin = now
		v.xMax = now.Add(window)
		return v
	}
	v.xMin = samples[0].Timestamp
	v.xMax = samples[len(samples)-1].Timestamp
	if v.xMax.Sub(v.xMin) < window {
		v.xMax = v.xMin.Add(window)
	}
	return v
}

// x maps a timestamp to a horizontal offset in [0, width].
func (v view) x(t time.Time, width float32) float32 {
	span := v.xMax.Sub(v.xMin).Seconds()
	if span <= 0 {
		return 0
	}
	return float32(t.Sub(v.xMin).Seconds()/span) * width
}

// y maps a diameter to a vertical offset in [0, height], top being yMax.
func (v view) y(d float64, height float32) float32 {
	span := v.yMax - v.yMin
	if span <= 0 {
		return height / 2
	}
	return height - float32((d-v.yMin)/span)*height
}

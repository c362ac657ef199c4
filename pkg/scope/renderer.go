package scope

import (
	"fmt"
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"github.com/itohio/gofws/pkg/config"
	"github.com/itohio/gofws/pkg/sample"
	"github.com/itohio/gofws/pkg/trend"
)

var (
	colorGrid    = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	colorText    = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	colorLabel   = color.RGBA{R: 200, G: 200, B: 200, A: 255}
	colorBand    = color.RGBA{R: 0, G: 120, B: 0, A: 60}
	colorNominal = color.RGBA{R: 0, G: 160, B: 0, A: 255}
	colorS1      = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	colorS2      = color.RGBA{R: 100, G: 200, B: 255, A: 255}
	colorLow     = color.RGBA{R: 220, G: 40, B: 40, A: 70}
	colorHigh    = color.RGBA{R: 200, G: 40, B: 200, A: 70}
)

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	bg      *canvas.Rectangle
	objects []fyne.CanvasObject

	lastSize fyne.Size
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)

	if r.lastSize != size {
		r.lastSize = size
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh rebuilds all canvas objects from the current data.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	samples := r.scope.displaySamples
	excursions := r.scope.excursions
	stats := r.scope.stats
	v := r.scope.view
	tol := r.scope.cfg.Tolerance
	r.scope.mu.RUnlock()

	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	r.objects = []fyne.CanvasObject{r.bg}

	const (
		marginLeft   = float32(60)
		marginRight  = float32(20)
		marginTop    = float32(20)
		marginBottom = float32(40)
	)
	p := plot{
		x: marginLeft,
		y: marginTop,
		w: size.Width - marginLeft - marginRight,
		h: size.Height - marginTop - marginBottom,
		v: v,
	}

	r.drawBand(p, tol)
	r.drawGrid(p)
	r.drawExcursions(p, excursions)
	r.drawTrace(p, samples, func(s sample.Sample) float64 { return s.S1 }, colorS1)
	r.drawTrace(p, samples, func(s sample.Sample) float64 { return s.S2 }, colorS2)
	r.drawLatest(p, samples, stats)
}

// plot is the drawing area in widget coordinates.
type plot struct {
	x, y, w, h float32
	v          view
}

func (p plot) pos(t time.Time, d float64) fyne.Position {
	return fyne.NewPos(p.x+p.v.x(t, p.w), p.y+p.v.y(d, p.h))
}

func (r *scopeRenderer) drawBand(p plot, tol config.ToleranceConfig) {
	top := p.y + p.v.y(tol.MaxMM, p.h)
	bottom := p.y + p.v.y(tol.MinMM, p.h)
	if bottom < top {
		top, bottom = bottom, top
	}
	band := canvas.NewRectangle(colorBand)
	band.Move(fyne.NewPos(p.x, top))
	band.Resize(fyne.NewSize(p.w, bottom-top))
	r.objects = append(r.objects, band)

	y := p.y + p.v.y(tol.NominalMM, p.h)
	nominal := canvas.NewLine(colorNominal)
	nominal.Position1 = fyne.NewPos(p.x, y)
	nominal.Position2 = fyne.NewPos(p.x+p.w, y)
	nominal.StrokeWidth = 1
	r.objects = append(r.objects, nominal)
}

func (r *scopeRenderer) drawGrid(p plot) {
	const hLines = 8
	for i := range hLines + 1 {
		y := p.y + float32(i)*p.h/hLines
		line := canvas.NewLine(colorGrid)
		line.Position1 = fyne.NewPos(p.x, y)
		line.Position2 = fyne.NewPos(p.x+p.w, y)
		line.StrokeWidth = 1
		r.objects = append(r.objects, line)

		value := p.v.yMax - float64(i)*(p.v.yMax-p.v.yMin)/hLines
		text := canvas.NewText(formatDiameter(value), colorText)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(p.x-5, y-6))
		r.objects = append(r.objects, text)
	}

	const vLines = 10
	span := p.v.xMax.Sub(p.v.xMin)
	for i := range vLines + 1 {
		x := p.x + float32(i)*p.w/vLines
		line := canvas.NewLine(colorGrid)
		line.Position1 = fyne.NewPos(x, p.y)
		line.Position2 = fyne.NewPos(x, p.y+p.h)
		line.StrokeWidth = 1
		r.objects = append(r.objects, line)

		text := canvas.NewText(formatTime(span*time.Duration(i)/vLines), colorText)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-20, p.y+p.h+5))
		r.objects = append(r.objects, text)
	}
}

// drawExcursions shades the time span of every excursion.
func (r *scopeRenderer) drawExcursions(p plot, excursions []trend.Excursion) {
	for _, e := range excursions {
		if e.EndTime.Before(p.v.xMin) {
			continue
		}
		fill := colorLow
		if e.Kind == trend.High {
			fill = colorHigh
		}
		x0 := p.x + p.v.x(e.StartTime, p.w)
		x1 := p.x + p.v.x(e.EndTime, p.w)
		x0 = max(x0, p.x)
		if x1-x0 < 2 {
			x1 = x0 + 2
		}
		rect := canvas.NewRectangle(fill)
		rect.Move(fyne.NewPos(x0, p.y))
		rect.Resize(fyne.NewSize(x1-x0, p.h))
		r.objects = append(r.objects, rect)

		text := canvas.NewText(fmt.Sprintf("S%d %s", e.Sensor+1, formatDiameter(e.Peak)), colorLabel)
		text.TextSize = 10
		text.Move(fyne.NewPos(x0+2, p.y+p.h-14))
		r.objects = append(r.objects, text)
	}
}

func (r *scopeRenderer) drawTrace(p plot, samples []sample.Sample, value func(sample.Sample) float64, c color.Color) {
	if len(samples) < 2 {
		return
	}

	prev := p.pos(samples[0].Timestamp, value(samples[0]))
	for _, s := range samples[1:] {
		cur := p.pos(s.Timestamp, value(s))
		line := canvas.NewLine(c)
		line.Position1 = prev
		line.Position2 = cur
		line.StrokeWidth = 1.5
		r.objects = append(r.objects, line)
		prev = cur
	}
}

// drawLatest prints the newest reading and the window statistics.
func (r *scopeRenderer) drawLatest(p plot, samples []sample.Sample, stats trend.Stats) {
	if len(samples) == 0 {
		return
	}

	lines := latestLabel(samples[len(samples)-1], stats)
	for i, l := range lines {
		text := canvas.NewText(l, colorLabel)
		text.TextSize = 11
		text.Move(fyne.NewPos(p.x+10, p.y+10+float32(i)*14))
		r.objects = append(r.objects, text)
	}
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {}

func latestLabel(last sample.Sample, stats trend.Stats) []string {
	return []string{
		fmt.Sprintf("S1 %s  S2 %s  avg %s", formatDiameter(last.S1), formatDiameter(last.S2), formatDiameter(last.Mean)),
		fmt.Sprintf("S1 min %s max %s  S2 min %s max %s",
			formatDiameter(stats.Sensors[0].Min), formatDiameter(stats.Sensors[0].Max),
			formatDiameter(stats.Sensors[1].Min), formatDiameter(stats.Sensors[1].Max)),
	}
}

func formatDiameter(mm float64) string {
	return fmt.Sprintf("%.3fmm", mm)
}

func formatTime(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

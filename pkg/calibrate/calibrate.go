package calibrate

import (
	"fmt"

	"github.com/itohio/gofws/pkg/acquire"
	"github.com/itohio/gofws/pkg/bus"
	"github.com/itohio/gofws/pkg/calib"
	"github.com/itohio/gofws/pkg/clock"
	"github.com/itohio/gofws/pkg/display"
)

// Button is a momentary control. Pressed reports the undebounced level,
// already translated from active-low.
type Button interface {
	Pressed() bool
}

// ButtonFunc adapts a function to Button.
type ButtonFunc func() bool

// Pressed calls f.
func (f ButtonFunc) Pressed() bool { return f() }

// Phase is the position of the calibration state machine.
type Phase int

const (
	PhaseStart Phase = iota
	PhaseAnnounce
	PhaseWaitPress
	PhaseCapture
	PhaseWaitRelease
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "start"
	case PhaseAnnounce:
		return "announce"
	case PhaseWaitPress:
		return "wait-press"
	case PhaseCapture:
		return "capture"
	case PhaseWaitRelease:
		return "wait-release"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Calibrator walks the operator through three reference diameters on each
// sensor and stores the captured levels in the calibration tables.
//
// While it runs the shared buffer holds the safe default diameter; the
// pipeline keeps measuring so live readings are current once it finishes.
// There is no timeout. Unless WithContext is given the procedure only ends
// after all six points are captured.
type Calibrator struct {
	cfg      Config
	next     Button
	pipeline *acquire.Pipeline
	buffer   *bus.Buffer
	clock    clock.Clock

	phase    Phase
	sensor   int
	point    int
	captured int
}

// New creates a calibrator driven by the NEXT button.
func New(next Button, pipeline *acquire.Pipeline, buffer *bus.Buffer, clk clock.Clock, opts ...Option) *Calibrator {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Calibrator{
		cfg:      cfg,
		next:     next,
		pipeline: pipeline,
		buffer:   buffer,
		clock:    clk,
	}
}

// Phase returns the current phase.
func (c *Calibrator) Phase() Phase {
	return c.phase
}

// Position returns the sensor and point being calibrated.
func (c *Calibrator) Position() (sensor, point int) {
	return c.sensor, c.point
}

// Done reports whether all points were captured.
func (c *Calibrator) Done() bool {
	return c.phase == PhaseDone
}

// Reset rewinds the state machine so Run can be called again.
func (c *Calibrator) Reset() {
	c.phase = PhaseStart
	c.sensor, c.point, c.captured = 0, 0, 0
}

// Run performs the whole procedure, blocking until every point is captured
// or the context given with WithContext is done.
func (c *Calibrator) Run() {
	c.Reset()
	for !c.Done() {
		if c.aborted() {
			c.cfg.Logger.Printf("=== Calibration Aborted ===")
			return
		}
		c.Step()
	}
}

func (c *Calibrator) aborted() bool {
	if c.cfg.Context == nil {
		return false
	}
	return c.cfg.Context.Err() != nil
}

// Step advances the state machine by one action. Waiting phases perform a
// single poll per call.
func (c *Calibrator) Step() {
	switch c.phase {
	case PhaseStart:
		c.cfg.Logger.Printf("=== Calibration Started ===")
		c.buffer.Publish(bus.SafeDefault())
		c.phase = PhaseAnnounce

	case PhaseAnnounce:
		ref := c.cfg.References[c.point]
		if c.point == 0 {
			c.cfg.Logger.Printf("Calibrating Sensor %d", c.sensor+1)
		}
		c.cfg.Logger.Printf("  S%d Point %d (%.2fmm) - Press NEXT button...", c.sensor+1, c.point+1, ref)
		if err := display.ShowPrompt(c.cfg.Display, c.sensor, c.point, ref); err != nil {
			c.cfg.Logger.Printf("Failed to show prompt: %v", err)
		}
		c.phase = PhaseWaitPress

	case PhaseWaitPress:
		if !c.next.Pressed() {
			c.clock.Sleep(c.cfg.Poll)
			c.pipeline.Measure()
			return
		}
		c.clock.Sleep(c.cfg.Debounce)
		c.phase = PhaseCapture

	case PhaseCapture:
		c.capture()
		c.phase = PhaseWaitRelease

	case PhaseWaitRelease:
		if c.next.Pressed() {
			c.clock.Sleep(c.cfg.Poll)
			return
		}
		c.clock.Sleep(c.cfg.Debounce)
		c.advance()

	case PhaseDone:
	}
}

func (c *Calibrator) capture() {
	level := c.pipeline.ReadRawLevel(c.sensor)
	ref := c.cfg.References[c.point]
	c.pipeline.Tables().Set(c.sensor, c.point, calib.Point{
		Level:      float32(level),
		DiameterMM: ref,
	})
	c.captured++
	c.cfg.Logger.Printf("    Captured ADC: %d", level)

	if c.cfg.Progress != nil {
		c.cfg.Progress(Progress{
			Sensor:      c.sensor,
			Point:       c.point,
			Level:       level,
			ReferenceMM: ref,
			Captured:    c.captured,
			Total:       calib.Sensors * calib.Points,
		})
	}
}

func (c *Calibrator) advance() {
	c.point++
	if c.point == calib.Points {
		c.point = 0
		c.sensor++
	}
	if c.sensor == calib.Sensors {
		c.sensor = 0
		c.phase = PhaseDone
		c.cfg.Logger.Printf("=== Calibration Complete ===")
		if err := display.ShowMessage(c.cfg.Display, "CALIBRATION DONE"); err != nil {
			c.cfg.Logger.Printf("Failed to show message: %v", err)
		}
		return
	}
	c.phase = PhaseAnnounce
}

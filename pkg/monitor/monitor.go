// Package monitor runs the main measurement loop of the sensor module: it
// watches the calibration trigger, keeps the controller buffer fresh and
// prints periodic status, connectivity and bus diagnostic reports.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/itohio/gofws/pkg/acquire"
	"github.com/itohio/gofws/pkg/bus"
	"github.com/itohio/gofws/pkg/calib"
	"github.com/itohio/gofws/pkg/calibrate"
	"github.com/itohio/gofws/pkg/clock"
	"github.com/itohio/gofws/pkg/codec"
	"github.com/itohio/gofws/pkg/diag"
	"github.com/itohio/gofws/pkg/display"
)

// Orchestrator owns the main loop. It is not safe for concurrent use; the
// transport and heartbeat run on their own goroutines and share state with
// it only through the buffer, the stats and the diagnostic queue.
type Orchestrator struct {
	cfg        Config
	trigger    calibrate.Button
	calibrator *calibrate.Calibrator
	pipeline   *acquire.Pipeline
	buffer     *bus.Buffer
	stats      *bus.Stats
	events     *diag.Queue
	clock      clock.Clock

	status     Timer
	connection Timer
	diag       Timer
	counters   diag.Counters
	scratch    codec.Response
}

// New creates an orchestrator. events may be nil when bus diagnostics are
// disabled.
func New(
	trigger calibrate.Button,
	calibrator *calibrate.Calibrator,
	pipeline *acquire.Pipeline,
	buffer *bus.Buffer,
	stats *bus.Stats,
	events *diag.Queue,
	clk clock.Clock,
	opts ...Option,
) *Orchestrator {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	now := clk.Now()
	return &Orchestrator{
		cfg:        cfg,
		trigger:    trigger,
		calibrator: calibrator,
		pipeline:   pipeline,
		buffer:     buffer,
		stats:      stats,
		events:     events,
		clock:      clk,
		status:     NewTimer(cfg.StatusPeriod, now),
		connection: NewTimer(cfg.ConnectionPeriod, now),
		diag:       NewTimer(cfg.DiagPeriod, now),
	}
}

// Prepare makes the buffer hold real data before the bus is started: it
// publishes the safe default, primes the averaging windows with one
// immediate read and publishes the first measurement.
func (o *Orchestrator) Prepare() {
	o.buffer.Publish(bus.SafeDefault())
	o.pipeline.Prime()
	o.publish(o.pipeline.Measure())

	now := o.clock.Now()
	o.status.Reset(now)
	o.connection.Reset(now)
	o.diag.Reset(now)
}

// Counters returns the cumulative diagnostic counters seen so far.
func (o *Orchestrator) Counters() diag.Counters {
	return o.counters
}

// Step runs one iteration of the main loop.
func (o *Orchestrator) Step() {
	if o.trigger.Pressed() {
		o.clock.Sleep(o.cfg.Debounce)
		if o.trigger.Pressed() {
			o.calibrator.Run()
			for o.trigger.Pressed() {
				o.clock.Sleep(o.cfg.Poll)
			}
			o.clock.Sleep(o.cfg.Debounce)
		}
	}

	o.publish(o.pipeline.Measure())

	now := o.clock.Now()
	if o.connection.Due(now) {
		o.checkConnection(now)
	}
	o.drainEvents(now)
	if o.status.Due(now) {
		o.printStatus(now)
	}
}

// Run loops Step until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		o.Step()
		o.clock.Sleep(o.cfg.LoopSleep)
	}
}

func (o *Orchestrator) publish(readings [calib.Sensors]acquire.Reading) {
	s1, s2 := readings[0].MM, readings[1].MM
	if o.cfg.TestMode {
		s1, s2 = o.cfg.TestValues[0], o.cfg.TestValues[1]
	}
	codec.EncodeInto(o.scratch[:codec.RecordSize], s1)
	codec.EncodeInto(o.scratch[codec.RecordSize:], s2)
	o.buffer.Publish(o.scratch)
}

func (o *Orchestrator) checkConnection(now time.Duration) {
	if o.stats.Status(now, o.cfg.LivenessWindow) == bus.Active {
		return
	}
	if o.stats.Requests() == 0 {
		o.cfg.Logger.Printf("I2C: Waiting for printer master connection...")
		return
	}
	o.cfg.Logger.Printf("I2C: Master disconnected")
}

func (o *Orchestrator) drainEvents(now time.Duration) {
	if o.events == nil {
		return
	}
	o.counters = o.events.Drain()
	if o.diag.Due(now) {
		o.cfg.Logger.Printf("%s", o.counters.Summary(o.cfg.Address, o.stats.Requests()))
	}
}

func (o *Orchestrator) printStatus(now time.Duration) {
	readings := o.pipeline.Readings()
	s1, s2 := readings[0].MM, readings[1].MM
	if o.cfg.TestMode {
		s1, s2 = o.cfg.TestValues[0], o.cfg.TestValues[1]
	}
	link := o.stats.Status(now, o.cfg.LivenessWindow)
	requests := o.stats.Requests()

	o.cfg.Logger.Printf("%s", StatusLine(Status{
		S1:       s1,
		S2:       s2,
		Raw:      o.pipeline.LastRaw(),
		Link:     link,
		Requests: requests,
		Mode:     ModeNormal,
		TestMode: o.cfg.TestMode,
	}))

	err := display.ShowStatus(o.cfg.Display, display.Status{
		S1:       s1,
		S2:       s2,
		Link:     link.String(),
		Requests: requests,
	})
	if err != nil {
		o.cfg.Logger.Printf("Failed to refresh display: %v", err)
	}
}

// Status is the content of one status line.
type Status struct {
	S1, S2   float32
	Raw      [calib.Sensors]uint16
	Link     bus.Connectivity
	Requests uint32
	Mode     string
	TestMode bool
}

// StatusLine renders st as
// "S1: 1.750mm | S2: 1.751mm | ADC: [532, 540] | I2C: ACTIVE (12 requests) | Normal Mode".
func StatusLine(st Status) string {
	var sb strings.Builder
	if st.TestMode {
		sb.WriteString("[TEST MODE] ")
	}
	writeMM(&sb, "S1", st.S1)
	sb.WriteString(" | ")
	writeMM(&sb, "S2", st.S2)
	fmt.Fprintf(&sb, " | ADC: [%d, %d]", st.Raw[0], st.Raw[1])
	fmt.Fprintf(&sb, " | I2C: %s (%d requests) | %s", st.Link, st.Requests, st.Mode)
	return sb.String()
}

// writeMM prints a diameter with three decimals rounded half up; negative
// values print as zero.
func writeMM(sb *strings.Builder, label string, mm float32) {
	if !(mm > 0) {
		mm = 0
	}
	milli := uint32(mm*1000 + 0.5)
	fmt.Fprintf(sb, "%s: %d.%03dmm", label, milli/1000, milli%1000)
}

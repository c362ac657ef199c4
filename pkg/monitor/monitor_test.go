package monitor

import (
	"bytes"
	"context"
	"log"
	"testing"
	"time"

	"github.com/itohio/gofws/pkg/acquire"
	"github.com/itohio/gofws/pkg/bus"
	"github.com/itohio/gofws/pkg/calib"
	"github.com/itohio/gofws/pkg/calibrate"
	"github.com/itohio/gofws/pkg/clock"
	"github.com/itohio/gofws/pkg/codec"
	"github.com/itohio/gofws/pkg/diag"
	"github.com/itohio/gofws/pkg/display"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	clk        *clock.Manual
	levels     [calib.Sensors]uint16
	trigger    func() bool
	pipeline   *acquire.Pipeline
	buffer     *bus.Buffer
	stats      *bus.Stats
	events     *diag.Queue
	calibrator *calibrate.Calibrator
	log        *bytes.Buffer
}

func newHarness(t *testing.T, opts ...Option) (*harness, *Orchestrator) {
	t.Helper()
	h := &harness{
		clk:     clock.NewManual(),
		levels:  [calib.Sensors]uint16{532, 1119},
		trigger: func() bool { return false },
		buffer:  bus.NewBuffer(nil),
		stats:   &bus.Stats{},
		events:  diag.NewQueue(diag.DefaultQueueLen, nil),
		log:     &bytes.Buffer{},
	}
	src := acquire.AnalogReaderFunc(func(channel int) uint16 { return h.levels[channel] })
	h.pipeline = acquire.New(src, calib.NewTables(), 0)

	logger := log.New(h.log, "", 0)
	next := calibrate.ButtonFunc(func() bool {
		return h.clk.Now()%(200*time.Millisecond) >= 100*time.Millisecond
	})
	h.calibrator = calibrate.New(next, h.pipeline, h.buffer, h.clk, calibrate.WithLogger(logger))

	opts = append([]Option{WithLogger(logger)}, opts...)
	o := New(
		calibrate.ButtonFunc(func() bool { return h.trigger() }),
		h.calibrator, h.pipeline, h.buffer, h.stats, h.events, h.clk, opts...,
	)
	return h, o
}

func TestOrchestrator_Prepare(t *testing.T) {
	h, o := newHarness(t)
	o.Prepare()

	readings := h.pipeline.Readings()
	assert.Equal(t, codec.BuildResponse(readings[0].MM, readings[1].MM), h.buffer.Snapshot())
	assert.Equal(t, [2]uint16{532, 1119}, h.pipeline.AverageRaw())
	assert.InDelta(t, 1.68, readings[0].MM, 1e-4)
	assert.InDelta(t, 1.99, readings[1].MM, 1e-4)
}

func TestOrchestrator_StepPublishes(t *testing.T) {
	h, o := newHarness(t)
	o.Prepare()

	h.levels = [2]uint16{7, 7}
	o.Step()

	readings := h.pipeline.Readings()
	assert.Equal(t, codec.BuildResponse(readings[0].MM, readings[1].MM), h.buffer.Snapshot())
	assert.Equal(t, [2]uint16{7, 7}, h.pipeline.LastRaw())
}

func TestOrchestrator_TestMode(t *testing.T) {
	h, o := newHarness(t, WithTestMode(1.99, 1.99))
	o.Prepare()
	o.Step()

	assert.Equal(t, codec.BuildResponse(1.99, 1.99), h.buffer.Snapshot())

	h.clk.Advance(DefaultStatusPeriod)
	o.Step()
	assert.Contains(t, h.log.String(), "[TEST MODE] S1: 1.990mm | S2: 1.990mm")
}

func TestOrchestrator_StatusReport(t *testing.T) {
	h, o := newHarness(t)
	console := display.NewConsole(21, 8, nil)
	o.cfg.Display = console
	o.Prepare()

	o.Step()
	assert.Empty(t, h.log.String())

	h.clk.Advance(DefaultStatusPeriod)
	h.stats.Record(h.clk.Now())
	o.Step()
	assert.Contains(t, h.log.String(),
		"S1: 1.680mm | S2: 1.990mm | ADC: [532, 1119] | I2C: ACTIVE (1 requests) | Normal Mode")
	assert.Equal(t, "S1 1.680mm", console.Lines()[2])
	assert.Equal(t, "I2C ACTIVE 1", console.Lines()[5])
}

func TestOrchestrator_ConnectionNotices(t *testing.T) {
	h, o := newHarness(t, WithPeriods(time.Hour, 0, time.Hour))
	o.Prepare()

	h.clk.Advance(DefaultConnectionPeriod)
	o.Step()
	assert.Contains(t, h.log.String(), "I2C: Waiting for printer master connection...")
	h.log.Reset()

	h.stats.Record(h.clk.Now())
	h.clk.Advance(DefaultConnectionPeriod)
	o.Step()
	assert.Contains(t, h.log.String(), "I2C: Master disconnected")
	h.log.Reset()

	h.clk.Advance(DefaultConnectionPeriod)
	h.stats.Record(h.clk.Now())
	o.Step()
	assert.Empty(t, h.log.String())
}

func TestOrchestrator_DiagSummary(t *testing.T) {
	h, o := newHarness(t, WithAddress(0x21), WithPeriods(time.Hour, time.Hour, 0))
	o.Prepare()

	h.events.Record(diag.ReadAddressed)
	h.events.Record(diag.WriteAddressed)
	h.stats.Record(h.clk.Now())

	o.Step()
	assert.Empty(t, h.log.String())
	assert.Equal(t, uint32(2), o.Counters().Total)

	h.clk.Advance(DefaultDiagPeriod)
	o.Step()
	assert.Contains(t, h.log.String(),
		"I2CDBG own7=0x21 total=2 rd=1 wr=1 gc=0 ioerr=0 reinits=0 qovf=0 req=1")
}

func TestOrchestrator_DiagnosticsDisabled(t *testing.T) {
	h, o := newHarness(t, WithPeriods(time.Hour, time.Hour, 0))
	o.events = nil
	o.Prepare()

	h.clk.Advance(DefaultDiagPeriod)
	o.Step()
	assert.NotContains(t, h.log.String(), "I2CDBG")
}

func TestOrchestrator_TriggerRunsCalibration(t *testing.T) {
	h, o := newHarness(t, WithPeriods(time.Hour, time.Hour, time.Hour))
	o.Prepare()
	h.trigger = func() bool { return h.clk.Now() < 2*time.Second }

	o.Step()

	assert.True(t, h.calibrator.Done())
	assert.GreaterOrEqual(t, h.clk.Now(), 2*time.Second+DefaultDebounce)
	assert.Contains(t, h.log.String(), "=== Calibration Complete ===")

	// Calibration captured the constant levels, so the loop resumed
	// publishing measurements converted with the new tables.
	table := h.pipeline.Tables().Get(0)
	assert.Equal(t, float32(532), table[0].Level)
	assert.NotEqual(t, bus.SafeDefault(), h.buffer.Snapshot())
	readings := h.pipeline.Readings()
	assert.Equal(t, codec.BuildResponse(readings[0].MM, readings[1].MM), h.buffer.Snapshot())
}

func TestOrchestrator_TriggerBounceIgnored(t *testing.T) {
	h, o := newHarness(t)
	o.Prepare()

	calls := 0
	h.trigger = func() bool {
		calls++
		return calls == 1
	}
	o.Step()

	assert.Equal(t, calibrate.PhaseStart, h.calibrator.Phase())
	assert.Equal(t, DefaultDebounce, h.clk.Now())
	assert.NotContains(t, h.log.String(), "Calibration Started")
}

func TestOrchestrator_Run(t *testing.T) {
	h, o := newHarness(t)
	o.Prepare()

	ctx, cancel := context.WithCancel(context.Background())
	sleeps := 0
	h.clk.OnSleep(func(time.Duration) {
		sleeps++
		if sleeps == 10 {
			cancel()
		}
	})

	err := o.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 10*DefaultLoopSleep, h.clk.Now())
}

func TestStatusLine(t *testing.T) {
	tests := []struct {
		name string
		st   Status
		want string
	}{
		{
			name: "normal",
			st:   Status{S1: 1.75, S2: 1.751, Raw: [2]uint16{532, 540}, Link: bus.Active, Requests: 12, Mode: ModeNormal},
			want: "S1: 1.750mm | S2: 1.751mm | ADC: [532, 540] | I2C: ACTIVE (12 requests) | Normal Mode",
		},
		{
			name: "negative prints zero",
			st:   Status{S1: -0.2, S2: 0.0004, Link: bus.Idle, Mode: ModeNormal},
			want: "S1: 0.000mm | S2: 0.000mm | ADC: [0, 0] | I2C: IDLE (0 requests) | Normal Mode",
		},
		{
			name: "rounds half up",
			st:   Status{S1: 1.9996, S2: 2.0004, Link: bus.Idle, Mode: ModeNormal},
			want: "S1: 2.000mm | S2: 2.000mm | ADC: [0, 0] | I2C: IDLE (0 requests) | Normal Mode",
		},
		{
			name: "test mode",
			st:   Status{S1: 1.99, S2: 1.99, Link: bus.Idle, Mode: ModeNormal, TestMode: true},
			want: "[TEST MODE] S1: 1.990mm | S2: 1.990mm | ADC: [0, 0] | I2C: IDLE (0 requests) | Normal Mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusLine(tt.st))
		})
	}
}

func TestTimer(t *testing.T) {
	timer := NewTimer(time.Second, 0)
	assert.False(t, timer.Due(999*time.Millisecond))
	assert.True(t, timer.Due(time.Second))
	assert.False(t, timer.Due(1500*time.Millisecond))
	assert.True(t, timer.Due(2500*time.Millisecond))
	assert.False(t, timer.Due(3*time.Second))

	timer.Reset(10 * time.Second)
	assert.False(t, timer.Due(10*time.Second+time.Millisecond))
}

func TestHeartbeat(t *testing.T) {
	clk := clock.NewManual()
	ctx, cancel := context.WithCancel(context.Background())

	sleeps := 0
	clk.OnSleep(func(time.Duration) {
		sleeps++
		if sleeps == 4 {
			cancel()
		}
	})

	var states []bool
	err := Heartbeat(ctx, LEDFunc(func(on bool) { states = append(states, on) }), 0, clk)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []bool{true, false, true, false, false}, states)
	assert.Equal(t, 4*DefaultHeartbeat, clk.Now())
}

func TestBanner(t *testing.T) {
	var buf bytes.Buffer
	Banner{
		Name:       "Filament Width Sensor",
		Version:    "1.0.0",
		Bus:        bus.DefaultConfig(),
		Diagnostic: true,
		DiagPeriod: time.Second,
		QueueLen:   64,
	}.Print(log.New(&buf, "", 0))

	assert.Equal(t, "=== Filament Width Sensor ===\n"+
		"FW: 1.0.0\n"+
		"I2C: 400kHz\n"+
		"Address7: 0x42\n"+
		"Address8: 0x84\n"+
		"I2C debug: ENABLED (period=1000ms, queue=64)\n", buf.String())

	buf.Reset()
	Banner{Name: "x", Bus: bus.DefaultConfig()}.Print(log.New(&buf, "", 0))
	require.Contains(t, buf.String(), "I2C debug: DISABLED")
}

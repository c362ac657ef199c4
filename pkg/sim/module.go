package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"go.uber.org/multierr"

	"github.com/itohio/gofws/pkg/acquire"
	"github.com/itohio/gofws/pkg/bus"
	"github.com/itohio/gofws/pkg/calib"
	"github.com/itohio/gofws/pkg/calibrate"
	"github.com/itohio/gofws/pkg/clock"
	"github.com/itohio/gofws/pkg/config"
	"github.com/itohio/gofws/pkg/diag"
	"github.com/itohio/gofws/pkg/monitor"
)

// Version is reported in the simulated firmware banner.
const Version = "sim-1.0.0"

// Module is a complete sensor module running on simulated hardware. It
// wires the same packages as the firmware, using the threaded model: the
// transport and the heartbeat run on their own goroutines and the main loop
// on a third.
type Module struct {
	Source  *Source
	Trigger *Button // starts calibration
	Next    *Button // confirms a calibration point
	LED     *LED
	Target  *Target

	cfg    *config.Config
	clock  clock.Clock
	logger *log.Logger

	pipeline     *acquire.Pipeline
	buffer       *bus.Buffer
	events       *diag.Queue
	transport    *bus.Transport
	calibrator   *calibrate.Calibrator
	orchestrator *monitor.Orchestrator

	// life aborts a running calibration. It ends when the module closes.
	life context.Context
	stop context.CancelFunc

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	errs    error
	started bool
	closed  bool
}

// NewModule builds a module from cfg. Log output, the equivalent of the
// firmware debug UART, goes to out. A module can be started once; unlike the
// firmware, closing it aborts a calibration in progress.
func NewModule(cfg *config.Config, out io.Writer) *Module {
	if cfg == nil {
		cfg = config.Default()
	}
	clk := clock.NewSystem()
	tables := cfg.CalibrationTables()

	m := &Module{
		Source: NewSource(clk, tables.Get(0), Profile{
			NominalMM:   cfg.Mock.NominalMM,
			AmplitudeMM: cfg.Mock.AmplitudeMM,
			Period:      cfg.Mock.Period,
			Noise:       cfg.Mock.NoiseLevel,
		}, 1),
		Trigger: &Button{},
		Next:    &Button{},
		LED:     &LED{},
		Target: NewTarget(clk, Controller{
			Period:    cfg.Mock.RequestPeriod,
			ErrorRate: cfg.Mock.ErrorRate,
		}, 2),
		cfg:    cfg,
		clock:  clk,
		logger: log.New(out, "", 0),
	}

	m.life, m.stop = context.WithCancel(context.Background())
	m.pipeline = acquire.New(m.Source, tables, cfg.Sampling.Oversample)
	m.buffer = bus.NewBuffer(nil)

	var recorder diag.Recorder = diag.Discard
	if cfg.Diagnostics.Enabled {
		m.events = diag.NewQueue(cfg.Diagnostics.QueueLen, nil)
		recorder = m.events
	}

	m.transport = bus.NewTransport(bus.Config{
		Address:     cfg.Bus.Address,
		FrequencyHz: cfg.Bus.FrequencyHz,
		IdleWait:    cfg.Bus.IdleWait,
	}, m.Target, m.buffer, recorder, clk)

	m.calibrator = calibrate.New(m.Next, m.pipeline, m.buffer, clk,
		calibrate.WithReferences(cfg.Calibration.References),
		calibrate.WithTiming(cfg.Calibration.Poll, cfg.Calibration.Debounce),
		calibrate.WithLogger(m.logger),
		calibrate.WithContext(m.life),
	)

	opts := []monitor.Option{
		monitor.WithAddress(cfg.Bus.Address),
		monitor.WithPeriods(cfg.Timing.StatusPeriod, cfg.Timing.ConnectionPeriod, cfg.Timing.DiagPeriod),
		monitor.WithLoopSleep(cfg.Timing.LoopSleep),
		monitor.WithDebounce(cfg.Calibration.Debounce, cfg.Calibration.Poll),
		monitor.WithLivenessWindow(cfg.Bus.LivenessWindow),
		monitor.WithLogger(m.logger),
	}
	if cfg.Mock.TestMode {
		opts = append(opts, monitor.WithTestMode(cfg.Mock.TestValues[0], cfg.Mock.TestValues[1]))
	}
	m.orchestrator = monitor.New(m.Trigger, m.calibrator, m.pipeline, m.buffer,
		m.transport.Stats(), m.events, clk, opts...)

	return m
}

// Tables returns the calibration tables of the module.
func (m *Module) Tables() *calib.Tables {
	return m.pipeline.Tables()
}

// Buffer returns the response buffer served on the bus.
func (m *Module) Buffer() *bus.Buffer {
	return m.buffer
}

// Transport returns the bus transport.
func (m *Module) Transport() *bus.Transport {
	return m.transport
}

// Start performs the firmware startup sequence and launches the goroutines.
// The bus is started last, once the buffer holds real data.
func (m *Module) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("module closed")
	}
	if m.started {
		return errors.New("module already started")
	}

	monitor.Banner{
		Name:       "Filament Width Sensor (simulated)",
		Version:    Version,
		Bus:        m.transport.Config(),
		Diagnostic: m.cfg.Diagnostics.Enabled,
		DiagPeriod: m.cfg.Timing.DiagPeriod,
		QueueLen:   m.cfg.Diagnostics.QueueLen,
	}.Print(m.logger)

	m.LED.Set(true)
	m.orchestrator.Prepare()
	m.logger.Printf("Data ready. Starting I2C slave...")

	if err := m.transport.Start(); err != nil {
		return fmt.Errorf("failed to start module: %w", err)
	}

	ctx, m.cancel = context.WithCancel(ctx)
	context.AfterFunc(ctx, m.stop)
	m.started = true

	m.run(func() error { return m.transport.Serve(ctx) })
	m.logger.Printf("I2C thread started")
	m.run(func() error { return monitor.Heartbeat(ctx, m.LED, m.cfg.Timing.Heartbeat, m.clock) })
	m.logger.Printf("LED thread starting...")
	m.run(func() error { return m.orchestrator.Run(ctx) })
	m.logger.Printf("Ready!")

	return nil
}

func (m *Module) run(fn func() error) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
			m.mu.Lock()
			m.errs = multierr.Append(m.errs, err)
			m.mu.Unlock()
		}
	}()
}

// Close stops all goroutines and the bus. It returns every error the
// goroutines exited with.
func (m *Module) Close() error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	m.closed = true
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.stop()
	m.wg.Wait()
	m.Target.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.errs
	m.errs = nil
	return err
}

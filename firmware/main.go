//go:build tinygo

//go:generate tinygo flash -target=xiao-rp2040 -scheduler=tasks

package main

import (
	"context"
	"log"
	"machine"
	"runtime/interrupt"

	"github.com/itohio/gofws/pkg/acquire"
	"github.com/itohio/gofws/pkg/bus"
	"github.com/itohio/gofws/pkg/calib"
	"github.com/itohio/gofws/pkg/calibrate"
	"github.com/itohio/gofws/pkg/clock"
	"github.com/itohio/gofws/pkg/diag"
	"github.com/itohio/gofws/pkg/monitor"
)

// irqLock guards state shared with interrupt context on a single core. It
// keeps one saved state, so each owner needs its own instance and must not
// nest.
type irqLock struct {
	state interrupt.State
}

func (l *irqLock) Lock()   { l.state = interrupt.Disable() }
func (l *irqLock) Unlock() { interrupt.Restore(l.state) }

// button is an active-low push button.
type button machine.Pin

func (b button) Pressed() bool { return !machine.Pin(b).Get() }

type led machine.Pin

func (l led) Set(on bool) { machine.Pin(l).Set(on) }

var (
	adcs   [calib.Sensors]machine.ADC
	uart   = machine.UART0
	logger *log.Logger
)

func main() {
	uart.Configure(machine.UARTConfig{BaudRate: UART_BAUD_RATE})
	logger = log.New(uart, "", 0)

	PIN_LED.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_CALIBRATE.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	PIN_NEXT.Configure(machine.PinConfig{Mode: machine.PinInputPullup})

	machine.InitADC()
	for i, pin := range [calib.Sensors]machine.Pin{PIN_SENSOR1, PIN_SENSOR2} {
		adcs[i] = machine.ADC{Pin: pin}
		adcs[i].Configure(machine.ADCConfig{Resolution: ADC_RESOLUTION})
	}

	clk := clock.NewSystem()

	// TinyGo scales every ADC reading to 16 bits.
	src := acquire.AnalogReaderFunc(func(channel int) uint16 {
		return adcs[channel].Get() >> (16 - ADC_RESOLUTION)
	})
	pipeline := acquire.New(src, calib.NewTables(), OVERSAMPLE)
	buffer := bus.NewBuffer(&irqLock{})

	var events *diag.Queue
	var recorder diag.Recorder = diag.Discard
	if I2C_DEBUG {
		events = diag.NewQueue(I2C_QUEUE_LEN, &irqLock{})
		recorder = events
	}

	transport := bus.NewTransport(bus.Config{
		Address:     I2C_ADDRESS7,
		FrequencyHz: I2C_FREQUENCY_HZ,
		IdleWait:    I2C_IDLE_WAIT,
	}, newI2CTarget(machine.I2C0, PIN_SDA, PIN_SCL), buffer, recorder, clk)

	calibrator := calibrate.New(button(PIN_NEXT), pipeline, buffer, clk,
		calibrate.WithTiming(POLL, DEBOUNCE),
		calibrate.WithLogger(logger),
	)

	orchestrator := monitor.New(button(PIN_CALIBRATE), calibrator, pipeline, buffer,
		transport.Stats(), events, clk,
		monitor.WithAddress(I2C_ADDRESS7),
		monitor.WithPeriods(STATUS_PERIOD, CONNECTION_PERIOD, DIAG_PERIOD),
		monitor.WithLoopSleep(LOOP_SLEEP),
		monitor.WithDebounce(DEBOUNCE, POLL),
		monitor.WithLivenessWindow(LIVENESS_WINDOW),
		monitor.WithLogger(logger),
	)

	monitor.Banner{
		Name:       "Filament Width Sensor",
		Version:    FW_VERSION,
		Bus:        transport.Config(),
		Diagnostic: I2C_DEBUG,
		DiagPeriod: DIAG_PERIOD,
		QueueLen:   I2C_QUEUE_LEN,
	}.Print(logger)

	status := led(PIN_LED)
	status.Set(true)
	orchestrator.Prepare()
	logger.Printf("Data ready. Starting I2C slave...")

	if err := transport.Start(); err != nil {
		halt(status, err)
	}

	ctx := context.Background()
	go transport.Serve(ctx)
	logger.Printf("I2C thread started")
	go monitor.Heartbeat(ctx, status, HEARTBEAT_HALF, clk)
	logger.Printf("LED thread starting...")
	logger.Printf("Ready!")

	if err := orchestrator.Run(ctx); err != nil {
		halt(status, err)
	}
}

// halt reports a fatal error, leaves the LED lit, disables interrupts and
// idles forever.
func halt(l led, err error) {
	logger.Printf("FATAL: %v", err)
	l.Set(true)
	interrupt.Disable()
	for {
	}
}

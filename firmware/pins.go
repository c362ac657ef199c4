//go:build tinygo

package main

import (
	"machine"
	"time"

	"github.com/itohio/gofws/pkg/bus"
)

const (
	FW_VERSION = "1.0.0"

	// I2C target configuration
	I2C_ADDRESS7     = bus.DefaultAddress     // 7-bit address the printer polls
	I2C_FREQUENCY_HZ = bus.DefaultFrequencyHz // fast mode
	I2C_IDLE_WAIT    = time.Millisecond

	// Sampling configuration
	OVERSAMPLE     = 16 // raw ADC reads per level
	ADC_RESOLUTION = 12 // bits (0-4095)

	// Main loop timing
	STATUS_PERIOD     = 5 * time.Second
	CONNECTION_PERIOD = 10 * time.Second
	DIAG_PERIOD       = time.Second
	LOOP_SLEEP        = 2 * time.Millisecond
	HEARTBEAT_HALF    = 200 * time.Millisecond
	LIVENESS_WINDOW   = 5 * time.Second

	// Buttons
	DEBOUNCE = 50 * time.Millisecond
	POLL     = 10 * time.Millisecond

	// Bus diagnostics
	I2C_DEBUG     = true
	I2C_QUEUE_LEN = 64

	// Serial configuration
	UART_BAUD_RATE = 115200
)

const (
	// Hall sensor inputs, S1 and S2
	PIN_SENSOR1 = machine.A0
	PIN_SENSOR2 = machine.A1

	// I2C target bus to the printer
	PIN_SDA = machine.D4
	PIN_SCL = machine.D5

	// Buttons, active low with internal pull-ups
	PIN_CALIBRATE = machine.D7
	PIN_NEXT      = machine.D8

	PIN_LED = machine.LED
)

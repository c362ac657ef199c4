// Package link reads the debug UART of the sensor module on the host: the
// periodic status reports and the bus diagnostic summaries.
package link

import (
	"context"
	"fmt"
	"log"
	"sync"

	"go.bug.st/serial"
	"go.uber.org/multierr"
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial represents a connection to the module debug UART.
type Serial struct {
	port     string
	baudRate int

	conn      serial.Port
	samples   chan RawSample
	events    chan Diag
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan error
	connected bool
}

// New creates a new Serial link with the specified port, baud rate, and buffer size.
func New(port string, baudRate int, bufSize int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:     port,
		baudRate: baudRate,
		samples:  make(chan RawSample, bufSize),
		events:   make(chan Diag, bufSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// Connect opens the serial port and starts reading reports.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return ErrAlreadyConnected
	}

	port, err := serial.Open(d.port, &serial.Mode{
		BaudRate: d.baudRate,
	})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	d.conn = port
	d.connected = true
	d.done = make(chan error, 1)

	go func(conn serial.Port, done chan<- error) {
		defer close(d.samples)
		defer close(d.events)
		done <- dispatch(d.ctx, conn, d.samples, d.events)
	}(port, d.done)

	return nil
}

// Close closes the port and waits for the reader to stop. Errors from the
// port and from the reader are combined.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.cancel()

	var err error
	if d.conn != nil {
		if cerr := d.conn.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to close serial port: %w", cerr))
		}
		d.conn = nil
	}
	if rerr := <-d.done; rerr != nil {
		log.Printf("Error reading from serial port: %v", rerr)
		err = multierr.Append(err, rerr)
	}

	d.connected = false
	return err
}

// Samples returns the channel of status reports. It is closed when the link
// is closed.
func (d *Serial) Samples() <-chan RawSample {
	return d.samples
}

// Events returns the channel of diagnostic summaries.
func (d *Serial) Events() <-chan Diag {
	return d.events
}

// IsConnected returns whether the port is open.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

package link

import (
	"time"

	"github.com/itohio/gofws/pkg/diag"
)

const (
	// DefaultBaudRate is the debug UART baud rate of the module.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size of the samples and events channels.
	DefaultBufferSize = 100
)

// Device defines the interface for sensor module links (real or mocked).
type Device interface {
	Connect() error
	Close() error
	Samples() <-chan RawSample
	Events() <-chan Diag
	IsConnected() bool
}

// Ensure Device implements DeviceInterface.
var _ Device = (*Serial)(nil)

// Ensure Mock implements DeviceInterface.
var _ Device = (*Mock)(nil)

// RawSample is one status report of the module.
type RawSample struct {
	Timestamp time.Time
	S1, S2    float64 // diameters, mm
	Raw1      uint16  // last oversampled level of sensor 1
	Raw2      uint16  // last oversampled level of sensor 2
	Active    bool    // controller link ACTIVE
	Requests  uint32
	Mode      string
	TestMode  bool
}

// Diag is one bus diagnostic summary of the module.
type Diag struct {
	Timestamp time.Time
	Address   uint8
	Counters  diag.Counters
	Requests  uint32
}

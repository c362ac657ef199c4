package monitor

import (
	"context"
	"time"

	"github.com/itohio/gofws/pkg/bus"
	"github.com/itohio/gofws/pkg/clock"
)

// LED is a single status indicator.
type LED interface {
	Set(on bool)
}

// LEDFunc adapts a function to LED.
type LEDFunc func(on bool)

// Set calls f(on).
func (f LEDFunc) Set(on bool) { f(on) }

// Heartbeat toggles led every half period until ctx is done. It runs on its
// own goroutine so the LED keeps blinking even if the main loop stalls.
func Heartbeat(ctx context.Context, led LED, half time.Duration, clk clock.Clock) error {
	if half <= 0 {
		half = DefaultHeartbeat
	}
	defer led.Set(false)

	for {
		led.Set(true)
		clk.Sleep(half)
		led.Set(false)
		clk.Sleep(half)

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// Banner describes the firmware at startup.
type Banner struct {
	Name       string
	Version    string
	Bus        bus.Config
	Diagnostic bool
	DiagPeriod time.Duration
	QueueLen   int
}

// Print writes the startup banner to l.
func (b Banner) Print(l Logger) {
	l.Printf("=== %s ===", b.Name)
	l.Printf("FW: %s", b.Version)
	l.Printf("I2C: %dkHz", b.Bus.FrequencyHz/1000)
	l.Printf("Address7: 0x%02X", b.Bus.Address)
	l.Printf("Address8: 0x%02X", bus.Addr8(b.Bus.Address))
	if b.Diagnostic {
		l.Printf("I2C debug: ENABLED (period=%dms, queue=%d)", b.DiagPeriod.Milliseconds(), b.QueueLen)
	} else {
		l.Printf("I2C debug: DISABLED")
	}
}

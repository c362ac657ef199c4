package sim

import (
	"sync/atomic"

	"github.com/itohio/gofws/pkg/calibrate"
	"github.com/itohio/gofws/pkg/monitor"
)

// Button is a momentary push button.
type Button struct {
	pressed atomic.Bool
}

var _ calibrate.Button = (*Button)(nil)

// Press holds the button down.
func (b *Button) Press() { b.pressed.Store(true) }

// Release lets the button go.
func (b *Button) Release() { b.pressed.Store(false) }

// Pressed reports whether the button is held.
func (b *Button) Pressed() bool { return b.pressed.Load() }

// LED records the state of the status LED.
type LED struct {
	on      atomic.Bool
	toggles atomic.Uint32
}

var _ monitor.LED = (*LED)(nil)

// Set switches the LED and counts changes.
func (l *LED) Set(on bool) {
	if l.on.Swap(on) != on {
		l.toggles.Add(1)
	}
}

// On reports whether the LED is lit.
func (l *LED) On() bool { return l.on.Load() }

// Toggles returns how many times the LED changed state.
func (l *LED) Toggles() uint32 { return l.toggles.Load() }

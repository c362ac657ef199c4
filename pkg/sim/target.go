package sim

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/itohio/gofws/pkg/bus"
	"github.com/itohio/gofws/pkg/clock"
	"github.com/itohio/gofws/pkg/codec"
)

// ErrTransfer is returned for an injected bus failure.
var ErrTransfer = errors.New("simulated bus transfer failed")

// Controller describes the simulated printer controller.
type Controller struct {
	Period     time.Duration // time between requests
	WriteEvery int           // every Nth request is a write, 0 = never
	ErrorRate  float64       // probability of a failed transfer
}

// Target is a bus.Target attached to a simulated printer controller that
// reads the module every Period.
type Target struct {
	mu        sync.Mutex
	clock     clock.Clock
	ctrl      Controller
	rng       *rand.Rand
	listening bool
	connected bool
	addr      uint8
	hz        uint32
	next      time.Duration
	count     int

	received  int
	failures  int
	configs   int
	last      codec.Response
	lastValid bool
}

var _ bus.Target = (*Target)(nil)

// NewTarget creates a simulated target. The controller starts connected.
func NewTarget(clk clock.Clock, ctrl Controller, seed int64) *Target {
	return &Target{
		clock:     clk,
		ctrl:      ctrl,
		rng:       rand.New(rand.NewSource(seed)),
		connected: true,
	}
}

// Configure starts listening on addr7.
func (t *Target) Configure(addr7 uint8, hz uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listening = true
	t.addr = addr7
	t.hz = hz
	t.configs++
	return nil
}

// Stop stops listening.
func (t *Target) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listening = false
}

// Receive returns the next controller request, if one is due.
func (t *Target) Receive() bus.Request {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.listening || !t.connected {
		return bus.NoData
	}
	now := t.clock.Now()
	if now < t.next {
		return bus.NoData
	}
	t.next = now + t.ctrl.Period
	t.count++
	if t.ctrl.WriteEvery > 0 && t.count%t.ctrl.WriteEvery == 0 {
		return bus.WriteAddressed
	}
	return bus.ReadAddressed
}

// Read receives a byte written by the controller.
func (t *Target) Read(buf []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail() {
		return ErrTransfer
	}
	for i := range buf {
		buf[i] = 0
	}
	return nil
}

// Write delivers buf to the controller.
func (t *Target) Write(buf []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail() {
		return ErrTransfer
	}
	t.received++
	t.lastValid = len(buf) == codec.ResponseSize
	copy(t.last[:], buf)
	return nil
}

func (t *Target) fail() bool {
	if t.ctrl.ErrorRate <= 0 || t.rng.Float64() >= t.ctrl.ErrorRate {
		return false
	}
	t.failures++
	return true
}

// SetConnected attaches or detaches the controller.
func (t *Target) SetConnected(connected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = connected
}

// Address returns the configured 7-bit address and bus frequency.
func (t *Target) Address() (uint8, uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addr, t.hz
}

// Configured returns how many times the target was configured.
func (t *Target) Configured() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.configs
}

// Received returns how many responses the controller received.
func (t *Target) Received() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.received
}

// Failures returns how many transfers failed.
func (t *Target) Failures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures
}

// Last returns the last response the controller received.
func (t *Target) Last() (codec.Response, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.lastValid
}

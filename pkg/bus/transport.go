package bus

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/itohio/gofws/pkg/clock"
	"github.com/itohio/gofws/pkg/diag"
)

const (
	// DefaultAddress is the 7-bit target address the printer expects.
	DefaultAddress uint8 = 0x42
	// DefaultFrequencyHz is the I2C fast-mode clock.
	DefaultFrequencyHz uint32 = 400000
	// DefaultIdleWait is the pause between polls when no transaction is pending.
	DefaultIdleWait = time.Millisecond
)

// Request is the kind of transaction the controller addressed to us.
type Request int

const (
	NoData Request = iota
	ReadAddressed
	WriteGeneral
	WriteAddressed
)

func (r Request) String() string {
	switch r {
	case NoData:
		return "no-data"
	case ReadAddressed:
		return "read-addressed"
	case WriteGeneral:
		return "write-general"
	case WriteAddressed:
		return "write-addressed"
	default:
		return fmt.Sprintf("request(%d)", int(r))
	}
}

// Target is the I2C peripheral operating in target mode.
// Receive returns NoData when nothing arrives within its own short timeout.
// Read and Write return a non-nil error on any bus failure.
type Target interface {
	Configure(addr7 uint8, frequencyHz uint32) error
	Stop()
	Receive() Request
	Read(buf []byte) error
	Write(buf []byte) error
}

// State is the transport state machine position.
type State uint32

const (
	StateIdle State = iota
	StateServingRead
	StateReceivingWrite
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateServingRead:
		return "serving-read"
	case StateReceivingWrite:
		return "receiving-write"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", uint32(s))
	}
}

// Config holds the transport settings.
type Config struct {
	Address     uint8         // 7-bit address
	FrequencyHz uint32        // bus clock
	IdleWait    time.Duration // wait after an empty poll
}

// DefaultConfig returns the default transport settings.
func DefaultConfig() Config {
	return Config{
		Address:     DefaultAddress,
		FrequencyHz: DefaultFrequencyHz,
		IdleWait:    DefaultIdleWait,
	}
}

// Addr8 returns the 8-bit (shifted) form of a 7-bit address.
func Addr8(addr7 uint8) uint8 {
	return addr7 << 1
}

// Transport answers controller transactions from the shared Buffer.
// Handle may be called from an interrupt callback; Serve runs the polled
// variant on its own goroutine. Only one of them may be used at a time.
type Transport struct {
	cfg    Config
	target Target
	buffer *Buffer
	events diag.Recorder
	clock  clock.Clock

	state atomic.Uint32
	stats Stats
	drain [1]byte
}

// NewTransport creates a transport. A nil events recorder discards events.
func NewTransport(cfg Config, target Target, buffer *Buffer, events diag.Recorder, clk clock.Clock) *Transport {
	def := DefaultConfig()
	if cfg.Address == 0 {
		cfg.Address = def.Address
	}
	if cfg.FrequencyHz == 0 {
		cfg.FrequencyHz = def.FrequencyHz
	}
	if cfg.IdleWait <= 0 {
		cfg.IdleWait = def.IdleWait
	}
	if events == nil {
		events = diag.Discard
	}

	return &Transport{
		cfg:    cfg,
		target: target,
		buffer: buffer,
		events: events,
		clock:  clk,
	}
}

// Config returns the effective settings.
func (t *Transport) Config() Config {
	return t.cfg
}

// Stats returns the request statistics.
func (t *Transport) Stats() *Stats {
	return &t.stats
}

// State returns the current state.
func (t *Transport) State() State {
	return State(t.state.Load())
}

func (t *Transport) setState(s State) {
	t.state.Store(uint32(s))
}

// Start configures the target for the first time. The buffer must already
// hold valid data. An error here means the module cannot operate.
func (t *Transport) Start() error {
	if err := t.Reinit(); err != nil {
		return fmt.Errorf("failed to start target at 0x%02X: %w", t.cfg.Address, err)
	}
	return nil
}

// Reinit stops and reconfigures the target. On success it records a Reinit
// event and returns to Idle; on failure the transport stays in Error and the
// next Poll or Handle retries.
func (t *Transport) Reinit() error {
	t.target.Stop()
	if err := t.target.Configure(t.cfg.Address, t.cfg.FrequencyHz); err != nil {
		t.setState(StateError)
		return err
	}
	t.events.Record(diag.Reinit)
	t.setState(StateIdle)
	return nil
}

// Poll checks the target once and services any pending transaction.
// It reports whether a transaction was handled.
func (t *Transport) Poll() bool {
	if t.State() == StateError {
		if err := t.Reinit(); err != nil {
			return false
		}
	}

	req := t.target.Receive()
	if req == NoData {
		return false
	}
	t.Handle(req)
	return true
}

// Handle services one transaction of kind req.
func (t *Transport) Handle(req Request) {
	if t.State() == StateError {
		if err := t.Reinit(); err != nil {
			return
		}
	}

	switch req {
	case ReadAddressed:
		t.setState(StateServingRead)
		resp := t.buffer.Snapshot()
		if err := t.target.Write(resp[:]); err != nil {
			t.fail()
			return
		}
		t.stats.Record(t.clock.Now())
		t.events.Record(diag.ReadAddressed)

	case WriteAddressed, WriteGeneral:
		t.setState(StateReceivingWrite)
		if req == WriteGeneral {
			t.events.Record(diag.WriteGeneral)
		} else {
			t.events.Record(diag.WriteAddressed)
		}
		if err := t.target.Read(t.drain[:]); err != nil {
			t.fail()
			return
		}

	default:
		return
	}

	t.setState(StateIdle)
}

// fail moves to Error, records the failure and recovers.
func (t *Transport) fail() {
	t.setState(StateError)
	t.events.Record(diag.WriteReadError)
	_ = t.Reinit()
}

// Serve polls the target until ctx is done. Between empty polls it waits
// IdleWait so lower priority goroutines keep running.
func (t *Transport) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if t.Poll() {
			runtime.Gosched()
			continue
		}
		t.clock.Sleep(t.cfg.IdleWait)
	}
}

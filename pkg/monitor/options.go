package monitor

import (
	"log"
	"time"

	"github.com/itohio/gofws/pkg/bus"
	"github.com/itohio/gofws/pkg/display"
)

const (
	DefaultStatusPeriod     = 5 * time.Second
	DefaultConnectionPeriod = 10 * time.Second
	DefaultDiagPeriod       = time.Second
	DefaultLoopSleep        = 2 * time.Millisecond
	DefaultDebounce         = 50 * time.Millisecond
	DefaultPoll             = 10 * time.Millisecond
	DefaultHeartbeat        = 200 * time.Millisecond

	// ModeNormal is the mode reported in the status line.
	ModeNormal = "Normal Mode"
)

// Logger receives the periodic reports. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// Config holds the orchestrator settings.
type Config struct {
	Address          uint8
	StatusPeriod     time.Duration
	ConnectionPeriod time.Duration
	DiagPeriod       time.Duration
	LoopSleep        time.Duration
	Debounce         time.Duration
	Poll             time.Duration
	LivenessWindow   time.Duration

	TestMode   bool
	TestValues [2]float32

	Logger  Logger
	Display display.Display
}

func defaultConfig() Config {
	return Config{
		Address:          bus.DefaultAddress,
		StatusPeriod:     DefaultStatusPeriod,
		ConnectionPeriod: DefaultConnectionPeriod,
		DiagPeriod:       DefaultDiagPeriod,
		LoopSleep:        DefaultLoopSleep,
		Debounce:         DefaultDebounce,
		Poll:             DefaultPoll,
		LivenessWindow:   bus.DefaultLivenessWindow,
		Logger:           log.Default(),
	}
}

// Option configures an Orchestrator.
type Option func(*Config)

// WithAddress sets the 7-bit address printed in diagnostic summaries.
func WithAddress(addr7 uint8) Option {
	return func(c *Config) {
		c.Address = addr7
	}
}

// WithPeriods sets the status, connectivity and diagnostic report periods.
// Zero values keep the defaults.
func WithPeriods(status, connection, diagnostics time.Duration) Option {
	return func(c *Config) {
		if status > 0 {
			c.StatusPeriod = status
		}
		if connection > 0 {
			c.ConnectionPeriod = connection
		}
		if diagnostics > 0 {
			c.DiagPeriod = diagnostics
		}
	}
}

// WithLoopSleep sets the pause between main loop iterations.
func WithLoopSleep(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.LoopSleep = d
		}
	}
}

// WithDebounce sets the trigger debounce delay and release polling interval.
func WithDebounce(debounce, poll time.Duration) Option {
	return func(c *Config) {
		if debounce > 0 {
			c.Debounce = debounce
		}
		if poll > 0 {
			c.Poll = poll
		}
	}
}

// WithLivenessWindow sets how long after the last read the link is ACTIVE.
func WithLivenessWindow(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.LivenessWindow = d
		}
	}
}

// WithTestMode publishes the fixed diameters s1 and s2 instead of
// measurements.
func WithTestMode(s1, s2 float32) Option {
	return func(c *Config) {
		c.TestMode = true
		c.TestValues = [2]float32{s1, s2}
	}
}

// WithLogger routes reports to l.
func WithLogger(l Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithDisplay refreshes d with the status screen on every status report.
func WithDisplay(d display.Display) Option {
	return func(c *Config) {
		c.Display = d
	}
}

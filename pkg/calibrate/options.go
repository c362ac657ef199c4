package calibrate

import (
	"context"
	"log"
	"time"

	"github.com/itohio/gofws/pkg/calib"
	"github.com/itohio/gofws/pkg/display"
)

const (
	// DefaultPoll is the button polling interval while waiting.
	DefaultPoll = 10 * time.Millisecond
	// DefaultDebounce is the settle time after every button edge.
	DefaultDebounce = 50 * time.Millisecond
)

// DefaultReferences are the reference filament diameters for the low,
// nominal and high calibration points.
var DefaultReferences = [calib.Points]float32{1.50, 1.75, 2.00}

// Logger receives operator-facing messages. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// ProgressCallback is called after every captured point.
type ProgressCallback func(p Progress)

// Progress describes one captured calibration point.
type Progress struct {
	Sensor      int
	Point       int
	Level       uint16
	ReferenceMM float32
	Captured    int // points captured so far, including this one
	Total       int
}

// Config holds the calibration procedure settings.
type Config struct {
	References [calib.Points]float32
	Poll       time.Duration
	Debounce   time.Duration
	Display    display.Display
	Logger     Logger
	Progress   ProgressCallback

	// Context, when set, aborts the procedure once done. Nil never aborts.
	Context context.Context
}

func defaultConfig() Config {
	return Config{
		References: DefaultReferences,
		Poll:       DefaultPoll,
		Debounce:   DefaultDebounce,
		Logger:     log.Default(),
	}
}

// Option configures a Calibrator.
type Option func(*Config)

// WithReferences sets the reference diameters for the three points.
func WithReferences(refs [calib.Points]float32) Option {
	return func(c *Config) {
		c.References = refs
	}
}

// WithTiming sets the polling interval and debounce delay. Zero values keep
// the defaults.
func WithTiming(poll, debounce time.Duration) Option {
	return func(c *Config) {
		if poll > 0 {
			c.Poll = poll
		}
		if debounce > 0 {
			c.Debounce = debounce
		}
	}
}

// WithDisplay shows prompts on d.
func WithDisplay(d display.Display) Option {
	return func(c *Config) {
		c.Display = d
	}
}

// WithLogger routes operator messages to l.
func WithLogger(l Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithProgress registers a callback for captured points.
func WithProgress(cb ProgressCallback) Option {
	return func(c *Config) {
		c.Progress = cb
	}
}

// WithContext lets ctx abort a running procedure. Without it Run only
// returns after every point is captured.
func WithContext(ctx context.Context) Option {
	return func(c *Config) {
		c.Context = ctx
	}
}

// Package trend keeps a time window of diameter samples on the host and
// detects out-of-tolerance excursions per sensor.
package trend

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/itohio/gofws/pkg/config"
	"github.com/itohio/gofws/pkg/sample"
)

// Sensors is the number of diameter channels tracked.
const Sensors = 2

var _ WidthTracker = (*Tracker)(nil)

// Kind tells on which side of the tolerance band an excursion happened.
type Kind int

const (
	Low Kind = iota
	High
)

func (k Kind) String() string {
	switch k {
	case Low:
		return "low"
	case High:
		return "high"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Excursion is a period during which one sensor stayed outside the
// tolerance band on the same side.
type Excursion struct {
	Sensor    int       // 0 for S1, 1 for S2
	Kind      Kind      // Low or High
	StartTime time.Time // first out-of-band sample
	EndTime   time.Time // last out-of-band sample (updated while ongoing)
	Peak      float64   // furthest diameter from the band, mm
	Ongoing   bool
}

// Duration returns how long the excursion lasted so far.
func (e Excursion) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

// SensorStats summarizes one sensor over the window.
type SensorStats struct {
	Mean float64
	Min  float64
	Max  float64
}

// Stats summarizes the window.
type Stats struct {
	Count   int
	Sensors [Sensors]SensorStats
}

// UpdateFunc receives copies of the window after every processed sample.
type UpdateFunc func(samples []sample.Sample, excursions []Excursion, stats Stats)

// WidthTracker processes samples, maintains the window, and detects excursions.
type WidthTracker interface {
	ProcessSamples(input <-chan sample.Sample)
	Samples() []sample.Sample // ordered oldest to newest
	Excursions() []Excursion  // qualifying excursions within the window
	Stats() Stats
	OnUpdate(UpdateFunc)
}

// Tracker implements WidthTracker.
// Samples are removed by timestamp, not by count.
type Tracker struct {
	samples    []sample.Sample
	excursions []Excursion
	pending    [Sensors]*Excursion // current out-of-band run, qualifying or not
	stats      Stats

	mu sync.RWMutex

	callbacks []UpdateFunc
	cbMu      sync.RWMutex

	window       time.Duration
	minMM        float64
	maxMM        float64
	minExcursion time.Duration

	// Set when the input channel closes, prevents further callbacks.
	shutdown bool
}

// New creates a tracker using the tolerance settings of cfg.
func New(cfg *config.Config) *Tracker {
	return &Tracker{
		samples:      make([]sample.Sample, 0),
		excursions:   make([]Excursion, 0),
		window:       cfg.Tolerance.WindowLength,
		minMM:        cfg.Tolerance.MinMM,
		maxMM:        cfg.Tolerance.MaxMM,
		minExcursion: cfg.Tolerance.MinExcursion,
	}
}

// ProcessSamples consumes input until it is closed. After that no more
// callbacks are delivered until ResetShutdown.
func (m *Tracker) ProcessSamples(input <-chan sample.Sample) {
	for s := range input {
		m.processSample(s)
	}
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()
}

func (m *Tracker) processSample(s sample.Sample) {
	m.mu.Lock()

	m.samples = append(m.samples, s)
	m.trim(s.Timestamp.Add(-m.window))

	for sensor := range Sensors {
		m.track(sensor, s.Timestamp, value(s, sensor))
	}
	m.stats = computeStats(m.samples)

	notify := !m.shutdown
	m.mu.Unlock()

	if notify {
		m.notifyCallbacks()
	}
}

// trim drops samples and finished excursions not after cutoff.
func (m *Tracker) trim(cutoff time.Time) {
	idx := 0
	for idx < len(m.samples)-1 && !m.samples[idx].Timestamp.After(cutoff) {
		idx++
	}
	if idx > 0 {
		m.samples = append(m.samples[:0], m.samples[idx:]...)
	}

	kept := m.excursions[:0]
	for _, e := range m.excursions {
		if e.Ongoing || e.EndTime.After(cutoff) {
			kept = append(kept, e)
		}
	}
	m.excursions = kept
}

func (m *Tracker) track(sensor int, ts time.Time, v float64) {
	kind, out := m.classify(v)
	if !out {
		m.finish(sensor)
		return
	}

	p := m.pending[sensor]
	if p == nil || p.Kind != kind {
		m.finish(sensor)
		p = &Excursion{
			Sensor:    sensor,
			Kind:      kind,
			StartTime: ts,
			Peak:      v,
			Ongoing:   true,
		}
		m.pending[sensor] = p
	}
	p.EndTime = ts
	if (kind == Low && v < p.Peak) || (kind == High && v > p.Peak) {
		p.Peak = v
	}

	if p.Duration() < m.minExcursion {
		return
	}
	if idx := m.ongoing(sensor); idx >= 0 {
		m.excursions[idx] = *p
	} else {
		m.excursions = append(m.excursions, *p)
	}
}

func (m *Tracker) finish(sensor int) {
	if idx := m.ongoing(sensor); idx >= 0 {
		m.excursions[idx].Ongoing = false
	}
	m.pending[sensor] = nil
}

func (m *Tracker) ongoing(sensor int) int {
	for i := len(m.excursions) - 1; i >= 0; i-- {
		if m.excursions[i].Sensor == sensor && m.excursions[i].Ongoing {
			return i
		}
	}
	return -1
}

func (m *Tracker) classify(v float64) (Kind, bool) {
	switch {
	case v < m.minMM:
		return Low, true
	case v > m.maxMM:
		return High, true
	default:
		return Low, false
	}
}

func value(s sample.Sample, sensor int) float64 {
	if sensor == 0 {
		return s.S1
	}
	return s.S2
}

func computeStats(samples []sample.Sample) Stats {
	st := Stats{Count: len(samples)}
	if len(samples) == 0 {
		return st
	}
	for sensor := range Sensors {
		ss := SensorStats{Min: math.Inf(1), Max: math.Inf(-1)}
		for _, s := range samples {
			v := value(s, sensor)
			ss.Mean += v
			ss.Min = math.Min(ss.Min, v)
			ss.Max = math.Max(ss.Max, v)
		}
		ss.Mean /= float64(len(samples))
		st.Sensors[sensor] = ss
	}
	return st
}

// Samples returns a copy of the current samples buffer.
func (m *Tracker) Samples() []sample.Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]sample.Sample, len(m.samples))
	copy(result, m.samples)
	return result
}

// Excursions returns a copy of the qualifying excursions.
func (m *Tracker) Excursions() []Excursion {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Excursion, len(m.excursions))
	copy(result, m.excursions)
	return result
}

// Stats returns the statistics of the current window.
func (m *Tracker) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// OnUpdate registers a callback invoked after every processed sample.
// The callback should copy what it needs and return quickly.
func (m *Tracker) OnUpdate(callback UpdateFunc) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// ResetShutdown allows callbacks again. Call it before starting a new
// sample chain.
func (m *Tracker) ResetShutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdown = false
}

// Reset clears the window and any open excursions.
func (m *Tracker) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = m.samples[:0]
	m.excursions = m.excursions[:0]
	m.pending = [Sensors]*Excursion{}
	m.stats = Stats{}
}

func (m *Tracker) notifyCallbacks() {
	m.mu.RLock()
	samples := make([]sample.Sample, len(m.samples))
	copy(samples, m.samples)
	excursions := make([]Excursion, len(m.excursions))
	copy(excursions, m.excursions)
	stats := m.stats
	m.mu.RUnlock()

	m.cbMu.RLock()
	callbacks := make([]UpdateFunc, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(samples, excursions, stats)
		}
	}
}

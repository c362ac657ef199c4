package acquire

import (
	"sync"

	"github.com/itohio/gofws/pkg/calib"
)

const (
	// DefaultOversample is the number of ADC reads averaged into one raw level.
	DefaultOversample = 16
	// ADCMax is the full-scale raw value of the 12-bit converter.
	ADCMax = 4095
)

// AnalogReader reads one raw sample from an analog channel. Values are in the
// fixed 0..ADCMax scale.
type AnalogReader interface {
	ReadRaw(channel int) uint16
}

// AnalogReaderFunc adapts a function to AnalogReader.
type AnalogReaderFunc func(channel int) uint16

// ReadRaw calls f(channel).
func (f AnalogReaderFunc) ReadRaw(channel int) uint16 { return f(channel) }

// Reading is the latest diameter computed for one sensor.
type Reading struct {
	Sensor int
	MM     float32
}

// Pipeline oversamples both sensors, keeps a moving average per sensor and
// converts the averages to diameters with the calibration tables.
type Pipeline struct {
	src        AnalogReader
	tables     *calib.Tables
	oversample int

	windows [calib.Sensors]Window

	mu       sync.RWMutex
	lastRaw  [calib.Sensors]uint16
	avgRaw   [calib.Sensors]uint16
	readings [calib.Sensors]Reading
}

// New creates a pipeline reading src. oversample <= 0 selects DefaultOversample.
// Both readings start at calib.DefaultDiameterMM.
func New(src AnalogReader, tables *calib.Tables, oversample int) *Pipeline {
	if oversample <= 0 {
		oversample = DefaultOversample
	}
	if tables == nil {
		tables = calib.NewTables()
	}

	p := &Pipeline{
		src:        src,
		tables:     tables,
		oversample: oversample,
	}
	for s := range p.readings {
		p.readings[s] = Reading{Sensor: s, MM: calib.DefaultDiameterMM}
	}
	return p
}

// Tables returns the calibration tables used for conversion.
func (p *Pipeline) Tables() *calib.Tables {
	return p.tables
}

// ReadRawLevel oversamples sensor and returns the truncated mean.
// Unknown sensors read as zero.
func (p *Pipeline) ReadRawLevel(sensor int) uint16 {
	if sensor < 0 || sensor >= calib.Sensors {
		return 0
	}
	var sum uint32
	for i := 0; i < p.oversample; i++ {
		sum += uint32(p.src.ReadRaw(sensor))
	}
	return uint16(sum / uint32(p.oversample))
}

// Convert maps a raw level of sensor to millimetres. Unknown sensors return
// calib.DefaultDiameterMM.
func (p *Pipeline) Convert(raw uint16, sensor int) float32 {
	return p.tables.Convert(float32(raw), sensor)
}

// Measure pushes one fresh level per sensor into its window, converts the
// window averages and returns both readings.
func (p *Pipeline) Measure() [calib.Sensors]Reading {
	var raw, avg [calib.Sensors]uint16
	for s := range p.windows {
		raw[s] = p.ReadRawLevel(s)
		p.windows[s].Push(raw[s])
		avg[s] = p.windows[s].Average()
	}

	var readings [calib.Sensors]Reading
	for s := range readings {
		readings[s] = Reading{Sensor: s, MM: p.Convert(avg[s], s)}
	}

	p.mu.Lock()
	p.lastRaw = raw
	p.avgRaw = avg
	p.readings = readings
	p.mu.Unlock()

	return readings
}

// Prime fills every window with one immediate level so the first averages
// are not biased by empty slots.
func (p *Pipeline) Prime() {
	var raw [calib.Sensors]uint16
	for s := range p.windows {
		raw[s] = p.ReadRawLevel(s)
		p.windows[s].Fill(raw[s])
	}

	p.mu.Lock()
	p.lastRaw = raw
	p.avgRaw = raw
	p.mu.Unlock()
}

// Readings returns the last published readings.
func (p *Pipeline) Readings() [calib.Sensors]Reading {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.readings
}

// LastRaw returns the most recent oversampled level of each sensor.
func (p *Pipeline) LastRaw() [calib.Sensors]uint16 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastRaw
}

// AverageRaw returns the current window average of each sensor.
func (p *Pipeline) AverageRaw() [calib.Sensors]uint16 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.avgRaw
}

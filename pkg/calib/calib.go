package calib

import (
	"sync"

	"github.com/chewxy/math32"
)

const (
	// Sensors is the number of sensor channels on the module.
	Sensors = 2
	// Points is the number of calibration anchors per sensor (low, nominal, high).
	Points = 3

	// DefaultDiameterMM is returned for unknown sensors and published while calibrating.
	DefaultDiameterMM float32 = 1.75

	// RawTolerance is the degenerate-segment tolerance for tables in raw ADC counts.
	RawTolerance float32 = 0
	// VoltageTolerance is the degenerate-segment tolerance for tables in volts.
	VoltageTolerance float32 = 1e-4
)

// Point is one calibration anchor: a sensor level and the reference diameter
// that produced it.
type Point struct {
	Level      float32 `yaml:"level"`
	DiameterMM float32 `yaml:"diameter_mm"`
}

// Table is a per-sensor lookup table ordered by ascending Level.
type Table [Points]Point

// DefaultTable returns the built-in table used until the sensor is calibrated.
func DefaultTable() Table {
	return Table{
		{Level: 7, DiameterMM: 1.47},
		{Level: 532, DiameterMM: 1.68},
		{Level: 1119, DiameterMM: 1.99},
	}
}

// Convert maps a sensor level to a diameter by piecewise-linear interpolation.
// Levels at or below the nominal point use the low segment, the rest use the
// high segment. A segment whose ends are within tolerance of each other
// returns the lower point's diameter. The result is not clamped.
func (t Table) Convert(level, tolerance float32) float32 {
	lo, hi := t[0], t[1]
	if level > t[1].Level {
		lo, hi = t[1], t[2]
	}
	return interpolate(lo, hi, level, tolerance)
}

// Monotonic reports whether levels and diameters both never decrease.
func (t Table) Monotonic() bool {
	for i := 1; i < Points; i++ {
		if t[i].Level < t[i-1].Level || t[i].DiameterMM < t[i-1].DiameterMM {
			return false
		}
	}
	return true
}

func interpolate(lo, hi Point, level, tolerance float32) float32 {
	denom := hi.Level - lo.Level
	if math32.Abs(denom) <= tolerance {
		return lo.DiameterMM
	}
	slope := (hi.DiameterMM - lo.DiameterMM) / denom
	return lo.DiameterMM + slope*(level-lo.Level)
}

// Tables holds the calibration tables of both sensors. It is written by the
// calibration procedure and read by the acquisition pipeline.
type Tables struct {
	mu        sync.RWMutex
	tables    [Sensors]Table
	tolerance float32
}

// NewTables creates tables initialised to the built-in defaults, using the raw
// ADC tolerance.
func NewTables() *Tables {
	t := &Tables{tolerance: RawTolerance}
	t.Reset()
	return t
}

// NewTablesWithTolerance creates default tables with a custom degenerate-segment
// tolerance (VoltageTolerance for volt-domain tables).
func NewTablesWithTolerance(tolerance float32) *Tables {
	t := &Tables{tolerance: tolerance}
	t.Reset()
	return t
}

// Reset restores the built-in default table for every sensor.
func (t *Tables) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.tables {
		t.tables[i] = DefaultTable()
	}
}

// Get returns a copy of the table for sensor. Unknown sensors get the default table.
func (t *Tables) Get(sensor int) Table {
	if sensor < 0 || sensor >= Sensors {
		return DefaultTable()
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tables[sensor]
}

// SetTable replaces the whole table of sensor. Unknown sensors are ignored.
func (t *Tables) SetTable(sensor int, table Table) {
	if sensor < 0 || sensor >= Sensors {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tables[sensor] = table
}

// Set stores one calibration point. Out-of-range indices are ignored.
func (t *Tables) Set(sensor, point int, p Point) {
	if sensor < 0 || sensor >= Sensors || point < 0 || point >= Points {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tables[sensor][point] = p
}

// Convert converts a level for sensor. Unknown sensors return DefaultDiameterMM.
func (t *Tables) Convert(level float32, sensor int) float32 {
	if sensor < 0 || sensor >= Sensors {
		return DefaultDiameterMM
	}
	t.mu.RLock()
	table := t.tables[sensor]
	tol := t.tolerance
	t.mu.RUnlock()
	return table.Convert(level, tol)
}

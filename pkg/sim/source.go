// Package sim simulates the sensor module hardware: the two Hall sensors
// with filament passing through them, the front panel buttons, the status
// LED and the printer controller polling the bus.
package sim

import (
	"math/rand"
	"sync"
	"time"

	"github.com/chewxy/math32"

	"github.com/itohio/gofws/pkg/acquire"
	"github.com/itohio/gofws/pkg/calib"
	"github.com/itohio/gofws/pkg/clock"
)

// Profile describes the simulated filament diameter over time.
type Profile struct {
	NominalMM   float32
	AmplitudeMM float32       // slow sinusoidal wander
	Period      time.Duration // wander period
	Noise       float32       // ADC noise standard deviation, counts
}

// Source is an acquire.AnalogReader producing the levels the sensors would
// report for the simulated filament. The sensor response is the inverse of
// a calibration table.
type Source struct {
	mu       sync.Mutex
	clock    clock.Clock
	response calib.Table
	profile  Profile
	rng      *rand.Rand
	inserted [calib.Sensors]float32 // fixed diameter, 0 = follow profile
}

var _ acquire.AnalogReader = (*Source)(nil)

// NewSource creates a source following profile. The sensor response is
// described by table.
func NewSource(clk clock.Clock, table calib.Table, profile Profile, seed int64) *Source {
	return &Source{
		clock:    clk,
		response: table,
		profile:  profile,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Insert holds a reference rod of mm in sensor until Remove is called.
func (s *Source) Insert(sensor int, mm float32) {
	if sensor < 0 || sensor >= calib.Sensors {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted[sensor] = mm
}

// Remove returns sensor to the filament profile.
func (s *Source) Remove(sensor int) {
	s.Insert(sensor, 0)
}

// Diameter returns the noiseless diameter currently in sensor.
func (s *Source) Diameter(sensor int) float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diameter(sensor)
}

func (s *Source) diameter(sensor int) float32 {
	if sensor >= 0 && sensor < calib.Sensors && s.inserted[sensor] > 0 {
		return s.inserted[sensor]
	}
	p := s.profile
	if p.AmplitudeMM == 0 || p.Period <= 0 {
		return p.NominalMM
	}
	phase := 2 * math32.Pi * float32(s.clock.Now()%p.Period) / float32(p.Period)
	return p.NominalMM + p.AmplitudeMM*math32.Sin(phase+float32(sensor)*math32.Pi/2)
}

// ReadRaw returns one noisy level of channel in the 0..acquire.ADCMax range.
func (s *Source) ReadRaw(channel int) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()

	level := LevelFor(s.response, s.diameter(channel))
	if s.profile.Noise > 0 {
		level += float32(s.rng.NormFloat64()) * s.profile.Noise
	}
	return clampLevel(level)
}

// LevelFor inverts table: it returns the sensor level at which table reports
// mm. Flat segments map to the lower level.
func LevelFor(table calib.Table, mm float32) float32 {
	lo, hi := table[0], table[1]
	if mm > table[1].DiameterMM {
		lo, hi = table[1], table[2]
	}
	span := hi.DiameterMM - lo.DiameterMM
	if math32.Abs(span) <= calib.VoltageTolerance {
		return lo.Level
	}
	return lo.Level + (mm-lo.DiameterMM)*(hi.Level-lo.Level)/span
}

func clampLevel(level float32) uint16 {
	switch {
	case level <= 0:
		return 0
	case level >= acquire.ADCMax:
		return acquire.ADCMax
	default:
		return uint16(math32.Round(level))
	}
}

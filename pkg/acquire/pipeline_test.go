package acquire

import (
	"testing"

	"github.com/itohio/gofws/pkg/calib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedSource returns a constant level per channel and counts reads.
type fixedSource struct {
	levels [calib.Sensors]uint16
	reads  [calib.Sensors]int
}

func (f *fixedSource) ReadRaw(channel int) uint16 {
	f.reads[channel]++
	return f.levels[channel]
}

func scenarioTables() *calib.Tables {
	tables := calib.NewTables()
	table := calib.Table{
		{Level: 0, DiameterMM: 1.50},
		{Level: 500, DiameterMM: 1.75},
		{Level: 1000, DiameterMM: 2.00},
	}
	tables.SetTable(0, table)
	tables.SetTable(1, table)
	return tables
}

func TestNew_Defaults(t *testing.T) {
	p := New(&fixedSource{}, nil, 0)
	require.NotNil(t, p)
	assert.Equal(t, DefaultOversample, p.oversample)
	assert.NotNil(t, p.Tables())

	readings := p.Readings()
	assert.Equal(t, Reading{Sensor: 0, MM: calib.DefaultDiameterMM}, readings[0])
	assert.Equal(t, Reading{Sensor: 1, MM: calib.DefaultDiameterMM}, readings[1])
}

func TestReadRawLevel_Oversamples(t *testing.T) {
	src := &fixedSource{levels: [2]uint16{250, 750}}
	p := New(src, scenarioTables(), 0)

	assert.Equal(t, uint16(250), p.ReadRawLevel(0))
	assert.Equal(t, DefaultOversample, src.reads[0])
	assert.Equal(t, uint16(750), p.ReadRawLevel(1))
	assert.Equal(t, DefaultOversample, src.reads[1])
}

func TestReadRawLevel_TruncatedMean(t *testing.T) {
	n := 0
	src := AnalogReaderFunc(func(channel int) uint16 {
		n++
		if n%2 == 0 {
			return 11
		}
		return 10
	})
	p := New(src, nil, 4)
	// (10+11+10+11)/4 = 10.5 -> 10
	assert.Equal(t, uint16(10), p.ReadRawLevel(0))
}

func TestReadRawLevel_UnknownSensor(t *testing.T) {
	src := &fixedSource{}
	p := New(src, nil, 0)
	assert.Equal(t, uint16(0), p.ReadRawLevel(2))
	assert.Equal(t, uint16(0), p.ReadRawLevel(-1))
	assert.Equal(t, [2]int{0, 0}, src.reads)
}

func TestConvert(t *testing.T) {
	p := New(&fixedSource{}, scenarioTables(), 0)

	assert.InDelta(t, 1.625, p.Convert(250, 0), 1e-5)
	assert.InDelta(t, 1.875, p.Convert(750, 1), 1e-5)
	assert.Equal(t, float32(1.75), p.Convert(500, 0))
	assert.Equal(t, calib.DefaultDiameterMM, p.Convert(500, 2))
}

func TestMeasure(t *testing.T) {
	src := &fixedSource{levels: [2]uint16{250, 750}}
	p := New(src, scenarioTables(), 0)

	readings := p.Measure()
	assert.Equal(t, 0, readings[0].Sensor)
	assert.Equal(t, 1, readings[1].Sensor)
	assert.InDelta(t, 1.625, readings[0].MM, 1e-5)
	assert.InDelta(t, 1.875, readings[1].MM, 1e-5)

	assert.Equal(t, readings, p.Readings())
	assert.Equal(t, [2]uint16{250, 750}, p.LastRaw())
	assert.Equal(t, [2]uint16{250, 750}, p.AverageRaw())
}

func TestMeasure_Averages(t *testing.T) {
	src := &fixedSource{levels: [2]uint16{0, 1000}}
	p := New(src, scenarioTables(), 0)

	p.Measure()
	src.levels = [2]uint16{1000, 0}
	readings := p.Measure()

	// Two samples in each window: mean 500 on both sensors.
	assert.Equal(t, [2]uint16{500, 500}, p.AverageRaw())
	assert.Equal(t, [2]uint16{1000, 0}, p.LastRaw())
	assert.Equal(t, float32(1.75), readings[0].MM)
	assert.Equal(t, float32(1.75), readings[1].MM)
}

func TestPrime(t *testing.T) {
	src := &fixedSource{levels: [2]uint16{500, 500}}
	p := New(src, scenarioTables(), 0)
	p.Prime()

	// A full window of 500 dominates a single outlier.
	src.levels = [2]uint16{500 + WindowSize, 500}
	p.Measure()
	assert.Equal(t, [2]uint16{501, 500}, p.AverageRaw())
}

func TestMeasure_FollowsTableUpdates(t *testing.T) {
	src := &fixedSource{levels: [2]uint16{532, 532}}
	tables := calib.NewTables()
	p := New(src, tables, 0)

	readings := p.Measure()
	assert.InDelta(t, 1.68, readings[0].MM, 1e-5)

	tables.Set(0, 1, calib.Point{Level: 532, DiameterMM: 1.80})
	readings = p.Measure()
	assert.InDelta(t, 1.80, readings[0].MM, 1e-5)
	assert.InDelta(t, 1.68, readings[1].MM, 1e-5)
}

// Package sample turns parsed module reports into diameter samples for the
// host pipeline.
package sample

import (
	"log"
	"time"

	"github.com/itohio/gofws/pkg/config"
	"github.com/itohio/gofws/pkg/link"
)

// Sample is one diameter report of both sensors.
type Sample struct {
	Timestamp time.Time
	S1        float64 // mm
	S2        float64 // mm
	Mean      float64 // mm, average of S1 and S2
	Deviation float64 // mm, Mean minus the nominal diameter
	Active    bool    // controller polled recently
	Requests  uint32
}

// Converter is a pipeline stage from reports to samples.
type Converter func(in <-chan link.RawSample) <-chan Sample

// Convert builds a Sample from a report using the nominal diameter of cfg.
func Convert(cfg *config.Config, raw link.RawSample) Sample {
	mean := (raw.S1 + raw.S2) / 2
	return Sample{
		Timestamp: raw.Timestamp,
		S1:        raw.S1,
		S2:        raw.S2,
		Mean:      mean,
		Deviation: mean - cfg.Tolerance.NominalMM,
		Active:    raw.Active,
		Requests:  raw.Requests,
	}
}

// NewConverter creates a converter that maps every report to one sample.
// The output channel is closed when the input closes.
func NewConverter(cfg *config.Config, bufSize int) Converter {
	return func(in <-chan link.RawSample) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)
			for raw := range in {
				select {
				case out <- Convert(cfg, raw):
				case <-time.After(time.Second):
					log.Printf("Sample converter: output blocked, dropping sample at %s", raw.Timestamp.Format(time.RFC3339))
				}
			}
		}()

		return out
	}
}

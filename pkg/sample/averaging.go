package sample

import (
	"github.com/itohio/gofws/pkg/config"
	"github.com/itohio/gofws/pkg/link"
)

// NewAveragingConverter creates a converter that emits, for every report, the
// average of the last window samples. A window below 2 behaves like
// NewConverter.
func NewAveragingConverter(cfg *config.Config, window int, bufSize int) Converter {
	if window < 2 {
		return NewConverter(cfg, bufSize)
	}

	return func(in <-chan link.RawSample) <-chan Sample {
		return NewAveragingConverterForSamples(window, bufSize)(NewConverter(cfg, bufSize)(in))
	}
}

// NewAveragingConverterForSamples averages an already converted stream over a
// sliding window of samples.
func NewAveragingConverterForSamples(window int, bufSize int) func(<-chan Sample) <-chan Sample {
	if window < 1 {
		window = 1
	}

	return func(in <-chan Sample) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			buf := make([]Sample, 0, window)
			for s := range in {
				if len(buf) == window {
					copy(buf, buf[1:])
					buf = buf[:window-1]
				}
				buf = append(buf, s)
				out <- average(buf)
			}
		}()

		return out
	}
}

// average returns the mean of buf stamped with the newest sample's time and
// link state.
func average(buf []Sample) Sample {
	last := buf[len(buf)-1]
	res := Sample{
		Timestamp: last.Timestamp,
		Active:    last.Active,
		Requests:  last.Requests,
	}
	for _, s := range buf {
		res.S1 += s.S1
		res.S2 += s.S2
		res.Mean += s.Mean
		res.Deviation += s.Deviation
	}
	n := float64(len(buf))
	res.S1 /= n
	res.S2 /= n
	res.Mean /= n
	res.Deviation /= n
	return res
}

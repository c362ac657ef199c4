package sample

import (
	"testing"
	"time"

	"github.com/itohio/gofws/pkg/config"
	"github.com/itohio/gofws/pkg/link"
	"github.com/stretchr/testify/assert"
)

// TestConverter_GracefulShutdown tests that converter closes output channel
// when input channel is closed.
func TestConverter_GracefulShutdown(t *testing.T) {
	converter := NewConverter(config.Default(), 10)
	input := make(chan link.RawSample, 10)
	output := converter(input)

	received := make(chan int, 1)
	go func() {
		count := 0
		for range output {
			count++
		}
		received <- count
	}()

	now := time.Now()
	for i := range 3 {
		input <- link.RawSample{Timestamp: now.Add(time.Duration(i) * time.Second), S1: 1.75, S2: 1.75}
	}
	close(input)

	select {
	case count := <-received:
		assert.Equal(t, 3, count, "Should receive all samples before channel closes")
	case <-time.After(2 * time.Second):
		t.Fatal("Output channel did not close within timeout")
	}
}

// TestAveragingConverter_GracefulShutdown tests that the averaging chain
// closes its output once the input is closed.
func TestAveragingConverter_GracefulShutdown(t *testing.T) {
	converter := NewAveragingConverter(config.Default(), 3, 10)
	input := make(chan link.RawSample, 10)
	output := converter(input)

	received := make(chan int, 1)
	go func() {
		count := 0
		for range output {
			count++
		}
		received <- count
	}()

	for range 5 {
		input <- link.RawSample{Timestamp: time.Now(), S1: 1.7, S2: 1.8}
	}
	close(input)

	select {
	case count := <-received:
		assert.Equal(t, 5, count)
	case <-time.After(2 * time.Second):
		t.Fatal("Output channel did not close within timeout")
	}
}

// TestConverter_ClosedBeforeUse tests that an immediately closed input
// produces a closed output.
func TestConverter_ClosedBeforeUse(t *testing.T) {
	input := make(chan link.RawSample)
	close(input)
	output := NewConverter(config.Default(), 1)(input)

	select {
	case _, ok := <-output:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Output channel did not close within timeout")
	}
}

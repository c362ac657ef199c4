package trend

import (
	"sync"
	"testing"
	"time"

	"github.com/itohio/gofws/pkg/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTracker_GracefulShutdown_NoCallbacksAfterClose tests that the tracker
// stops sending callbacks after the input channel is closed.
func TestTracker_GracefulShutdown_NoCallbacksAfterClose(t *testing.T) {
	m := New(testConfig())

	var mu sync.Mutex
	count := 0
	m.OnUpdate(func([]sample.Sample, []Excursion, Stats) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	input := make(chan sample.Sample, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.ProcessSamples(input)
	}()

	for i := range 3 {
		input <- sample.Sample{Timestamp: t0.Add(time.Duration(i) * time.Second), S1: 1.75, S2: 1.75}
	}
	close(input)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ProcessSamples did not return")
	}

	mu.Lock()
	assert.Equal(t, 3, count)
	mu.Unlock()

	// Samples still arrive in the window, but nobody is notified.
	m.processSample(sample.Sample{Timestamp: t0.Add(4 * time.Second), S1: 1.75, S2: 1.75})
	assert.Len(t, m.Samples(), 4)

	mu.Lock()
	assert.Equal(t, 3, count, "No callbacks should be sent after channel closes")
	mu.Unlock()
}

// TestTracker_ResetShutdown tests that ResetShutdown allows callbacks again.
func TestTracker_ResetShutdown(t *testing.T) {
	m := New(testConfig())

	var mu sync.Mutex
	count := 0
	m.OnUpdate(func([]sample.Sample, []Excursion, Stats) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	first := make(chan sample.Sample, 1)
	first <- sample.Sample{Timestamp: t0, S1: 1.75, S2: 1.75}
	close(first)
	m.ProcessSamples(first)

	m.ResetShutdown()

	second := make(chan sample.Sample, 2)
	second <- sample.Sample{Timestamp: t0.Add(time.Second), S1: 1.75, S2: 1.75}
	second <- sample.Sample{Timestamp: t0.Add(2 * time.Second), S1: 1.75, S2: 1.75}
	close(second)
	m.ProcessSamples(second)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 3, count)
	assert.Len(t, m.Samples(), 3)
}

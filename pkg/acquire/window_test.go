package acquire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindow_Empty(t *testing.T) {
	var w Window
	assert.Equal(t, 0, w.Len())
	assert.Equal(t, uint16(0), w.Average())
}

func TestWindow_AverageOfLastN(t *testing.T) {
	// The average must equal the mean of the last min(n, WindowSize) values.
	for _, n := range []int{1, 2, 3, 17, WindowSize - 1, WindowSize, WindowSize + 1, 3*WindowSize + 5} {
		var w Window
		values := make([]uint16, n)
		for i := range values {
			values[i] = uint16((i*37 + 11) % 4096)
			w.Push(values[i])
		}

		start := 0
		if n > WindowSize {
			start = n - WindowSize
		}
		var sum uint32
		for _, v := range values[start:] {
			sum += uint32(v)
		}
		count := n - start

		assert.Equal(t, count, w.Len(), "n=%d", n)
		assert.Equal(t, uint16(sum/uint32(count)), w.Average(), "n=%d", n)
	}
}

func TestWindow_FilledAfterWrap(t *testing.T) {
	var w Window
	for i := 0; i < WindowSize-1; i++ {
		w.Push(100)
	}
	assert.False(t, w.filled)
	w.Push(100)
	assert.True(t, w.filled)
	assert.Equal(t, 0, w.cursor)
	assert.Equal(t, WindowSize, w.Len())
}

func TestWindow_TruncatedMean(t *testing.T) {
	var w Window
	w.Push(1)
	w.Push(2)
	assert.Equal(t, uint16(1), w.Average())
}

func TestWindow_FillAndReset(t *testing.T) {
	var w Window
	w.Fill(532)
	assert.Equal(t, WindowSize, w.Len())
	assert.Equal(t, uint16(532), w.Average())

	w.Push(532 + WindowSize)
	assert.Equal(t, uint16(533), w.Average())

	w.Reset()
	assert.Equal(t, 0, w.Len())
}

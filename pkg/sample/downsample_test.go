package sample

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSamples(n int) []Sample {
	now := time.Now()
	res := make([]Sample, n)
	for i := range res {
		res[i] = Sample{Timestamp: now.Add(time.Duration(i) * time.Second), Mean: float64(i)}
	}
	return res
}

func TestDownsampleSamples(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		maxPoints int
		wantLen   int
		wantFirst float64
		wantLast  float64
	}{
		{name: "fewer than max", n: 5, maxPoints: 10, wantLen: 5, wantFirst: 0, wantLast: 4},
		{name: "equal to max", n: 10, maxPoints: 10, wantLen: 10, wantFirst: 0, wantLast: 9},
		{name: "decimate by two", n: 20, maxPoints: 10, wantLen: 10, wantFirst: 0, wantLast: 18},
		{name: "uneven step", n: 25, maxPoints: 10, wantLen: 10, wantFirst: 0, wantLast: 22},
		{name: "empty", n: 0, maxPoints: 10, wantLen: 0},
		{name: "zero max", n: 5, maxPoints: 0, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DownsampleSamples(nil, makeSamples(tt.n), tt.maxPoints)
			require.Len(t, got, tt.wantLen)
			if tt.wantLen == 0 {
				return
			}
			assert.Equal(t, tt.wantFirst, got[0].Mean)
			assert.Equal(t, tt.wantLast, got[len(got)-1].Mean)
		})
	}
}

func TestDownsampleSamples_ReusesDestination(t *testing.T) {
	dst := make([]Sample, 0, 16)
	src := makeSamples(40)

	got := DownsampleSamples(dst, src, 16)
	require.Len(t, got, 16)
	assert.Same(t, &dst[:1][0], &got[0])

	got = DownsampleSamples(dst, src[:8], 16)
	require.Len(t, got, 8)
	assert.Same(t, &dst[:1][0], &got[0])
}

func TestDownsampleSamples_AllocatesWhenSmall(t *testing.T) {
	dst := make([]Sample, 0, 2)
	got := DownsampleSamples(dst, makeSamples(5), 10)
	require.Len(t, got, 5)
	assert.Equal(t, 2, cap(dst))
}

func TestDownsample_Float64(t *testing.T) {
	src := []float64{0, 1, 2, 3, 4, 5, 6, 7}
	assert.Equal(t, []float64{0, 2, 4, 6}, Downsample(nil, src, 4))
}

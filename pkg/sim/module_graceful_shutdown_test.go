package sim

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModule_GracefulShutdown(t *testing.T) {
	before := runtime.NumGoroutine()

	m := NewModule(fastConfig(), &syncBuffer{})
	require.NoError(t, m.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- m.Close() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}

	assert.False(t, m.LED.On())
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, time.Second, 10*time.Millisecond)

	// Close is idempotent.
	assert.NoError(t, m.Close())
}

func TestModule_ParentContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewModule(fastConfig(), &syncBuffer{})
	require.NoError(t, m.Start(ctx))

	cancel()
	assert.NoError(t, m.Close())
}

func TestModule_CloseWithoutStart(t *testing.T) {
	m := NewModule(nil, &syncBuffer{})
	assert.NoError(t, m.Close())
}

func TestModule_CloseDuringCalibration(t *testing.T) {
	out := &syncBuffer{}
	m := NewModule(fastConfig(), out)
	require.NoError(t, m.Start(context.Background()))

	m.Trigger.Press()
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "=== Calibration Started ===")
	}, 2*time.Second, time.Millisecond)
	m.Trigger.Release()

	done := make(chan error, 1)
	go func() { done <- m.Close() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked while calibration waits for NEXT")
	}
	assert.Contains(t, out.String(), "=== Calibration Aborted ===")
}

func TestModule_ParentCancelDuringCalibration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	m := NewModule(fastConfig(), out)
	require.NoError(t, m.Start(ctx))
	defer m.Close()

	m.Trigger.Press()
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "=== Calibration Started ===")
	}, 2*time.Second, time.Millisecond)
	m.Trigger.Release()

	cancel()
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "=== Calibration Aborted ===")
	}, 2*time.Second, time.Millisecond)
}

func TestModule_StartAfterClose(t *testing.T) {
	m := NewModule(fastConfig(), &syncBuffer{})
	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Close())
	assert.Error(t, m.Start(context.Background()))
}

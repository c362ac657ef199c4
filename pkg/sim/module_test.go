package sim

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/itohio/gofws/pkg/bus"
	"github.com/itohio/gofws/pkg/calib"
	"github.com/itohio/gofws/pkg/codec"
	"github.com/itohio/gofws/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers and readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func fastConfig() *config.Config {
	cfg := config.Default()
	cfg.Mock.AmplitudeMM = 0
	cfg.Mock.NoiseLevel = 0
	cfg.Mock.RequestPeriod = 5 * time.Millisecond
	cfg.Timing.StatusPeriod = 50 * time.Millisecond
	cfg.Timing.ConnectionPeriod = 50 * time.Millisecond
	cfg.Timing.DiagPeriod = 20 * time.Millisecond
	cfg.Timing.Heartbeat = 10 * time.Millisecond
	cfg.Calibration.Debounce = 5 * time.Millisecond
	cfg.Calibration.Poll = time.Millisecond
	return cfg
}

func TestModule_ServesMeasurements(t *testing.T) {
	out := &syncBuffer{}
	m := NewModule(fastConfig(), out)
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	assert.Eventually(t, func() bool { return m.Target.Received() >= 5 }, 2*time.Second, time.Millisecond)

	last, ok := m.Target.Last()
	require.True(t, ok)
	s1, s2 := last.Decode()
	assert.InDelta(t, 1.75, s1, 0.001)
	assert.InDelta(t, 1.75, s2, 0.001)

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "I2C: ACTIVE")
	}, 2*time.Second, time.Millisecond)
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "I2CDBG own7=0x42")
	}, 2*time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return m.LED.Toggles() > 2 }, 2*time.Second, time.Millisecond)

	log := out.String()
	assert.Contains(t, log, "Address7: 0x42")
	assert.Contains(t, log, "Address8: 0x84")
	assert.Contains(t, log, "Ready!")
	assert.Less(t, strings.Index(log, "Data ready"), strings.Index(log, "I2C thread started"))
}

func TestModule_PublishesBeforeBusStarts(t *testing.T) {
	m := NewModule(fastConfig(), &syncBuffer{})
	assert.Equal(t, bus.SafeDefault(), m.Buffer().Snapshot())

	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	assert.Eventually(t, func() bool { return m.Target.Received() >= 1 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, 1, m.Target.Configured())
	assert.NotEqual(t, bus.SafeDefault(), m.Buffer().Snapshot())
}

func TestModule_TestMode(t *testing.T) {
	cfg := fastConfig()
	cfg.Mock.TestMode = true
	m := NewModule(cfg, &syncBuffer{})
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	assert.Eventually(t, func() bool { return m.Target.Received() >= 2 }, 2*time.Second, time.Millisecond)
	last, _ := m.Target.Last()
	assert.Equal(t, codec.BuildResponse(1.99, 1.99), last)
}

func TestModule_RecoversFromBusErrors(t *testing.T) {
	cfg := fastConfig()
	cfg.Mock.ErrorRate = 0.3
	m := NewModule(cfg, &syncBuffer{})
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	assert.Eventually(t, func() bool {
		return m.Target.Failures() > 0 && m.Target.Received() >= 10
	}, 5*time.Second, time.Millisecond)
	assert.Greater(t, m.Target.Configured(), 1)
}

func TestModule_DisconnectNotice(t *testing.T) {
	cfg := fastConfig()
	cfg.Bus.LivenessWindow = 20 * time.Millisecond
	out := &syncBuffer{}
	m := NewModule(cfg, out)
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	assert.Eventually(t, func() bool { return m.Target.Received() >= 1 }, 2*time.Second, time.Millisecond)
	m.Target.SetConnected(false)
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "I2C: Master disconnected")
	}, 2*time.Second, time.Millisecond)
}

func TestModule_Calibration(t *testing.T) {
	out := &syncBuffer{}
	m := NewModule(fastConfig(), out)
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	waitFor := func(s string) {
		t.Helper()
		require.Eventually(t, func() bool { return strings.Contains(out.String(), s) }, 2*time.Second, time.Millisecond, s)
	}

	m.Trigger.Press()
	waitFor("=== Calibration Started ===")
	m.Trigger.Release()

	refs := config.Default().Calibration.References
	captured := 0
	for s := 0; s < calib.Sensors; s++ {
		for p, ref := range refs {
			m.Source.Insert(s, ref)
			waitFor(fmt.Sprintf("S%d Point %d (%.2fmm)", s+1, p+1, ref))
			m.Next.Press()
			captured++
			require.Eventually(t, func() bool {
				return strings.Count(out.String(), "Captured ADC") == captured
			}, 2*time.Second, time.Millisecond)
			m.Next.Release()
		}
		m.Source.Remove(s)
	}
	waitFor("=== Calibration Complete ===")

	for s := 0; s < calib.Sensors; s++ {
		table := m.Tables().Get(s)
		for p, ref := range refs {
			assert.Equal(t, ref, table[p].DiameterMM)
			want := float32(uint16(LevelFor(calib.DefaultTable(), ref) + 0.5))
			assert.Equal(t, want, table[p].Level, "sensor %d point %d", s, p)
		}
	}
}

func TestModule_StartTwice(t *testing.T) {
	m := NewModule(fastConfig(), &syncBuffer{})
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()
	assert.Error(t, m.Start(context.Background()))
}

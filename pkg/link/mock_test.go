package link

import (
	"testing"
	"time"

	"github.com/itohio/gofws/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() *config.Config {
	cfg := config.Default()
	cfg.Mock.AmplitudeMM = 0
	cfg.Mock.NoiseLevel = 0
	cfg.Mock.RequestPeriod = 5 * time.Millisecond
	cfg.Timing.StatusPeriod = 20 * time.Millisecond
	cfg.Timing.DiagPeriod = 20 * time.Millisecond
	cfg.Timing.Heartbeat = 10 * time.Millisecond
	return cfg
}

func TestMock_ConnectAndReceive(t *testing.T) {
	m := NewMock(fastConfig())
	assert.False(t, m.IsConnected())
	assert.Nil(t, m.Module())

	require.NoError(t, m.Connect())
	defer m.Close()
	assert.True(t, m.IsConnected())
	assert.NotNil(t, m.Module())

	assert.ErrorIs(t, m.Connect(), ErrAlreadyConnected)

	select {
	case s := <-m.Samples():
		assert.InDelta(t, 1.75, s.S1, 0.002)
		assert.InDelta(t, 1.75, s.S2, 0.002)
		assert.Equal(t, "Normal Mode", s.Mode)
		assert.NotZero(t, s.Raw1)
	case <-time.After(2 * time.Second):
		t.Fatal("no sample received")
	}

	select {
	case d := <-m.Events():
		assert.Equal(t, uint8(0x42), d.Address)
	case <-time.After(2 * time.Second):
		t.Fatal("no diagnostics received")
	}
}

func TestMock_ReportsActiveLink(t *testing.T) {
	m := NewMock(fastConfig())
	require.NoError(t, m.Connect())
	defer m.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-m.Samples():
			if s.Active && s.Requests > 0 {
				return
			}
		case <-deadline:
			t.Fatal("link never reported ACTIVE")
		}
	}
}

func TestMock_TestMode(t *testing.T) {
	cfg := fastConfig()
	cfg.Mock.TestMode = true
	m := NewMock(cfg)
	require.NoError(t, m.Connect())
	defer m.Close()

	select {
	case s := <-m.Samples():
		assert.True(t, s.TestMode)
		assert.Equal(t, 1.99, s.S1)
	case <-time.After(2 * time.Second):
		t.Fatal("no sample received")
	}
}

func TestNewMock_NilConfig(t *testing.T) {
	m := NewMock(nil)
	require.NotNil(t, m)
	assert.NoError(t, m.Close())
}

func TestSerial_ConnectFailure(t *testing.T) {
	d := New("/dev/this-port-does-not-exist", 0, 0)
	assert.Equal(t, DefaultBaudRate, d.baudRate)
	assert.Equal(t, DefaultBufferSize, cap(d.samples))

	assert.Error(t, d.Connect())
	assert.False(t, d.IsConnected())
	assert.NoError(t, d.Close())
}

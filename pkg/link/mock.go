package link

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/multierr"

	"github.com/itohio/gofws/pkg/config"
	"github.com/itohio/gofws/pkg/sim"
)

// Mock runs a simulated sensor module in-process and reads its debug output
// exactly like Serial reads the real UART. Every Connect starts a fresh
// module with fresh Samples and Events channels.
type Mock struct {
	cfg *config.Config

	module    *sim.Module
	samples   chan RawSample
	events    chan Diag
	mu        sync.RWMutex
	cancel    context.CancelFunc
	pw        *io.PipeWriter
	done      chan error
	connected bool
}

// NewMock creates a new mocked link. A nil cfg uses config.Default.
func NewMock(cfg *config.Config) *Mock {
	if cfg == nil {
		cfg = config.Default()
	}

	return &Mock{
		cfg:     cfg,
		samples: make(chan RawSample, DefaultBufferSize),
		events:  make(chan Diag, DefaultBufferSize),
	}
}

// Connect starts the simulated module.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return ErrAlreadyConnected
	}

	ctx, cancel := context.WithCancel(context.Background())
	samples := make(chan RawSample, DefaultBufferSize)
	events := make(chan Diag, DefaultBufferSize)

	pr, pw := io.Pipe()
	module := sim.NewModule(m.cfg, pw)

	done := make(chan error, 1)
	go func() {
		defer close(samples)
		defer close(events)
		err := dispatch(ctx, pr, samples, events)
		// Keep draining so the module never blocks on a full pipe.
		io.Copy(io.Discard, pr)
		done <- err
	}()

	if err := module.Start(ctx); err != nil {
		cancel()
		pw.Close()
		<-done
		return fmt.Errorf("failed to start simulated module: %w", err)
	}

	m.samples = samples
	m.events = events
	m.cancel = cancel
	m.module = module
	m.pw = pw
	m.done = done
	m.connected = true

	return nil
}

// Module returns the running simulated module, or nil when disconnected.
func (m *Mock) Module() *sim.Module {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.module
}

// Close stops the simulated module.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}

	m.cancel()
	err := m.module.Close()
	err = multierr.Append(err, m.pw.Close())
	err = multierr.Append(err, <-m.done)

	m.module = nil
	m.connected = false
	return err
}

// Samples returns the channel for reading status reports of the current
// connection.
func (m *Mock) Samples() <-chan RawSample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.samples
}

// Events returns the channel for reading diagnostic summaries of the current
// connection.
func (m *Mock) Events() <-chan Diag {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.events
}

// IsConnected returns whether the simulated module is running.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

package bus

import (
	"sync"

	"github.com/itohio/gofws/pkg/calib"
	"github.com/itohio/gofws/pkg/codec"
)

// Buffer owns the response served to the controller. Publish and Snapshot
// copy the whole response inside the critical section, so a reader never
// observes a partially written response.
type Buffer struct {
	lock sync.Locker
	data codec.Response
}

// NewBuffer creates a buffer holding the safe default diameter on both
// channels. A nil lock uses a sync.Mutex.
func NewBuffer(lock sync.Locker) *Buffer {
	if lock == nil {
		lock = &sync.Mutex{}
	}
	return &Buffer{
		lock: lock,
		data: SafeDefault(),
	}
}

// SafeDefault is the response published before any measurement exists.
func SafeDefault() codec.Response {
	return codec.BuildResponse(calib.DefaultDiameterMM, calib.DefaultDiameterMM)
}

// Publish atomically replaces the served response.
func (b *Buffer) Publish(resp codec.Response) {
	b.lock.Lock()
	b.data = resp
	b.lock.Unlock()
}

// Snapshot returns a copy of the currently served response.
func (b *Buffer) Snapshot() codec.Response {
	b.lock.Lock()
	resp := b.data
	b.lock.Unlock()
	return resp
}

package diag

import (
	"fmt"
	"sync"
)

const (
	// DefaultQueueLen is the default ring capacity. One slot always stays
	// free, so DefaultQueueLen-1 events can be in flight.
	DefaultQueueLen = 64
	// MinQueueLen is the smallest usable capacity.
	MinQueueLen = 2
)

// Event is a transport diagnostic tag.
type Event uint8

const (
	ReadAddressed  Event = 1
	WriteAddressed Event = 2
	WriteGeneral   Event = 3
	WriteReadError Event = 4
	Reinit         Event = 5
)

func (e Event) String() string {
	switch e {
	case ReadAddressed:
		return "read-addressed"
	case WriteAddressed:
		return "write-addressed"
	case WriteGeneral:
		return "write-general"
	case WriteReadError:
		return "write-read-error"
	case Reinit:
		return "reinit"
	default:
		return fmt.Sprintf("event(%d)", uint8(e))
	}
}

// Recorder accepts events from the transport. Record must never block.
type Recorder interface {
	Record(e Event)
}

// Discard is a Recorder that drops every event. Used when diagnostics are disabled.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(Event) {}

var _ Recorder = (*Queue)(nil)

// Counters is the consumer-side tally of drained events.
type Counters struct {
	Total          uint32
	ReadAddressed  uint32
	WriteAddressed uint32
	WriteGeneral   uint32
	WriteReadError uint32
	Reinit         uint32
	QueueOverflow  uint32
}

// Summary renders the periodic diagnostic line.
func (c Counters) Summary(addr7 uint8, requests uint32) string {
	return fmt.Sprintf("I2CDBG own7=0x%02X total=%d rd=%d wr=%d gc=%d ioerr=%d reinits=%d qovf=%d req=%d",
		addr7, c.Total, c.ReadAddressed, c.WriteAddressed, c.WriteGeneral,
		c.WriteReadError, c.Reinit, c.QueueOverflow, requests)
}

// Queue is a fixed-capacity single-producer/single-consumer ring of events.
// The lock is held only around each enqueue or dequeue, so Enqueue may be
// called from the transport context while the consumer drains elsewhere.
// On a microcontroller the lock disables interrupts.
type Queue struct {
	lock     sync.Locker
	events   []Event
	head     int // next write slot
	tail     int // next read slot
	overflow uint32

	counters Counters
}

// NewQueue creates a queue of the given capacity guarded by lock.
// Capacities below MinQueueLen are raised to it. A nil lock uses a sync.Mutex.
func NewQueue(capacity int, lock sync.Locker) *Queue {
	if capacity < MinQueueLen {
		capacity = MinQueueLen
	}
	if lock == nil {
		lock = &sync.Mutex{}
	}
	return &Queue{
		lock:   lock,
		events: make([]Event, capacity),
	}
}

// Cap returns the ring capacity.
func (q *Queue) Cap() int {
	return len(q.events)
}

// Enqueue stores e, or drops it and counts an overflow when the ring is full.
// It reports whether e was stored.
func (q *Queue) Enqueue(e Event) bool {
	q.lock.Lock()
	next := (q.head + 1) % len(q.events)
	if next == q.tail {
		q.overflow++
		q.lock.Unlock()
		return false
	}
	q.events[q.head] = e
	q.head = next
	q.lock.Unlock()
	return true
}

// Record implements Recorder.
func (q *Queue) Record(e Event) {
	q.Enqueue(e)
}

// Dequeue removes the oldest event. ok is false when the queue is empty.
func (q *Queue) Dequeue() (e Event, ok bool) {
	q.lock.Lock()
	if q.tail != q.head {
		e = q.events[q.tail]
		q.tail = (q.tail + 1) % len(q.events)
		ok = true
	}
	q.lock.Unlock()
	return e, ok
}

// Overflow returns the number of events dropped so far.
func (q *Queue) Overflow() uint32 {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.overflow
}

// Drain dequeues every pending event into the tally and snapshots the
// overflow counter. It must only be called from the consumer context and
// returns the updated tally.
func (q *Queue) Drain() Counters {
	for {
		e, ok := q.Dequeue()
		if !ok {
			break
		}
		q.counters.Total++
		switch e {
		case ReadAddressed:
			q.counters.ReadAddressed++
		case WriteAddressed:
			q.counters.WriteAddressed++
		case WriteGeneral:
			q.counters.WriteGeneral++
		case WriteReadError:
			q.counters.WriteReadError++
		case Reinit:
			q.counters.Reinit++
		}
	}
	q.counters.QueueOverflow = q.Overflow()
	return q.counters
}

// Counters returns the tally as of the last Drain.
func (q *Queue) Counters() Counters {
	return q.counters
}

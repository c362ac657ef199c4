package bus

import (
	"sync/atomic"
	"time"
)

// DefaultLivenessWindow is how long after the last read the link stays ACTIVE.
const DefaultLivenessWindow = 5 * time.Second

// Connectivity is the controller link state derived from request statistics.
type Connectivity int

const (
	Idle Connectivity = iota
	Active
)

func (c Connectivity) String() string {
	if c == Active {
		return "ACTIVE"
	}
	return "IDLE"
}

// Stats counts served read requests. It is written by the transport and read
// by the reporting context.
type Stats struct {
	requests atomic.Uint32
	last     atomic.Int64 // elapsed time of the last request, ns
}

// Record notes a served request at now.
func (s *Stats) Record(now time.Duration) {
	s.last.Store(int64(now))
	s.requests.Add(1)
}

// Requests returns the number of served read requests.
func (s *Stats) Requests() uint32 {
	return s.requests.Load()
}

// LastRequest returns the elapsed time of the most recent request.
func (s *Stats) LastRequest() time.Duration {
	return time.Duration(s.last.Load())
}

// Status reports Active when at least one request was served and the last
// one is younger than window.
func (s *Stats) Status(now, window time.Duration) Connectivity {
	if s.Requests() == 0 {
		return Idle
	}
	if now-s.LastRequest() < window {
		return Active
	}
	return Idle
}

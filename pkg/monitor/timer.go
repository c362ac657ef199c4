package monitor

import "time"

// Timer fires once every Period of elapsed time. It is free running: the
// next period starts when Due reports true, not when it was scheduled.
type Timer struct {
	Period time.Duration
	last   time.Duration
}

// NewTimer creates a timer whose first period starts at now.
func NewTimer(period, now time.Duration) Timer {
	return Timer{Period: period, last: now}
}

// Due reports whether a full period elapsed since the last firing and, if
// so, restarts the period at now.
func (t *Timer) Due(now time.Duration) bool {
	if now-t.last < t.Period {
		return false
	}
	t.last = now
	return true
}

// Reset restarts the period at now.
func (t *Timer) Reset(now time.Duration) {
	t.last = now
}

package acquire

const (
	// WindowSize is the averaging window capacity. Must be a power of two.
	WindowSize = 64
	windowMask = WindowSize - 1
)

// Window is a fixed-capacity circular buffer of raw levels.
// The zero value is an empty window ready for use.
type Window struct {
	buf    [WindowSize]uint16
	cursor int
	filled bool
}

// Push stores v at the cursor and advances it, marking the window filled
// when the cursor wraps.
func (w *Window) Push(v uint16) {
	w.buf[w.cursor] = v
	w.cursor = (w.cursor + 1) & windowMask
	if w.cursor == 0 {
		w.filled = true
	}
}

// Len returns the number of samples the average is computed over.
func (w *Window) Len() int {
	if w.filled {
		return WindowSize
	}
	return w.cursor
}

// Average returns the truncated mean of the stored samples. An empty window
// averages to zero.
func (w *Window) Average() uint16 {
	n := w.Len()
	var sum uint32
	for i := 0; i < n; i++ {
		sum += uint32(w.buf[i])
	}
	if n == 0 {
		n = 1
	}
	return uint16(sum / uint32(n))
}

// Fill overwrites every slot with v and marks the window filled.
func (w *Window) Fill(v uint16) {
	for i := range w.buf {
		w.buf[i] = v
	}
	w.cursor = 0
	w.filled = true
}

// Reset empties the window.
func (w *Window) Reset() {
	*w = Window{}
}

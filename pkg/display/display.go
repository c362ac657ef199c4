// Package display renders status and calibration prompts on a small
// character-graphics display. The display driver itself lives outside this
// module; it only has to implement Display.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Display is a page-addressed text display.
type Display interface {
	Clear()
	SetCursor(x, page int)
	WriteText(s string)
	Flush() error
}

// Status is what the normal-mode screen shows.
type Status struct {
	S1, S2   float32
	Link     string
	Requests uint32
}

// ShowStatus draws the normal-mode screen. A nil display is ignored.
func ShowStatus(d Display, st Status) error {
	if d == nil {
		return nil
	}
	d.Clear()
	d.SetCursor(0, 0)
	d.WriteText("FILAMENT WIDTH")
	d.SetCursor(0, 2)
	d.WriteText(fmt.Sprintf("S1 %.3fmm", st.S1))
	d.SetCursor(0, 3)
	d.WriteText(fmt.Sprintf("S2 %.3fmm", st.S2))
	d.SetCursor(0, 5)
	d.WriteText(fmt.Sprintf("I2C %s %d", st.Link, st.Requests))
	return d.Flush()
}

// ShowPrompt draws a calibration prompt for sensor/point (zero based).
func ShowPrompt(d Display, sensor, point int, referenceMM float32) error {
	if d == nil {
		return nil
	}
	d.Clear()
	d.SetCursor(0, 0)
	d.WriteText("CALIBRATION")
	d.SetCursor(0, 2)
	d.WriteText(fmt.Sprintf("Sensor %d point %d", sensor+1, point+1))
	d.SetCursor(0, 3)
	d.WriteText(fmt.Sprintf("Insert %.2fmm", referenceMM))
	d.SetCursor(0, 5)
	d.WriteText("Press NEXT")
	return d.Flush()
}

// ShowMessage draws a single centred-left message on page 0.
func ShowMessage(d Display, msg string) error {
	if d == nil {
		return nil
	}
	d.Clear()
	d.SetCursor(0, 0)
	d.WriteText(msg)
	return d.Flush()
}

// Console is a Display kept in memory as a grid of characters. Flush writes
// the frame to an optional io.Writer.
type Console struct {
	mu      sync.Mutex
	cols    int
	pages   [][]rune
	x, page int
	out     io.Writer
	flushes int
}

var _ Display = (*Console)(nil)

// NewConsole creates a console of cols x pages characters. out may be nil.
func NewConsole(cols, pages int, out io.Writer) *Console {
	c := &Console{cols: cols, out: out}
	c.pages = make([][]rune, pages)
	for i := range c.pages {
		c.pages[i] = []rune(strings.Repeat(" ", cols))
	}
	return c
}

// Clear blanks the screen and homes the cursor.
func (c *Console) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pages {
		for i := range p {
			p[i] = ' '
		}
	}
	c.x, c.page = 0, 0
}

// SetCursor moves the cursor to column x of page.
func (c *Console) SetCursor(x, page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.x, c.page = x, page
}

// WriteText writes s at the cursor, clipping at the right edge.
func (c *Console) WriteText(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.page < 0 || c.page >= len(c.pages) {
		return
	}
	row := c.pages[c.page]
	for _, r := range s {
		if c.x < 0 || c.x >= c.cols {
			break
		}
		row[c.x] = r
		c.x++
	}
}

// Flush writes the current frame to the output writer.
func (c *Console) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushes++
	if c.out == nil {
		return nil
	}
	for _, p := range c.pages {
		if _, err := fmt.Fprintln(c.out, strings.TrimRight(string(p), " ")); err != nil {
			return fmt.Errorf("failed to write frame: %w", err)
		}
	}
	return nil
}

// Lines returns the screen content with trailing blanks removed.
func (c *Console) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := make([]string, len(c.pages))
	for i, p := range c.pages {
		lines[i] = strings.TrimRight(string(p), " ")
	}
	return lines
}

// Flushes returns how many frames were flushed.
func (c *Console) Flushes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushes
}

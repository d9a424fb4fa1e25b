// Package progress renders a countdown bar for fixed waits on the terminal.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const barWidth = 30

// Countdown shows the elapsed part of a fixed wait, in whole seconds.
type Countdown struct {
	mu       sync.Mutex
	w        io.Writer
	op       string
	total    time.Duration
	enabled  bool
	lastLine int
}

// NewCountdown creates a countdown over total writing to w. A disabled
// countdown writes nothing.
func NewCountdown(w io.Writer, op string, total time.Duration, enabled bool) *Countdown {
	return &Countdown{w: w, op: op, total: total, enabled: enabled}
}

// Tick redraws the bar for the given remaining time.
func (c *Countdown) Tick(remaining time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	c.render(int((c.total-remaining)/time.Second), fmt.Sprintf("%s left", remaining.Round(time.Second)))
}

// Done fills the bar and ends the line.
func (c *Countdown) Done(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	c.render(c.seconds(), message)
	fmt.Fprintln(c.w)
	c.lastLine = 0
}

func (c *Countdown) seconds() int {
	return max(int(c.total/time.Second), 1)
}

func (c *Countdown) render(elapsed int, message string) {
	total := c.seconds()
	current := min(max(elapsed, 0), total)

	filled := barWidth * current / total
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)
	line := fmt.Sprintf("%s [%s] %d/%d (%d%%)", c.op, bar, current, total, 100*current/total)
	if message != "" {
		line += " " + message
	}

	prefix := "\r"
	if c.lastLine > 0 {
		prefix = "\r" + strings.Repeat(" ", c.lastLine) + "\r"
	}
	fmt.Fprint(c.w, prefix+line)
	c.lastLine = len(line)
}

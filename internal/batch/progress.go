package batch

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// consoleProgress draws a progress bar for a running batch.
type consoleProgress struct {
	writer         io.Writer
	prefix         string
	width          int
	updateInterval time.Duration

	mu         sync.Mutex
	start      time.Time
	lastUpdate time.Time
}

func newConsoleProgress(w io.Writer, prefix string, interval time.Duration) *consoleProgress {
	if w == nil {
		w = os.Stderr
	}
	return &consoleProgress{
		writer:         w,
		prefix:         prefix,
		width:          40,
		updateInterval: interval,
		start:          time.Now(),
	}
}

// Update matches extract.ProgressFunc.
func (c *consoleProgress) Update(done, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if now.Sub(c.lastUpdate) < c.updateInterval && done < total {
		return
	}
	c.lastUpdate = now
	c.draw(done, total, now)
	if done == total {
		_, _ = fmt.Fprintf(c.writer, "\n%sCompleted in %v\n", c.prefix, now.Sub(c.start).Round(time.Millisecond))
	}
}

func (c *consoleProgress) draw(done, total int, now time.Time) {
	if total == 0 {
		return
	}
	percent := float64(done) / float64(total) * 100.0
	filled := c.width * done / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)
	status := fmt.Sprintf("\r%s[%s] %d/%d (%.1f%%)", c.prefix, bar, done, total, percent)

	if elapsed := now.Sub(c.start); elapsed > 0 && done > 0 {
		status += fmt.Sprintf(" %.1f/s", float64(done)/elapsed.Seconds())
		if done < total {
			eta := time.Duration(elapsed.Seconds()*float64(total-done)/float64(done)) * time.Second
			status += fmt.Sprintf(" ETA: %v", eta.Round(time.Second))
		}
	}
	_, _ = fmt.Fprint(c.writer, status)
}

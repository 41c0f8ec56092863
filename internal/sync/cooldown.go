package sync

import (
	stdsync "sync"
	"time"
)

// DefaultCooldown is how long pulls stay suppressed after a local write.
const DefaultCooldown = 15 * time.Second

// Cooldown records the last local write. While it is active, a pull must
// not overwrite local state: the remote store may not reflect the write yet.
type Cooldown struct {
	mu     stdsync.Mutex
	window time.Duration
	last   time.Time
	now    func() time.Time
}

func NewCooldown(window time.Duration, now func() time.Time) *Cooldown {
	if window <= 0 {
		window = DefaultCooldown
	}
	if now == nil {
		now = time.Now
	}
	return &Cooldown{window: window, now: now}
}

// Touch marks a local write at the current instant.
func (c *Cooldown) Touch() {
	c.mu.Lock()
	c.last = c.now()
	c.mu.Unlock()
}

// Active reports whether the last write is younger than the window.
func (c *Cooldown) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last.IsZero() {
		return false
	}
	return c.now().Sub(c.last) < c.window
}

func (c *Cooldown) lastWrite() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

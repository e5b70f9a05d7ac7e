package sound

import (
	"sync"
	"time"
)

const DefaultCooldown = 5000 * time.Millisecond

// Gate enforces a single cooldown window across all alerts of one context.
// A rejected attempt never moves the window.
type Gate struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     time.Time
}

func NewGate(cooldown time.Duration) *Gate {
	return &Gate{cooldown: cooldown}
}

// Allow reports whether an alert may fire at now and, if so, starts a new
// cooldown window.
func (g *Gate) Allow(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.last.IsZero() && now.Sub(g.last) < g.cooldown {
		return false
	}
	g.last = now
	return true
}

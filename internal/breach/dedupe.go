package breach

import (
	"sync"
	"time"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
)

// duplicateGuard rejects identical (action, eventId) pairs arriving within
// the configured window. It catches true double-delivery from upstream
// retries; legitimate repeated lifecycle calls after the window expires
// pass through and rely on per-transition idempotency instead.
type duplicateGuard struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
}

func newDuplicateGuard(window time.Duration) *duplicateGuard {
	return &duplicateGuard{
		window: window,
		seen:   make(map[string]time.Time),
	}
}

// isDuplicate reports whether the pair was already seen within the window,
// recording it otherwise
func (g *duplicateGuard) isDuplicate(action types.BreachAction, eventID string) bool {
	key := string(action) + "|" + eventID
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.prune(now)

	if last, ok := g.seen[key]; ok && now.Sub(last) < g.window {
		return true
	}
	g.seen[key] = now
	return false
}

// prune drops entries older than the window to bound memory
func (g *duplicateGuard) prune(now time.Time) {
	threshold := now.Add(-g.window)
	for key, seen := range g.seen {
		if seen.Before(threshold) {
			delete(g.seen, key)
		}
	}
}

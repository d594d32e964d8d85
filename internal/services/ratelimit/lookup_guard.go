package ratelimit

import (
	"sync"
	"time"

	"qrwallet/internal/errors"
)

// LookupGuard is the process-local anti-enumeration layer for wallet
// lookups: repeated failed lookups from one caller trigger a cooldown.
// State lives in memory only and resets on restart; the persistent
// limiter remains the source of truth.
type LookupGuard struct {
	mu       sync.Mutex
	entries  map[string]*lookupState
	max      int
	window   time.Duration
	cooldown time.Duration
	capacity int
	now      func() time.Time
}

type lookupState struct {
	failures  int
	firstFail time.Time
	coolUntil time.Time
}

// NewLookupGuard allows max failed lookups per key within window before
// imposing cooldown. At most capacity keys are tracked; older state is
// evicted opportunistically.
func NewLookupGuard(max int, window, cooldown time.Duration, capacity int) *LookupGuard {
	if max <= 0 {
		max = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}
	if capacity <= 0 {
		capacity = 10000
	}
	return &LookupGuard{
		entries:  make(map[string]*lookupState),
		max:      max,
		window:   window,
		cooldown: cooldown,
		capacity: capacity,
		now:      time.Now,
	}
}

// Allow reports whether the key may attempt a lookup now.
func (g *LookupGuard) Allow(key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, ok := g.entries[key]
	if !ok {
		return nil
	}
	now := g.now()
	if now.Before(state.coolUntil) {
		return errors.ErrLookupCooldown.WithDetails(map[string]interface{}{
			"retry_after_seconds": int(state.coolUntil.Sub(now).Seconds()) + 1,
		})
	}
	if !state.coolUntil.IsZero() && now.After(state.coolUntil) {
		delete(g.entries, key)
	}
	return nil
}

// RecordFailure counts one failed lookup. Crossing the threshold
// within the window starts the cooldown.
func (g *LookupGuard) RecordFailure(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	state, ok := g.entries[key]
	if !ok || now.Sub(state.firstFail) > g.window {
		g.evictLocked(now)
		g.entries[key] = &lookupState{failures: 1, firstFail: now}
		return
	}
	state.failures++
	if state.failures >= g.max {
		state.coolUntil = now.Add(g.cooldown)
	}
}

// RecordSuccess clears the failure count for the key.
func (g *LookupGuard) RecordSuccess(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, key)
}

// evictLocked keeps the map bounded. Expired state goes first; if the
// map is still full, arbitrary entries are dropped. Under-counting is
// fine for a defense-in-depth layer.
func (g *LookupGuard) evictLocked(now time.Time) {
	if len(g.entries) < g.capacity {
		return
	}
	for key, state := range g.entries {
		stale := now.Sub(state.firstFail) > g.window && !now.Before(state.coolUntil)
		if stale {
			delete(g.entries, key)
		}
	}
	for key := range g.entries {
		if len(g.entries) < g.capacity {
			break
		}
		delete(g.entries, key)
	}
}

package app

import "time"

// toggleDebounce ignores repeated toggles of one task inside this window,
// so a key held down does not flip the task back and forth.
const toggleDebounce = 200 * time.Millisecond

type toggleGate struct {
	window time.Duration
	last   map[string]time.Time
}

func newToggleGate(window time.Duration) *toggleGate {
	return &toggleGate{window: window, last: make(map[string]time.Time)}
}

// allow reports whether id may be toggled at now and records the attempt
// when it may.
func (g *toggleGate) allow(id string, now time.Time) bool {
	if prev, ok := g.last[id]; ok && now.Sub(prev) < g.window {
		return false
	}
	g.last[id] = now
	return true
}

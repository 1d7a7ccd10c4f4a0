// Package buildstate provides the Idle/Building state machine shared by the
// indexes. While a full rebuild runs, a second rebuild is rejected and
// incremental updates are queued, then replayed in arrival order once the
// rebuild finishes.
package buildstate

import (
	"sync"

	"github.com/starford/memolink/internal/apperr"
)

// Phase is the state of a Guard.
type Phase int

const (
	Idle Phase = iota
	Building
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Building:
		return "building"
	default:
		return "unknown"
	}
}

// Guard serializes full rebuilds against incremental updates.
type Guard struct {
	// ops holds a read lock while an incremental update runs; Begin and End
	// take it exclusively to flip the phase.
	ops sync.RWMutex

	mu      sync.Mutex
	phase   Phase
	pending []func()
}

// Phase returns the current phase.
func (g *Guard) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Begin moves Idle → Building. It waits for in-flight incremental updates
// and returns apperr.ErrRebuildInProgress if a rebuild is already running.
func (g *Guard) Begin() error {
	g.mu.Lock()
	if g.phase == Building {
		g.mu.Unlock()
		return apperr.ErrRebuildInProgress
	}
	g.phase = Building
	g.mu.Unlock()

	// Drain updates that started before the phase flipped.
	g.ops.Lock()
	defer g.ops.Unlock()
	return nil
}

// End replays queued updates and moves Building → Idle. Updates arriving
// during the replay wait and run afterwards.
func (g *Guard) End() {
	g.ops.Lock()
	defer g.ops.Unlock()
	for {
		g.mu.Lock()
		queue := g.pending
		g.pending = nil
		if len(queue) == 0 {
			g.phase = Idle
			g.mu.Unlock()
			return
		}
		g.mu.Unlock()
		for _, op := range queue {
			op()
		}
	}
}

// Do runs op now when Idle, or queues it while Building. It reports whether
// op was queued.
func (g *Guard) Do(op func()) bool {
	g.ops.RLock()
	defer g.ops.RUnlock()

	g.mu.Lock()
	if g.phase == Building {
		g.pending = append(g.pending, op)
		g.mu.Unlock()
		return true
	}
	g.mu.Unlock()
	op()
	return false
}

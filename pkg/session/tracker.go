// Package session holds per-run state used for operator feedback and to
// skip repeat ledger lookups within one day. Nothing here is persisted and
// the ledger alone decides whether a record exists.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FPSWindow is the number of frames between FPS recomputations.
const FPSWindow = 30

// Tracker records who was seen this run and the processing frame rate.
type Tracker struct {
	id string

	mu          sync.RWMutex
	day         string
	present     map[string]bool
	frames      int
	windowStart time.Time
	fps         float64
}

// NewTracker creates an empty tracker. The FPS window starts at start.
func NewTracker(start time.Time) *Tracker {
	return &Tracker{
		id:          uuid.New().String(),
		present:     make(map[string]bool),
		windowStart: start,
	}
}

// ID identifies this run in logs.
func (t *Tracker) ID() string {
	return t.id
}

// MarkPresent adds name to the seen set. It reports whether name was new.
func (t *Tracker) MarkPresent(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.present[name] {
		return false
	}
	t.present[name] = true
	return true
}

// IsPresent reports whether name was seen since the last reset.
func (t *Tracker) IsPresent(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.present[name]
}

// Present returns the number of names seen since the last reset.
func (t *Tracker) Present() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.present)
}

// Names returns the seen names sorted.
func (t *Tracker) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.present))
	for name := range t.present {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset clears the seen set. Ledger records are not affected.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.present = make(map[string]bool)
}

// Rollover starts a new day. The seen set only covers the current day, so
// it is cleared when day differs from the previous one. It reports whether
// a clear happened.
func (t *Tracker) Rollover(day string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.day == day {
		return false
	}
	first := t.day == ""
	t.day = day
	if first {
		return false
	}
	t.present = make(map[string]bool)
	return true
}

// Tick counts one processed frame. Every FPSWindow frames the rate is
// recomputed from the wall time elapsed since the previous recomputation.
func (t *Tracker) Tick(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.frames++
	if t.frames%FPSWindow != 0 {
		return
	}

	elapsed := now.Sub(t.windowStart).Seconds()
	if elapsed > 0 {
		t.fps = FPSWindow / elapsed
	} else {
		t.fps = 0
	}
	t.windowStart = now
}

// FPS returns the last computed frame rate.
func (t *Tracker) FPS() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fps
}

// Frames returns the number of frames counted so far.
func (t *Tracker) Frames() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frames
}

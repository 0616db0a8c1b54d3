package dedup

import "sync"

const DefaultCooldown = 30

type mark struct {
	last    int64
	prev    int64
	hasPrev bool
}

// Gate suppresses repeat sightings of a plate that arrive within a cooldown
// window measured in frame units.
type Gate struct {
	mu         sync.Mutex
	cooldown   int64
	maxEntries int
	evictAfter int64
	marks      map[string]mark
	highest    int64
}

type Option func(*Gate)

// WithEviction bounds the map: once it holds more than maxEntries plates,
// entries older than windows*cooldown frames behind the newest frame are
// dropped.
func WithEviction(maxEntries int, windows int64) Option {
	return func(g *Gate) {
		g.maxEntries = maxEntries
		if windows > 0 {
			g.evictAfter = windows * g.cooldown
		}
	}
}

func NewGate(cooldown int64, opts ...Option) *Gate {
	if cooldown < 0 {
		cooldown = 0
	}
	g := &Gate{cooldown: cooldown, marks: make(map[string]mark)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gate) Cooldown() int64 { return g.cooldown }

// Accept reports whether an observation of plate at frame should be kept.
// The plate is accepted when unseen or when frame is more than the cooldown
// past the last accepted frame; only acceptance updates the mapping.
func (g *Gate) Accept(plate string, frame int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, seen := g.marks[plate]
	if seen && frame-m.last <= g.cooldown {
		return false
	}
	g.marks[plate] = mark{last: frame, prev: m.last, hasPrev: seen}
	if frame > g.highest {
		g.highest = frame
	}
	if g.maxEntries > 0 && len(g.marks) > g.maxEntries {
		g.compact()
	}
	return true
}

// Forget undoes the acceptance of plate at frame, restoring the previously
// accepted frame. It is a no-op if a later acceptance already replaced it.
func (g *Gate) Forget(plate string, frame int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.marks[plate]
	if !ok || m.last != frame {
		return
	}
	if m.hasPrev {
		g.marks[plate] = mark{last: m.prev}
		return
	}
	delete(g.marks, plate)
}

func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.marks)
}

// Prune drops plates whose last accepted frame is more than age frames
// behind current and returns how many were removed.
func (g *Gate) Prune(current, age int64) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pruneLocked(current, age)
}

func (g *Gate) compact() {
	age := g.evictAfter
	if age <= 0 {
		age = g.cooldown
	}
	g.pruneLocked(g.highest, age)
}

func (g *Gate) pruneLocked(current, age int64) int {
	removed := 0
	for k, m := range g.marks {
		if current-m.last > age {
			delete(g.marks, k)
			removed++
		}
	}
	return removed
}

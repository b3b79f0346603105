package scan

import (
	"math/rand"
	"sync"
	"time"
)

// AlbumRotation hands out album names in shuffled order, one full cycle at
// a time, so every album is shown before any repeats. Albums that appear
// between cycles are shuffled into the remainder of the current one.
type AlbumRotation struct {
	mu    sync.Mutex
	cycle []string // current shuffled order
	pos   int      // next position in cycle
	known map[string]bool
	last  string
	rng   *rand.Rand
}

// NewAlbumRotation shuffles names. A zero seed uses the current time.
func NewAlbumRotation(names []string, seed int64) *AlbumRotation {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := &AlbumRotation{
		known: make(map[string]bool),
		rng:   rand.New(rand.NewSource(seed)),
	}
	r.Sync(names)
	return r
}

// Sync reconciles the rotation with the current album list. Vanished albums
// are dropped from the cycle; new ones are shuffled and appended to it.
func (r *AlbumRotation) Sync(names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	present := make(map[string]bool, len(names))
	var added []string
	for _, n := range names {
		if present[n] {
			continue
		}
		present[n] = true
		if !r.known[n] {
			added = append(added, n)
		}
	}

	kept := r.cycle[:0]
	newPos := r.pos
	for i, n := range r.cycle {
		if present[n] {
			kept = append(kept, n)
			continue
		}
		if i < r.pos {
			newPos--
		}
	}
	r.cycle, r.pos = kept, newPos

	r.rng.Shuffle(len(added), func(i, j int) { added[i], added[j] = added[j], added[i] })
	r.cycle = append(r.cycle, added...)
	r.known = present
}

// Next returns the next album, reshuffling once a cycle is complete. It
// reports false when no albums are known.
func (r *AlbumRotation) Next() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.cycle) == 0 {
		return "", false
	}
	if r.pos >= len(r.cycle) {
		r.reshuffle()
	}
	n := r.cycle[r.pos]
	r.pos++
	r.last = n
	return n, true
}

// Len returns the number of albums in rotation.
func (r *AlbumRotation) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cycle)
}

// Remaining returns a copy of the albums still due in this cycle.
func (r *AlbumRotation) Remaining() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.cycle)-r.pos)
	copy(out, r.cycle[r.pos:])
	return out
}

func (r *AlbumRotation) reshuffle() {
	r.rng.Shuffle(len(r.cycle), func(i, j int) { r.cycle[i], r.cycle[j] = r.cycle[j], r.cycle[i] })
	// Never show the same album twice in a row across a cycle boundary.
	if len(r.cycle) > 1 && r.cycle[0] == r.last {
		k := 1 + r.rng.Intn(len(r.cycle)-1)
		r.cycle[0], r.cycle[k] = r.cycle[k], r.cycle[0]
	}
	r.pos = 0
}

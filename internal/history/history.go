// Package history keeps the most recent displays in memory for the status API.
package history

import (
	"sync"
	"time"

	"fridgeframe/internal/media"
)

// Display is one item that was put on screen.
type Display struct {
	Album     string    `json:"album"`
	Kind      string    `json:"kind"`
	SourceRef string    `json:"source_ref,omitempty"`
	Filename  string    `json:"filename,omitempty"`
	Message   string    `json:"message,omitempty"`
	ShownAt   time.Time `json:"shown_at"`
}

// Recent is a bounded, goroutine-safe list of displays.
type Recent struct {
	mu       sync.Mutex
	stack    []Display
	capacity int
}

// NewRecent creates a list holding up to capacity displays.
// If capacity is 0, history is disabled. Negative capacity is treated as 0.
func NewRecent(capacity int) *Recent {
	if capacity < 0 {
		capacity = 0
	}
	return &Recent{
		stack:    make([]Display, 0, capacity),
		capacity: capacity,
	}
}

// Displayed records an item; it satisfies slideshow.Observer.
func (r *Recent) Displayed(item media.Item, album string, at time.Time) {
	r.Record(Display{
		Album:     album,
		Kind:      item.Kind.String(),
		SourceRef: item.SourceRef,
		Filename:  item.Filename,
		Message:   item.Message,
		ShownAt:   at,
	})
}

// Record appends d, dropping the oldest entry once full.
// Re-showing the entry on top (a retried error card) only refreshes its time.
func (r *Recent) Record(d Display) {
	if r.capacity == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.stack); n > 0 && sameItem(r.stack[n-1], d) {
		r.stack[n-1].ShownAt = d.ShownAt
		return
	}
	r.stack = append(r.stack, d)
	if len(r.stack) > r.capacity {
		r.stack = r.stack[len(r.stack)-r.capacity:]
	}
}

func sameItem(a, b Display) bool {
	return a.Album == b.Album && a.Kind == b.Kind && a.SourceRef == b.SourceRef && a.Message == b.Message
}

// Entries returns up to limit displays, newest first. limit <= 0 means all.
func (r *Recent) Entries(limit int) []Display {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.stack)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Display, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, r.stack[i])
	}
	return out
}

// Last returns the newest display.
func (r *Recent) Last() (Display, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stack) == 0 {
		return Display{}, false
	}
	return r.stack[len(r.stack)-1], true
}

// Len returns the number of stored displays.
func (r *Recent) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stack)
}

// Clear empties the list.
func (r *Recent) Clear() {
	if r.capacity == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stack = make([]Display, 0, r.capacity)
}

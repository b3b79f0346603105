package slideshow

import (
	"sync"
	"time"

	"fridgeframe/internal/media"
)

// Snapshot is a point-in-time copy of the controller state, safe to read
// from any goroutine.
type Snapshot struct {
	State          string     `json:"state"`
	Album          string     `json:"album"`
	Cursor         int        `json:"cursor"`
	BatchLen       int        `json:"batch_len"`
	Item           *ItemView  `json:"item,omitempty"`
	StartedAt      time.Time  `json:"started_at,omitempty"`
	Filter         string     `json:"filter"`
	FilterOverride bool       `json:"filter_override"`
	ThermalLimit   bool       `json:"thermal_limit"`
	TimerSlot      string     `json:"timer_slot"`
	FetchInFlight  bool       `json:"fetch_in_flight"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
}

// ItemView is the JSON shape of a media item.
type ItemView struct {
	Kind       string    `json:"kind"`
	SourceRef  string    `json:"source_ref,omitempty"`
	CapturedAt time.Time `json:"captured_at,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// NewItemView converts a media item for display.
func NewItemView(it media.Item) *ItemView {
	return &ItemView{
		Kind:       it.Kind.String(),
		SourceRef:  it.SourceRef,
		CapturedAt: it.CapturedAt,
		Message:    it.Message,
	}
}

type snapshotBox struct {
	mu   sync.Mutex
	snap Snapshot
}

// Snapshot returns the latest published state.
func (c *Controller) Snapshot() Snapshot {
	c.snap.mu.Lock()
	defer c.snap.mu.Unlock()
	return c.snap.snap
}

func (c *Controller) publish() {
	s := Snapshot{
		State:          c.state.String(),
		Album:          c.batch.Album(),
		Cursor:         c.batch.Cursor(),
		BatchLen:       c.batch.Len(),
		Filter:         c.effectiveFilter().String(),
		FilterOverride: c.manual != nil || c.thermal != nil,
		ThermalLimit:   c.thermal != nil,
		TimerSlot:      c.timerSlot.String(),
		FetchInFlight:  c.fetchInFlight,
		LastError:      c.lastError,
	}
	if c.state == StateShowing || c.state == StateShowingError {
		s.Item = NewItemView(c.item)
		s.StartedAt = c.startedAt
	}
	if !c.retryNotBefore.IsZero() {
		at := c.retryNotBefore
		s.NextRetryAt = &at
	}
	c.snap.mu.Lock()
	c.snap.snap = s
	c.snap.mu.Unlock()
}

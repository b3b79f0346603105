package scheduler

import (
	"sync"
	"time"
)

// PostFunc enqueues fn on the single execution context that owns the timers.
type PostFunc func(fn func()) error

type armed struct {
	timer *time.Timer
	stop  chan struct{}
}

// Timers is the wall-clock Scheduler. Expirations are posted to the owning
// loop and re-checked there, so the liveness check and Cancel are serialized.
type Timers struct {
	post PostFunc

	mu   sync.Mutex
	next Handle
	live map[Handle]*armed
}

// NewTimers creates a Scheduler that delivers callbacks through post.
func NewTimers(post PostFunc) *Timers {
	return &Timers{
		post: post,
		live: make(map[Handle]*armed),
	}
}

// Arm implements Scheduler.
func (t *Timers) Arm(delay time.Duration, repeat bool, fn func()) Handle {
	if delay <= 0 {
		delay = time.Millisecond
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	h := t.next
	a := &armed{}
	t.live[h] = a

	if !repeat {
		a.timer = time.AfterFunc(delay, func() {
			_ = t.post(func() {
				if t.take(h) {
					fn()
				}
			})
		})
		return h
	}

	a.stop = make(chan struct{})
	ticker := time.NewTicker(delay)
	go func(stop <-chan struct{}) {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = t.post(func() {
					if t.alive(h) {
						fn()
					}
				})
			case <-stop:
				return
			}
		}
	}(a.stop)
	return h
}

// Cancel implements Scheduler.
func (t *Timers) Cancel(h Handle) {
	if h == 0 {
		return
	}
	t.mu.Lock()
	a, ok := t.live[h]
	delete(t.live, h)
	t.mu.Unlock()
	if !ok {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	if a.stop != nil {
		close(a.stop)
	}
}

// Now implements Scheduler.
func (t *Timers) Now() time.Time { return time.Now() }

// Live returns the number of armed timers.
func (t *Timers) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

// CancelAll disarms every timer.
func (t *Timers) CancelAll() {
	t.mu.Lock()
	handles := make([]Handle, 0, len(t.live))
	for h := range t.live {
		handles = append(handles, h)
	}
	t.mu.Unlock()
	for _, h := range handles {
		t.Cancel(h)
	}
}

// take consumes a one-shot handle, reporting whether it was still live.
func (t *Timers) take(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.live[h]; !ok {
		return false
	}
	delete(t.live, h)
	return true
}

func (t *Timers) alive(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.live[h]
	return ok
}

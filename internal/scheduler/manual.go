package scheduler

import "time"

type manualTimer struct {
	due    time.Time
	period time.Duration
	fn     func()
}

// Manual is a virtual-clock Scheduler. Time only moves when Advance is
// called, and due callbacks run synchronously on the caller's goroutine in
// due-time order (ties broken by arming order).
type Manual struct {
	now    time.Time
	next   Handle
	timers map[Handle]*manualTimer
}

// NewManual starts the virtual clock at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start, timers: make(map[Handle]*manualTimer)}
}

// Arm implements Scheduler.
func (m *Manual) Arm(delay time.Duration, repeat bool, fn func()) Handle {
	if delay <= 0 {
		delay = time.Nanosecond
	}
	m.next++
	mt := &manualTimer{due: m.now.Add(delay), fn: fn}
	if repeat {
		mt.period = delay
	}
	m.timers[m.next] = mt
	return m.next
}

// Cancel implements Scheduler.
func (m *Manual) Cancel(h Handle) { delete(m.timers, h) }

// Now implements Scheduler.
func (m *Manual) Now() time.Time { return m.now }

// Live returns the number of armed timers.
func (m *Manual) Live() int { return len(m.timers) }

// Advance moves the clock forward by d, firing every timer that falls due.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	for {
		h, mt := m.earliest(target)
		if mt == nil {
			break
		}
		m.now = mt.due
		if mt.period > 0 {
			mt.due = mt.due.Add(mt.period)
		} else {
			delete(m.timers, h)
		}
		mt.fn()
	}
	m.now = target
}

func (m *Manual) earliest(limit time.Time) (Handle, *manualTimer) {
	var (
		bestH Handle
		best  *manualTimer
	)
	for h, mt := range m.timers {
		if mt.due.After(limit) {
			continue
		}
		if best == nil || mt.due.Before(best.due) || (mt.due.Equal(best.due) && h < bestH) {
			bestH, best = h, mt
		}
	}
	return bestH, best
}

// Package scheduler provides the timer slots used by the slideshow controller.
//
// A Scheduler runs a callback once after a delay, or repeatedly every delay
// until cancelled. Callbacks are delivered on the owner's execution context,
// and a cancelled handle never fires, even if its underlying timer expired
// just before Cancel was called.
package scheduler

import "time"

// Handle identifies an armed timer. The zero Handle is never returned by Arm
// and is always safe to Cancel.
type Handle uint64

// Scheduler arms and cancels timers.
type Scheduler interface {
	// Arm schedules fn after delay. With repeat set, fn runs every delay
	// until the handle is cancelled.
	Arm(delay time.Duration, repeat bool, fn func()) Handle
	// Cancel disarms h. Cancelling an expired or unknown handle is a no-op.
	Cancel(h Handle)
	// Now returns the scheduler's notion of the current time.
	Now() time.Time
}

// Package slideshow sequences photo and video batches on a kiosk display.
//
// All controller input (timer expirations, presenter signals, batch fetch
// results) is serialized through a Loop, so the Controller itself holds no
// locks. The only state readable from other goroutines is the Snapshot.
package slideshow

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when posting to a loop that has stopped.
var ErrClosed = errors.New("slideshow: loop closed")

const defaultLoopBuffer = 64

// Loop is the single execution context that owns a Controller.
type Loop struct {
	ch       chan func()
	done     chan struct{}
	stopOnce sync.Once
}

// NewLoop creates a loop with the given queue capacity.
func NewLoop(buffer int) *Loop {
	if buffer <= 0 {
		buffer = defaultLoopBuffer
	}
	return &Loop{
		ch:   make(chan func(), buffer),
		done: make(chan struct{}),
	}
}

// Post enqueues fn. It blocks while the queue is full and fails once the
// loop has stopped. It must not be called from the loop goroutine itself.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}
	select {
	case <-l.done:
		return ErrClosed
	case l.ch <- fn:
		return nil
	}
}

// Do posts fn and waits until it has run.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	if err := l.Post(func() {
		defer close(ran)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-ran:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes posted callbacks in order until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.ch:
			fn()
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

package slideshow

import (
	"context"
	"errors"
	"time"

	"fridgeframe/internal/media"
	"fridgeframe/internal/scheduler"
)

// Runtime wires a Controller to its Loop, wall-clock timers and an
// asynchronous fetcher, and exposes goroutine-safe entry points.
type Runtime struct {
	loop    *Loop
	timers  *scheduler.Timers
	fetcher *AsyncFetcher
	ctrl    *Controller
}

// RuntimeOptions are the optional collaborators of a Runtime.
type RuntimeOptions struct {
	Observer     Observer
	Logger       LoggerFunc
	FetchTimeout time.Duration
	QueueSize    int
}

// NewRuntime builds a ready-to-run session. ctx bounds outstanding fetches.
func NewRuntime(ctx context.Context, cfg Config, src BatchSource, p Presenter, opts RuntimeOptions) *Runtime {
	loop := NewLoop(opts.QueueSize)
	timers := scheduler.NewTimers(loop.Post)
	fetcher := NewAsyncFetcher(ctx, src, loop.Post, opts.FetchTimeout)
	return &Runtime{
		loop:    loop,
		timers:  timers,
		fetcher: fetcher,
		ctrl:    NewController(cfg, timers, fetcher, p, opts.Observer, opts.Logger),
	}
}

// Run starts the controller with initial (which may be empty) and processes
// events until ctx is cancelled. Presenter signals are read from signals.
func (r *Runtime) Run(ctx context.Context, initial media.Batch, signals <-chan Signal) error {
	go r.pump(ctx, signals)
	if err := r.loop.Post(func() { r.ctrl.Start(initial) }); err != nil {
		return err
	}
	err := r.loop.Run(ctx)

	// The loop has stopped, so this goroutine is now the only one touching
	// the controller.
	r.ctrl.Close()
	r.timers.CancelAll()
	r.fetcher.Close()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (r *Runtime) pump(ctx context.Context, signals <-chan Signal) {
	if signals == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			if err := r.loop.Post(func() { r.ctrl.HandleSignal(sig) }); err != nil {
				return
			}
		}
	}
}

// Refresh asks for a new batch now and reports whether a fetch was issued.
func (r *Runtime) Refresh(ctx context.Context) (bool, error) {
	var accepted bool
	err := r.loop.Do(ctx, func() { accepted = r.ctrl.Refresh() })
	return accepted, err
}

// SetFilterOverride restricts subsequent items to kind. It returns once the
// controller has applied it, so Snapshot reflects the change.
func (r *Runtime) SetFilterOverride(ctx context.Context, kind media.Kind) error {
	return r.loop.Do(ctx, func() { r.ctrl.SetFilterOverride(kind) })
}

// ClearFilterOverride drops the manual override.
func (r *Runtime) ClearFilterOverride(ctx context.Context) error {
	return r.loop.Do(ctx, r.ctrl.ClearFilterOverride)
}

// SetThermalOverride restricts subsequent items to kind while the board is hot.
func (r *Runtime) SetThermalOverride(kind media.Kind) error {
	return r.loop.Post(func() { r.ctrl.SetThermalOverride(kind) })
}

// ClearThermalOverride lifts the thermal override.
func (r *Runtime) ClearThermalOverride() error {
	return r.loop.Post(r.ctrl.ClearThermalOverride)
}

// Snapshot returns the latest controller status.
func (r *Runtime) Snapshot() Snapshot { return r.ctrl.Snapshot() }

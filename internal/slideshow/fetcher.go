package slideshow

import (
	"context"
	"fmt"
	"log"
	"time"

	"fridgeframe/internal/media"
	"fridgeframe/internal/scheduler"
)

// BatchSource supplies a new batch on request.
type BatchSource interface {
	FetchBatch(ctx context.Context) (media.Batch, error)
}

// Fetcher issues one asynchronous batch request and reports the result
// through done, on the controller's execution context.
type Fetcher interface {
	Fetch(done func(media.Batch, error))
}

const defaultFetchTimeout = 30 * time.Second

// AsyncFetcher runs BatchSource requests on their own goroutine and posts
// the outcome back to the loop. Every request is bounded by a timeout so an
// outstanding fetch always resolves.
type AsyncFetcher struct {
	src     BatchSource
	post    scheduler.PostFunc
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewAsyncFetcher binds src to the loop reached through post.
func NewAsyncFetcher(parent context.Context, src BatchSource, post scheduler.PostFunc, timeout time.Duration) *AsyncFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	ctx, cancel := context.WithCancel(parent)
	return &AsyncFetcher{src: src, post: post, timeout: timeout, ctx: ctx, cancel: cancel}
}

// Fetch implements Fetcher.
func (f *AsyncFetcher) Fetch(done func(media.Batch, error)) {
	go func() {
		ctx, cancel := context.WithTimeout(f.ctx, f.timeout)
		defer cancel()
		b, err := f.src.FetchBatch(ctx)
		if err != nil && ctx.Err() != nil && f.ctx.Err() == nil {
			err = fmt.Errorf("fetch timed out after %s: %w", f.timeout, err)
		}
		if perr := f.post(func() { done(b, err) }); perr != nil {
			log.Printf("[slideshow] dropping fetch result: %v", perr)
		}
	}()
}

// Close aborts any outstanding request.
func (f *AsyncFetcher) Close() { f.cancel() }

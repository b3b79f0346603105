package playlog

import (
	"context"
	"time"

	"fridgeframe/internal/media"
)

const defaultRecorderBuffer = 32

// Recorder writes display events to a Store from its own goroutine, so the
// slideshow loop never waits on disk.
type Recorder struct {
	store   *Store
	pending chan Entry
}

// NewRecorder creates a recorder; call Run to start writing.
func NewRecorder(store *Store, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = defaultRecorderBuffer
	}
	return &Recorder{store: store, pending: make(chan Entry, buffer)}
}

// Displayed queues an entry; it satisfies slideshow.Observer. Error cards
// and items with no source are not media and are not logged. When the queue
// is full the entry is dropped.
func (r *Recorder) Displayed(item media.Item, album string, at time.Time) {
	if item.Kind == media.KindError || item.SourceRef == "" {
		return
	}
	select {
	case r.pending <- NewEntry(item, album, at):
	default:
		r.store.logMessage("play log queue full, dropping %s", item.Label())
	}
}

// Run writes queued entries until ctx is done, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case e := <-r.pending:
			r.write(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-r.pending:
					r.write(e)
				default:
					return nil
				}
			}
		}
	}
}

func (r *Recorder) write(e Entry) {
	if _, err := r.store.Record(e); err != nil {
		r.store.logMessage("%v", err)
	}
}

// BatchSource is the subset of slideshow.BatchSource a CachingSource wraps.
type BatchSource interface {
	FetchBatch(ctx context.Context) (media.Batch, error)
}

// CachingSource saves every successfully fetched batch, so the next start
// can begin from it without waiting on the network.
type CachingSource struct {
	src   BatchSource
	store *Store
}

// NewCachingSource wraps src.
func NewCachingSource(src BatchSource, store *Store) *CachingSource {
	return &CachingSource{src: src, store: store}
}

// FetchBatch implements slideshow.BatchSource.
func (c *CachingSource) FetchBatch(ctx context.Context) (media.Batch, error) {
	b, err := c.src.FetchBatch(ctx)
	if err != nil {
		return b, err
	}
	if err := c.store.SaveBatch(b); err != nil {
		c.store.logMessage("failed to cache batch %q: %v", b.Album(), err)
	}
	return b, nil
}

package source

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"fridgeframe/internal/media"
	"fridgeframe/internal/scan"
)

// DefaultBatchCount is how many items a directory batch holds.
const DefaultBatchCount = 5

// DirSource serves batches from album directories under a root. Each fetch
// takes the next album of a shuffled rotation that has media the filter
// allows, and cuts a run of consecutive items, ordered by capture time,
// starting at a random position.
type DirSource struct {
	root     string
	filter   media.Filter
	count    int
	rotation *scan.AlbumRotation
	logger   LoggerFunc

	mu  sync.Mutex
	rng *rand.Rand
}

// NewDirSource creates a source over root. count <= 0 returns whole albums.
// seed 0 shuffles by wall clock.
func NewDirSource(root string, filter media.Filter, count int, seed int64, logger LoggerFunc) *DirSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DirSource{
		root:     root,
		filter:   filter,
		count:    count,
		rotation: scan.NewAlbumRotation(nil, seed),
		logger:   logger,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// FetchBatch implements slideshow.BatchSource. Albums without allowed media
// are passed over; ErrNoMedia is returned only when none of them has any.
func (d *DirSource) FetchBatch(ctx context.Context) (media.Batch, error) {
	albums, err := scan.Albums(d.root)
	if err != nil {
		return media.Batch{}, fmt.Errorf("list albums in %s: %w", d.root, err)
	}
	byName := make(map[string]scan.Album, len(albums))
	names := make([]string, 0, len(albums))
	for _, a := range albums {
		byName[a.Name] = a
		names = append(names, a.Name)
	}
	d.rotation.Sync(names)

	for attempt := 0; attempt < len(names); attempt++ {
		name, ok := d.rotation.Next()
		if !ok {
			break
		}
		items, err := scan.LoadAlbum(ctx, byName[name], scan.LoggerFunc(d.logger))
		if err != nil {
			return media.Batch{}, fmt.Errorf("load album %s: %w", name, err)
		}
		if len(items) == 0 {
			logMessage(d.logger, "album %s has no media, skipping", name)
			continue
		}
		matching := make([]media.Item, 0, len(items))
		for _, it := range items {
			if d.filter.Allows(it) {
				matching = append(matching, it)
			}
		}
		if len(matching) == 0 {
			logMessage(d.logger, "album %s has no %s media, skipping", name, d.filter)
			continue
		}
		picked := window(matching, d.start(len(matching)), d.count)
		logMessage(d.logger, "album %s: %d of %d matching items", name, len(picked), len(matching))
		return media.NewBatch(name, picked), nil
	}
	return media.Batch{}, ErrNoMedia
}

func (d *DirSource) start(n int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rng.Intn(n)
}

// window returns count items of items beginning at start, wrapping past the
// end. It never repeats an item.
func window(items []media.Item, start, count int) []media.Item {
	n := len(items)
	if count <= 0 || count > n {
		count = n
	}
	out := make([]media.Item, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, items[(start+i)%n])
	}
	return out
}

package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fridgeframe/internal/media"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestHTTPSourceDecodesBatch(t *testing.T) {
	srv, _ := serve(t, http.StatusOK, `{
		"album_title": "Lake Trip",
		"photos": [
			{"baseUrl": "https://img/p1", "mediaType": "photo", "photo_time": "2023-07-14T18:30:05Z", "filename": "p1.jpg"},
			{"baseUrl": "https://img/v1", "mediaType": "video", "photo_time": "2023-07-14T18:31:00Z", "filename": "v1.mp4"},
			{"baseUrl": "https://img/p2=w10-h10", "mediaType": "photo"}
		]
	}`)
	src := NewHTTPSource(srv.URL, WithHTTPLogger(func(msg string) { t.Log(msg) }))

	b, err := src.FetchBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Lake Trip", b.Album())
	items := b.Items()
	require.Len(t, items, 3)

	assert.Equal(t, media.KindPhoto, items[0].Kind)
	assert.Equal(t, "https://img/p1=w1200-h800", items[0].SourceRef)
	assert.Equal(t, time.Date(2023, 7, 14, 18, 30, 5, 0, time.UTC), items[0].CapturedAt)
	assert.Equal(t, "p1.jpg", items[0].Filename)

	assert.Equal(t, media.KindVideo, items[1].Kind)
	assert.Equal(t, "https://img/v1=dv-w1280-h720", items[1].SourceRef)

	assert.Equal(t, "https://img/p2=w10-h10", items[2].SourceRef, "existing suffix kept")
	assert.True(t, items[2].CapturedAt.IsZero())
}

func TestHTTPSourceRawURLsAndCamelCase(t *testing.T) {
	srv, _ := serve(t, http.StatusOK, `{"albumTitle": "A", "items": [{"url": "https://img/x", "mediaType": "image"}]}`)
	b, err := NewHTTPSource(srv.URL, WithRawURLs(true)).FetchBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A", b.Album())
	assert.Equal(t, "https://img/x", b.Items()[0].SourceRef)
}

func TestHTTPSourceFailures(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantIs       error
		wantReason   string
		placeholders int
	}{
		{
			name:       "empty list",
			status:     http.StatusOK,
			body:       `{"photos": [], "album_title": "x"}`,
			wantIs:     ErrNoMedia,
		},
		{
			name:       "missing list",
			status:     http.StatusOK,
			body:       `{}`,
			wantIs:     ErrNoMedia,
		},
		{
			name:         "error payload with placeholders",
			status:       http.StatusOK,
			body:         `{"error": "Google Photos API quota exceeded", "album_title": "API Limit Error", "photos": [{"error": "Google Photos API quota exceeded", "mediaType": "error"}]}`,
			wantIs:       ErrEndpoint,
			wantReason:   "Google Photos API quota exceeded",
			placeholders: 1,
		},
		{
			name:         "404 with json body",
			status:       http.StatusNotFound,
			body:         `{"error": "No photos found", "photos": [{"error": "No photos found", "mediaType": "error"}]}`,
			wantIs:       ErrEndpoint,
			wantReason:   "No photos found",
			placeholders: 1,
		},
		{
			name:   "500 without body",
			status: http.StatusInternalServerError,
			body:   `oops`,
			wantIs: ErrEndpoint,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := serve(t, tt.status, tt.body)
			_, err := NewHTTPSource(srv.URL).FetchBatch(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantIs)

			var fe *media.FetchError
			if tt.wantReason == "" {
				assert.False(t, errors.As(err, &fe))
				return
			}
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.wantReason, fe.Error())
			assert.Len(t, fe.Placeholders, tt.placeholders)
		})
	}
}

func TestHTTPSourceErrorItemInsideBatch(t *testing.T) {
	srv, _ := serve(t, http.StatusOK, `{"album_title": "Mixed", "photos": [
		{"baseUrl": "https://img/a", "mediaType": "photo"},
		{"error": "thumbnail missing", "mediaType": "error"},
		{"mediaType": "hologram", "baseUrl": "https://img/h"}
	]}`)
	b, err := NewHTTPSource(srv.URL).FetchBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, b.Len(), "unknown kinds are dropped")
	assert.Equal(t, media.KindError, b.Items()[1].Kind)
	assert.Equal(t, "thumbnail missing", b.Items()[1].Message)
}

func TestHTTPSourceCoalescesConcurrentFetches(t *testing.T) {
	release := make(chan struct{})
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		_, _ = w.Write([]byte(`{"album_title": "A", "photos": [{"baseUrl": "https://img/a"}]}`))
	}))
	defer srv.Close()
	src := NewHTTPSource(srv.URL)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = src.FetchBatch(context.Background())
		}(i)
	}
	require.Eventually(t, func() bool { return atomic.LoadInt32(&hits) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestHTTPSourceHonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := NewHTTPSource(srv.URL).FetchBatch(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPSourceCancelledCallerDoesNotFailOthers(t *testing.T) {
	release := make(chan struct{})
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		_, _ = w.Write([]byte(`{"album_title": "A", "photos": [{"baseUrl": "https://img/a"}]}`))
	}))
	defer srv.Close()
	src := NewHTTPSource(srv.URL)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := src.FetchBatch(first)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&hits) == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		b   media.Batch
		err error
	}
	second := make(chan result, 1)
	go func() {
		b, err := src.FetchBatch(context.Background())
		second <- result{b, err}
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, "A", res.b.Album())
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestDirSourceRotatesAlbums(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"Summer/a.jpg", "Summer/b.mp4", "Winter/c.jpg", "Empty/readme.txt"} {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("data"), 0o644))
	}
	src := NewDirSource(root, media.AllKinds(), 0, 11, func(msg string) { t.Log(msg) })

	seen := map[string]int{}
	for i := 0; i < 4; i++ {
		b, err := src.FetchBatch(context.Background())
		require.NoError(t, err)
		seen[b.Album()]++
		switch b.Album() {
		case "Summer":
			assert.Equal(t, 2, b.Len())
		case "Winter":
			assert.Equal(t, 1, b.Len())
		default:
			t.Fatalf("unexpected album %q", b.Album())
		}
	}
	assert.Equal(t, 2, seen["Summer"])
	assert.Equal(t, 2, seen["Winter"])
}

func TestDirSourceErrors(t *testing.T) {
	_, err := NewDirSource(filepath.Join(t.TempDir(), "nope"), media.AllKinds(), DefaultBatchCount, 1, nil).FetchBatch(context.Background())
	assert.Error(t, err)

	empty := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(empty, "Nothing"), 0o755))
	_, err = NewDirSource(empty, media.AllKinds(), DefaultBatchCount, 1, nil).FetchBatch(context.Background())
	assert.ErrorIs(t, err, ErrNoMedia)

	stills := t.TempDir()
	writeAlbum(t, stills, "Stills", 3, ".jpg")
	_, err = NewDirSource(stills, media.Only(media.KindVideo), DefaultBatchCount, 1, nil).FetchBatch(context.Background())
	assert.ErrorIs(t, err, ErrNoMedia, "no album has videos")
}

// writeAlbum creates n files one minute apart, so capture order follows
// the index.
func writeAlbum(t *testing.T, root, album string, n int, ext string) []string {
	t.Helper()
	dir := filepath.Join(root, album)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	base := time.Date(2022, 5, 1, 9, 0, 0, 0, time.UTC)
	var paths []string
	for i := 0; i < n; i++ {
		p := filepath.Join(dir, fmt.Sprintf("%s-%02d%s", album, i, ext))
		require.NoError(t, os.WriteFile(p, []byte("data"), 0o644))
		at := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(p, at, at))
		paths = append(paths, p)
	}
	return paths
}

func TestDirSourceSkipsAlbumsWithoutAllowedMedia(t *testing.T) {
	root := t.TempDir()
	writeAlbum(t, root, "Stills", 20, ".jpg")
	writeAlbum(t, root, "Clips", 1, ".mp4")
	writeAlbum(t, root, "Mixed", 2, ".jpg")
	writeAlbum(t, root, "Mixed", 1, ".mov")

	for seed := int64(1); seed <= 10; seed++ {
		src := NewDirSource(root, media.Only(media.KindVideo), DefaultBatchCount, seed, nil)
		for i := 0; i < 3; i++ {
			b, err := src.FetchBatch(context.Background())
			require.NoError(t, err)
			assert.NotEqual(t, "Stills", b.Album(), "seed %d", seed)
			require.False(t, b.Empty())
			for _, it := range b.Items() {
				assert.Equal(t, media.KindVideo, it.Kind, "seed %d album %s", seed, b.Album())
			}
		}
	}
}

func TestDirSourceCutsWrappedWindow(t *testing.T) {
	root := t.TempDir()
	paths := writeAlbum(t, root, "Stills", 7, ".jpg")
	index := map[string]int{}
	for i, p := range paths {
		abs, err := filepath.Abs(p)
		require.NoError(t, err)
		index[abs] = i
	}

	starts := map[int]bool{}
	for seed := int64(1); seed <= 20; seed++ {
		b, err := NewDirSource(root, media.AllKinds(), DefaultBatchCount, seed, nil).FetchBatch(context.Background())
		require.NoError(t, err)
		items := b.Items()
		require.Len(t, items, DefaultBatchCount)

		first, ok := index[items[0].SourceRef]
		require.True(t, ok, items[0].SourceRef)
		starts[first] = true
		for i, it := range items {
			assert.Equal(t, (first+i)%len(paths), index[it.SourceRef], "seed %d position %d", seed, i)
		}
	}
	assert.Greater(t, len(starts), 1, "start index varies")

	b, err := NewDirSource(root, media.AllKinds(), 50, 3, nil).FetchBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(paths), b.Len(), "count capped at album size")
}

func TestWindow(t *testing.T) {
	items := make([]media.Item, 4)
	for i := range items {
		items[i] = media.Photo(fmt.Sprint(i), time.Time{})
	}
	refs := func(got []media.Item) []string {
		var out []string
		for _, it := range got {
			out = append(out, it.SourceRef)
		}
		return out
	}
	assert.Equal(t, []string{"2", "3", "0"}, refs(window(items, 2, 3)))
	assert.Equal(t, []string{"3", "0", "1", "2"}, refs(window(items, 3, 9)))
	assert.Equal(t, []string{"1", "2", "3", "0"}, refs(window(items, 1, 0)))
}

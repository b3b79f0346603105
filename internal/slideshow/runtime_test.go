package slideshow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fridgeframe/internal/media"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedSource struct {
	mu      sync.Mutex
	batches []media.Batch
	calls   int
}

func (s *scriptedSource) FetchBatch(ctx context.Context) (media.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.batches) == 0 {
		return media.Batch{}, errors.New("script exhausted")
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, nil
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// syncPresenter records shown refs and reports load failures for refs
// starting with "bad".
type syncPresenter struct {
	mu      sync.Mutex
	refs    []string
	signals chan Signal
}

func (p *syncPresenter) Show(item media.Item, seq uint64) {
	p.mu.Lock()
	p.refs = append(p.refs, item.SourceRef)
	p.mu.Unlock()
	if len(item.SourceRef) >= 3 && item.SourceRef[:3] == "bad" {
		p.signals <- Signal{Seq: seq, Type: SignalLoadFailed}
		return
	}
	if item.Kind == media.KindPhoto {
		p.signals <- Signal{Seq: seq, Type: SignalLoaded}
	}
}
func (p *syncPresenter) UpdateOverlay(string)   {}
func (p *syncPresenter) UpdateProgress(float64) {}
func (p *syncPresenter) Clear()                 {}

func (p *syncPresenter) Refs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.refs...)
}

func fastConfig() Config {
	return Config{
		PhotoDuration: 40 * time.Millisecond,
		VideoCeiling:  100 * time.Millisecond,
		Filter:        media.AllKinds(),
		LoadGrace:     20 * time.Millisecond,
		VideoWatchdog: 50 * time.Millisecond,
		RetryCooldown: time.Hour,
		TickInterval:  10 * time.Millisecond,
	}
}

func TestRuntimePlaysBootstrapThenFetches(t *testing.T) {
	src := &scriptedSource{batches: []media.Batch{media.NewBatch("next", photos("n1", "n2"))}}
	pres := &syncPresenter{signals: make(chan Signal, 16)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := NewRuntime(ctx, fastConfig(), src, pres, RuntimeOptions{Logger: func(string) {}})
	errc := make(chan error, 1)
	go func() { errc <- rt.Run(ctx, media.NewBatch("boot", photos("bad-1", "b2")), pres.signals) }()

	require.Eventually(t, func() bool {
		refs := pres.Refs()
		return len(refs) >= 4
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"bad-1", "b2", "n1", "n2"}, pres.Refs()[:4])
	assert.GreaterOrEqual(t, src.Calls(), 1)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runtime did not stop")
	}
	assert.Equal(t, "idle", rt.Snapshot().State)
}

func TestRuntimeRefreshAndFilterOverride(t *testing.T) {
	src := &scriptedSource{batches: []media.Batch{
		media.NewBatch("first", photos("f1", "f2", "f3")),
		media.NewBatch("second", photos("s1")),
	}}
	pres := &syncPresenter{signals: make(chan Signal, 16)}
	cfg := fastConfig()
	cfg.PhotoDuration = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := NewRuntime(ctx, cfg, src, pres, RuntimeOptions{Logger: func(string) {}})
	go func() { _ = rt.Run(ctx, media.Batch{}, pres.signals) }()

	require.Eventually(t, func() bool { return rt.Snapshot().Album == "first" }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, rt.SetFilterOverride(ctx, media.KindVideo))
	assert.Equal(t, "video", rt.Snapshot().Filter)
	require.NoError(t, rt.SetThermalOverride(media.KindPhoto))
	require.Eventually(t, func() bool { return rt.Snapshot().Filter == "photo" }, time.Second, 5*time.Millisecond)
	require.NoError(t, rt.ClearFilterOverride(ctx))
	assert.Equal(t, "photo", rt.Snapshot().Filter)
	require.NoError(t, rt.ClearThermalOverride())
	require.Eventually(t, func() bool { return rt.Snapshot().Filter == "all" }, time.Second, 5*time.Millisecond)

	accepted, err := rt.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, accepted)
	require.Eventually(t, func() bool { return rt.Snapshot().Album == "second" }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"f1", "s1"}, pres.Refs())
}

func TestAsyncFetcherTimesOut(t *testing.T) {
	loop := NewLoop(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loop.Run(ctx) }()

	blocking := sourceFunc(func(ctx context.Context) (media.Batch, error) {
		<-ctx.Done()
		return media.Batch{}, ctx.Err()
	})
	f := NewAsyncFetcher(ctx, blocking, loop.Post, 20*time.Millisecond)
	defer f.Close()

	got := make(chan error, 1)
	f.Fetch(func(_ media.Batch, err error) { got <- err })
	select {
	case err := <-got:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Contains(t, err.Error(), "timed out")
	case <-time.After(time.Second):
		t.Fatal("fetch never resolved")
	}
}

type sourceFunc func(ctx context.Context) (media.Batch, error)

func (f sourceFunc) FetchBatch(ctx context.Context) (media.Batch, error) { return f(ctx) }

package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemValidate(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		item    Item
		wantErr bool
	}{
		{"photo with ref", Photo("https://x/1", now), false},
		{"video with ref", Video("https://x/2", now), false},
		{"error item", ErrorItem("network"), false},
		{"photo without ref", Item{Kind: KindPhoto}, true},
		{"error with ref", Item{Kind: KindError, SourceRef: "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBatchCurrentAndTryAdvance(t *testing.T) {
	b := NewBatch("Summer", []Item{Photo("a", time.Time{}), Video("b", time.Time{}), Photo("c", time.Time{})})

	cur, ok := b.Current()
	require.True(t, ok)
	assert.Equal(t, "a", cur.SourceRef)
	assert.Equal(t, 2, b.Remaining())

	next, ok := b.TryAdvance()
	require.True(t, ok)
	assert.Equal(t, "b", next.SourceRef)
	assert.Equal(t, 1, b.Cursor())

	_, ok = b.TryAdvance()
	require.True(t, ok)
	assert.Equal(t, 0, b.Remaining())

	_, ok = b.TryAdvance()
	assert.False(t, ok, "advance past the end must fail")
	assert.Equal(t, 2, b.Cursor(), "cursor stays on the last item")
}

func TestEmptyBatch(t *testing.T) {
	var b Batch
	_, ok := b.Current()
	assert.False(t, ok)
	_, ok = b.TryAdvance()
	assert.False(t, ok)
	assert.Equal(t, 0, b.Remaining())
}

func TestNewBatchCopiesItems(t *testing.T) {
	items := []Item{Photo("a", time.Time{})}
	b := NewBatch("x", items)
	items[0].SourceRef = "mutated"
	cur, _ := b.Current()
	assert.Equal(t, "a", cur.SourceRef)
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("ALL")
	require.NoError(t, err)
	assert.True(t, f.IsAll())

	f, err = ParseFilter("video")
	require.NoError(t, err)
	assert.False(t, f.Allows(Photo("p", time.Time{})))
	assert.True(t, f.Allows(Video("v", time.Time{})))
	assert.True(t, f.Allows(ErrorItem("boom")), "error items are never filtered")
	assert.Equal(t, "video", f.String())

	_, err = ParseFilter("error")
	assert.Error(t, err)
	_, err = ParseFilter("audio")
	assert.Error(t, err)
}

func TestCountMatching(t *testing.T) {
	b := NewBatch("x", []Item{Photo("a", time.Time{}), Video("b", time.Time{}), Photo("c", time.Time{})})
	assert.Equal(t, 1, b.CountMatching(Only(KindVideo)))
	assert.Equal(t, 2, b.CountMatching(Only(KindPhoto)))
	assert.Equal(t, 3, b.CountMatching(AllKinds()))
}

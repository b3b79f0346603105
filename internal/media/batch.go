package media

// Batch is an ordered, finite sequence of items fetched together, plus the
// album title. A Batch is replaced wholesale and never mutated in place;
// the cursor lives alongside it and is reset whenever the batch changes.
type Batch struct {
	items  []Item
	album  string
	cursor int
}

// NewBatch copies items so later changes to the caller's slice cannot leak in.
func NewBatch(album string, items []Item) Batch {
	cp := make([]Item, len(items))
	copy(cp, items)
	return Batch{items: cp, album: album}
}

// ErrorBatch is the single-element batch synthesized after a failed fetch.
func ErrorBatch(album, reason string) Batch {
	return NewBatch(album, []Item{ErrorItem(reason)})
}

// Album returns the display title.
func (b Batch) Album() string { return b.album }

// Len returns the number of items.
func (b Batch) Len() int { return len(b.items) }

// Empty reports whether the batch has no items.
func (b Batch) Empty() bool { return len(b.items) == 0 }

// Cursor returns the current position.
func (b Batch) Cursor() int { return b.cursor }

// Remaining is the number of items after the cursor.
func (b Batch) Remaining() int {
	if b.Empty() {
		return 0
	}
	return len(b.items) - (b.cursor + 1)
}

// Items returns a copy of the items.
func (b Batch) Items() []Item {
	cp := make([]Item, len(b.items))
	copy(cp, b.items)
	return cp
}

// Current returns the item at the cursor, or false when the batch is empty.
func (b Batch) Current() (Item, bool) {
	if b.Empty() {
		return Item{}, false
	}
	return b.items[b.cursor], true
}

// TryAdvance moves the cursor forward and returns the new current item.
// It returns false, leaving the cursor untouched, when the cursor would
// run past the end.
func (b *Batch) TryAdvance() (Item, bool) {
	if b.cursor+1 >= len(b.items) {
		return Item{}, false
	}
	b.cursor++
	return b.items[b.cursor], true
}

// CountMatching returns how many items pass the filter.
func (b Batch) CountMatching(f Filter) int {
	n := 0
	for _, it := range b.items {
		if f.Allows(it) {
			n++
		}
	}
	return n
}

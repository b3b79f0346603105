package media

import "errors"

// ErrNoMedia reports a batch response without any items.
var ErrNoMedia = errors.New("no media available")

// FetchError is a failed batch request that may still carry pre-rendered
// error placeholders supplied by the endpoint.
type FetchError struct {
	Reason       string
	Album        string
	Placeholders []Item
	Err          error
}

func (e *FetchError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "batch fetch failed"
}

func (e *FetchError) Unwrap() error { return e.Err }

// PlaceholderBatch returns the endpoint's error placeholders as a batch, or
// false if none of them are usable error items.
func (e *FetchError) PlaceholderBatch() (Batch, bool) {
	var items []Item
	for _, it := range e.Placeholders {
		if it.Kind == KindError {
			items = append(items, it)
		}
	}
	if len(items) == 0 {
		return Batch{}, false
	}
	album := e.Album
	if album == "" {
		album = "Error"
	}
	return NewBatch(album, items), true
}

// Package media describes the playable units shown by the frame and the
// batches they arrive in.
package media

import (
	"fmt"
	"strings"
	"time"
)

// Kind tags a MediaItem.
type Kind int

const (
	KindPhoto Kind = iota
	KindVideo
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindPhoto:
		return "photo"
	case KindVideo:
		return "video"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseKind accepts the names used by the batch endpoint ("photo", "video", "error").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "photo", "image":
		return KindPhoto, nil
	case "video":
		return KindVideo, nil
	case "error":
		return KindError, nil
	}
	return KindError, fmt.Errorf("unknown media kind %q", s)
}

// Item is one photo, video or synthesized error placeholder.
// Playable items carry a SourceRef; error items carry a Message instead.
type Item struct {
	Kind       Kind
	SourceRef  string
	CapturedAt time.Time // zero for error items
	Message    string    // only for KindError
	Filename   string
}

// Photo builds a photo item.
func Photo(ref string, capturedAt time.Time) Item {
	return Item{Kind: KindPhoto, SourceRef: ref, CapturedAt: capturedAt}
}

// Video builds a video item.
func Video(ref string, capturedAt time.Time) Item {
	return Item{Kind: KindVideo, SourceRef: ref, CapturedAt: capturedAt}
}

// ErrorItem builds a synthesized error placeholder.
func ErrorItem(message string) Item {
	return Item{Kind: KindError, Message: message}
}

// Validate checks that exactly one of {SourceRef present, Kind == KindError} holds.
func (it Item) Validate() error {
	hasRef := it.SourceRef != ""
	isErr := it.Kind == KindError
	if hasRef == isErr {
		if isErr {
			return fmt.Errorf("error item must not carry a source ref (%q)", it.SourceRef)
		}
		return fmt.Errorf("%s item has no source ref", it.Kind)
	}
	return nil
}

// Playable reports whether a Presenter can fetch bytes for the item.
func (it Item) Playable() bool {
	return it.Kind == KindPhoto || it.Kind == KindVideo
}

// Label is a short human-readable identifier for logs.
func (it Item) Label() string {
	if it.Kind == KindError {
		return "error: " + it.Message
	}
	if it.Filename != "" {
		return it.Filename
	}
	return it.SourceRef
}

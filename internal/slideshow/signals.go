package slideshow

import (
	"fmt"
	"time"

	"fridgeframe/internal/media"
)

// SignalType is the closed set of events a Presenter reports back.
type SignalType int

const (
	// SignalLoaded: a photo finished loading.
	SignalLoaded SignalType = iota
	// SignalLoadFailed: a photo or video could not be loaded or played.
	SignalLoadFailed
	// SignalStarted: video playback made progress.
	SignalStarted
	// SignalMetadata: the true video duration is known.
	SignalMetadata
	// SignalEnded: a video reached its natural end.
	SignalEnded
)

func (s SignalType) String() string {
	switch s {
	case SignalLoaded:
		return "loaded"
	case SignalLoadFailed:
		return "loadFailed"
	case SignalStarted:
		return "started"
	case SignalMetadata:
		return "metadata"
	case SignalEnded:
		return "endedNaturally"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// Signal is a presenter event tagged with the show sequence it belongs to.
// Signals for anything other than the item currently on screen are dropped.
type Signal struct {
	Seq      uint64
	Type     SignalType
	Duration time.Duration // SignalMetadata only
	Err      error         // SignalLoadFailed only
}

// Presenter is the render sink. It owns no sequencing logic.
type Presenter interface {
	// Show renders item; outcome signals must carry seq.
	Show(item media.Item, seq uint64)
	UpdateOverlay(text string)
	// UpdateProgress sets the remaining-time indicator, 1 = full, 0 = empty.
	UpdateProgress(fraction float64)
	// Clear removes the current content before the next Show.
	Clear()
}

// Observer is told about every item handed to the Presenter.
type Observer interface {
	Displayed(item media.Item, album string, at time.Time)
}

// Observers fans one display out to several observers. Nil entries are skipped.
type Observers []Observer

// Displayed implements Observer.
func (obs Observers) Displayed(item media.Item, album string, at time.Time) {
	for _, o := range obs {
		if o != nil {
			o.Displayed(item, album, at)
		}
	}
}

// OverlayText builds the caption: album, capture time and remaining count.
func OverlayText(item media.Item, album string, remaining int) string {
	prefix := ""
	if item.Kind == media.KindVideo {
		prefix = "▶ "
	}
	when := ""
	if !item.CapturedAt.IsZero() {
		when = item.CapturedAt.Format("2006-01-02 15:04:05")
	}
	return fmt.Sprintf("%s%s\n%s #%d", prefix, album, when, remaining)
}

package ui

import (
	"fmt"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/widget"
)

const DefaultMaxLogMessages = 100

// logBuffer keeps the last max messages and a scroll position into them.
type logBuffer struct {
	messages []string
	index    int
	max      int
}

func newLogBuffer(max int) *logBuffer {
	if max <= 0 {
		max = DefaultMaxLogMessages
	}
	return &logBuffer{messages: make([]string, 0, max), index: -1, max: max}
}

// add appends message and jumps to it.
func (b *logBuffer) add(message string) {
	b.messages = append(b.messages, message)
	if len(b.messages) > b.max {
		b.messages = b.messages[len(b.messages)-b.max:]
	}
	b.index = len(b.messages) - 1
}

// scroll moves the position by delta, clamped to the buffer.
func (b *logBuffer) scroll(delta int) {
	if len(b.messages) == 0 {
		return
	}
	b.index += delta
	if b.index < 0 {
		b.index = 0
	} else if b.index >= len(b.messages) {
		b.index = len(b.messages) - 1
	}
}

func (b *logBuffer) line() string {
	if len(b.messages) == 0 {
		return ""
	}
	return fmt.Sprintf("[%d/%d] %s", b.index+1, len(b.messages), b.messages[b.index])
}

// LogUIManager mirrors log messages into the kiosk's diagnostics line.
// It is safe for use from any goroutine.
type LogUIManager struct {
	mu     sync.Mutex
	buf    *logBuffer
	label  *widget.Label
	shown  bool
	logger LoggerFunc
}

// NewLogUIManager writes into label and forwards every message to next.
func NewLogUIManager(label *widget.Label, maxMessages int, next LoggerFunc) *LogUIManager {
	return &LogUIManager{buf: newLogBuffer(maxMessages), label: label, logger: next}
}

// AddLogMessage records message and refreshes the label when visible.
func (lm *LogUIManager) AddLogMessage(message string) {
	if lm.logger != nil {
		lm.logger(message)
	}
	lm.mu.Lock()
	lm.buf.add(message)
	lm.mu.Unlock()
	lm.refresh()
}

// Scroll steps through older (-1) or newer (+1) messages.
func (lm *LogUIManager) Scroll(delta int) {
	lm.mu.Lock()
	lm.buf.scroll(delta)
	lm.mu.Unlock()
	lm.refresh()
}

// Toggle shows or hides the diagnostics line.
func (lm *LogUIManager) Toggle() {
	lm.mu.Lock()
	lm.shown = !lm.shown
	lm.mu.Unlock()
	lm.refresh()
}

func (lm *LogUIManager) refresh() {
	if lm.label == nil {
		return
	}
	lm.mu.Lock()
	shown, text := lm.shown, lm.buf.line()
	lm.mu.Unlock()
	fyne.Do(func() {
		if !shown {
			lm.label.Hide()
			return
		}
		lm.label.SetText(text)
		lm.label.Show()
	})
}

// Package source supplies media batches to the slideshow, either from the
// batch-provisioning HTTP endpoint or from album directories on disk.
package source

import (
	"errors"
	"fmt"
	"log"

	"fridgeframe/internal/media"
)

var (
	// ErrNoMedia is returned when a response or album holds no items.
	ErrNoMedia = media.ErrNoMedia
	// ErrEndpoint is returned for a non-2xx response without a usable body.
	ErrEndpoint = errors.New("batch endpoint error")
)

// LoggerFunc receives one formatted log line.
type LoggerFunc func(message string)

func logMessage(logger LoggerFunc, format string, args ...interface{}) {
	if logger != nil {
		logger(fmt.Sprintf(format, args...))
		return
	}
	log.Printf("[source] "+format, args...)
}

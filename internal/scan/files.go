// Package scan discovers photo and video files on local disk, grouped into
// albums by directory.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fridgeframe/internal/media"
)

// LoggerFunc receives one formatted log line.
type LoggerFunc func(message string)

// FileItem is a media file found on disk.
type FileItem struct {
	Path string
	Kind media.Kind
	Info os.FileInfo
}

// FileItems is a slice of FileItem
type FileItems []FileItem

// NewFileItem classifies p by extension.
func NewFileItem(p string, info os.FileInfo) FileItem {
	kind, _ := Classify(p)
	return FileItem{Path: p, Kind: kind, Info: info}
}

// Classify maps a file name to a media kind by extension.
func Classify(name string) (media.Kind, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif":
		return media.KindPhoto, true
	case ".mp4", ".mov", ".m4v", ".webm", ".mkv":
		return media.KindVideo, true
	default:
		return media.KindError, false
	}
}

func isImage(n string) bool {
	k, ok := Classify(n)
	return ok && k == media.KindPhoto
}

func isVideo(n string) bool {
	k, ok := Classify(n)
	return ok && k == media.KindVideo
}

func logMessage(logger LoggerFunc, format string, args ...interface{}) {
	if logger != nil {
		logger(fmt.Sprintf(format, args...))
		return
	}
	log.Printf("[scan] "+format, args...)
}

// Run walks dir in the background and streams every non-empty media file
// with an absolute path. The channel is closed when the walk ends.
func Run(dir string, logger LoggerFunc) <-chan FileItem {
	return RunContext(context.Background(), dir, logger)
}

// RunContext is Run with cancellation.
func RunContext(ctx context.Context, dir string, logger LoggerFunc) <-chan FileItem {
	out := make(chan FileItem)
	go func() {
		defer close(out)
		root, err := filepath.Abs(dir)
		if err != nil {
			logMessage(logger, "resolve %s: %v", dir, err)
			return
		}
		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				// Unreadable entries are skipped, the rest of the tree still counts.
				logMessage(logger, "walk %s: %v", p, err)
				if d != nil && d.IsDir() && p != root {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if p != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if _, ok := Classify(p); !ok {
				return nil
			}
			info, err := d.Info()
			if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
				return nil
			}
			select {
			case out <- NewFileItem(p, info):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && ctx.Err() == nil {
			logMessage(logger, "scan of %s stopped: %v", root, err)
		}
	}()
	return out
}

// Album is a directory of media shown together.
type Album struct {
	Name  string
	Dir   string
	Loose bool // only files directly in Dir belong to the album
}

// Albums lists the immediate subdirectories of root as albums. Loose files
// directly under root form an album named after root itself.
func Albums(root string) ([]Album, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read album root: %w", err)
	}
	var albums []Album
	loose := false
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if e.IsDir() {
			albums = append(albums, Album{Name: e.Name(), Dir: filepath.Join(root, e.Name())})
			continue
		}
		if _, ok := Classify(e.Name()); ok {
			loose = true
		}
	}
	if loose {
		albums = append(albums, Album{Name: filepath.Base(filepath.Clean(root)), Dir: root, Loose: true})
	}
	sort.Slice(albums, func(i, j int) bool { return albums[i].Name < albums[j].Name })
	return albums, nil
}

// LoadAlbum returns the album's media ordered by capture time.
func LoadAlbum(ctx context.Context, a Album, logger LoggerFunc) ([]media.Item, error) {
	dir, err := filepath.Abs(a.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve album %s: %w", a.Name, err)
	}
	var items []media.Item
	for fi := range RunContext(ctx, dir, logger) {
		if a.Loose && filepath.Dir(fi.Path) != dir {
			continue
		}
		captured := fi.Info.ModTime()
		if fi.Kind == media.KindPhoto {
			captured = CaptureTime(fi.Path, captured)
		}
		it := media.Item{
			Kind:       fi.Kind,
			SourceRef:  fi.Path,
			CapturedAt: captured,
			Filename:   filepath.Base(fi.Path),
		}
		items = append(items, it)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CapturedAt.Equal(items[j].CapturedAt) {
			return items[i].SourceRef < items[j].SourceRef
		}
		return items[i].CapturedAt.Before(items[j].CapturedAt)
	})
	return items, nil
}

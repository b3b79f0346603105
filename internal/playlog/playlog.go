// Package playlog persists what the frame displayed, and the last batch it
// fetched, in a BoltDB file.
package playlog

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"fridgeframe/internal/media"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

const (
	DisplaysBucket = "Displays"   // sequence number -> Entry
	CacheBucket    = "BatchCache" // lastBatchKey -> cached batch

	lastBatchKey = "last"
	appName      = "fridgeframe"
	dbFileName   = "fridgeframe.db"
)

// ErrNotFound is returned when no batch has been cached yet.
var ErrNotFound = errors.New("playlog: not found")

// LoggerFunc receives one formatted log line.
type LoggerFunc func(message string)

// Entry is one display event.
type Entry struct {
	ID         uint64    `json:"id"`
	Session    string    `json:"session"`
	Album      string    `json:"album"`
	Kind       string    `json:"kind"`
	SourceRef  string    `json:"source_ref,omitempty"`
	Filename   string    `json:"filename,omitempty"`
	Message    string    `json:"message,omitempty"`
	CapturedAt time.Time `json:"captured_at,omitempty"`
	ShownAt    time.Time `json:"shown_at"`
}

// NewEntry describes item shown at the given time.
func NewEntry(item media.Item, album string, at time.Time) Entry {
	return Entry{
		Album:      album,
		Kind:       item.Kind.String(),
		SourceRef:  item.SourceRef,
		Filename:   item.Filename,
		Message:    item.Message,
		CapturedAt: item.CapturedAt,
		ShownAt:    at,
	}
}

// Store is the play log database.
type Store struct {
	db      *bolt.DB
	session string
	logger  LoggerFunc
}

// DefaultPath is ~/.local/share/fridgeframe/fridgeframe.db.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return dbFileName
	}
	return filepath.Join(home, ".local", "share", appName, dbFileName)
}

// Open creates or opens the database at path, creating parent directories.
// An empty path selects DefaultPath. Every Store gets a fresh session ID.
func Open(path string, logger LoggerFunc) (*Store, error) {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory for %s: %w", path, err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open play log %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{DisplaysBucket, CacheBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	s := &Store{db: db, session: uuid.NewString(), logger: logger}
	s.logMessage("using play log at %s (session %s)", path, s.session)
	return s, nil
}

func (s *Store) logMessage(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger(fmt.Sprintf(format, args...))
		return
	}
	log.Printf("[playlog] "+format, args...)
}

// Session identifies this process's display session.
func (s *Store) Session() string { return s.session }

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// Record appends e, assigning its ID and session.
func (s *Store) Record(e Entry) (Entry, error) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(DisplaysBucket))
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		e.ID = id
		if e.Session == "" {
			e.Session = s.session
		}
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode entry: %w", err)
		}
		return b.Put(itob(id), data)
	})
	if err != nil {
		return Entry{}, fmt.Errorf("record display: %w", err)
	}
	return e, nil
}

// Recent returns up to limit entries, newest first. limit <= 0 means all.
func (s *Store) Recent(limit int) ([]Entry, error) {
	var out []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(DisplaysBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decode entry %d: %w", binary.BigEndian.Uint64(k), err)
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// Prune deletes entries shown before cutoff and returns how many went.
func (s *Store) Prune(cutoff time.Time) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(DisplaysBucket))
		var stale [][]byte
		// IDs grow with time, so the scan stops at the first recent entry.
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decode entry %d: %w", binary.BigEndian.Uint64(k), err)
			}
			if !e.ShownAt.Before(cutoff) {
				break
			}
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune play log: %w", err)
	}
	if removed > 0 {
		s.logMessage("pruned %d entries older than %s", removed, cutoff.Format(time.RFC3339))
	}
	return removed, nil
}

type cachedItem struct {
	Kind       string    `json:"kind"`
	SourceRef  string    `json:"source_ref,omitempty"`
	CapturedAt time.Time `json:"captured_at,omitempty"`
	Message    string    `json:"message,omitempty"`
	Filename   string    `json:"filename,omitempty"`
}

type cachedBatch struct {
	Album   string       `json:"album"`
	SavedAt time.Time    `json:"saved_at"`
	Items   []cachedItem `json:"items"`
}

// SaveBatch replaces the cached batch. Empty batches are ignored.
func (s *Store) SaveBatch(b media.Batch) error {
	if b.Empty() {
		return nil
	}
	cb := cachedBatch{Album: b.Album(), SavedAt: time.Now()}
	for _, it := range b.Items() {
		cb.Items = append(cb.Items, cachedItem{
			Kind:       it.Kind.String(),
			SourceRef:  it.SourceRef,
			CapturedAt: it.CapturedAt,
			Message:    it.Message,
			Filename:   it.Filename,
		})
	}
	data, err := json.Marshal(cb)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(CacheBucket)).Put([]byte(lastBatchKey), data)
	})
}

// LoadBatch returns the cached batch with its cursor at 0, or ErrNotFound.
func (s *Store) LoadBatch() (media.Batch, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(CacheBucket)).Get([]byte(lastBatchKey)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return media.Batch{}, err
	}
	if data == nil {
		return media.Batch{}, ErrNotFound
	}
	var cb cachedBatch
	if err := json.Unmarshal(data, &cb); err != nil {
		return media.Batch{}, fmt.Errorf("decode cached batch: %w", err)
	}
	items := make([]media.Item, 0, len(cb.Items))
	for _, ci := range cb.Items {
		kind, err := media.ParseKind(ci.Kind)
		if err != nil {
			continue
		}
		it := media.Item{Kind: kind, SourceRef: ci.SourceRef, CapturedAt: ci.CapturedAt, Message: ci.Message, Filename: ci.Filename}
		if it.Validate() != nil {
			continue
		}
		items = append(items, it)
	}
	if len(items) == 0 {
		return media.Batch{}, ErrNotFound
	}
	return media.NewBatch(cb.Album, items), nil
}

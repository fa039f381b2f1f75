// Package records stores bibliographic entries as markdown notes with YAML front
// matter inside a vault folder.
package records

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bibnote/bibnote/internal/events"
	"github.com/bibnote/bibnote/internal/telemetry/invariants"
	"github.com/samber/lo"
)

const noteExtension = ".md"

var (
	// ErrInvalidTitle is returned for titles that cannot name a note file.
	ErrInvalidTitle = errors.New("invalid record title")
	// ErrExists is returned when saving over an existing note without overwrite.
	ErrExists = errors.New("record already exists")
	// ErrNotFound is returned when no note exists for a title.
	ErrNotFound = errors.New("record not found")
)

// Publisher receives record events.
type Publisher interface {
	Publish(event events.Event)
}

// Option configures a Store.
type Option func(*Store)

// WithPublisher publishes RecordSaved events to bus.
func WithPublisher(bus Publisher) Option {
	return func(s *Store) {
		s.bus = bus
	}
}

// WithClock replaces the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store reads and writes notes in one directory.
type Store struct {
	dir string
	bus Publisher
	now func() time.Time
}

// NewStore returns a store rooted at dir. The directory is created on first save.
func NewStore(dir string, options ...Option) *Store {
	store := &Store{
		dir: dir,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		if option != nil {
			option(store)
		}
	}
	return store
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// ValidateTitle reports whether title can name a note: non-empty, free of path
// separators and not a relative directory reference.
func ValidateTitle(title string) error {
	trimmed := strings.TrimSpace(title)
	switch {
	case trimmed == "":
		return fmt.Errorf("%w: title is empty", ErrInvalidTitle)
	case strings.ContainsAny(trimmed, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidTitle, trimmed)
	case trimmed == "." || trimmed == "..":
		return fmt.Errorf("%w: %q is a directory reference", ErrInvalidTitle, trimmed)
	case strings.ContainsRune(trimmed, 0):
		return fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidTitle, trimmed)
	}
	return nil
}

// Path returns the note path for title.
func (s *Store) Path(title string) (string, error) {
	if err := ValidateTitle(title); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, strings.TrimSpace(title)+noteExtension), nil
}

var writeNote = func(w io.Writer, content []byte) error {
	_, err := w.Write(content)
	return err
}

// Exists reports whether a note for title is present. Invalid titles never exist.
func (s *Store) Exists(title string) bool {
	path, err := s.Path(title)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Save writes record and returns the note path. An existing note is replaced
// only when overwrite is set.
func (s *Store) Save(ctx context.Context, record Record, overwrite bool) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	titleErr := ValidateTitle(record.Title)
	if !invariants.CheckRecordTitleSafe(ctx, "records.Store.Save", record.Title, titleErr == nil) {
		return "", titleErr
	}
	record.Title = strings.TrimSpace(record.Title)
	if record.Created.IsZero() {
		record.Created = s.now()
	}

	path, err := s.Path(record.Title)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", fmt.Errorf("create record folder: %w", err)
	}

	content, err := Render(record)
	if err != nil {
		return "", err
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if !overwrite {
		flags = os.O_CREATE | os.O_WRONLY | os.O_EXCL
	}
	// #nosec G304 -- path is built from a validated title inside the store directory.
	file, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrExists, record.Title)
		}
		return "", fmt.Errorf("open note %q: %w", path, err)
	}
	writeErr := writeNote(file, content)
	if closeErr := file.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		// A partial new note would make every later save report ErrExists.
		if !overwrite {
			_ = os.Remove(path)
		}
		return "", fmt.Errorf("write note %q: %w", path, writeErr)
	}

	if s.bus != nil {
		s.bus.Publish(events.Event{
			Type:       events.EventTypeRecordSaved,
			EntityType: "record",
			EntityID:   record.Title,
			Payload:    path,
			Severity:   events.SeverityInfo,
		})
	}
	return path, nil
}

// Load reads the note for title.
func (s *Store) Load(title string) (Record, error) {
	path, err := s.Path(title)
	if err != nil {
		return Record{}, err
	}
	return loadFile(path)
}

func loadFile(path string) (Record, error) {
	// #nosec G304 -- path is inside the store directory.
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSuffix(filepath.Base(path), noteExtension))
		}
		return Record{}, fmt.Errorf("read note %q: %w", path, err)
	}
	record, err := Parse(data)
	if err != nil {
		return Record{}, fmt.Errorf("parse note %q: %w", path, err)
	}
	return record, nil
}

// List returns every parseable note sorted by title. A missing folder is an
// empty list.
func (s *Store) List() ([]Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("read record folder: %w", err)
	}

	notes := lo.Filter(entries, func(entry os.DirEntry, _ int) bool {
		return !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), noteExtension)
	})
	parsed := lo.FilterMap(notes, func(entry os.DirEntry, _ int) (Record, bool) {
		record, loadErr := loadFile(filepath.Join(s.dir, entry.Name()))
		return record, loadErr == nil
	})
	sort.SliceStable(parsed, func(i, j int) bool {
		return strings.ToLower(parsed[i].Title) < strings.ToLower(parsed[j].Title)
	})
	return parsed, nil
}

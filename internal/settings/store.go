package settings

import (
	"errors"
	"fmt"
	"log/slog"

	"gnss-tracker/internal/storage"
)

const (
	DefaultFileName = "tracker.ini"
	DefaultMaxBytes = 4096
)

// ErrBufferSize is returned before any I/O when the store cannot size its
// read buffer.
var ErrBufferSize = errors.New("settings: invalid read buffer size")

// Outcome reports whether LoadOrInitialize found a settings file.
type Outcome int

const (
	NotFound Outcome = iota
	Found
)

func (o Outcome) String() string {
	if o == Found {
		return "found"
	}
	return "not found"
}

// Storage is the subset of the volume the store needs.
type Storage interface {
	Read(name string, p []byte) (int, error)
	storage.FileWriter
}

// Store reads and writes one settings file on a Storage.
type Store struct {
	fs       Storage
	name     string
	maxBytes int
	log      *slog.Logger
}

// NewStore returns a Store for name on fs. An empty name selects tracker.ini
// and a zero maxBytes selects 4096.
func NewStore(fs Storage, name string, maxBytes int, logger *slog.Logger) *Store {
	if name == "" {
		name = DefaultFileName
	}
	if maxBytes == 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{fs: fs, name: name, maxBytes: maxBytes, log: logger}
}

func (s *Store) Name() string { return s.name }

// LoadOrInitialize reads the settings file and parses it onto the defaults.
// A missing, unreadable or empty file yields the defaults and NotFound; the
// caller is expected to persist them.
func (s *Store) LoadOrInitialize() (Record, Outcome, error) {
	rec := Default()
	if s.maxBytes <= 0 {
		return rec, NotFound, fmt.Errorf("%w: %d", ErrBufferSize, s.maxBytes)
	}
	if s.fs == nil {
		return rec, NotFound, storage.ErrNotMounted
	}

	buf := make([]byte, s.maxBytes)
	n, err := s.fs.Read(s.name, buf)
	if err != nil {
		s.log.Warn("settings read error", "file", s.name, "error", err)
		return rec, NotFound, nil
	}
	if n == 0 {
		s.log.Warn("settings file not found", "file", s.name)
		return rec, NotFound, nil
	}

	return Parse(buf[:n], rec), Found, nil
}

// Persist writes Serialize(r), replacing the file. A failed or short write
// returns an error wrapping storage.ErrShortWrite.
func (s *Store) Persist(r Record) error {
	text := Serialize(r)
	if err := storage.WriteAll(s.fs, s.name, []byte(text), storage.ModeTruncate); err != nil {
		return fmt.Errorf("settings: persist: %w", err)
	}
	return nil
}

// Setup loads the settings and writes the defaults back when no usable file
// was found. A load error is logged and treated like a missing file.
func (s *Store) Setup() (Record, Outcome, error) {
	rec, outcome, err := s.LoadOrInitialize()
	if err != nil {
		s.log.Error("settings load failed", "file", s.name, "error", err)
	}
	if err != nil || outcome == NotFound {
		if perr := s.Persist(rec); perr != nil {
			return rec, outcome, perr
		}
		s.log.Info("settings file created", "file", s.name)
	}

	s.log.Info("settings", "file", s.name, "outcome", outcome.String(), "text", Serialize(rec))
	return rec, outcome, nil
}

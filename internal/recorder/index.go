package recorder

import (
	"fmt"
	"strconv"
	"strings"

	"gnss-tracker/internal/storage"
)

const (
	IndexFileName = "index.ini"
	indexFileSize = 16
)

// Volume is what the recorder needs from the removable storage.
type Volume interface {
	Read(name string, p []byte) (int, error)
	storage.FileWriter
}

// Index is the persisted output file counter.
type Index struct {
	fs   Volume
	name string
}

func NewIndex(fs Volume, name string) *Index {
	if name == "" {
		name = IndexFileName
	}
	return &Index{fs: fs, name: name}
}

// Current returns the last number handed out. A missing or unreadable index
// reads as 0.
func (ix *Index) Current() uint32 {
	buf := make([]byte, indexFileSize)
	n, err := ix.fs.Read(ix.name, buf)
	if err != nil || n == 0 {
		return 0
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(buf[:n])), 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

// Next increments the counter and persists it before returning the new value.
func (ix *Index) Next() (uint32, error) {
	next := ix.Current() + 1
	if next > 99999999 {
		next = 1
	}
	text := strconv.FormatUint(uint64(next), 10)
	if err := storage.WriteAll(ix.fs, ix.name, []byte(text), storage.ModeTruncate); err != nil {
		return 0, fmt.Errorf("recorder: index: %w", err)
	}
	return next, nil
}

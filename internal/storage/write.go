package storage

import (
	"errors"
	"fmt"
)

// ErrShortWrite marks a write whose accepted byte count differs from the
// requested length. Callers treat it as a fatal media failure.
var ErrShortWrite = errors.New("storage: short write")

// FileWriter is the write half of a Volume.
type FileWriter interface {
	Write(name string, p []byte, mode Mode) (int, error)
}

// WriteAll writes p and verifies the byte count. It never retries.
func WriteAll(w FileWriter, name string, p []byte, mode Mode) error {
	if w == nil {
		return ErrNotMounted
	}
	n, err := w.Write(name, p, mode)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrShortWrite, name, err)
	}
	if n != len(p) {
		return fmt.Errorf("%w: %s wrote %d of %d bytes", ErrShortWrite, name, n, len(p))
	}
	return nil
}

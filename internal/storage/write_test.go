package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWriter struct {
	n   int
	err error
}

func (s stubWriter) Write(string, []byte, Mode) (int, error) { return s.n, s.err }

func TestWriteAll(t *testing.T) {
	require.NoError(t, WriteAll(stubWriter{n: 3}, "f", []byte("abc"), ModeAppend))

	err := WriteAll(stubWriter{n: 2}, "f", []byte("abc"), ModeAppend)
	require.ErrorIs(t, err, ErrShortWrite)
	assert.Contains(t, err.Error(), "wrote 2 of 3 bytes")

	io := errors.New("media gone")
	err = WriteAll(stubWriter{err: io}, "f", []byte("abc"), ModeAppend)
	require.ErrorIs(t, err, ErrShortWrite)
	require.ErrorIs(t, err, io)

	require.ErrorIs(t, WriteAll(nil, "f", []byte("abc"), ModeAppend), ErrNotMounted)
}

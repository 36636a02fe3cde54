package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_RequiresDirectory(t *testing.T) {
	_, err := Open("")
	require.ErrorIs(t, err, ErrNotMounted)

	_, err = Open(filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, ErrNotMounted)

	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = Open(file)
	require.ErrorIs(t, err, ErrNotMounted)
}

func TestVolume_ReadMissingIsZero(t *testing.T) {
	v, err := Open(t.TempDir())
	require.NoError(t, err)

	assert.False(t, v.Exists("tracker.ini"))
	buf := make([]byte, 16)
	n, err := v.Read("tracker.ini", buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestVolume_WriteModes(t *testing.T) {
	v, err := Open(t.TempDir())
	require.NoError(t, err)

	n, err := v.Write("a.txt", []byte("hello "), ModeAppend)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	n, err = v.Write("a.txt", []byte("world"), ModeAppend)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 64)
	n, err = v.Read("a.txt", buf)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(buf[:n]))

	_, err = v.Write("a.txt", []byte("reset"), ModeTruncate)
	require.NoError(t, err)
	n, err = v.Read("a.txt", buf)
	require.NoError(t, err)
	assert.Equal(t, "reset", string(buf[:n]))
	assert.True(t, v.Exists("a.txt"))
}

func TestVolume_ReadIsBounded(t *testing.T) {
	v, err := Open(t.TempDir())
	require.NoError(t, err)
	_, err = v.Write("big", []byte("0123456789"), ModeTruncate)
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, err := v.Read("big", buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "0123", string(buf))
}

func TestVolume_RejectsNestedNames(t *testing.T) {
	v, err := Open(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", ".", "..", "a/b", `a\b`, "../escape"} {
		_, err := v.Write(name, []byte("x"), ModeAppend)
		require.ErrorIs(t, err, ErrBadName, "name=%q", name)
		assert.False(t, v.Exists(name))
	}
}

func TestVolume_WriteAfterUnmount(t *testing.T) {
	root := filepath.Join(t.TempDir(), "sd")
	require.NoError(t, os.Mkdir(root, 0o755))
	v, err := Open(root)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(root))

	assert.False(t, v.Mounted())
	n, err := v.Write("a.txt", []byte("x"), ModeAppend)
	require.ErrorIs(t, err, ErrNotMounted)
	assert.Equal(t, 0, n)
}

func TestVolume_Remove(t *testing.T) {
	v, err := Open(t.TempDir())
	require.NoError(t, err)
	_, err = v.Write("gone", []byte("x"), ModeAppend)
	require.NoError(t, err)
	require.NoError(t, v.Remove("gone"))
	assert.False(t, v.Exists("gone"))
	require.NoError(t, v.Remove("gone"))
}

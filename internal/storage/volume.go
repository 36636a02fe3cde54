package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Volume is the removable media namespace: a single flat directory of named
// files (the SD card or USB stick mount point).
//
// Volume is not safe for concurrent use; the control loop is its only caller.
type Volume struct {
	root string
}

// Mode selects how Write opens the target file.
type Mode int

const (
	// ModeAppend creates the file if needed and appends.
	ModeAppend Mode = iota
	// ModeTruncate creates the file if needed and replaces its contents.
	ModeTruncate
)

var (
	ErrNotMounted = errors.New("storage: volume not mounted")
	ErrBadName    = errors.New("storage: invalid file name")
)

// Open checks that root is an existing directory and returns a Volume on it.
func Open(root string) (*Volume, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("%w: empty root", ErrNotMounted)
	}
	root = filepath.Clean(strings.TrimSpace(root))
	fi, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotMounted, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNotMounted, root)
	}
	return &Volume{root: root}, nil
}

func (v *Volume) Root() string {
	if v == nil {
		return ""
	}
	return v.root
}

// Mounted reports whether the volume root is still reachable.
func (v *Volume) Mounted() bool {
	if v == nil {
		return false
	}
	fi, err := os.Stat(v.root)
	return err == nil && fi.IsDir()
}

func (v *Volume) path(name string) (string, error) {
	if v == nil {
		return "", ErrNotMounted
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return filepath.Join(v.root, name), nil
}

func (v *Volume) Exists(name string) bool {
	p, err := v.path(name)
	if err != nil {
		return false
	}
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}

// Read fills p from the start of the named file and returns the byte count.
// A missing file reads as 0 bytes with no error.
func (v *Volume) Read(name string, p []byte) (int, error) {
	fp, err := v.path(name)
	if err != nil {
		return 0, err
	}
	f, err := os.Open(fp)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("storage: open %s: %w", name, err)
	}
	defer f.Close()

	n, err := io.ReadFull(f, p)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return n, fmt.Errorf("storage: read %s: %w", name, err)
	}
	return n, nil
}

// Write stores p in the named file and returns the number of bytes the file
// accepted. Callers compare it with len(p) to detect a short write.
func (v *Volume) Write(name string, p []byte, mode Mode) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if !v.Mounted() {
		return 0, ErrNotMounted
	}
	fp, err := v.path(name)
	if err != nil {
		return 0, err
	}

	flag := os.O_WRONLY | os.O_CREATE
	switch mode {
	case ModeTruncate:
		flag |= os.O_TRUNC
	default:
		flag |= os.O_APPEND
	}
	f, err := os.OpenFile(fp, flag, 0o644)
	if err != nil {
		return 0, fmt.Errorf("storage: open %s: %w", name, err)
	}

	n, werr := f.Write(p)
	cerr := f.Close()
	if werr != nil {
		return n, fmt.Errorf("storage: write %s: %w", name, werr)
	}
	if cerr != nil {
		return n, fmt.Errorf("storage: close %s: %w", name, cerr)
	}
	return n, nil
}

func (v *Volume) Remove(name string) error {
	fp, err := v.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(fp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: remove %s: %w", name, err)
	}
	return nil
}

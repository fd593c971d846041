package command

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

const (
	// LockName is the file that marks a base tree as in use by a run.
	LockName = ".apkmerge.lock"
)

var (
	ErrLocked = errors.New("base tree is locked")
)

// lock takes the advisory lock on the base tree dir. It does nothing if
// dir does not exist, leaving that to be reported by validation.
func lock(dir string) (func() error, error) {
	name := filepath.Join(dir, LockName)

	//nolint:gosec
	f, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	switch {
	case errors.Is(err, fs.ErrExist):
		return nil, fmt.Errorf("%w by %s, remove it if no other run is in progress", ErrLocked, name)
	case errors.Is(err, fs.ErrNotExist):
		return func() error { return nil }, nil
	case err != nil:
		return nil, err
	}

	if _, err := f.WriteString(strconv.Itoa(os.Getpid()) + "\n"); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return nil, err
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return nil, err
	}

	return func() error {
		return os.Remove(name)
	}, nil
}

package merge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/otiai10/copy"
)

var (
	// ErrOutsideTree is returned for a source that does not
	// resolve to a location inside the expected tree.
	ErrOutsideTree = errors.New("path outside tree")
	// ErrConflict is returned in strict mode when two sources
	// of the same run contribute the same path.
	ErrConflict = errors.New("path contributed by more than one split")
)

// Merger moves the files of decoded trees into a base tree without
// ever replacing a file that already exists there.
type Merger struct {
	// Root, if set, is the directory that every source tree must be inside of.
	Root string
	// Strict fails the merge when a path already merged earlier
	// in the same run is contributed again, instead of skipping it.
	Strict bool
}

// Report lists what happened to each regular file of a source tree.
// Paths are relative to the source, with forward slashes.
type Report struct {
	Merged  []string
	Skipped []string
}

// Merge moves every regular file under src to the same relative path
// under base unless a file already exists there, appending each moved
// path to rec. On error, the files moved so far stay moved, their
// record lines stay written and the returned Report describes them.
// A file whose record line cannot be written is moved back to src.
func (m *Merger) Merge(ctx context.Context, src, base string, rec *Record) (*Report, error) {
	report := &Report{}

	src, err := m.resolve(src)
	if err != nil {
		return report, err
	}

	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return nil
		case d.Type()&fs.ModeSymlink != 0:
			// Symlinks are never followed. One pointing out of
			// the source tree means the tree cannot be trusted.
			if _, err := within(src, path); err != nil {
				return fmt.Errorf("%s: %w", filepath.ToSlash(rel), ErrOutsideTree)
			}

			report.Skipped = append(report.Skipped, filepath.ToSlash(rel))
			return nil
		case !d.Type().IsRegular():
			return nil
		}

		dst := filepath.Join(base, rel)

		if _, err := os.Lstat(dst); err == nil {
			if m.Strict && rec.Has(rel) {
				return fmt.Errorf("%s: %w", filepath.ToSlash(rel), ErrConflict)
			}

			report.Skipped = append(report.Skipped, filepath.ToSlash(rel))
			return nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}

		if err := move(path, dst); err != nil {
			return err
		}

		if err := rec.Append(rel); err != nil {
			// An unrecorded file must not stay in base.
			if rerr := move(dst, path); rerr != nil {
				return errors.Join(err, rerr)
			}

			return err
		}

		report.Merged = append(report.Merged, filepath.ToSlash(rel))

		return nil
	})

	return report, err
}

func (m *Merger) resolve(src string) (string, error) {
	if m.Root == "" {
		return filepath.Abs(src)
	}

	return within(m.Root, src)
}

// within resolves path, following symlinks, and errors
// if the result is not root or a descendant of it.
func within(root, path string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}

	if absRoot, err = filepath.EvalSymlinks(absRoot); err != nil {
		return "", err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	if absPath, err = filepath.EvalSymlinks(absPath); err != nil {
		return "", err
	}

	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return "", ErrOutsideTree
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", ErrOutsideTree
	}

	return absPath, nil
}

// move renames src to dst, falling back to copying
// and removing src when they are on different devices.
func move(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	if !errors.Is(err, syscall.EXDEV) {
		return err
	}

	if err := copy.Copy(src, dst, copy.Options{PreserveTimes: true, Sync: true}); err != nil {
		return err
	}

	return os.Remove(src)
}

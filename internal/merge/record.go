package merge

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Record is the append-only log of every path merged into a base tree.
// It is persisted as "- <path>" lines appended to the file it was opened on.
type Record struct {
	mu      sync.Mutex
	f       *os.File
	entries []string
	seen    map[string]struct{}
}

// OpenRecord opens name for appending, creating it if needed.
// Lines already in the file are left untouched.
func OpenRecord(name string) (*Record, error) {
	//nolint:gosec
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	return &Record{f: f, seen: map[string]struct{}{}}, nil
}

// Append writes rel to the record. rel is stored with forward slashes.
func (r *Record) Append(rel string) error {
	rel = filepath.ToSlash(rel)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := fmt.Fprintf(r.f, "- %s\n", rel); err != nil {
		return err
	}

	r.entries = append(r.entries, rel)
	r.seen[rel] = struct{}{}

	return nil
}

// Has reports whether rel was appended through this Record.
func (r *Record) Has(rel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.seen[filepath.ToSlash(rel)]
	return ok
}

// Entries returns the paths appended through this Record, in order.
func (r *Record) Entries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string{}, r.entries...)
}

func (r *Record) Close() error {
	return r.f.Close()
}

// Package marker implements the sentinel-file idempotency layer. A task is
// "done" iff every one of its declared output markers exists; content is
// irrelevant. The scheduler only ever creates markers; removal (manual or
// through Invalidate) is the one way to force re-execution.
package marker

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/corvid-bio/rookery/internal/fsutil"
)

// Store resolves marker paths relative to a run directory and checks or
// records their existence.
type Store struct {
	root string
}

// NewStore returns a Store rooted at the given run directory.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the run directory the store resolves against.
func (s *Store) Root() string { return s.root }

// Resolve turns a task-declared relative path into an absolute one.
// Absolute paths pass through unchanged.
func (s *Store) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.root, path)
}

// Exists reports whether the marker at path exists.
func (s *Store) Exists(path string) bool {
	return fsutil.Exists(s.Resolve(path))
}

// AllExist reports whether every given marker exists. An empty list counts
// as all-existing.
func (s *Store) AllExist(paths []string) bool {
	for _, p := range paths {
		if !s.Exists(p) {
			return false
		}
	}
	return true
}

// Write creates the marker at path, along with any missing parent
// directories. Writing an existing marker is a no-op, preserving the
// original completion timestamp.
func (s *Store) Write(path string) error {
	full := s.Resolve(path)
	if fsutil.Exists(full) {
		return nil
	}
	if err := fsutil.EnsureDir(filepath.Dir(full)); err != nil {
		return fmt.Errorf("creating marker directory for '%s': %w", path, err)
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("writing marker '%s': %w", path, err)
	}
	return f.Close()
}

// WriteAll creates every given marker.
func (s *Store) WriteAll(paths []string) error {
	for _, p := range paths {
		if err := s.Write(p); err != nil {
			return err
		}
	}
	return nil
}

// Invalidate removes the given markers so the owning task re-executes on the
// next run. Missing markers are ignored.
func (s *Store) Invalidate(paths []string) error {
	for _, p := range paths {
		if err := os.Remove(s.Resolve(p)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing marker '%s': %w", p, err)
		}
	}
	return nil
}

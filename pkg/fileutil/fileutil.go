// Package fileutil publishes output files with tmp+rename semantics so a
// failed run never leaves a file that looks complete.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// TmpSuffix is appended to the final name while a file is being written.
const TmpSuffix = ".tmp"

// Exists returns true if the file exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// TmpPath returns the temporary path used while writing path.
func TmpPath(path string) string {
	return filepath.Join(filepath.Dir(path), filepath.Base(path)+TmpSuffix)
}

// AtomicFile is a file written under a temporary name and moved to its
// final path by Commit. Abort removes it. Exactly one of Commit or Abort
// takes effect; later calls are no-ops. Writes are not buffered.
type AtomicFile struct {
	f       *os.File
	path    string
	tmpPath string
	done    bool
}

// Create opens a temporary file next to path, creating the directory if
// needed. A stale temporary file from an earlier run is truncated.
func Create(path string) (*AtomicFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	tmpPath := TmpPath(path)
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &AtomicFile{
		f:       f,
		path:    path,
		tmpPath: tmpPath,
	}, nil
}

// Write writes to the temporary file.
func (a *AtomicFile) Write(p []byte) (int, error) {
	return a.f.Write(p)
}

// Path returns the final path.
func (a *AtomicFile) Path() string {
	return a.path
}

// Commit syncs and closes the temporary file, then renames it to the
// final path.
func (a *AtomicFile) Commit() error {
	if a.done {
		return nil
	}
	a.done = true

	if err := a.f.Sync(); err != nil {
		a.discard()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := a.f.Close(); err != nil {
		os.Remove(a.tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(a.tmpPath, a.path); err != nil {
		os.Remove(a.tmpPath)
		return fmt.Errorf("rename temp to final: %w", err)
	}
	return nil
}

// Abort closes and removes the temporary file.
func (a *AtomicFile) Abort() error {
	if a.done {
		return nil
	}
	a.done = true
	return a.discard()
}

func (a *AtomicFile) discard() error {
	closeErr := a.f.Close()
	rmErr := os.Remove(a.tmpPath)
	if errors.Is(rmErr, os.ErrNotExist) {
		rmErr = nil
	}
	return errors.Join(closeErr, rmErr)
}

// Group commits or aborts a set of files together.
type Group struct {
	files []*AtomicFile
}

// Create adds a new AtomicFile to the group.
func (g *Group) Create(path string) (*AtomicFile, error) {
	f, err := Create(path)
	if err != nil {
		return nil, err
	}
	g.files = append(g.files, f)
	return f, nil
}

// Commit commits every file. If one fails, the rest are aborted and the
// ones already renamed are removed, so the group is published whole or
// not at all.
func (g *Group) Commit() error {
	for i, f := range g.files {
		if err := f.Commit(); err != nil {
			for _, rest := range g.files[i+1:] {
				_ = rest.Abort()
			}
			for _, done := range g.files[:i] {
				_ = os.Remove(done.path)
			}
			return err
		}
	}
	return nil
}

// Abort aborts every file that has not been committed.
func (g *Group) Abort() error {
	var errs []error
	for _, f := range g.files {
		errs = append(errs, f.Abort())
	}
	return errors.Join(errs...)
}

package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// StagingArea is the per-batch directory that holds at most one item at a time
type StagingArea struct {
	fs       afero.Fs
	dir      string
	mu       sync.Mutex
	released bool
}

// NewStagingArea names a unique area for target under base. Nothing is
// created until Acquire.
func NewStagingArea(fs afero.Fs, base, target string) *StagingArea {
	name := fmt.Sprintf("%s_%d_%s", sanitizeTarget(target), time.Now().Unix(), uuid.NewString()[:8])
	return &StagingArea{
		fs:  fs,
		dir: filepath.Join(base, name),
	}
}

// Dir returns the area's directory
func (a *StagingArea) Dir() string { return a.dir }

// Fs returns the filesystem the area lives on
func (a *StagingArea) Fs() afero.Fs { return a.fs }

// Acquire creates the directory. Calling it again is harmless.
func (a *StagingArea) Acquire() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		return fmt.Errorf("staging area %s already released", a.dir)
	}
	if err := a.fs.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("create staging area: %w", err)
	}
	return nil
}

// Remove deletes the staged file if it is still there
func (a *StagingArea) Remove(file *StagedFile) error {
	if file == nil || file.Path == "" {
		return nil
	}
	if err := a.fs.Remove(file.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove staged file: %w", err)
	}
	return nil
}

// Sweep deletes everything left inside the area
func (a *StagingArea) Sweep() error {
	entries, err := afero.ReadDir(a.fs, a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read staging area: %w", err)
	}

	var firstErr error
	for _, entry := range entries {
		if err := a.fs.RemoveAll(filepath.Join(a.dir, entry.Name())); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("sweep staging area: %w", err)
		}
	}
	return firstErr
}

// Release removes the whole area. Later calls do nothing.
func (a *StagingArea) Release() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		return nil
	}
	if err := a.fs.RemoveAll(a.dir); err != nil {
		return fmt.Errorf("release staging area: %w", err)
	}
	a.released = true
	return nil
}

// Exists reports whether the directory is currently on disk
func (a *StagingArea) Exists() bool {
	ok, err := afero.DirExists(a.fs, a.dir)
	return err == nil && ok
}

func sanitizeTarget(target string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, target)
	cleaned = strings.Trim(cleaned, ".")
	if cleaned == "" {
		return "target"
	}
	return cleaned
}

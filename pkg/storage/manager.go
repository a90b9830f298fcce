package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// PartSuffix marks a file that is still being written
const PartSuffix = ".part"

// Manager writes downloaded files into one directory of an afero filesystem
type Manager struct {
	fs     afero.Fs
	dir    string
	stored map[string]int64
	mu     sync.RWMutex
}

// NewManager creates the directory if needed and indexes the files already in it
func NewManager(fs afero.Fs, dir string) (*Manager, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	m := &Manager{
		fs:     fs,
		dir:    dir,
		stored: make(map[string]int64),
	}

	if err := m.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return m, nil
}

func (m *Manager) scanExistingFiles() error {
	entries, err := afero.ReadDir(m.fs, m.dir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) == PartSuffix {
			continue
		}
		m.stored[entry.Name()] = entry.Size()
	}

	return nil
}

// Save streams r into name atomically: the data lands in a .part file
// which is renamed into place only after a successful write.
func (m *Manager) Save(r io.Reader, name string) (int64, error) {
	if name == "" || filepath.Base(name) != name {
		return 0, fmt.Errorf("invalid file name %q", name)
	}

	target := filepath.Join(m.dir, name)
	temp := target + PartSuffix

	out, err := m.fs.OpenFile(temp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	n, err := io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		_ = m.fs.Remove(temp)
		return n, fmt.Errorf("failed to write %s: %w", name, err)
	}
	if closeErr != nil {
		_ = m.fs.Remove(temp)
		return n, fmt.Errorf("failed to close %s: %w", name, closeErr)
	}

	if err := m.fs.Rename(temp, target); err != nil {
		_ = m.fs.Remove(temp)
		return n, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.stored[name] = n
	m.mu.Unlock()

	return n, nil
}

// IsStored reports whether name has been saved or was present at startup
func (m *Manager) IsStored(name string) bool {
	m.mu.RLock()
	_, ok := m.stored[name]
	m.mu.RUnlock()
	if ok {
		return true
	}

	if _, err := m.fs.Stat(filepath.Join(m.dir, name)); err == nil {
		return true
	}
	return false
}

// Path returns the full path of name inside the managed directory
func (m *Manager) Path(name string) string {
	return filepath.Join(m.dir, name)
}

// Dir returns the managed directory
func (m *Manager) Dir() string {
	return m.dir
}

// Count returns the number of known files
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stored)
}

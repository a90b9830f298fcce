package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"time"

	"github.com/spf13/afero"

	"igrelay/pkg/logger"
)

// CurrentVersion is the snapshot file format version
const CurrentVersion = 1

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Snapshot is the last observed account list of one relation of a profile
type Snapshot struct {
	Username   string    `json:"username"`
	Relation   string    `json:"relation"`
	Accounts   []string  `json:"accounts"`
	CapturedAt time.Time `json:"captured_at"`
	Version    int       `json:"version"`
}

// Manager stores snapshots as JSON files, one per username and relation
type Manager struct {
	fs     afero.Fs
	dir    string
	logger logger.Logger
}

// NewManager creates a snapshot manager rooted at dir. An empty dir selects
// the platform data directory.
func NewManager(fs afero.Fs, dir string, log logger.Logger) (*Manager, error) {
	if dir == "" {
		dataDir, err := DataDirectory()
		if err != nil {
			return nil, fmt.Errorf("failed to get data directory: %w", err)
		}
		dir = dataDir
	}
	if log == nil {
		log = logger.GetLogger()
	}

	snapshotsDir := filepath.Join(dir, "snapshots")
	if err := fs.MkdirAll(snapshotsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshots directory: %w", err)
	}

	return &Manager{
		fs:     fs,
		dir:    snapshotsDir,
		logger: log,
	}, nil
}

// Path returns the snapshot file for a username and relation
func (m *Manager) Path(username, relation string) string {
	name := fmt.Sprintf("%s.%s.json", unsafeChars.ReplaceAllString(username, "_"), unsafeChars.ReplaceAllString(relation, "_"))
	return filepath.Join(m.dir, name)
}

// Load returns the stored snapshot, or nil when none was saved yet
func (m *Manager) Load(username, relation string) (*Snapshot, error) {
	file, err := m.fs.Open(m.Path(username, relation))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	var snap Snapshot
	if err := json.NewDecoder(file).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Accounts == nil {
		snap.Accounts = []string{}
	}

	m.logger.DebugWithFields("Snapshot loaded", map[string]interface{}{
		"username":    snap.Username,
		"relation":    snap.Relation,
		"accounts":    len(snap.Accounts),
		"captured_at": snap.CapturedAt,
	})

	return &snap, nil
}

// Save replaces the stored snapshot atomically. Accounts are stored sorted.
func (m *Manager) Save(snap *Snapshot) error {
	if snap.Username == "" || snap.Relation == "" {
		return fmt.Errorf("snapshot needs a username and a relation")
	}
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = time.Now().UTC()
	}
	snap.Version = CurrentVersion
	if snap.Accounts == nil {
		snap.Accounts = []string{}
	}
	sort.Strings(snap.Accounts)

	path := m.Path(snap.Username, snap.Relation)
	tempPath := path + ".tmp"
	file, err := m.fs.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary snapshot file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snap); err != nil {
		file.Close()
		m.fs.Remove(tempPath)
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		m.fs.Remove(tempPath)
		return fmt.Errorf("failed to sync snapshot file: %w", err)
	}

	if err := file.Close(); err != nil {
		m.fs.Remove(tempPath)
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}

	if err := m.fs.Rename(tempPath, path); err != nil {
		m.fs.Remove(tempPath)
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}

	m.logger.DebugWithFields("Snapshot saved", map[string]interface{}{
		"username": snap.Username,
		"relation": snap.Relation,
		"accounts": len(snap.Accounts),
	})

	return nil
}

// Delete removes a stored snapshot
func (m *Manager) Delete(username, relation string) error {
	if err := m.fs.Remove(m.Path(username, relation)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// Exists reports whether a snapshot is stored
func (m *Manager) Exists(username, relation string) bool {
	_, err := m.fs.Stat(m.Path(username, relation))
	return err == nil
}

// DataDirectory returns the platform data directory for igrelay, creating it
// if needed
func DataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "igrelay")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "igrelay")
	default:
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "igrelay")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "igrelay")
		}
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}

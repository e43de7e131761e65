package save

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const appDirName = "mathrealm"

// ErrNotFound is returned when no document exists for a player.
var ErrNotFound = errors.New("save not found")

// LocalStore keeps one JSON document per player id in a directory.
type LocalStore struct {
	dir string
}

// NewLocalStore creates a store in dir. The directory is created on the first
// Save. Pass an empty string to use the default XDG state path.
func NewLocalStore(dir string) *LocalStore {
	if dir == "" {
		dir = DefaultDir()
	}
	return &LocalStore{dir: dir}
}

// Dir returns the directory holding the documents.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Path returns the file used for playerID.
func (s *LocalStore) Path(playerID string) (string, error) {
	if playerID == "" || strings.ContainsAny(playerID, `/\`) || playerID == "." || playerID == ".." {
		return "", fmt.Errorf("invalid player id %q", playerID)
	}
	return filepath.Join(s.dir, playerID+".json"), nil
}

// Load reads the document for playerID. A missing file returns ErrNotFound.
func (s *LocalStore) Load(playerID string) (*Document, error) {
	path, err := s.Path(playerID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading save: %w", err)
	}
	return Decode(data)
}

// Save writes doc using an atomic temp-file-then-rename.
func (s *LocalStore) Save(playerID string, doc *Document) error {
	path, err := s.Path(playerID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("creating save dir: %w", err)
	}
	data, err := Encode(doc)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".save-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming save file: %w", err)
	}
	committed = true
	return nil
}

// DefaultDir returns ~/.local/state/mathrealm, respecting XDG_STATE_HOME.
func DefaultDir() string {
	if base := os.Getenv("XDG_STATE_HOME"); base != "" {
		return filepath.Join(base, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".local", "state", appDirName)
}

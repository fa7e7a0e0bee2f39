package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrCorruptStore is returned by Load when the recall file exists but does
// not decode as Records.
var ErrCorruptStore = errors.New("memory: corrupt recall store")

// FileStore persists Records as an indented JSON file.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Load reads the recall file. A missing or empty file yields empty Records
// and no error. An unreadable or undecodable file yields empty Records and
// an error; callers log it and carry on with an empty index.
func (s *FileStore) Load() (Records, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Records{}, nil
	}
	if err != nil {
		return Records{}, fmt.Errorf("memory: read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return Records{}, nil
	}
	var recs Records
	if err := json.Unmarshal(data, &recs); err != nil {
		return Records{}, fmt.Errorf("%w: %s: %v", ErrCorruptStore, s.path, err)
	}
	if recs == nil {
		recs = Records{}
	}
	return recs, nil
}

// Save writes recs atomically: the data goes to a temporary file in the
// same directory which is then renamed over the target.
func (s *FileStore) Save(recs Records) error {
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("memory: encode records: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("memory: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("memory: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("memory: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("memory: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("memory: replace %s: %w", s.path, err)
	}
	return nil
}

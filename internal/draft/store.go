package draft

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"resumeflow/internal/errors"
	"resumeflow/internal/types"
)

const fileExt = ".json"

// Store keeps builder drafts as JSON files in one directory. Concurrent
// writers from other processes are not coordinated: the last write wins.
type Store struct {
	dir    string
	logger *errors.Logger

	mu        sync.Mutex
	ownWrites map[string]time.Time
}

type draftFile struct {
	SavedAt time.Time    `json:"savedAt"`
	Resume  types.Resume `json:"resume"`
}

// NewStore creates the draft directory if needed.
func NewStore(dir string, logger *errors.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "Draft directory is not configured", nil)
	}
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileWriteFailed, "Cannot create draft directory", err).
			WithContext("dir", dir)
	}
	return &Store{dir: dir, logger: logger, ownWrites: make(map[string]time.Time)}, nil
}

// Dir returns the directory holding the drafts.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file backing key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, filepath.Base(key)+fileExt)
}

// Load returns the draft stored under key, or nil if there is none.
func (s *Store) Load(key string) (*types.Resume, error) {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable, "Cannot read draft", err).
			WithContext("key", key)
	}

	var file draftFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeDraftCorrupt, "Saved draft is unreadable", err).
			WithContext("key", key)
	}
	file.Resume.EnsureIDs()
	return &file.Resume, nil
}

// Save replaces the draft under key. The write is atomic.
func (s *Store) Save(key string, resume types.Resume) error {
	data, err := json.MarshalIndent(draftFile{SavedAt: time.Now().UTC(), Resume: resume}, "", "  ")
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInvalidFormat, "Failed to encode draft", err)
	}

	path := s.Path(key)
	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(key)+"-*.tmp")
	if err != nil {
		return errors.NewIOError(errors.ErrCodeFileWriteFailed, "Cannot write draft", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.NewIOError(errors.ErrCodeFileWriteFailed, "Cannot write draft", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewIOError(errors.ErrCodeFileWriteFailed, "Cannot write draft", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Rename(tmpName, path); err != nil {
		return errors.NewIOError(errors.ErrCodeFileWriteFailed, "Cannot write draft", err)
	}
	if info, err := os.Stat(path); err == nil {
		s.ownWrites[path] = info.ModTime()
	}
	s.logger.Debug("Draft saved", "key", key, "bytes", len(data))
	return nil
}

// Clear removes the draft under key. Clearing a missing draft is not an error.
func (s *Store) Clear(key string) error {
	path := s.Path(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ownWrites, path)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.NewIOError(errors.ErrCodeFileWriteFailed, "Cannot clear draft", err).
			WithContext("key", key)
	}
	s.logger.Debug("Draft cleared", "key", key)
	return nil
}

// Exists reports whether a draft is stored under key.
func (s *Store) Exists(key string) bool {
	info, err := os.Stat(s.Path(key))
	return err == nil && !info.IsDir()
}

// wroteLast reports whether the file at path still carries this store's last write.
func (s *Store) wroteLast(path string, modTime time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	own, ok := s.ownWrites[path]
	return ok && own.Equal(modTime)
}

func (s *Store) String() string {
	return fmt.Sprintf("draft.Store(%s)", s.dir)
}

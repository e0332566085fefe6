// Package storage persists the voice session form record.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/keranlabs/keran/domain/entities"
	"github.com/keranlabs/keran/domain/repositories"
)

// FileSessionStore keeps one voice session record per user as a JSON file
// under the state directory
type FileSessionStore struct {
	dir    string
	logger *zap.Logger
	mu     sync.Mutex
}

var _ repositories.SessionStore = (*FileSessionStore)(nil)

// NewFileSessionStore creates a store rooted at dir, creating it when
// missing. An empty dir means the working directory.
func NewFileSessionStore(dir string, logger *zap.Logger) (*FileSessionStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileSessionStore{
		dir:    dir,
		logger: logger,
	}, nil
}

// path returns the record file for userID. User IDs come from validated
// tokens but may carry characters unfit for file names, so everything
// outside [A-Za-z0-9._-] is replaced.
func (s *FileSessionStore) path(userID string) string {
	if userID == "" {
		userID = "default"
	}
	key := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '_' || r == '-':
			return r
		default:
			return '_'
		}
	}, userID)
	return filepath.Join(s.dir, "voice_session_"+key+".json")
}

// Load restores the persisted record for userID. A missing or unreadable
// record falls back to the all-empty default without error.
func (s *FileSessionStore) Load(userID string) (*entities.VoiceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(userID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entities.NewVoiceSession(), nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	session := entities.NewVoiceSession()
	if err := json.Unmarshal(data, session); err != nil {
		s.logger.Warn("discarding unreadable session record",
			zap.String("userID", userID), zap.Error(err))
		return entities.NewVoiceSession(), nil
	}
	return session, nil
}

// Save serializes the record, replacing any previous one atomically
func (s *FileSessionStore) Save(userID string, session *entities.VoiceSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	path := s.path(userID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// Clear removes the persisted record. Clearing an absent record is a no-op.
func (s *FileSessionStore) Clear(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(userID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

package usecase

import (
	"sync"

	"go.uber.org/zap"

	"github.com/keranlabs/keran/domain/entities"
	"github.com/keranlabs/keran/domain/repositories"
)

// VoiceSessionService owns the per-user form records shared across the voice
// flow pages. Each user's record lives in memory, restored from the store on
// first touch, and is only written back on an explicit SaveSession; ResetForm
// clears both the record and the persisted copy. It is the single owner of
// the records; pages mutate them only through UpdateField.
type VoiceSessionService struct {
	store  repositories.SessionStore
	logger *zap.Logger

	mu      sync.Mutex
	records map[string]*entities.VoiceSession
}

// NewVoiceSessionService creates the service. Records are restored lazily,
// one per user, on first access.
func NewVoiceSessionService(store repositories.SessionStore, logger *zap.Logger) *VoiceSessionService {
	return &VoiceSessionService{
		store:   store,
		logger:  logger,
		records: make(map[string]*entities.VoiceSession),
	}
}

// record returns the user's live record, restoring the persisted copy on
// first access. Callers must hold s.mu.
func (s *VoiceSessionService) record(userID string) *entities.VoiceSession {
	if current, ok := s.records[userID]; ok {
		return current
	}
	current, err := s.store.Load(userID)
	if err != nil {
		s.logger.Warn("voice session restore failed, starting empty",
			zap.String("userID", userID), zap.Error(err))
		current = entities.NewVoiceSession()
	}
	if current == nil {
		current = entities.NewVoiceSession()
	}
	s.records[userID] = current
	return current
}

// UpdateField merges a single field update into the user's record. It does
// not persist; callers decide when to SaveSession.
func (s *VoiceSessionService) UpdateField(userID, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record(userID).SetField(name, value)
}

// Snapshot returns a copy of the user's current record
func (s *VoiceSessionService) Snapshot(userID string) entities.VoiceSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.record(userID)
}

// SaveSession serializes the user's full current record to the store
func (s *VoiceSessionService) SaveSession(userID string) error {
	s.mu.Lock()
	record := *s.record(userID)
	s.mu.Unlock()

	if err := s.store.Save(userID, &record); err != nil {
		s.logger.Error("voice session save failed",
			zap.String("userID", userID), zap.Error(err))
		return err
	}
	return nil
}

// ResetForm restores the user's fields to empty and removes the persisted
// record
func (s *VoiceSessionService) ResetForm(userID string) error {
	s.mu.Lock()
	s.records[userID] = entities.NewVoiceSession()
	s.mu.Unlock()

	if err := s.store.Clear(userID); err != nil {
		s.logger.Error("voice session clear failed",
			zap.String("userID", userID), zap.Error(err))
		return err
	}
	return nil
}

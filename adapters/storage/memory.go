package storage

import (
	"context"
	"sync"

	"github.com/keranlabs/keran/domain/entities"
	"github.com/keranlabs/keran/domain/repositories"
)

// MemorySessionStore is an in-memory SessionStore. Suitable for tests and
// for deployments that do not want form records surviving a restart.
type MemorySessionStore struct {
	mu      sync.RWMutex
	records map[string]*entities.VoiceSession
}

var _ repositories.SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates an empty in-memory store
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{records: make(map[string]*entities.VoiceSession)}
}

// Load returns a copy of the user's stored record, or the all-empty default
func (m *MemorySessionStore) Load(userID string) (*entities.VoiceSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.records[userID]
	if !ok {
		return entities.NewVoiceSession(), nil
	}
	record := *stored
	return &record, nil
}

// Save stores a copy of the user's record
func (m *MemorySessionStore) Save(userID string, session *entities.VoiceSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record := *session
	m.records[userID] = &record
	return nil
}

// Clear drops the user's stored record
func (m *MemorySessionStore) Clear(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, userID)
	return nil
}

// MemoryTranscriptArchive is an in-memory TranscriptArchive for tests and
// archive-less deployments
type MemoryTranscriptArchive struct {
	mu          sync.RWMutex
	transcripts []*entities.Transcript
}

var _ repositories.TranscriptArchive = (*MemoryTranscriptArchive)(nil)

// NewMemoryTranscriptArchive creates an empty in-memory archive
func NewMemoryTranscriptArchive() *MemoryTranscriptArchive {
	return &MemoryTranscriptArchive{}
}

// Create appends a transcript to the archive
func (m *MemoryTranscriptArchive) Create(ctx context.Context, transcript *entities.Transcript) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcripts = append(m.transcripts, transcript)
	return nil
}

// ListRecent returns up to limit transcripts, newest first
func (m *MemoryTranscriptArchive) ListRecent(ctx context.Context, limit int) ([]*entities.Transcript, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*entities.Transcript, 0, limit)
	for i := len(m.transcripts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.transcripts[i])
	}
	return out, nil
}

package repositories

import (
	"context"

	"github.com/keranlabs/keran/domain/entities"
)

// SessionStore persists one voice session form record per user. Load
// returns the all-empty default when nothing was persisted for that user yet.
type SessionStore interface {
	Load(userID string) (*entities.VoiceSession, error)
	Save(userID string, session *entities.VoiceSession) error
	Clear(userID string) error
}

// TranscriptArchive persists completed conversation transcripts for the
// conversation-history surface
type TranscriptArchive interface {
	Create(ctx context.Context, transcript *entities.Transcript) error
	ListRecent(ctx context.Context, limit int) ([]*entities.Transcript, error)
}

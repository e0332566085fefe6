package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/keranlabs/keran/domain/entities"
	"github.com/keranlabs/keran/domain/repositories"
)

// TranscriptRepository archives conversation transcripts in MongoDB
type TranscriptRepository struct {
	collection *mongo.Collection
}

var _ repositories.TranscriptArchive = (*TranscriptRepository)(nil)

// NewTranscriptRepository creates a MongoDB transcript archive
func NewTranscriptRepository(db *mongo.Database) *TranscriptRepository {
	return &TranscriptRepository{
		collection: db.Collection("transcripts"),
	}
}

// Create persists one completed transcript
func (r *TranscriptRepository) Create(ctx context.Context, transcript *entities.Transcript) error {
	if transcript == nil {
		return errors.New("transcript cannot be nil")
	}

	doc := bson.M{
		"_id":        transcript.ID,
		"created_at": transcript.CreatedAt,
		"language":   transcript.Language,
		"turns":      transcript.Turns,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to archive transcript: %w", err)
	}
	return nil
}

// ListRecent returns up to limit archived transcripts, newest first
func (r *TranscriptRepository) ListRecent(ctx context.Context, limit int) ([]*entities.Transcript, error) {
	if limit <= 0 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer cursor.Close(ctx)

	var transcripts []*entities.Transcript
	if err := cursor.All(ctx, &transcripts); err != nil {
		return nil, fmt.Errorf("failed to decode transcripts: %w", err)
	}
	return transcripts, nil
}

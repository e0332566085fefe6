package entities

import (
	"time"

	"github.com/google/uuid"
)

// Role tags the sender of a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleFeedback  Role = "feedback"
)

// Evaluation is the structured feedback attached to a feedback turn
type Evaluation struct {
	ContentScore      int      `json:"content_score" bson:"content_score"`
	PresentationScore int      `json:"presentation_score" bson:"presentation_score"`
	ConfidenceScore   *int     `json:"confidence_score,omitempty" bson:"confidence_score,omitempty"`
	Emotion           *string  `json:"emotion,omitempty" bson:"emotion,omitempty"`
	Feedback          string   `json:"feedback" bson:"feedback"`
	Tips              []string `json:"tips,omitempty" bson:"tips,omitempty"`
	ModelAnswer       string   `json:"model_answer,omitempty" bson:"model_answer,omitempty"`
}

// Turn is a single entry in a conversation transcript
type Turn struct {
	Timestamp  time.Time   `json:"timestamp" bson:"timestamp"`
	Role       Role        `json:"role" bson:"role"`
	Content    string      `json:"content" bson:"content"`
	Evaluation *Evaluation `json:"evaluation,omitempty" bson:"evaluation,omitempty"`
}

// Transcript is the append-only ordered record of one conversational session.
// It is reset, never rewritten, when a new session, language, or mode starts.
type Transcript struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	Language  string    `json:"language" bson:"language"`
	Turns     []Turn    `json:"turns" bson:"turns"`
}

// NewTranscript creates an empty transcript for a session in the given language
func NewTranscript(language string) *Transcript {
	return &Transcript{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Language:  language,
		Turns:     make([]Turn, 0),
	}
}

// Append adds a plain-content turn and returns it
func (t *Transcript) Append(role Role, content string) Turn {
	turn := Turn{
		Timestamp: time.Now(),
		Role:      role,
		Content:   content,
	}
	t.Turns = append(t.Turns, turn)
	return turn
}

// AppendFeedback adds a feedback turn carrying a structured evaluation
func (t *Transcript) AppendFeedback(eval Evaluation) Turn {
	turn := Turn{
		Timestamp:  time.Now(),
		Role:       RoleFeedback,
		Content:    eval.Feedback,
		Evaluation: &eval,
	}
	t.Turns = append(t.Turns, turn)
	return turn
}

// Reset discards all turns and assigns a fresh session identity
func (t *Transcript) Reset(language string) {
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now()
	t.Language = language
	t.Turns = t.Turns[:0]
}

// Last returns the most recent turn, or false when the transcript is empty
func (t *Transcript) Last() (Turn, bool) {
	if len(t.Turns) == 0 {
		return Turn{}, false
	}
	return t.Turns[len(t.Turns)-1], true
}

package repositories

import (
	"context"
	"errors"

	"github.com/keranlabs/keran/domain/entities"
)

// ErrBadCredentials reports a login the portal rejected.
var ErrBadCredentials = errors.New("bad credentials")

// Question is one interview question handed out by the portal backend
type Question struct {
	Text       string `json:"question"`
	Difficulty int    `json:"difficulty,omitempty"`
}

// AnswerSubmission carries one answered question back to the portal backend
type AnswerSubmission struct {
	Role              string                 `json:"role"`
	Question          string                 `json:"question"`
	Answer            string                 `json:"answer"`
	Code              string                 `json:"code,omitempty"`
	Mode              entities.InterviewMode `json:"mode"`
	Language          string                 `json:"language"`
	CurrentDifficulty int                    `json:"current_difficulty"`
}

// SubmissionResult is the evaluation plus the follow-up question
type SubmissionResult struct {
	Evaluation   entities.Evaluation `json:"evaluation"`
	NextQuestion Question            `json:"next_question"`
}

// InterviewBackend is the remote turn-based interview API
type InterviewBackend interface {
	StartInterview(ctx context.Context, config entities.InterviewConfig) (Question, error)
	SubmitAnswer(ctx context.Context, submission AnswerSubmission) (SubmissionResult, error)
}

// ChatBackend is the remote assistant the chat widget talks to
type ChatBackend interface {
	// SendMessage posts one user message with its page context and returns
	// the assistant's raw reply text.
	SendMessage(ctx context.Context, message, pageContext string) (string, error)
}

// Identity is an authenticated portal user together with the portal access
// token issued for them.
type Identity struct {
	Token    string
	Role     string
	Name     string
	Email    string
	ImageURL string
}

// AuthBackend verifies portal user credentials. ErrBadCredentials
// distinguishes a rejected login from a failed one.
type AuthBackend interface {
	Login(ctx context.Context, email, password string) (*Identity, error)
}

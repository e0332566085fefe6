package llm

import (
	"context"
	"sync"

	"github.com/keranlabs/keran/domain/repositories"
)

// ChatAssistant exposes a LargeLanguageModel as a ChatBackend so the chat
// controller can run against Gemini directly when no portal backend is
// configured. One session is kept per assistant and created lazily.
type ChatAssistant struct {
	model repositories.LargeLanguageModel

	mu      sync.Mutex
	session repositories.ChatSession
}

var _ repositories.ChatBackend = (*ChatAssistant)(nil)

// NewChatAssistant wraps model as a chat backend
func NewChatAssistant(model repositories.LargeLanguageModel) *ChatAssistant {
	return &ChatAssistant{model: model}
}

// SendMessage forwards one user message; the page context travels as a
// system message preceding it
func (a *ChatAssistant) SendMessage(ctx context.Context, message, pageContext string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		session, err := a.model.GenerateChat(ctx, nil)
		if err != nil {
			return "", err
		}
		a.session = session
	}

	if pageContext != "" {
		message = pageContext + "\n\n" + message
	}

	reply, err := a.session.SendMessage(ctx, repositories.ChatMessage{
		Role:    repositories.UserRole,
		Content: message,
	})
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

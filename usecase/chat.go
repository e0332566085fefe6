package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/keranlabs/keran/domain/entities"
	"github.com/keranlabs/keran/domain/repositories"
)

// Per-language assistant greetings and connection-failure apologies
var (
	chatGreetings = map[string]string{
		"English":   "Hello! I am Keran, your AI assistant. How can I help you today?",
		"Tamil":     "வணக்கம்! நான் கேரன், உங்கள் AI உதவியாளர். நான் இன்று உங்களுக்கு எவ்வாறு உதவ முடியும்?",
		"Malayalam": "നമസ്കാരം! ഞാൻ കേരൻ, നിങ്ങളുടെ AI സഹായിയാണ്. ഇന്ന് എനിക്ക് നിങ്ങളെ എങ്ങനെ സഹായിക്കാനാകും?",
	}
	chatApologies = map[string]string{
		"English":   "I apologize, but I am having trouble connecting right now.",
		"Tamil":     "மன்னிக்கவும், என்னால் இப்போது இணைக்க முடியவில்லை.",
		"Malayalam": "ക്ഷമിക്കണം, എനിക്ക് ഇപ്പോൾ കണക്ട് ചെയ്യാൻ കഴിയുന്നില്ല.",
	}
)

// Assistant replies may carry model thinking tags, leftover markup, and
// markdown emphasis, none of which should be displayed or spoken.
var (
	thinkTagPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)
	markupPattern   = regexp.MustCompile(`(?s)<.*?>`)
	markdownPattern = regexp.MustCompile("[#*`_~]")
)

// SanitizeReply strips thinking tags, markup, and markdown emphasis from a
// raw assistant reply
func SanitizeReply(raw string) string {
	clean := thinkTagPattern.ReplaceAllString(raw, "")
	clean = markupPattern.ReplaceAllString(clean, "")
	clean = markdownPattern.ReplaceAllString(clean, "")
	return strings.TrimSpace(clean)
}

// ChatOption configures a ChatController
type ChatOption func(*ChatController)

// WithChatTurnListener registers a listener invoked for every appended turn
func WithChatTurnListener(fn func(entities.Turn)) ChatOption {
	return func(c *ChatController) {
		c.onTurn = fn
	}
}

// WithChatArchive persists chat transcripts to the archive when the language
// changes or the widget closes
func WithChatArchive(archive repositories.TranscriptArchive) ChatOption {
	return func(c *ChatController) {
		c.archive = archive
	}
}

// ChatController orchestrates the assistant chat widget: voice or typed input
// goes to the remote chat backend, sanitized replies come back into the
// transcript and are read aloud unless muted. One message is in flight at a
// time.
type ChatController struct {
	backend    repositories.ChatBackend
	speaker    *Speaker
	recognizer *Recognizer
	archive    repositories.TranscriptArchive
	logger     *zap.Logger
	onTurn     func(entities.Turn)

	mu         sync.Mutex
	language   string
	transcript *entities.Transcript
	loading    bool
	muted      bool
}

// NewChatController creates a chat controller greeting in the given language
func NewChatController(
	backend repositories.ChatBackend,
	speaker *Speaker,
	recognizer *Recognizer,
	language string,
	logger *zap.Logger,
	opts ...ChatOption,
) *ChatController {
	if _, ok := chatGreetings[language]; !ok {
		language = "English"
	}
	c := &ChatController{
		backend:    backend,
		speaker:    speaker,
		recognizer: recognizer,
		logger:     logger,
		language:   language,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.transcript = entities.NewTranscript(language)
	c.append(entities.RoleAssistant, chatGreetings[language])
	return c
}

// SetLanguage switches the assistant language. The transcript is reset and a
// fresh greeting appended; the previous transcript is archived when an
// archive is configured.
func (c *ChatController) SetLanguage(ctx context.Context, language string) {
	if _, ok := chatGreetings[language]; !ok {
		return
	}

	c.mu.Lock()
	if language == c.language {
		c.mu.Unlock()
		return
	}
	previous := c.transcript
	c.language = language
	c.transcript = entities.NewTranscript(language)
	c.mu.Unlock()

	if c.speaker != nil {
		c.speaker.Cancel()
	}
	c.archiveTranscript(ctx, previous)
	c.append(entities.RoleAssistant, chatGreetings[language])
}

// Send posts one user message with the portal page context. Empty input and
// sends while a reply is pending are rejected before any network call. A
// backend failure appends a per-language apology and returns the error.
func (c *ChatController) Send(ctx context.Context, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return ErrEmptyInput
	}

	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	c.loading = true
	language := c.language
	c.mu.Unlock()

	if c.recognizer != nil && c.recognizer.IsListening() {
		c.recognizer.StopListening()
	}

	c.append(entities.RoleUser, message)
	if c.recognizer != nil {
		c.recognizer.SetTranscript("")
	}

	pageContext := fmt.Sprintf(
		"The user is browsing the government scheme portal. The user has selected the language: %s. Please respond strictly in %s.",
		language, language)

	reply, err := c.backend.SendMessage(ctx, message, pageContext)

	c.mu.Lock()
	c.loading = false
	muted := c.muted
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("chat send failed", zap.Error(err))
		c.append(entities.RoleAssistant, chatApologies[language])
		return err
	}

	clean := SanitizeReply(reply)
	c.append(entities.RoleAssistant, clean)

	if !muted && c.speaker != nil {
		c.speaker.Speak(ctx, clean, nil, entities.LanguageTag(language))
	}
	return nil
}

// SetMuted toggles read-aloud. Muting cancels any utterance in flight.
func (c *ChatController) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	c.mu.Unlock()

	if muted && c.speaker != nil {
		c.speaker.Cancel()
	}
}

// IsMuted reports whether replies are read aloud
func (c *ChatController) IsMuted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// IsLoading reports whether a message is in flight
func (c *ChatController) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Language returns the active assistant language
func (c *ChatController) Language() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.language
}

// Turns returns a copy of the transcript so far
func (c *ChatController) Turns() []entities.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	turns := make([]entities.Turn, len(c.transcript.Turns))
	copy(turns, c.transcript.Turns)
	return turns
}

// Close cancels speech and archives the transcript
func (c *ChatController) Close(ctx context.Context) {
	if c.speaker != nil {
		c.speaker.Cancel()
	}
	if c.recognizer != nil {
		c.recognizer.StopListening()
	}

	c.mu.Lock()
	transcript := c.transcript
	c.mu.Unlock()
	c.archiveTranscript(ctx, transcript)
}

func (c *ChatController) archiveTranscript(ctx context.Context, transcript *entities.Transcript) {
	if c.archive == nil || transcript == nil {
		return
	}
	// Greeting-only transcripts carry no conversation worth keeping.
	if len(transcript.Turns) <= 1 {
		return
	}
	if err := c.archive.Create(ctx, transcript); err != nil {
		c.logger.Error("chat transcript archive failed", zap.Error(err))
	}
}

func (c *ChatController) append(role entities.Role, content string) {
	c.mu.Lock()
	turn := c.transcript.Append(role, content)
	listener := c.onTurn
	c.mu.Unlock()

	if listener != nil {
		listener(turn)
	}
}

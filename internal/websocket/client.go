package websocket

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/keranlabs/keran/domain/entities"
	"github.com/keranlabs/keran/domain/repositories"
)

// backendTimeout bounds one chat or interview round trip, including the
// model behind it.
const backendTimeout = 60 * time.Second

// processMessage dispatches one incoming text frame
func (c *Client) processMessage(raw []byte) {
	msg, err := DecodeMessage(raw)
	if err != nil {
		c.logger.Warn("rejected frame", zap.Error(err))
		c.sendError("bad_message", err.Error())
		return
	}

	switch m := msg.(type) {
	case *ListeningStartMessage:
		c.handleListeningStart(m)
	case *SpeakMessage:
		c.handleSpeak(m)
	case *ChatMessage:
		c.handleChatMessage(m)
	case *ChatLanguageMessage:
		ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
		defer cancel()
		c.chat.SetLanguage(ctx, m.Language)
	case *ChatMuteMessage:
		c.chat.SetMuted(m.Muted)
	case *InterviewStartMessage:
		c.handleInterviewStart(m)
	case *InterviewAnswerMessage:
		c.handleInterviewAnswer(m)
	case *FieldUpdateMessage:
		c.handleFieldUpdate(m)
	case *FieldFocusMessage:
		c.handleFieldFocus(m)
	case *BaseMessage:
		c.handleControl(m.Type)
	}
}

// processAudioFrame forwards captured audio to the active recognition
// session. Frames arriving while idle are dropped by the recognizer.
func (c *Client) processAudioFrame(data []byte) {
	if err := c.recognizer.Feed(data); err != nil {
		c.logger.Error("failed to feed audio frame", zap.Error(err))
		c.sendError("audio_failed", "failed to process audio")
	}
}

func (c *Client) handleControl(t MessageType) {
	switch t {
	case MessageTypeListeningEnd:
		c.recognizer.StopListening()
	case MessageTypeSpeakCancel:
		c.speaker.Cancel()
		if c.hub.deps.Metrics != nil {
			c.hub.deps.Metrics.RecordUtterance(context.Background(), "canceled")
		}
	case MessageTypeInterviewEnd:
		if c.interview == nil {
			c.sendError("interview_unavailable", "interview backend is not configured")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
		defer cancel()
		if err := c.interview.EndSession(ctx); err != nil {
			c.sendError("interview_failed", err.Error())
		}
	case MessageTypeSessionSave:
		if err := c.sessions.SaveSession(c.userID); err != nil {
			c.sendError("session_failed", "failed to save session")
			return
		}
		c.emitSessionState()
	case MessageTypeSessionReset:
		if err := c.sessions.ResetForm(c.userID); err != nil {
			c.sendError("session_failed", "failed to reset session")
			return
		}
		c.emitSessionState()
	case MessageTypePing:
		c.sendJSON(&BaseMessage{Type: MessageTypePong, Timestamp: time.Now().Format(time.RFC3339)})
	}
}

func (c *Client) handleListeningStart(m *ListeningStartMessage) {
	if !c.recognizer.Supported() {
		c.sendError("recognition_unavailable", "speech recognition is not configured")
		return
	}
	if m.Mode == "continuous" {
		c.recognizer.SetCaptureMode(repositories.CaptureContinuous)
	} else {
		c.recognizer.SetCaptureMode(repositories.CaptureSingleShot)
	}
	language := m.Language
	if language == "" {
		language = c.hub.deps.DefaultLanguage
	}
	c.recognizer.StartListening(context.Background(), language)
}

func (c *Client) handleSpeak(m *SpeakMessage) {
	if m.Text == "" {
		c.sendError("bad_message", "speak requires text")
		return
	}
	if !c.speaker.Supported() {
		c.sendError("synthesis_unavailable", "speech synthesis is not configured")
		return
	}
	started := time.Now()
	c.speaker.Speak(context.Background(), m.Text, func() {
		c.sendJSON(&BaseMessage{Type: MessageTypeUtteranceDone, Timestamp: time.Now().Format(time.RFC3339)})
		if c.hub.deps.Metrics != nil {
			c.hub.deps.Metrics.RecordUtterance(context.Background(), "complete")
			c.hub.deps.Metrics.SynthesisDuration.Record(context.Background(), time.Since(started).Seconds())
		}
	}, m.Language)
}

func (c *Client) handleChatMessage(m *ChatMessage) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
		defer cancel()
		if err := c.chat.Send(ctx, m.Message); err != nil {
			c.sendError("chat_rejected", err.Error())
		}
	}()
}

func (c *Client) handleInterviewStart(m *InterviewStartMessage) {
	if c.interview == nil {
		c.sendError("interview_unavailable", "interview backend is not configured")
		return
	}
	mode := entities.ModePractice
	if m.Mode == string(entities.ModeInterview) {
		mode = entities.ModeInterview
	}
	config := entities.InterviewConfig{
		Role:       m.Role,
		Mode:       mode,
		Language:   m.Language,
		Difficulty: m.Difficulty,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
		defer cancel()
		if err := c.interview.StartSession(ctx, config); err != nil {
			c.sendError("interview_failed", err.Error())
		}
	}()
}

func (c *Client) handleInterviewAnswer(m *InterviewAnswerMessage) {
	if c.interview == nil {
		c.sendError("interview_unavailable", "interview backend is not configured")
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
		defer cancel()
		if err := c.interview.Submit(ctx, m.Answer, m.Code); err != nil {
			c.sendError("interview_rejected", err.Error())
		}
	}()
}

func (c *Client) handleFieldFocus(m *FieldFocusMessage) {
	if m.Field != "" && !entities.IsVoiceSessionField(m.Field) {
		c.sendError("bad_field", "unknown field: "+m.Field)
		return
	}
	c.fieldMu.Lock()
	c.activeField = m.Field
	c.fieldMu.Unlock()
}

func (c *Client) handleFieldUpdate(m *FieldUpdateMessage) {
	if err := c.sessions.UpdateField(c.userID, m.Field, m.Value); err != nil {
		c.sendError("bad_field", err.Error())
		return
	}
	c.emitSessionState()
}

func (c *Client) emitSessionState() {
	c.sendJSON(&SessionStateMessage{
		BaseMessage: newBase(MessageTypeSessionState),
		Session:     c.sessions.Snapshot(c.userID),
	})
}

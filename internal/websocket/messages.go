package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/keranlabs/keran/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Client-to-server message types
const (
	MessageTypeListeningStart  MessageType = "listening_start"
	MessageTypeListeningEnd    MessageType = "listening_end"
	MessageTypeSpeak           MessageType = "speak"
	MessageTypeSpeakCancel     MessageType = "speak_cancel"
	MessageTypeChatMessage     MessageType = "chat_message"
	MessageTypeChatLanguage    MessageType = "chat_language"
	MessageTypeChatMute        MessageType = "chat_mute"
	MessageTypeInterviewStart  MessageType = "interview_start"
	MessageTypeInterviewAnswer MessageType = "interview_answer"
	MessageTypeInterviewEnd    MessageType = "interview_end"
	MessageTypeFieldUpdate     MessageType = "field_update"
	MessageTypeFieldFocus      MessageType = "field_focus"
	MessageTypeSessionSave     MessageType = "session_save"
	MessageTypeSessionReset    MessageType = "session_reset"
	MessageTypePing            MessageType = "ping"
)

// Server-to-client message types
const (
	MessageTypeTranscript    MessageType = "transcript"
	MessageTypeSpeakingStart MessageType = "speaking_start"
	MessageTypeSpeakingEnd   MessageType = "speaking_end"
	MessageTypeUtteranceDone MessageType = "utterance_complete"
	MessageTypeTurn          MessageType = "turn"
	MessageTypeDifficulty    MessageType = "difficulty"
	MessageTypeSessionState  MessageType = "session_state"
	MessageTypeError         MessageType = "error"
	MessageTypePong          MessageType = "pong"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// ListeningStartMessage begins an audio capture session. Binary frames that
// follow carry the microphone audio until listening_end.
type ListeningStartMessage struct {
	BaseMessage
	Language string `json:"language,omitempty"`
	Mode     string `json:"mode,omitempty"` // "single_shot" or "continuous"
}

// SpeakMessage requests synthesis of text; audio comes back as binary frames
// between speaking_start and speaking_end.
type SpeakMessage struct {
	BaseMessage
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// ChatMessage carries one user message for the assistant widget
type ChatMessage struct {
	BaseMessage
	Message string `json:"message"`
}

// ChatLanguageMessage switches the assistant language
type ChatLanguageMessage struct {
	BaseMessage
	Language string `json:"language"`
}

// ChatMuteMessage toggles spoken replies
type ChatMuteMessage struct {
	BaseMessage
	Muted bool `json:"muted"`
}

// InterviewStartMessage begins an interview session
type InterviewStartMessage struct {
	BaseMessage
	Role       string `json:"role"`
	Mode       string `json:"mode,omitempty"` // "practice" or "interview"
	Language   string `json:"language,omitempty"`
	Difficulty int    `json:"difficulty,omitempty"`
}

// InterviewAnswerMessage submits one answer, optionally with a code solution
type InterviewAnswerMessage struct {
	BaseMessage
	Answer string `json:"answer"`
	Code   string `json:"code,omitempty"`
}

// FieldUpdateMessage sets one voice session form field
type FieldUpdateMessage struct {
	BaseMessage
	Field string `json:"field"`
	Value string `json:"value"`
}

// FieldFocusMessage marks one form field as the capture target: finalized
// transcripts are routed into it until the focus changes. An empty field
// clears the association.
type FieldFocusMessage struct {
	BaseMessage
	Field string `json:"field"`
}

// TranscriptMessage streams live recognition results to the client. Text is
// the accumulated transcript, Preview the in-flight interim fragment.
type TranscriptMessage struct {
	BaseMessage
	Text    string `json:"text"`
	Preview string `json:"preview,omitempty"`
	Final   bool   `json:"final"`
}

// TurnMessage delivers one appended conversation turn. Source distinguishes
// the chat widget from the interview page.
type TurnMessage struct {
	BaseMessage
	Source     string               `json:"source"` // "chat" or "interview"
	Role       string               `json:"role"`
	Content    string               `json:"content"`
	Evaluation *entities.Evaluation `json:"evaluation,omitempty"`
}

// DifficultyMessage reports an adaptive difficulty change
type DifficultyMessage struct {
	BaseMessage
	Level int `json:"level"`
}

// SessionStateMessage carries the current voice session form snapshot
type SessionStateMessage struct {
	BaseMessage
	Session entities.VoiceSession `json:"session"`
}

// ErrorMessage reports a failed operation to the client
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// DecodeMessage parses an incoming text frame into its typed message. The
// returned value is a pointer to one of the message structs above.
func DecodeMessage(raw []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(raw, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON frame: %w", err)
	}

	decode := func(dst interface{}) (interface{}, error) {
		if err := json.Unmarshal(raw, dst); err != nil {
			return nil, fmt.Errorf("invalid %s message: %w", base.Type, err)
		}
		return dst, nil
	}

	switch base.Type {
	case MessageTypeListeningStart:
		return decode(&ListeningStartMessage{})
	case MessageTypeSpeak:
		return decode(&SpeakMessage{})
	case MessageTypeChatMessage:
		return decode(&ChatMessage{})
	case MessageTypeChatLanguage:
		return decode(&ChatLanguageMessage{})
	case MessageTypeChatMute:
		return decode(&ChatMuteMessage{})
	case MessageTypeInterviewStart:
		return decode(&InterviewStartMessage{})
	case MessageTypeInterviewAnswer:
		return decode(&InterviewAnswerMessage{})
	case MessageTypeFieldUpdate:
		return decode(&FieldUpdateMessage{})
	case MessageTypeFieldFocus:
		return decode(&FieldFocusMessage{})
	case MessageTypeListeningEnd, MessageTypeSpeakCancel, MessageTypeInterviewEnd,
		MessageTypeSessionSave, MessageTypeSessionReset, MessageTypePing:
		return &base, nil
	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{
		Type:      t,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// NewErrorMessage creates a standardized error message
func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError),
		Code:        code,
		Message:     message,
	}
}

// NewTranscriptMessage creates a transcript update
func NewTranscriptMessage(text, preview string, final bool) *TranscriptMessage {
	return &TranscriptMessage{
		BaseMessage: newBase(MessageTypeTranscript),
		Text:        text,
		Preview:     preview,
		Final:       final,
	}
}

// NewTurnMessage creates a conversation turn event
func NewTurnMessage(source string, turn entities.Turn) *TurnMessage {
	return &TurnMessage{
		BaseMessage: newBase(MessageTypeTurn),
		Source:      source,
		Role:        string(turn.Role),
		Content:     turn.Content,
		Evaluation:  turn.Evaluation,
	}
}

// Package websocket carries the gateway's realtime protocol: clients stream
// microphone audio up as binary frames and receive transcripts, synthesized
// speech, and conversation events back.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/keranlabs/keran/domain/entities"
	"github.com/keranlabs/keran/domain/repositories"
	"github.com/keranlabs/keran/internal/metrics"
	"github.com/keranlabs/keran/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio frames
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Dependencies bundles everything a connected client needs. Recognizer,
// Synthesizer, Interview, and Archive may be nil; the affected surface then
// degrades the way the controllers document.
type Dependencies struct {
	Recognizer  repositories.SpeechRecognizer
	Synthesizer repositories.SpeechSynthesizer
	Interview   repositories.InterviewBackend
	Chat        repositories.ChatBackend
	Sessions    *usecase.VoiceSessionService
	Archive     repositories.TranscriptArchive
	Metrics     *metrics.Metrics

	DefaultLanguage   string
	SampleRate        int
	VoicePreferences  []string
	PracticeDelay     time.Duration
	StrictDelay       time.Duration
	DefaultDifficulty int
}

// Hub maintains the set of active clients.
type Hub struct {
	// Registered clients by connection ID.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	mu sync.RWMutex

	deps   Dependencies
	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(deps Dependencies, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deps:       deps,
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			if h.deps.Metrics != nil {
				h.deps.Metrics.ActiveClients.Add(context.Background(), 1)
			}
			h.logger.Info("client registered",
				zap.String("clientID", client.id),
				zap.String("userID", client.userID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			if h.deps.Metrics != nil {
				h.deps.Metrics.ActiveClients.Add(context.Background(), -1)
			}
			h.logger.Info("client unregistered",
				zap.String("clientID", client.id),
				zap.String("userID", client.userID))
		}
	}
}

// ClientCount reports the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// WriteData is one outbound websocket frame.
type WriteData struct {
	// Type is websocket.TextMessage or websocket.BinaryMessage.
	Type    int
	Payload []byte
}

// Client is a middleman between one websocket connection and the voice
// controllers serving it. Each connection owns its own recognizer, speaker,
// chat, and interview controllers; the voice session form is shared.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	id     string
	userID string

	// activeField is the form field finalized transcripts are routed into.
	// Written from the read pump, read from the recognizer's event goroutine.
	fieldMu     sync.Mutex
	activeField string

	logger *zap.Logger

	recognizer *usecase.Recognizer
	speaker    *usecase.Speaker
	chat       *usecase.ChatController
	interview  *usecase.InterviewController
	sessions   *usecase.VoiceSessionService
}

// Serve upgrades the request and runs the connection until it closes. userID
// comes from the already-validated access token.
func Serve(hub *Hub, c echo.Context, userID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("websocket upgrade failed", zap.Error(err))
		return err
	}

	client := newClient(hub, conn, userID, logger)
	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

func newClient(hub *Hub, conn *websocket.Conn, userID string, logger *zap.Logger) *Client {
	c := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan WriteData, 256),
		id:       uuid.NewString(),
		userID:   userID,
		logger:   logger,
		sessions: hub.deps.Sessions,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	speakerOpts := []usecase.SpeakerOption{
		usecase.WithSpeakingListener(c.emitSpeaking),
	}
	if len(hub.deps.VoicePreferences) > 0 {
		speakerOpts = append(speakerOpts, usecase.WithVoicePreferences(hub.deps.VoicePreferences))
	}
	c.speaker = usecase.NewSpeaker(ctx, hub.deps.Synthesizer, clientSink{c}, logger, speakerOpts...)

	recognizerOpts := []usecase.RecognizerOption{
		usecase.WithTranscriptListener(c.emitTranscript),
		usecase.WithAudioFormat(hub.deps.SampleRate, ""),
	}
	if hub.deps.Metrics != nil {
		met := hub.deps.Metrics
		recognizerOpts = append(recognizerOpts, usecase.WithSessionDurationListener(func(d time.Duration) {
			met.RecognitionDuration.Record(context.Background(), d.Seconds())
		}))
	}
	c.recognizer = usecase.NewRecognizer(hub.deps.Recognizer, logger, recognizerOpts...)

	chatOpts := []usecase.ChatOption{
		usecase.WithChatTurnListener(func(turn entities.Turn) {
			c.sendJSON(NewTurnMessage("chat", turn))
		}),
	}
	if hub.deps.Archive != nil {
		chatOpts = append(chatOpts, usecase.WithChatArchive(hub.deps.Archive))
	}
	c.chat = usecase.NewChatController(hub.deps.Chat, c.speaker, c.recognizer, "English", logger, chatOpts...)

	if hub.deps.Interview != nil {
		interviewOpts := []usecase.InterviewOption{
			usecase.WithDelays(hub.deps.PracticeDelay, hub.deps.StrictDelay),
			usecase.WithDefaultDifficulty(hub.deps.DefaultDifficulty),
			usecase.WithTurnListener(func(turn entities.Turn) {
				c.sendJSON(NewTurnMessage("interview", turn))
			}),
			usecase.WithDifficultyListener(func(level int) {
				c.sendJSON(&DifficultyMessage{BaseMessage: newBase(MessageTypeDifficulty), Level: level})
			}),
		}
		if hub.deps.Archive != nil {
			interviewOpts = append(interviewOpts, usecase.WithInterviewArchive(hub.deps.Archive))
		}
		c.interview = usecase.NewInterviewController(hub.deps.Interview, c.speaker, c.recognizer, logger, interviewOpts...)
	}

	return c
}

// clientSink streams synthesized audio chunks to the peer as binary frames.
type clientSink struct {
	client *Client
}

func (s clientSink) PlayAudio(chunk []byte) error {
	s.client.sendFrame(WriteData{Type: websocket.BinaryMessage, Payload: chunk})
	return nil
}

// readPump pumps messages from the websocket connection to the controllers.
func (c *Client) readPump() {
	defer func() {
		c.shutdown()
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processAudioFrame(message)
		default:
			c.logger.Warn("received unknown frame type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the controllers to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("failed to write frame", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// shutdown releases per-connection resources when the peer goes away.
func (c *Client) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.recognizer.StopListening()
	c.speaker.Cancel()
	c.chat.Close(ctx)
	if c.interview != nil {
		_ = c.interview.EndSession(ctx)
	}
}

func (c *Client) sendFrame(frame WriteData) {
	select {
	case c.send <- frame:
	default:
		c.logger.Warn("send buffer full, dropping frame",
			zap.String("clientID", c.id))
	}
}

func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("failed to marshal frame", zap.Error(err))
		return
	}
	c.sendFrame(WriteData{Type: websocket.TextMessage, Payload: payload})
}

func (c *Client) sendError(code, message string) {
	c.sendJSON(NewErrorMessage(code, message))
}

func (c *Client) emitTranscript(text, preview string, final bool) {
	c.sendJSON(NewTranscriptMessage(text, preview, final))
	if !final {
		return
	}
	if c.hub.deps.Metrics != nil {
		c.hub.deps.Metrics.RecordTranscript(context.Background(), "final")
	}

	c.fieldMu.Lock()
	field := c.activeField
	c.fieldMu.Unlock()
	if field == "" {
		return
	}
	if err := c.sessions.UpdateField(c.userID, field, text); err != nil {
		c.logger.Warn("failed to route transcript into field",
			zap.String("field", field), zap.Error(err))
		return
	}
	c.emitSessionState()
}

func (c *Client) emitSpeaking(speaking bool) {
	if speaking {
		c.sendJSON(&BaseMessage{Type: MessageTypeSpeakingStart, Timestamp: time.Now().Format(time.RFC3339)})
	} else {
		c.sendJSON(&BaseMessage{Type: MessageTypeSpeakingEnd, Timestamp: time.Now().Format(time.RFC3339)})
	}
}

package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/keranlabs/keran/domain/repositories"
)

// RecognizerState is the observable state of a Recognizer
type RecognizerState string

const (
	RecognizerIdle      RecognizerState = "idle"
	RecognizerListening RecognizerState = "listening"
)

// TranscriptListener receives live transcript updates. text is the full
// accumulated transcript, preview is the in-flight interim fragment (empty in
// single-shot mode), final reports whether the update came from a finalized
// recognition result.
type TranscriptListener func(text, preview string, final bool)

// RecognizerOption configures a Recognizer
type RecognizerOption func(*Recognizer)

// WithTranscriptListener registers a listener for live transcript updates
func WithTranscriptListener(fn TranscriptListener) RecognizerOption {
	return func(r *Recognizer) {
		r.listener = fn
	}
}

// WithCaptureMode overrides the default single-shot capture mode
func WithCaptureMode(mode repositories.CaptureMode) RecognizerOption {
	return func(r *Recognizer) {
		r.mode = mode
	}
}

// WithSessionDurationListener registers a listener invoked with the capture
// length every time a recognition session ends.
func WithSessionDurationListener(fn func(time.Duration)) RecognizerOption {
	return func(r *Recognizer) {
		r.durationListener = fn
	}
}

// WithAudioFormat overrides the default 16kHz WEBM_OPUS input format.
// Zero sampleRate or empty encoding leaves the respective default.
func WithAudioFormat(sampleRate int, encoding string) RecognizerOption {
	return func(r *Recognizer) {
		if sampleRate > 0 {
			r.sampleRate = sampleRate
		}
		if encoding != "" {
			r.encoding = encoding
		}
	}
}

// Recognizer owns one speech recognition engine instance and exposes its
// lifecycle as an explicit state machine. At most one recognition session is
// active per Recognizer; StartListening while already listening is a no-op,
// as is StopListening while idle. A nil engine means recognition is
// unsupported on this deployment and every operation silently no-ops.
//
// Two capture modes exist because the chat widget wants the latest finalized
// utterance (single-shot) while the interview page accumulates finalized
// utterances across a long answer (continuous with interim previews).
type Recognizer struct {
	engine repositories.SpeechRecognizer
	mode   repositories.CaptureMode
	logger *zap.Logger

	listener         TranscriptListener
	durationListener func(time.Duration)
	sampleRate       int
	encoding         string

	mu         sync.Mutex
	listening  bool
	transcript string
	session    repositories.RecognitionSession
	generation int
}

// NewRecognizer creates a recognizer around engine. engine may be nil, in
// which case Supported reports false and start/stop are silent no-ops.
func NewRecognizer(engine repositories.SpeechRecognizer, logger *zap.Logger, opts ...RecognizerOption) *Recognizer {
	r := &Recognizer{
		engine:     engine,
		mode:       repositories.CaptureSingleShot,
		logger:     logger,
		sampleRate: 16000,
		encoding:   "WEBM_OPUS",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Supported reports whether a recognition engine is available
func (r *Recognizer) Supported() bool {
	return r.engine != nil
}

// SetCaptureMode switches the capture mode. Call while idle; an active
// session should be stopped first.
func (r *Recognizer) SetCaptureMode(mode repositories.CaptureMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = mode
}

// IsListening reports whether a recognition session is currently active
func (r *Recognizer) IsListening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listening
}

// Transcript returns the accumulated transcript text
func (r *Recognizer) Transcript() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transcript
}

// SetTranscript replaces the transcript buffer. Call sites use this to clear
// the buffer after consuming it for a submit.
func (r *Recognizer) SetTranscript(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcript = text
}

// StartListening configures the engine for the given language tag, clears the
// transcript, and begins capture. It is a silent no-op when recognition is
// unsupported or a session is already active. Engine start failures are
// logged and leave the recognizer idle.
func (r *Recognizer) StartListening(ctx context.Context, language string) {
	if r.engine == nil {
		return
	}

	r.mu.Lock()
	if r.listening {
		r.mu.Unlock()
		return
	}
	r.transcript = ""
	r.generation++
	generation := r.generation
	r.mu.Unlock()

	session, err := r.engine.Start(ctx, repositories.RecognitionConfig{
		Language:   language,
		Mode:       r.mode,
		SampleRate: r.sampleRate,
		Encoding:   r.encoding,
	})
	if err != nil {
		r.logger.Error("speech recognition start failed",
			zap.String("language", language),
			zap.Error(err))
		return
	}

	r.mu.Lock()
	// A concurrent StartListening raced us; keep the session that won.
	if r.listening || generation != r.generation {
		r.mu.Unlock()
		_ = session.Stop()
		return
	}
	r.listening = true
	r.session = session
	r.mu.Unlock()

	r.logger.Info("speech recognition started",
		zap.String("language", language),
		zap.String("mode", string(r.mode)))

	go r.consume(session, generation, time.Now())
}

// StopListening stops the active capture session. No-op while idle.
func (r *Recognizer) StopListening() {
	r.mu.Lock()
	if !r.listening {
		r.mu.Unlock()
		return
	}
	r.listening = false
	session := r.session
	r.session = nil
	r.mu.Unlock()

	if err := session.Stop(); err != nil {
		r.logger.Warn("speech recognition stop failed", zap.Error(err))
	}
}

// Feed forwards captured audio to the active session. Audio arriving while
// idle is dropped.
func (r *Recognizer) Feed(audio []byte) error {
	r.mu.Lock()
	session := r.session
	r.mu.Unlock()
	if session == nil {
		return nil
	}
	return session.Write(audio)
}

// consume drains transcript events until the session ends, then forces the
// recognizer back to idle
func (r *Recognizer) consume(session repositories.RecognitionSession, generation int, started time.Time) {
	for event := range session.Events() {
		r.apply(event, generation)
	}

	if err := session.Err(); err != nil {
		r.logger.Error("speech recognition session error", zap.Error(err))
	}

	r.mu.Lock()
	if r.generation == generation {
		r.listening = false
		r.session = nil
	}
	r.mu.Unlock()

	if r.durationListener != nil {
		r.durationListener(time.Since(started))
	}
}

func (r *Recognizer) apply(event repositories.TranscriptEvent, generation int) {
	text := strings.TrimSpace(event.Text)
	if text == "" {
		return
	}

	r.mu.Lock()
	if r.generation != generation {
		r.mu.Unlock()
		return
	}

	var preview string
	if event.Final {
		switch r.mode {
		case repositories.CaptureContinuous:
			if r.transcript == "" {
				r.transcript = text
			} else {
				r.transcript = r.transcript + " " + text
			}
		default:
			r.transcript = text
		}
	} else {
		preview = text
	}
	transcript := r.transcript
	listener := r.listener
	r.mu.Unlock()

	if listener != nil {
		listener(transcript, preview, event.Final)
	}
}

package usecase

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/keranlabs/keran/domain/repositories"
)

// Prosody constants tuned for an assistant-like delivery
const (
	utterancePitch = 1.1
	utteranceRate  = 1.05
)

// DefaultVoicePreferences is the ordered voice-name preference list applied
// for English utterances when no exact language match exists. The order is
// configurable; this default mirrors the voices the portal was tuned against.
var DefaultVoicePreferences = []string{
	"Microsoft Zira",
	"Google UK English Female",
	"Female",
	"Samantha",
}

// AudioSink receives rendered utterance audio, chunk by chunk
type AudioSink interface {
	PlayAudio(chunk []byte) error
}

// SpeakerOption configures a Speaker
type SpeakerOption func(*Speaker)

// WithVoicePreferences overrides the ordered voice-name preference list
func WithVoicePreferences(names []string) SpeakerOption {
	return func(s *Speaker) {
		s.preferences = names
	}
}

// WithSpeakingListener registers a listener for speaking-state transitions
func WithSpeakingListener(fn func(speaking bool)) SpeakerOption {
	return func(s *Speaker) {
		s.stateListener = fn
	}
}

// Speaker owns one speech synthesis engine and serializes utterances through
// it. At most one utterance is current: a new Speak cancels whatever is in
// flight, and the superseded utterance's completion callback never fires. A
// nil engine means synthesis is unsupported and every operation silently
// no-ops.
type Speaker struct {
	synth         repositories.SpeechSynthesizer
	sink          AudioSink
	logger        *zap.Logger
	preferences   []string
	stateListener func(bool)

	mu         sync.Mutex
	speaking   bool
	voices     []repositories.Voice
	cancel     context.CancelFunc
	generation int
}

// NewSpeaker creates a speaker around synth. The voice catalogue is loaded
// eagerly; engines that populate their catalogue lazily are retried on the
// first Speak and via RefreshVoices.
func NewSpeaker(ctx context.Context, synth repositories.SpeechSynthesizer, sink AudioSink, logger *zap.Logger, opts ...SpeakerOption) *Speaker {
	s := &Speaker{
		synth:       synth,
		sink:        sink,
		logger:      logger,
		preferences: DefaultVoicePreferences,
	}
	for _, opt := range opts {
		opt(s)
	}
	if synth != nil {
		s.RefreshVoices(ctx)
	}
	return s
}

// Supported reports whether a synthesis engine is available
func (s *Speaker) Supported() bool {
	return s.synth != nil
}

// IsSpeaking reports whether an utterance is currently playing
func (s *Speaker) IsSpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// RefreshVoices reloads the voice catalogue from the engine. Engines that
// load voices lazily fire this again once their catalogue is ready.
func (s *Speaker) RefreshVoices(ctx context.Context) {
	if s.synth == nil {
		return
	}
	voices, err := s.synth.Voices(ctx)
	if err != nil {
		s.logger.Warn("voice catalogue load failed", zap.Error(err))
		return
	}
	if len(voices) == 0 {
		return
	}
	s.mu.Lock()
	s.voices = voices
	s.mu.Unlock()
}

// Speak cancels any in-flight utterance and starts playing text in a voice
// matching the language tag. onComplete fires exactly once when the utterance
// reaches natural completion; it never fires when the utterance is cancelled
// or superseded by a later Speak. Silent no-op when synthesis is unsupported.
func (s *Speaker) Speak(ctx context.Context, text string, onComplete func(), language string) {
	if s.synth == nil {
		return
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if len(s.voices) == 0 {
		s.mu.Unlock()
		s.RefreshVoices(ctx)
		s.mu.Lock()
	}
	voice, _ := selectVoice(s.voices, language, s.preferences)
	s.generation++
	generation := s.generation
	// Playback outlives the caller: the utterance lifetime is governed by
	// Cancel and supersession, not by the handler that requested it.
	utteranceCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.speaking = true
	listener := s.stateListener
	s.mu.Unlock()

	if listener != nil {
		listener(true)
	}

	go s.play(utteranceCtx, generation, text, voice, onComplete)
}

// Cancel immediately stops any playing utterance and resets the speaking
// flag. Idempotent while idle.
func (s *Speaker) Cancel() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.cancel = nil
	s.speaking = false
	s.generation++
	listener := s.stateListener
	s.mu.Unlock()

	if listener != nil {
		listener(false)
	}
}

func (s *Speaker) play(ctx context.Context, generation int, text string, voice repositories.Voice, onComplete func()) {
	settings := repositories.SynthesisSettings{
		Pitch: utterancePitch,
		Rate:  utteranceRate,
	}

	chunks, err := s.synth.Synthesize(ctx, text, voice, settings)
	if err != nil {
		s.logger.Error("speech synthesis failed",
			zap.String("voice", voice.Name),
			zap.Error(err))
		s.settle(generation, false, nil)
		return
	}

	for chunk := range chunks {
		if s.sink == nil {
			continue
		}
		if err := s.sink.PlayAudio(chunk); err != nil {
			s.logger.Warn("audio sink write failed", zap.Error(err))
			s.settle(generation, false, nil)
			return
		}
	}

	s.settle(generation, ctx.Err() == nil, onComplete)
}

// settle transitions the utterance out of speaking state. The completion
// callback fires only for a natural end of the still-current utterance.
func (s *Speaker) settle(generation int, natural bool, onComplete func()) {
	s.mu.Lock()
	current := s.generation == generation
	if current {
		s.speaking = false
		s.cancel = nil
	}
	listener := s.stateListener
	s.mu.Unlock()

	if current && listener != nil {
		listener(false)
	}
	if current && natural && onComplete != nil {
		onComplete()
	}
}

// selectVoice resolves a voice for the requested language tag. Fallback
// order: exact tag match, primary-subtag family match, then for English the
// ordered name-preference list, finally the engine default.
func selectVoice(voices []repositories.Voice, language string, preferences []string) (repositories.Voice, bool) {
	if len(voices) == 0 {
		return repositories.Voice{}, false
	}

	primary := language
	if i := strings.IndexByte(language, '-'); i > 0 {
		primary = language[:i]
	}

	var match repositories.Voice
	var found bool
	for _, v := range voices {
		if v.Language == language {
			match, found = v, true
			break
		}
	}
	if !found {
		for _, v := range voices {
			if strings.HasPrefix(v.Language, primary) {
				match, found = v, true
				break
			}
		}
	}

	if primary == "en" {
		for _, name := range preferences {
			for _, v := range voices {
				if strings.Contains(v.Name, name) {
					return v, true
				}
			}
		}
	}

	if found {
		return match, true
	}
	for _, v := range voices {
		if v.Default {
			return v, true
		}
	}
	return voices[0], true
}

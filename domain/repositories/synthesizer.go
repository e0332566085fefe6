package repositories

import "context"

// Voice describes one synthetic voice offered by a synthesis engine
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Default  bool   `json:"default"`
}

// SynthesisSettings are per-utterance prosody settings. Engines map them onto
// whatever tuning knobs they expose.
type SynthesisSettings struct {
	Pitch float64 `json:"pitch"`
	Rate  float64 `json:"rate"`
}

// SpeechSynthesizer abstracts a text-to-speech engine. Synthesize streams
// audio chunks for one utterance; the channel is closed when the utterance is
// fully rendered or the context is cancelled.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string, voice Voice, settings SynthesisSettings) (<-chan []byte, error)
	// Voices lists the available voices. Some engines populate their
	// catalogue lazily, so callers may need to retry after first use.
	Voices(ctx context.Context) ([]Voice, error)
}

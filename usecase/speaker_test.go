package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/keranlabs/keran/domain/repositories"
)

type fakeSynthesizer struct {
	mu       sync.Mutex
	voices   []repositories.Voice
	channels []chan []byte
	requests []string
	ctxs     []context.Context
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text string, voice repositories.Voice, settings repositories.SynthesisSettings) (<-chan []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan []byte, 4)
	f.channels = append(f.channels, ch)
	f.requests = append(f.requests, text)
	f.ctxs = append(f.ctxs, ctx)
	return ch, nil
}

func (f *fakeSynthesizer) Voices(ctx context.Context) ([]repositories.Voice, error) {
	return f.voices, nil
}

// channel waits for the i-th synthesis request; Synthesize runs on the
// speaker's playback goroutine, not in the caller.
func (f *fakeSynthesizer) channel(t *testing.T, i int) chan []byte {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		if len(f.channels) > i {
			ch := f.channels[i]
			f.mu.Unlock()
			return ch
		}
		f.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for synthesis request %d", i)
	return nil
}

type collectingSink struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (s *collectingSink) PlayAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunk)
	return nil
}

func TestSpeakerUnsupported(t *testing.T) {
	s := NewSpeaker(context.Background(), nil, nil, zaptest.NewLogger(t))

	if s.Supported() {
		t.Error("Expected nil engine to report unsupported")
	}
	s.Speak(context.Background(), "hello", func() {
		t.Error("onComplete must not fire when synthesis is unsupported")
	}, "en-US")
	s.Cancel()
}

func TestSpeakerCompletesNaturally(t *testing.T) {
	synth := &fakeSynthesizer{voices: []repositories.Voice{{ID: "v1", Name: "Samantha", Language: "en-US", Default: true}}}
	sink := &collectingSink{}
	s := NewSpeaker(context.Background(), synth, sink, zaptest.NewLogger(t))

	done := make(chan struct{})
	s.Speak(context.Background(), "Welcome to the portal.", func() {
		close(done)
	}, "en-US")

	ch := synth.channel(t, 0)
	ch <- []byte("chunk1")
	ch <- []byte("chunk2")
	close(ch)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expected onComplete to fire on natural completion")
	}

	sink.mu.Lock()
	chunks := len(sink.chunks)
	sink.mu.Unlock()
	if chunks != 2 {
		t.Errorf("Expected 2 chunks at the sink, got %d", chunks)
	}
	if s.IsSpeaking() {
		t.Error("Expected speaker idle after completion")
	}
}

func TestSpeakerCancelSuppressesCompletion(t *testing.T) {
	synth := &fakeSynthesizer{voices: []repositories.Voice{{ID: "v1", Name: "Samantha", Language: "en-US"}}}
	s := NewSpeaker(context.Background(), synth, &collectingSink{}, zaptest.NewLogger(t))

	fired := make(chan struct{}, 1)
	s.Speak(context.Background(), "long announcement", func() {
		fired <- struct{}{}
	}, "en-US")

	s.Cancel()
	close(synth.channel(t, 0))

	select {
	case <-fired:
		t.Error("onComplete must not fire for a canceled utterance")
	case <-time.After(100 * time.Millisecond):
	}
	if s.IsSpeaking() {
		t.Error("Expected speaker idle after cancel")
	}

	// Cancel while idle must be a no-op.
	s.Cancel()
}

func TestSpeakerSupersededUtteranceNeverCompletes(t *testing.T) {
	synth := &fakeSynthesizer{voices: []repositories.Voice{{ID: "v1", Name: "Samantha", Language: "en-US"}}}
	s := NewSpeaker(context.Background(), synth, &collectingSink{}, zaptest.NewLogger(t))

	firstFired := make(chan struct{}, 1)
	secondDone := make(chan struct{})

	s.Speak(context.Background(), "first", func() {
		firstFired <- struct{}{}
	}, "en-US")
	s.Speak(context.Background(), "second", func() {
		close(secondDone)
	}, "en-US")

	close(synth.channel(t, 0))
	close(synth.channel(t, 1))

	select {
	case <-secondDone:
	case <-time.After(time.Second):
		t.Fatal("Expected the superseding utterance to complete")
	}
	select {
	case <-firstFired:
		t.Error("onComplete must not fire for a superseded utterance")
	case <-time.After(100 * time.Millisecond):
	}

	synth.mu.Lock()
	requests := len(synth.requests)
	synth.mu.Unlock()
	if requests != 2 {
		t.Errorf("Expected 2 synthesis requests, got %d", requests)
	}
}

func TestSelectVoiceExactMatch(t *testing.T) {
	voices := []repositories.Voice{
		{ID: "1", Name: "Generic", Language: "en-GB"},
		{ID: "2", Name: "Tamil Voice", Language: "ta-IN"},
	}
	voice, ok := selectVoice(voices, "ta-IN", DefaultVoicePreferences)
	if !ok || voice.ID != "2" {
		t.Errorf("Expected exact ta-IN match, got %+v", voice)
	}
}

func TestSelectVoicePrimarySubtagFallback(t *testing.T) {
	voices := []repositories.Voice{
		{ID: "1", Name: "Tamil Voice", Language: "ta-LK"},
		{ID: "2", Name: "Other", Language: "ml-IN"},
	}
	voice, ok := selectVoice(voices, "ta-IN", DefaultVoicePreferences)
	if !ok || voice.ID != "1" {
		t.Errorf("Expected ta family fallback, got %+v", voice)
	}
}

func TestSelectVoiceEnglishPreferenceOrder(t *testing.T) {
	voices := []repositories.Voice{
		{ID: "1", Name: "Samantha", Language: "en-US"},
		{ID: "2", Name: "Google UK English Female", Language: "en-GB"},
		{ID: "3", Name: "Microsoft Zira Desktop", Language: "en-US"},
	}
	voice, ok := selectVoice(voices, "en-US", DefaultVoicePreferences)
	if !ok || voice.ID != "3" {
		t.Errorf("Expected Microsoft Zira to win the preference order, got %+v", voice)
	}
}

func TestSelectVoiceDefaultFallback(t *testing.T) {
	voices := []repositories.Voice{
		{ID: "1", Name: "A", Language: "fr-FR"},
		{ID: "2", Name: "B", Language: "de-DE", Default: true},
	}
	voice, ok := selectVoice(voices, "ja-JP", DefaultVoicePreferences)
	if !ok || voice.ID != "2" {
		t.Errorf("Expected engine default fallback, got %+v", voice)
	}
}

func TestSelectVoiceEmptyCatalogue(t *testing.T) {
	if _, ok := selectVoice(nil, "en-US", DefaultVoicePreferences); ok {
		t.Error("Expected no voice from an empty catalogue")
	}
}

func TestSpeakerOutlivesCallerContext(t *testing.T) {
	synth := &fakeSynthesizer{voices: []repositories.Voice{{ID: "v1", Name: "Samantha", Language: "en-US", Default: true}}}
	sink := &collectingSink{}
	s := NewSpeaker(context.Background(), synth, sink, zaptest.NewLogger(t))

	callerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.Speak(callerCtx, "The next question follows shortly.", func() {
		close(done)
	}, "en-US")

	// The handler that requested the utterance moves on immediately.
	cancel()

	ch := synth.channel(t, 0)

	synth.mu.Lock()
	utteranceCtx := synth.ctxs[0]
	synth.mu.Unlock()
	if utteranceCtx.Err() != nil {
		t.Fatalf("Utterance context died with the caller: %v", utteranceCtx.Err())
	}

	ch <- []byte("chunk")
	close(ch)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("onComplete did not fire after the caller context was cancelled")
	}
	if s.IsSpeaking() {
		t.Error("Expected speaker idle after natural completion")
	}
}

package repositories

import "context"

// CaptureMode selects how a recognition session reports results.
type CaptureMode string

const (
	// CaptureSingleShot stops after one utterance and reports final results only
	CaptureSingleShot CaptureMode = "single_shot"
	// CaptureContinuous keeps listening across utterances and reports interim
	// results as they form
	CaptureContinuous CaptureMode = "continuous"
)

// RecognitionConfig configures one recognition session
type RecognitionConfig struct {
	Language   string      `json:"language"`
	Mode       CaptureMode `json:"mode"`
	SampleRate int         `json:"sample_rate"`
	Encoding   string      `json:"encoding"`
}

// TranscriptEvent is one recognition result from a live session
type TranscriptEvent struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// RecognitionSession is a live capture session. Audio is written in, transcript
// events flow out of Events until the session ends. Events is closed when the
// engine reaches end-of-speech, Stop is called, or the engine fails; Err
// reports the failure afterwards, nil for a clean end.
type RecognitionSession interface {
	Write(audio []byte) error
	Stop() error
	Events() <-chan TranscriptEvent
	Err() error
}

// SpeechRecognizer abstracts a speech recognition engine
type SpeechRecognizer interface {
	Start(ctx context.Context, config RecognitionConfig) (RecognitionSession, error)
}

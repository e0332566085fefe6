package stt

import (
	"context"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/keranlabs/keran/domain/repositories"
)

// GoogleSpeechRecognizer implements SpeechRecognizer on Google Cloud
// Speech-to-Text streaming recognition
type GoogleSpeechRecognizer struct {
	logger *zap.Logger
}

// NewGoogleSpeechRecognizer creates a Google Cloud recognition engine.
// Credentials are resolved by the client library from the environment.
func NewGoogleSpeechRecognizer(logger *zap.Logger) *GoogleSpeechRecognizer {
	return &GoogleSpeechRecognizer{logger: logger}
}

var _ repositories.SpeechRecognizer = (*GoogleSpeechRecognizer)(nil)

// Start opens a streaming recognition session configured for the requested
// language and capture mode. Continuous mode keeps the stream open across
// utterances and reports interim results; single-shot mode closes after the
// first utterance and reports final results only.
func (g *GoogleSpeechRecognizer) Start(ctx context.Context, config repositories.RecognitionConfig) (repositories.RecognitionSession, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	encoding, err := audioEncoding(config.Encoding)
	if err != nil {
		stream.CloseSend()
		client.Close()
		return nil, err
	}

	continuous := config.Mode == repositories.CaptureContinuous

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        encoding,
					SampleRateHertz: int32(config.SampleRate),
					LanguageCode:    config.Language,
				},
				InterimResults:  continuous,
				SingleUtterance: !continuous,
			},
		},
	}); err != nil {
		stream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	session := &googleRecognitionSession{
		client: client,
		stream: stream,
		logger: g.logger,
		events: make(chan repositories.TranscriptEvent, 8),
	}
	go session.receive()

	g.logger.Info("google speech recognition session started",
		zap.String("language", config.Language),
		zap.Bool("continuous", continuous))

	return session, nil
}

type googleRecognitionSession struct {
	client *speech.Client
	stream speechpb.Speech_StreamingRecognizeClient
	logger *zap.Logger
	events chan repositories.TranscriptEvent

	mu      sync.Mutex
	stopped bool
	err     error
}

// Write sends captured audio to the recognition stream
func (s *googleRecognitionSession) Write(audio []byte) error {
	if len(audio) == 0 {
		return nil
	}

	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return nil
	}

	if err := s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

// Stop half-closes the stream; remaining results drain through Events before
// the channel closes
func (s *googleRecognitionSession) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	if err := s.stream.CloseSend(); err != nil {
		return fmt.Errorf("failed to close send stream: %w", err)
	}
	return nil
}

func (s *googleRecognitionSession) Events() <-chan repositories.TranscriptEvent {
	return s.events
}

func (s *googleRecognitionSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *googleRecognitionSession) receive() {
	defer close(s.events)
	defer s.client.Close()

	for {
		resp, err := s.stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			s.mu.Lock()
			stopped := s.stopped
			if !stopped {
				s.err = fmt.Errorf("failed to receive response: %w", err)
			}
			s.mu.Unlock()
			return
		}

		for _, result := range resp.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			s.events <- repositories.TranscriptEvent{
				Text:  result.Alternatives[0].Transcript,
				Final: result.IsFinal,
			}
		}
	}
}

// audioEncoding converts a config encoding name to the Google Speech enum
func audioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported audio encoding: %s", encoding)
	}
}

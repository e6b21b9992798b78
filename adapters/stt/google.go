package stt

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/scrybe/scrybe-server/domain/repositories"
)

// GoogleConfig carries audio settings for the Google recognizer. Browser
// MediaRecorder audio is WebM/Opus at 48kHz, which is the default here.
type GoogleConfig struct {
	Language   string
	SampleRate int
}

// Google implements repositories.Recognizer using Google Cloud
// Speech-to-Text streaming recognition.
type Google struct {
	config GoogleConfig
	logger *zap.Logger
}

// NewGoogle creates a Google recognizer. Credentials come from
// GOOGLE_APPLICATION_CREDENTIALS, the standard client library mechanism.
func NewGoogle(config GoogleConfig, logger *zap.Logger) *Google {
	if config.Language == "" {
		config.Language = "en-US"
	}
	if config.SampleRate == 0 {
		config.SampleRate = 48000
	}
	return &Google{
		config: config,
		logger: logger,
	}
}

// Available implements repositories.Recognizer.
func (g *Google) Available() bool {
	return os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != ""
}

// Open starts a streaming recognition session with interim results, word
// timings, word confidence and automatic punctuation enabled.
func (g *Google) Open(ctx context.Context, handler repositories.RecognitionHandler) (repositories.RecognitionStream, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   speechpb.RecognitionConfig_WEBM_OPUS,
					SampleRateHertz:            int32(g.config.SampleRate),
					LanguageCode:               g.config.Language,
					EnableWordTimeOffsets:      true,
					EnableWordConfidence:       true,
					EnableAutomaticPunctuation: true,
				},
				InterimResults: true,
			},
		},
	}); err != nil {
		stream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	gs := &googleStream{
		client:  client,
		stream:  stream,
		handler: handler,
		logger:  g.logger,
	}
	go gs.listen()

	return gs, nil
}

type googleStream struct {
	client  *speech.Client
	stream  speechpb.Speech_StreamingRecognizeClient
	handler repositories.RecognitionHandler
	logger  *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// Send transmits one audio buffer.
func (s *googleStream) Send(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

// Close ends the send side and releases the client. Idempotent.
func (s *googleStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.stream.CloseSend()
		s.client.Close()
	})
	return s.closeErr
}

// listen receives recognition responses and forwards each result's primary
// alternative to the handler until the stream ends.
func (s *googleStream) listen() {
	for {
		resp, err := s.stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			if s.handler.OnError != nil {
				s.handler.OnError(fmt.Errorf("failed to receive response: %w", err))
			}
			return
		}

		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			alt := r.Alternatives[0]

			result := repositories.RecognitionResult{
				Transcript: alt.Transcript,
				IsFinal:    r.IsFinal,
				Words:      make([]repositories.RecognitionWord, 0, len(alt.Words)),
			}
			for _, w := range alt.Words {
				word := repositories.RecognitionWord{Text: w.Word}
				if w.StartTime != nil {
					start := w.StartTime.AsDuration().Seconds()
					word.Start = &start
				}
				if w.EndTime != nil {
					end := w.EndTime.AsDuration().Seconds()
					word.End = &end
				}
				conf := float64(w.Confidence)
				word.Confidence = &conf
				result.Words = append(result.Words, word)
			}

			if s.handler.OnResult != nil {
				s.handler.OnResult(result)
			}
		}
	}
}

package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/scrybe/scrybe-server/domain/repositories"
)

const deepgramLiveEndpoint = "wss://api.deepgram.com/v1/listen"

// Deepgram implements repositories.Recognizer against the Deepgram live
// transcription WebSocket API.
type Deepgram struct {
	apiKey   string
	endpoint string
	logger   *zap.Logger
}

// NewDeepgram creates a Deepgram recognizer. An empty apiKey yields an
// unavailable recognizer; the server then runs in degraded mode.
func NewDeepgram(apiKey string, logger *zap.Logger) *Deepgram {
	return &Deepgram{
		apiKey:   apiKey,
		endpoint: deepgramLiveEndpoint,
		logger:   logger,
	}
}

// Available implements repositories.Recognizer.
func (d *Deepgram) Available() bool {
	return d.apiKey != ""
}

// Open dials the live endpoint with interim results, punctuation and smart
// formatting enabled, and starts a goroutine delivering results to handler.
func (d *Deepgram) Open(ctx context.Context, handler repositories.RecognitionHandler) (repositories.RecognitionStream, error) {
	if !d.Available() {
		return nil, fmt.Errorf("deepgram API key not configured")
	}

	params := url.Values{}
	params.Set("model", "nova-2")
	params.Set("interim_results", "true")
	params.Set("punctuate", "true")
	params.Set("smart_format", "true")

	header := http.Header{}
	header.Set("Authorization", "Token "+d.apiKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, d.endpoint+"?"+params.Encode(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial deepgram (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial deepgram: %w", err)
	}

	stream := &deepgramStream{
		conn:    conn,
		handler: handler,
		logger:  d.logger,
	}
	go stream.listen()

	return stream, nil
}

type deepgramStream struct {
	conn    *websocket.Conn
	handler repositories.RecognitionHandler
	logger  *zap.Logger

	writeMu   sync.Mutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// deepgramResponse mirrors the subset of the live API Results message the
// reconciler consumes.
type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word           string  `json:"word"`
				PunctuatedWord string  `json:"punctuated_word"`
				Start          float64 `json:"start"`
				End            float64 `json:"end"`
				Confidence     float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// Send transmits one audio buffer as a binary frame.
func (s *deepgramStream) Send(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("failed to send audio to deepgram: %w", err)
	}
	return nil
}

// Close signals end of audio with a CloseStream control message and tears
// down the connection.
func (s *deepgramStream) Close() error {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		s.closed = true
		if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
			s.logger.Debug("Failed to send CloseStream", zap.Error(err))
		}
		s.writeMu.Unlock()
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// listen reads Results frames until the connection ends and forwards them to
// the handler. Read errors after Close are expected and not reported; any
// other failure, close frame or raw transport error alike, reaches OnError.
func (s *deepgramStream) listen() {
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.writeMu.Lock()
			closed := s.closed
			s.writeMu.Unlock()
			if closed || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			if s.handler.OnError != nil {
				s.handler.OnError(err)
			}
			return
		}

		var resp deepgramResponse
		if err := json.Unmarshal(payload, &resp); err != nil {
			s.logger.Warn("Failed to parse deepgram message", zap.Error(err))
			continue
		}
		if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
			continue
		}

		alt := resp.Channel.Alternatives[0]
		result := repositories.RecognitionResult{
			Transcript: alt.Transcript,
			IsFinal:    resp.IsFinal,
			Words:      make([]repositories.RecognitionWord, 0, len(alt.Words)),
		}
		for _, w := range alt.Words {
			text := w.PunctuatedWord
			if text == "" {
				text = w.Word
			}
			start, end, conf := w.Start, w.End, w.Confidence
			result.Words = append(result.Words, repositories.RecognitionWord{
				Text:       text,
				Start:      &start,
				End:        &end,
				Confidence: &conf,
			})
		}

		if s.handler.OnResult != nil {
			s.handler.OnResult(result)
		}
	}
}

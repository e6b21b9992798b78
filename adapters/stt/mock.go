package stt

import (
	"context"
	"sync"

	"github.com/scrybe/scrybe-server/domain/repositories"
)

// Mock is a scripted recognizer for tests and for running the server
// without provider credentials (STT_PROVIDER=mock).
type Mock struct {
	// OpenErr, when set, is returned by Open to exercise connection-open
	// failure paths.
	OpenErr error
	// Unavailable makes Available return false to exercise degraded mode.
	Unavailable bool

	mu      sync.Mutex
	streams []*MockStream
}

// NewMock creates a mock recognizer that reports itself available.
func NewMock() *Mock {
	return &Mock{}
}

// Available implements repositories.Recognizer.
func (m *Mock) Available() bool {
	return !m.Unavailable
}

// Open implements repositories.Recognizer.
func (m *Mock) Open(ctx context.Context, handler repositories.RecognitionHandler) (repositories.RecognitionStream, error) {
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	stream := &MockStream{handler: handler}
	m.mu.Lock()
	m.streams = append(m.streams, stream)
	m.mu.Unlock()
	return stream, nil
}

// Streams returns every stream opened so far.
func (m *Mock) Streams() []*MockStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MockStream, len(m.streams))
	copy(out, m.streams)
	return out
}

// LastStream returns the most recently opened stream, or nil.
func (m *Mock) LastStream() *MockStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.streams) == 0 {
		return nil
	}
	return m.streams[len(m.streams)-1]
}

// MockStream records sent audio and lets tests inject recognition events.
type MockStream struct {
	// SendErr, when set, is returned by every Send to exercise the relay
	// loop's log-and-continue path.
	SendErr error

	mu      sync.Mutex
	handler repositories.RecognitionHandler
	sent    [][]byte
	closed  bool
}

// Send implements repositories.RecognitionStream.
func (s *MockStream) Send(data []byte) error {
	if s.SendErr != nil {
		return s.SendErr
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.mu.Lock()
	s.sent = append(s.sent, buf)
	s.mu.Unlock()
	return nil
}

// Close implements repositories.RecognitionStream.
func (s *MockStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Emit delivers a scripted recognition result to the session's handler, as
// if received from the provider.
func (s *MockStream) Emit(result repositories.RecognitionResult) {
	if s.handler.OnResult != nil {
		s.handler.OnResult(result)
	}
}

// EmitError delivers a scripted stream error.
func (s *MockStream) EmitError(err error) {
	if s.handler.OnError != nil {
		s.handler.OnError(err)
	}
}

// Sent returns the audio buffers transmitted so far, in order.
func (s *MockStream) Sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.sent))
	copy(out, s.sent)
	return out
}

// Closed reports whether the stream has been closed.
func (s *MockStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

package entities

import (
	"bytes"
	"sync"
)

// SavedRecording describes a finalized audio blob written to storage.
type SavedRecording struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Size     int    `json:"size"`
}

// RecordingSession accumulates raw audio chunks for a single recording
// attempt. Chunks are append-only until the session is closed; closing is
// monotonic and a session is never reopened.
type RecordingSession struct {
	ID string

	mu     sync.Mutex
	mime   string
	chunks [][]byte
	closed bool
	audio  []byte
	saved  *SavedRecording
}

// NewRecordingSession creates an open session with no buffered audio.
func NewRecordingSession(id, mime string) *RecordingSession {
	return &RecordingSession{
		ID:   id,
		mime: mime,
	}
}

// Append adds a chunk in arrival order. Returns false when the session is
// already closed; closed sessions accept no audio but callers must still
// acknowledge the sender.
func (s *RecordingSession) Append(data []byte, mime string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if mime != "" {
		s.mime = mime
	}
	s.chunks = append(s.chunks, data)
	return true
}

// Close marks the session closed and concatenates all chunks in arrival
// order. The concatenation happens once; repeat calls return the same bytes
// with first=false.
func (s *RecordingSession) Close() (audio []byte, first bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.audio, false
	}
	s.closed = true
	s.audio = bytes.Join(s.chunks, nil)
	return s.audio, true
}

// Closed reports whether the session has been finalized.
func (s *RecordingSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Audio returns the finalized blob, if the session has been closed.
func (s *RecordingSession) Audio() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		return nil, false
	}
	return s.audio, true
}

// Mime returns the last-seen content type for this session.
func (s *RecordingSession) Mime() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mime
}

// ChunkCount returns the number of chunks received so far.
func (s *RecordingSession) ChunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// SetSaved records the blob-store write result so that repeated finalize
// calls return the original outcome instead of re-writing the file.
func (s *RecordingSession) SetSaved(saved *SavedRecording) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = saved
}

// Saved returns the recorded blob-store write result, if any.
func (s *RecordingSession) Saved() *SavedRecording {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

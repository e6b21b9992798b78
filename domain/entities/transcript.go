package entities

import (
	"fmt"
	"sync"
)

// TranscriptionSession holds the streaming state for one live transcription:
// the accumulated final text, the in-flight partial text, the segment
// counter, and the FIFO backlog of audio awaiting transmission to the
// recognizer. All fields are guarded by a per-session mutex; the relay loop
// only touches the backlog while the reconciler only touches text and
// segment fields.
type TranscriptionSession struct {
	ID string

	mu               sync.Mutex
	running          bool
	partialText      string
	finalText        string
	segmentSeq       int
	currentSegmentID string
	backlog          [][]byte
}

// NewTranscriptionSession creates a running session positioned at seg_0.
func NewTranscriptionSession(id string) *TranscriptionSession {
	return &TranscriptionSession{
		ID:               id,
		running:          true,
		currentSegmentID: "seg_0",
	}
}

// Running reports whether a recognition stream is attached.
func (s *TranscriptionSession) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop clears the running flag. Returns true only on the first call, so the
// running true->false transition happens exactly once per lifecycle.
func (s *TranscriptionSession) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	s.running = false
	return true
}

// EnqueueAudio appends a buffer to the backlog and returns the new depth.
// The backlog is unbounded; a stalled recognizer grows it without limit
// (surfaced via the backlog depth gauge rather than bounded here).
func (s *TranscriptionSession) EnqueueAudio(data []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backlog = append(s.backlog, data)
	return len(s.backlog)
}

// DequeueAudio pops the oldest buffer. Audio is time-ordered, so FIFO order
// is the only valid order here.
func (s *TranscriptionSession) DequeueAudio() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.backlog) == 0 {
		return nil, false
	}
	buf := s.backlog[0]
	s.backlog = s.backlog[1:]
	return buf, true
}

// BacklogDepth returns the number of buffers awaiting transmission.
func (s *TranscriptionSession) BacklogDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.backlog)
}

// CurrentSegmentID returns the id of the segment currently open.
func (s *TranscriptionSession) CurrentSegmentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentSegmentID
}

// AppendFinal joins a finalized utterance onto the accumulated final text
// with a single separating space and clears the partial text. Returns the
// accumulated text.
func (s *TranscriptionSession) AppendFinal(text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalText == "" {
		s.finalText = text
	} else {
		s.finalText = s.finalText + " " + text
	}
	s.partialText = ""
	return s.finalText
}

// SetPartial replaces the provisional text for the open segment.
func (s *TranscriptionSession) SetPartial(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partialText = text
}

// DisplayText returns the running display snapshot: the accumulated final
// text followed by the current partial, without stray separators.
func (s *TranscriptionSession) DisplayText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.finalText == "":
		return s.partialText
	case s.partialText == "":
		return s.finalText
	default:
		return s.finalText + " " + s.partialText
	}
}

// TerminalText is the text persisted at finalize: the accumulated final
// text, or the last partial when nothing was ever finalized.
func (s *TranscriptionSession) TerminalText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalText != "" {
		return s.finalText
	}
	return s.partialText
}

// FinalText returns the accumulated finalized text.
func (s *TranscriptionSession) FinalText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalText
}

// AdvanceSegment increments the segment counter and opens the next segment.
// Callers must persist the just-finalized segment before advancing so its
// words stay attributed to the id that was active while they were spoken.
func (s *TranscriptionSession) AdvanceSegment() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segmentSeq++
	s.currentSegmentID = fmt.Sprintf("seg_%d", s.segmentSeq)
	return s.currentSegmentID
}

// SegmentSeq returns the current segment counter value.
func (s *TranscriptionSession) SegmentSeq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.segmentSeq
}

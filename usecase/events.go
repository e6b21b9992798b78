package usecase

import "github.com/scrybe/scrybe-server/domain/entities"

// Outbound event type names on the WebSocket wire.
const (
	EventTranscriptPatch   = "transcript_patch"
	EventTranscriptPartial = "transcript_partial"
	EventTranscriptFinal   = "transcript_final"
)

// TranscriptPatch carries word-level detail for the currently open segment.
// Emitted for interim and final events alike; the segment id is always the
// one that was active when the words were recognized.
type TranscriptPatch struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	SegmentID string          `json:"segmentId"`
	IsFinal   bool            `json:"isFinal"`
	Words     []entities.Word `json:"words"`
}

// TranscriptPartial is the running display snapshot: accumulated final text
// plus the current partial. Display convenience only, never persisted.
type TranscriptPartial struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

// TranscriptFinal carries the terminal text, emitted once at finalize.
type TranscriptFinal struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

// Broadcaster fans an outbound event out to every connected client.
// Implementations must preserve the order in which a single goroutine
// broadcasts.
type Broadcaster interface {
	Broadcast(v interface{})
}

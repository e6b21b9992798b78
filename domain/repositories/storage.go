package repositories

import (
	"context"

	"github.com/scrybe/scrybe-server/domain/entities"
)

// TranscriptStore persists sessions and finalized segments. It is a
// best-effort collaborator: callers log write failures and keep streaming.
type TranscriptStore interface {
	// UpsertSession creates the session document on first write (stamping a
	// creation time) and merges fields plus an updated time on every call.
	UpsertSession(ctx context.Context, sessionID string, fields map[string]interface{}) error
	// UpsertSegment creates or replaces the (sessionID, segmentID) document.
	// Only finalized segments are persisted.
	UpsertSegment(ctx context.Context, sessionID, segmentID string, isFinal bool, words []entities.Word) error

	// ListSessions returns up to limit sessions, most recently updated first.
	ListSessions(ctx context.Context, limit int64) ([]entities.SessionRecord, error)
	// GetSession returns a session document, or nil when unknown.
	GetSession(ctx context.Context, sessionID string) (*entities.SessionRecord, error)
	// ListSegments returns a session's segments ordered seg_0, seg_1, ...
	ListSegments(ctx context.Context, sessionID string) ([]entities.Segment, error)
}

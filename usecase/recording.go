package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scrybe/scrybe-server/domain/entities"
	"github.com/scrybe/scrybe-server/domain/repositories"
	"github.com/scrybe/scrybe-server/internal/metrics"
)

// ErrUnknownSession is returned when an operation references a session that
// was never created.
var ErrUnknownSession = errors.New("unknown session")

// ChunkReceipt acknowledges one appended audio chunk.
type ChunkReceipt struct {
	// Closed is true when the session was already finalized and the chunk
	// was dropped. The sender still gets an ack either way.
	Closed     bool
	ChunkCount int
}

// RecordingService owns the per-session audio buffers. Sessions are created
// on first chunk and live until process shutdown; there is no TTL.
type RecordingService struct {
	mu       sync.RWMutex
	sessions map[string]*entities.RecordingSession

	blobs   repositories.BlobStore
	store   repositories.TranscriptStore
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewRecordingService creates the service. store may be nil; persistence is
// best-effort.
func NewRecordingService(
	blobs repositories.BlobStore,
	store repositories.TranscriptStore,
	m *metrics.Metrics,
	logger *zap.Logger,
) *RecordingService {
	return &RecordingService{
		sessions: make(map[string]*entities.RecordingSession),
		blobs:    blobs,
		store:    store,
		metrics:  m,
		logger:   logger,
	}
}

// AppendChunk buffers one audio chunk, creating the session on first call.
// Chunks arriving after finalize are dropped but still receipted so the
// sender's flow control keeps working.
func (s *RecordingService) AppendChunk(sessionID string, data []byte, mime string) *ChunkReceipt {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = entities.NewRecordingSession(sessionID, mime)
		s.sessions[sessionID] = sess
	}
	s.mu.Unlock()

	accepted := sess.Append(data, mime)
	if accepted {
		s.metrics.AudioChunksReceived.Inc()
		s.metrics.AudioBytesReceived.Add(float64(len(data)))
	}

	return &ChunkReceipt{
		Closed:     !accepted,
		ChunkCount: sess.ChunkCount(),
	}
}

// Finalize concatenates the session's chunks in arrival order, writes the
// blob exactly once and records "stopped" status. Idempotent: repeat calls
// return the result of the first write without touching the blob store
// again.
func (s *RecordingService) Finalize(sessionID string) (*entities.SavedRecording, error) {
	s.mu.RLock()
	sess := s.sessions[sessionID]
	s.mu.RUnlock()
	if sess == nil {
		return nil, ErrUnknownSession
	}

	audio, first := sess.Close()
	if !first {
		if saved := sess.Saved(); saved != nil {
			return saved, nil
		}
		// First finalize failed to write; report rather than re-buffer.
		return nil, errors.New("recording was closed but never stored")
	}

	saved, err := s.blobs.Save(sessionID, audio)
	if err != nil {
		s.logger.Error("Failed to store recording",
			zap.String("sessionId", sessionID),
			zap.Error(err))
		return nil, err
	}
	sess.SetSaved(saved)
	s.metrics.RecordingsSaved.Inc()

	s.recordStatus(sessionID, map[string]interface{}{
		"status":     "stopped",
		"audioPath":  saved.Path,
		"mime":       sess.Mime(),
		"chunkCount": sess.ChunkCount(),
	})

	return saved, nil
}

// AudioData returns the finalized audio and mime for playback. Falls back
// to the blob store when the in-memory buffer is gone.
func (s *RecordingService) AudioData(sessionID string) ([]byte, string, error) {
	s.mu.RLock()
	sess := s.sessions[sessionID]
	s.mu.RUnlock()

	if sess != nil {
		if audio, ok := sess.Audio(); ok {
			mime := sess.Mime()
			if mime == "" {
				mime = "audio/webm"
			}
			return audio, mime, nil
		}
	}

	data, err := s.blobs.Load(sessionID)
	if err != nil {
		return nil, "", err
	}
	return data, "audio/webm", nil
}

func (s *RecordingService) recordStatus(sessionID string, fields map[string]interface{}) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.UpsertSession(ctx, sessionID, fields); err != nil {
		s.metrics.PersistenceErrors.Inc()
		s.logger.Warn("Session upsert failed",
			zap.String("sessionId", sessionID),
			zap.Error(err))
	}
}

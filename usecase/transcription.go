package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scrybe/scrybe-server/domain/entities"
	"github.com/scrybe/scrybe-server/domain/repositories"
	"github.com/scrybe/scrybe-server/internal/metrics"
)

// DegradedModeNotice is the placeholder transcript emitted when no
// recognizer credentials are configured.
const DegradedModeNotice = "[No Deepgram API key configured]"

// workerJoinTimeout bounds how long Finalize waits for a session's relay
// goroutine after clearing the running flag. A send call stuck inside the
// recognizer can delay shutdown past the poll interval.
const workerJoinTimeout = 2 * time.Second

// TranscriptionConfig tunes the streaming loops. Zero values fall back to
// the reference timings.
type TranscriptionConfig struct {
	// PollInterval is the relay loop sleep when the backlog is empty; it
	// also bounds stop latency.
	PollInterval time.Duration
	// FinalizeGrace is the wait before finalize stops the session so
	// in-flight final events can land.
	FinalizeGrace time.Duration
}

// TranscriptionService is the session lifecycle coordinator: it owns the
// registry of TranscriptionSessions, runs one supervised relay worker per
// active session, and reconciles recognition events into transcript state.
type TranscriptionService struct {
	mu       sync.RWMutex
	sessions map[string]*entities.TranscriptionSession
	workers  map[string]chan struct{}

	recognizer  repositories.Recognizer
	store       repositories.TranscriptStore
	broadcaster Broadcaster
	metrics     *metrics.Metrics
	logger      *zap.Logger

	pollInterval  time.Duration
	finalizeGrace time.Duration
}

// NewTranscriptionService creates the coordinator. store may be nil;
// persistence is best-effort and never gates streaming.
func NewTranscriptionService(
	recognizer repositories.Recognizer,
	store repositories.TranscriptStore,
	broadcaster Broadcaster,
	m *metrics.Metrics,
	cfg TranscriptionConfig,
	logger *zap.Logger,
) *TranscriptionService {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	if cfg.FinalizeGrace <= 0 {
		cfg.FinalizeGrace = 500 * time.Millisecond
	}
	return &TranscriptionService{
		sessions:      make(map[string]*entities.TranscriptionSession),
		workers:       make(map[string]chan struct{}),
		recognizer:    recognizer,
		store:         store,
		broadcaster:   broadcaster,
		metrics:       m,
		logger:        logger,
		pollInterval:  cfg.PollInterval,
		finalizeGrace: cfg.FinalizeGrace,
	}
}

// Start attaches a recognition stream to the session and launches its relay
// worker. Without recognizer credentials it emits a single degraded-mode
// notice and does nothing else. Starting an already-running session is a
// no-op.
func (s *TranscriptionService) Start(sessionID string) {
	if !s.recognizer.Available() {
		s.logger.Warn("Recognizer not configured, transcription disabled",
			zap.String("sessionId", sessionID))
		s.broadcaster.Broadcast(TranscriptPartial{
			Type:      EventTranscriptPartial,
			SessionID: sessionID,
			Text:      DegradedModeNotice,
		})
		return
	}

	s.mu.Lock()
	if existing, ok := s.sessions[sessionID]; ok && existing.Running() {
		s.mu.Unlock()
		s.logger.Warn("Transcription already running, ignoring start",
			zap.String("sessionId", sessionID))
		return
	}
	sess := entities.NewTranscriptionSession(sessionID)
	done := make(chan struct{})
	s.sessions[sessionID] = sess
	s.workers[sessionID] = done
	s.mu.Unlock()

	s.logger.Info("Starting transcription", zap.String("sessionId", sessionID))
	s.recordStatus(sessionID, map[string]interface{}{"status": "recording"})

	go s.run(sess, done)
}

// EnqueueAudio adds a buffer to the session's backlog. Returns false when
// no running session exists, in which case the audio only goes to the
// recording buffer.
func (s *TranscriptionService) EnqueueAudio(sessionID string, data []byte) bool {
	if len(data) == 0 {
		return false
	}
	s.mu.RLock()
	sess := s.sessions[sessionID]
	s.mu.RUnlock()
	if sess == nil || !sess.Running() {
		return false
	}

	depth := sess.EnqueueAudio(data)
	s.metrics.BacklogDepth.WithLabelValues(sessionID).Set(float64(depth))
	return true
}

// Running reports whether the session has an active recognition stream.
func (s *TranscriptionService) Running(sessionID string) bool {
	s.mu.RLock()
	sess := s.sessions[sessionID]
	s.mu.RUnlock()
	return sess != nil && sess.Running()
}

// Finalize stops the session after a short grace period, joins its worker,
// emits the terminal transcript snapshot and records "finalized" status.
// Finalizing an unknown session emits an empty-text snapshot.
func (s *TranscriptionService) Finalize(sessionID string) {
	s.mu.RLock()
	sess := s.sessions[sessionID]
	done := s.workers[sessionID]
	s.mu.RUnlock()

	s.logger.Info("Finalizing transcription", zap.String("sessionId", sessionID))

	if sess == nil {
		s.broadcaster.Broadcast(TranscriptFinal{
			Type:      EventTranscriptFinal,
			SessionID: sessionID,
			Text:      "",
		})
		return
	}

	// Let in-flight final events land before cutting the stream.
	time.Sleep(s.finalizeGrace)
	sess.Stop()

	if done != nil {
		select {
		case <-done:
		case <-time.After(workerJoinTimeout):
			s.logger.Warn("Relay worker did not stop in time",
				zap.String("sessionId", sessionID))
		}
	}

	text := sess.TerminalText()
	s.broadcaster.Broadcast(TranscriptFinal{
		Type:      EventTranscriptFinal,
		SessionID: sessionID,
		Text:      text,
	})

	s.recordStatus(sessionID, map[string]interface{}{
		"status":    "finalized",
		"finalText": text,
	})
}

// StopAll clears the running flag on every session. Called on transport
// disconnect; never blocks and never errors on an empty registry.
func (s *TranscriptionService) StopAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stopped := 0
	for _, sess := range s.sessions {
		if sess.Stop() {
			stopped++
		}
	}
	if stopped > 0 {
		s.logger.Info("Stopped running transcriptions", zap.Int("count", stopped))
	}
}

// run is the supervised per-session worker: it opens the recognition
// stream, attaches the reconciler, then relays backlog audio until the
// session stops. Transient send errors are logged and skipped; losing an
// audio gap beats killing the loop.
func (s *TranscriptionService) run(sess *entities.TranscriptionSession, done chan struct{}) {
	defer close(done)
	defer s.metrics.BacklogDepth.DeleteLabelValues(sess.ID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &reconciler{
		sess:        sess,
		store:       s.store,
		broadcaster: s.broadcaster,
		metrics:     s.metrics,
		logger:      s.logger,
	}

	stream, err := s.recognizer.Open(ctx, repositories.RecognitionHandler{
		OnResult: rec.handleResult,
		OnError: func(err error) {
			// Advisory only; the session runs until explicitly finalized.
			s.logger.Warn("Recognition stream error",
				zap.String("sessionId", sess.ID),
				zap.Error(err))
		},
	})
	if err != nil {
		s.metrics.RecognizerOpenErrors.Inc()
		s.logger.Error("Failed to open recognition stream",
			zap.String("sessionId", sess.ID),
			zap.Error(err))
		sess.Stop()
		s.recordStatus(sess.ID, map[string]interface{}{"status": "error"})
		return
	}
	defer stream.Close()

	s.metrics.ActiveTranscriptions.Inc()
	defer s.metrics.ActiveTranscriptions.Dec()

	s.logger.Info("Relay loop started", zap.String("sessionId", sess.ID))

	sent := 0
	for sess.Running() {
		buf, ok := sess.DequeueAudio()
		if !ok {
			time.Sleep(s.pollInterval)
			continue
		}
		s.metrics.BacklogDepth.WithLabelValues(sess.ID).Set(float64(sess.BacklogDepth()))

		if err := stream.Send(buf); err != nil {
			s.metrics.RecognizerSendErrors.Inc()
			s.logger.Warn("Failed to send audio to recognizer",
				zap.String("sessionId", sess.ID),
				zap.Error(err))
			continue
		}
		sent++
	}

	s.logger.Info("Relay loop ended",
		zap.String("sessionId", sess.ID),
		zap.Int("chunksSent", sent))
}

func (s *TranscriptionService) recordStatus(sessionID string, fields map[string]interface{}) {
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

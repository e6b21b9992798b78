package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/scrybe/scrybe-server/domain/entities"
	"github.com/scrybe/scrybe-server/domain/repositories"
	"github.com/scrybe/scrybe-server/internal/metrics"
)

// reconciler folds recognition events into a session's transcript state.
// It runs on the recognizer's receive goroutine, so events for one session
// are handled strictly in arrival order.
type reconciler struct {
	sess        *entities.TranscriptionSession
	store       repositories.TranscriptStore
	broadcaster Broadcaster
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func (r *reconciler) handleResult(result repositories.RecognitionResult) {
	if !r.sess.Running() {
		return
	}
	if result.Transcript == "" {
		return
	}

	// Word ids are scoped to the segment that is open right now; the final
	// branch below advances the segment only after this id has been used
	// for both the patch and persistence.
	segmentID := r.sess.CurrentSegmentID()

	words := make([]entities.Word, 0, len(result.Words))
	for idx, w := range result.Words {
		if w.Text == "" {
			continue
		}
		words = append(words, entities.Word{
			WID:        fmt.Sprintf("%s:%s:%d", r.sess.ID, segmentID, idx),
			Text:       w.Text,
			Start:      w.Start,
			End:        w.End,
			Confidence: w.Confidence,
		})
	}

	if len(words) > 0 {
		r.broadcaster.Broadcast(TranscriptPatch{
			Type:      EventTranscriptPatch,
			SessionID: r.sess.ID,
			SegmentID: segmentID,
			IsFinal:   result.IsFinal,
			Words:     words,
		})
	}

	if result.IsFinal {
		full := r.sess.AppendFinal(result.Transcript)
		r.metrics.TranscriptFinals.Inc()

		r.logger.Debug("Final utterance",
			zap.String("sessionId", r.sess.ID),
			zap.String("segmentId", segmentID),
			zap.String("transcript", result.Transcript))

		r.broadcaster.Broadcast(TranscriptPartial{
			Type:      EventTranscriptPartial,
			SessionID: r.sess.ID,
			Text:      full,
		})

		r.persistSegment(segmentID, words)

		// Advance only after the finalized segment is persisted under the
		// id that was active while its words were spoken.
		r.sess.AdvanceSegment()
	} else {
		r.sess.SetPartial(result.Transcript)
		r.metrics.TranscriptPartials.Inc()

		r.broadcaster.Broadcast(TranscriptPartial{
			Type:      EventTranscriptPartial,
			SessionID: r.sess.ID,
			Text:      r.sess.DisplayText(),
		})
	}
}

func (r *reconciler) persistSegment(segmentID string, words []entities.Word) {
	if r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.UpsertSegment(ctx, r.sess.ID, segmentID, true, words); err != nil {
		r.metrics.PersistenceErrors.Inc()
		r.logger.Warn("Segment upsert failed",
			zap.String("sessionId", r.sess.ID),
			zap.String("segmentId", segmentID),
			zap.Error(err))
		return
	}
	r.metrics.SegmentsPersisted.Inc()
}

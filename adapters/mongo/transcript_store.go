package mongo

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/scrybe/scrybe-server/domain/entities"
	"github.com/scrybe/scrybe-server/domain/repositories"
)

// TranscriptStore implements repositories.TranscriptStore on MongoDB with
// two collections: sessions (one document per session, merge-on-write) and
// segments (one document per (sessionId, segmentId) pair).
type TranscriptStore struct {
	sessions *mongo.Collection
	segments *mongo.Collection
}

// NewTranscriptStore creates the store over db.
func NewTranscriptStore(db *mongo.Database) repositories.TranscriptStore {
	return &TranscriptStore{
		sessions: db.Collection("sessions"),
		segments: db.Collection("segments"),
	}
}

// EnsureIndexes creates the unique indexes backing upsert identity.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("sessions").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "sessionId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create sessions index: %w", err)
	}

	_, err = db.Collection("segments").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "sessionId", Value: 1}, {Key: "segmentId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create segments index: %w", err)
	}
	return nil
}

// UpsertSession implements repositories.TranscriptStore.
func (s *TranscriptStore) UpsertSession(ctx context.Context, sessionID string, fields map[string]interface{}) error {
	now := time.Now().UTC()

	set := bson.M{"updatedAt": now}
	for k, v := range fields {
		set[k] = v
	}

	_, err := s.sessions.UpdateOne(ctx,
		bson.M{"sessionId": sessionID},
		bson.M{
			"$setOnInsert": bson.M{"sessionId": sessionID, "createdAt": now},
			"$set":         set,
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", sessionID, err)
	}
	return nil
}

// UpsertSegment implements repositories.TranscriptStore.
func (s *TranscriptStore) UpsertSegment(ctx context.Context, sessionID, segmentID string, isFinal bool, words []entities.Word) error {
	now := time.Now().UTC()

	_, err := s.segments.UpdateOne(ctx,
		bson.M{"sessionId": sessionID, "segmentId": segmentID},
		bson.M{
			"$setOnInsert": bson.M{"sessionId": sessionID, "segmentId": segmentID, "createdAt": now},
			"$set":         bson.M{"isFinal": isFinal, "words": words, "updatedAt": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert segment %s/%s: %w", sessionID, segmentID, err)
	}
	return nil
}

// ListSessions implements repositories.TranscriptStore.
func (s *TranscriptStore) ListSessions(ctx context.Context, limit int64) ([]entities.SessionRecord, error) {
	opts := options.Find().
		SetSort(bson.M{"updatedAt": -1}).
		SetLimit(limit)

	cursor, err := s.sessions.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var records []entities.SessionRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}
	return records, nil
}

// GetSession implements repositories.TranscriptStore.
func (s *TranscriptStore) GetSession(ctx context.Context, sessionID string) (*entities.SessionRecord, error) {
	var record entities.SessionRecord
	err := s.sessions.FindOne(ctx, bson.M{"sessionId": sessionID}).Decode(&record)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	return &record, nil
}

// ListSegments implements repositories.TranscriptStore. Segments come back
// in numeric order of their seg_N suffix, not lexicographic order.
func (s *TranscriptStore) ListSegments(ctx context.Context, sessionID string) ([]entities.Segment, error) {
	cursor, err := s.segments.Find(ctx, bson.M{"sessionId": sessionID})
	if err != nil {
		return nil, fmt.Errorf("failed to list segments for %s: %w", sessionID, err)
	}
	defer cursor.Close(ctx)

	var segments []entities.Segment
	if err := cursor.All(ctx, &segments); err != nil {
		return nil, fmt.Errorf("failed to decode segments: %w", err)
	}

	sort.Slice(segments, func(i, j int) bool {
		return segmentNumber(segments[i].SegmentID) < segmentNumber(segments[j].SegmentID)
	})
	return segments, nil
}

func segmentNumber(segmentID string) int {
	_, suffix, found := strings.Cut(segmentID, "_")
	if !found {
		return 0
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return 0
	}
	return n
}

package usecase

import (
	"context"
	"fmt"
	"io/fs"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/scrybe/scrybe-server/domain/entities"
	"github.com/scrybe/scrybe-server/internal/metrics"
)

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

// captureBroadcaster records broadcast events in emission order.
type captureBroadcaster struct {
	mu     sync.Mutex
	events []interface{}
}

func (b *captureBroadcaster) Broadcast(v interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, v)
}

func (b *captureBroadcaster) Events() []interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]interface{}, len(b.events))
	copy(out, b.events)
	return out
}

func (b *captureBroadcaster) Partials() []TranscriptPartial {
	var out []TranscriptPartial
	for _, e := range b.Events() {
		if p, ok := e.(TranscriptPartial); ok {
			out = append(out, p)
		}
	}
	return out
}

func (b *captureBroadcaster) Patches() []TranscriptPatch {
	var out []TranscriptPatch
	for _, e := range b.Events() {
		if p, ok := e.(TranscriptPatch); ok {
			out = append(out, p)
		}
	}
	return out
}

func (b *captureBroadcaster) Finals() []TranscriptFinal {
	var out []TranscriptFinal
	for _, e := range b.Events() {
		if f, ok := e.(TranscriptFinal); ok {
			out = append(out, f)
		}
	}
	return out
}

type sessionUpsert struct {
	sessionID string
	fields    map[string]interface{}
}

type segmentUpsert struct {
	sessionID string
	segmentID string
	isFinal   bool
	words     []entities.Word
}

// fakeStore is an in-memory repositories.TranscriptStore that records
// upserts in call order.
type fakeStore struct {
	mu             sync.Mutex
	sessionUpserts []sessionUpsert
	segmentUpserts []segmentUpsert
	failWrites     bool
}

func (f *fakeStore) UpsertSession(ctx context.Context, sessionID string, fields map[string]interface{}) error {
	if f.failWrites {
		return fmt.Errorf("store unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionUpserts = append(f.sessionUpserts, sessionUpsert{sessionID, fields})
	return nil
}

func (f *fakeStore) UpsertSegment(ctx context.Context, sessionID, segmentID string, isFinal bool, words []entities.Word) error {
	if f.failWrites {
		return fmt.Errorf("store unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.segmentUpserts = append(f.segmentUpserts, segmentUpsert{sessionID, segmentID, isFinal, words})
	return nil
}

func (f *fakeStore) ListSessions(ctx context.Context, limit int64) ([]entities.SessionRecord, error) {
	return nil, nil
}

func (f *fakeStore) GetSession(ctx context.Context, sessionID string) (*entities.SessionRecord, error) {
	return nil, nil
}

func (f *fakeStore) ListSegments(ctx context.Context, sessionID string) ([]entities.Segment, error) {
	return nil, nil
}

func (f *fakeStore) SessionUpserts() []sessionUpsert {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sessionUpsert, len(f.sessionUpserts))
	copy(out, f.sessionUpserts)
	return out
}

func (f *fakeStore) SegmentUpserts() []segmentUpsert {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]segmentUpsert, len(f.segmentUpserts))
	copy(out, f.segmentUpserts)
	return out
}

type blobSave struct {
	sessionID string
	data      []byte
}

// fakeBlobStore records saved blobs in memory.
type fakeBlobStore struct {
	mu    sync.Mutex
	saves []blobSave
}

func (f *fakeBlobStore) Save(sessionID string, data []byte) (*entities.SavedRecording, error) {
	buf := make([]byte, len(data))
	copy(buf, data)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, blobSave{sessionID, buf})
	return &entities.SavedRecording{
		Filename: sessionID + ".webm",
		Path:     "/recordings/" + sessionID + ".webm",
		Size:     len(data),
	}, nil
}

func (f *fakeBlobStore) Load(sessionID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.saves {
		if s.sessionID == sessionID {
			return s.data, nil
		}
	}
	return nil, fmt.Errorf("no recording: %w", fs.ErrNotExist)
}

func (f *fakeBlobStore) Saves() []blobSave {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]blobSave, len(f.saves))
	copy(out, f.saves)
	return out
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

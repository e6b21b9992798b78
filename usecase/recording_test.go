package usecase

import (
	"bytes"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func newRecordingService(blobs *fakeBlobStore, store *fakeStore) *RecordingService {
	return NewRecordingService(blobs, store, newTestMetrics(), zap.NewNop())
}

func TestAppendChunkCreatesSessionAndPreservesOrder(t *testing.T) {
	blobs := &fakeBlobStore{}
	svc := newRecordingService(blobs, &fakeStore{})

	chunks := [][]byte{[]byte("aaa"), []byte("bb"), []byte("cccc")}
	for i, c := range chunks {
		receipt := svc.AppendChunk("s1", c, "audio/webm")
		if receipt.Closed {
			t.Fatalf("chunk %d: session should not be closed", i)
		}
		if receipt.ChunkCount != i+1 {
			t.Errorf("chunk %d: expected count %d, got %d", i, i+1, receipt.ChunkCount)
		}
	}

	saved, err := svc.Finalize("s1")
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	want := bytes.Join(chunks, nil)
	if saved.Size != len(want) {
		t.Errorf("expected size %d, got %d", len(want), saved.Size)
	}

	saves := blobs.Saves()
	if len(saves) != 1 {
		t.Fatalf("expected exactly one blob write, got %d", len(saves))
	}
	if !bytes.Equal(saves[0].data, want) {
		t.Errorf("stored blob is not the in-order concatenation of chunks")
	}
}

func TestAppendChunkAfterFinalizeIsDroppedButReceipted(t *testing.T) {
	svc := newRecordingService(&fakeBlobStore{}, &fakeStore{})

	svc.AppendChunk("s1", []byte("audio"), "audio/webm")
	if _, err := svc.Finalize("s1"); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	receipt := svc.AppendChunk("s1", []byte("late"), "")
	if !receipt.Closed {
		t.Error("receipt should report the session closed")
	}
	if receipt.ChunkCount != 1 {
		t.Errorf("late chunk must not be buffered, count = %d", receipt.ChunkCount)
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	blobs := &fakeBlobStore{}
	svc := newRecordingService(blobs, &fakeStore{})

	svc.AppendChunk("s1", []byte("audio"), "audio/webm")

	first, err := svc.Finalize("s1")
	if err != nil {
		t.Fatalf("first Finalize failed: %v", err)
	}
	second, err := svc.Finalize("s1")
	if err != nil {
		t.Fatalf("second Finalize failed: %v", err)
	}

	if first.Filename != second.Filename || first.Size != second.Size {
		t.Errorf("repeat finalize returned a different result: %+v vs %+v", first, second)
	}
	if len(blobs.Saves()) != 1 {
		t.Errorf("blob must be written exactly once, got %d writes", len(blobs.Saves()))
	}
}

func TestFinalizeUnknownSession(t *testing.T) {
	svc := newRecordingService(&fakeBlobStore{}, &fakeStore{})

	_, err := svc.Finalize("missing")
	if !errors.Is(err, ErrUnknownSession) {
		t.Errorf("expected ErrUnknownSession, got %v", err)
	}
}

func TestFinalizeRecordsStoppedStatus(t *testing.T) {
	store := &fakeStore{}
	svc := newRecordingService(&fakeBlobStore{}, store)

	svc.AppendChunk("s1", []byte("one"), "audio/ogg")
	svc.AppendChunk("s1", []byte("two"), "")
	if _, err := svc.Finalize("s1"); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	upserts := store.SessionUpserts()
	if len(upserts) != 1 {
		t.Fatalf("expected one session upsert, got %d", len(upserts))
	}
	fields := upserts[0].fields
	if fields["status"] != "stopped" {
		t.Errorf("expected status stopped, got %v", fields["status"])
	}
	if fields["mime"] != "audio/ogg" {
		t.Errorf("expected mime audio/ogg, got %v", fields["mime"])
	}
	if fields["chunkCount"] != 2 {
		t.Errorf("expected chunkCount 2, got %v", fields["chunkCount"])
	}
}

func TestFinalizeSurvivesStoreFailure(t *testing.T) {
	svc := newRecordingService(&fakeBlobStore{}, &fakeStore{failWrites: true})

	svc.AppendChunk("s1", []byte("audio"), "audio/webm")
	if _, err := svc.Finalize("s1"); err != nil {
		t.Errorf("persistence failure must not fail finalize: %v", err)
	}
}

func TestAudioData(t *testing.T) {
	blobs := &fakeBlobStore{}
	svc := newRecordingService(blobs, &fakeStore{})

	svc.AppendChunk("s1", []byte("payload"), "audio/webm")
	if _, err := svc.Finalize("s1"); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	data, mime, err := svc.AudioData("s1")
	if err != nil {
		t.Fatalf("AudioData failed: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("unexpected audio data %q", data)
	}
	if mime != "audio/webm" {
		t.Errorf("unexpected mime %q", mime)
	}

	if _, _, err := svc.AudioData("missing"); err == nil {
		t.Error("expected error for unknown session")
	}
}

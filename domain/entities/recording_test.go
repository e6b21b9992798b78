package entities

import (
	"bytes"
	"testing"
)

func TestAppendRespectsClose(t *testing.T) {
	s := NewRecordingSession("s1", "audio/webm")

	if !s.Append([]byte("one"), "") {
		t.Fatal("append to open session should succeed")
	}
	s.Close()
	if s.Append([]byte("late"), "") {
		t.Error("append to closed session should be refused")
	}
	if s.ChunkCount() != 1 {
		t.Errorf("late chunk must not be buffered, count %d", s.ChunkCount())
	}
}

func TestCloseConcatenatesOnce(t *testing.T) {
	s := NewRecordingSession("s1", "audio/webm")
	chunks := [][]byte{[]byte("aa"), []byte("b"), []byte("ccc")}
	for _, c := range chunks {
		s.Append(c, "")
	}

	audio, first := s.Close()
	if !first {
		t.Fatal("first close should report the transition")
	}
	if !bytes.Equal(audio, bytes.Join(chunks, nil)) {
		t.Errorf("unexpected concatenation %q", audio)
	}

	again, first := s.Close()
	if first {
		t.Error("second close should not report a transition")
	}
	if !bytes.Equal(again, audio) {
		t.Error("repeat close must return the same bytes")
	}
}

func TestMimeTracksLastSeen(t *testing.T) {
	s := NewRecordingSession("s1", "")
	s.Append([]byte("x"), "audio/webm")
	s.Append([]byte("y"), "")
	if got := s.Mime(); got != "audio/webm" {
		t.Errorf("empty mime must not overwrite, got %q", got)
	}
	s.Append([]byte("z"), "audio/ogg")
	if got := s.Mime(); got != "audio/ogg" {
		t.Errorf("got %q", got)
	}
}

func TestAudioOnlyAfterClose(t *testing.T) {
	s := NewRecordingSession("s1", "audio/webm")
	s.Append([]byte("data"), "")

	if _, ok := s.Audio(); ok {
		t.Error("audio should not be readable before close")
	}
	s.Close()
	audio, ok := s.Audio()
	if !ok || string(audio) != "data" {
		t.Errorf("unexpected audio %q, ok=%v", audio, ok)
	}
}

package websocket

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/scrybe/scrybe-server/adapters/stt"
	"github.com/scrybe/scrybe-server/domain/entities"
	"github.com/scrybe/scrybe-server/domain/repositories"
	"github.com/scrybe/scrybe-server/internal/metrics"
	"github.com/scrybe/scrybe-server/usecase"
)

// memBlobs is an in-memory repositories.BlobStore.
type memBlobs struct {
	blobs map[string][]byte
}

func (m *memBlobs) Save(sessionID string, data []byte) (*entities.SavedRecording, error) {
	if m.blobs == nil {
		m.blobs = make(map[string][]byte)
	}
	m.blobs[sessionID] = data
	return &entities.SavedRecording{
		Filename: sessionID + ".webm",
		Path:     "/recordings/" + sessionID + ".webm",
		Size:     len(data),
	}, nil
}

func (m *memBlobs) Load(sessionID string) ([]byte, error) {
	if data, ok := m.blobs[sessionID]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("no recording: %w", fs.ErrNotExist)
}

type testEnv struct {
	hub           *Hub
	recording     *usecase.RecordingService
	transcription *usecase.TranscriptionService
	recognizer    *stt.Mock
}

func newTestEnv(t testing.TB) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	m := metrics.New(prometheus.NewRegistry())
	hub := NewHub(m, logger)
	go hub.Run()

	recognizer := stt.NewMock()
	recording := usecase.NewRecordingService(&memBlobs{}, nil, m, logger)
	transcription := usecase.NewTranscriptionService(recognizer, nil, hub, m, usecase.TranscriptionConfig{
		PollInterval:  5 * time.Millisecond,
		FinalizeGrace: 10 * time.Millisecond,
	}, logger)

	return &testEnv{
		hub:           hub,
		recording:     recording,
		transcription: transcription,
		recognizer:    recognizer,
	}
}

// dial spins up an echo server around ServeWS and connects a client to it.
func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ec := echo.New()
	ec.GET("/ws", func(c echo.Context) error {
		return ServeWS(e.hub, c, e.recording, e.transcription, zap.NewNop())
	})
	srv := httptest.NewServer(ec)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	return msg
}

// readEventOfType skips events of other types, e.g. broadcasts interleaved
// with direct replies.
func readEventOfType(t *testing.T, conn *websocket.Conn, eventType string) map[string]interface{} {
	t.Helper()
	for i := 0; i < 10; i++ {
		msg := readEvent(t, conn)
		if msg["type"] == eventType {
			return msg
		}
	}
	t.Fatalf("no %s event received", eventType)
	return nil
}

func sendJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestHubRegistersAndCountsClients(t *testing.T) {
	env := newTestEnv(t)

	conn := env.dial(t)
	waitForCond(t, time.Second, func() bool { return env.hub.ClientCount() == 1 })

	conn.Close()
	waitForCond(t, time.Second, func() bool { return env.hub.ClientCount() == 0 })
}

func TestBroadcastReachesAllClients(t *testing.T) {
	env := newTestEnv(t)
	conn1 := env.dial(t)
	conn2 := env.dial(t)
	waitForCond(t, time.Second, func() bool { return env.hub.ClientCount() == 2 })

	env.hub.Broadcast(usecase.TranscriptPartial{
		Type:      usecase.EventTranscriptPartial,
		SessionID: "s1",
		Text:      "hello",
	})

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		msg := readEvent(t, conn)
		if msg["type"] != usecase.EventTranscriptPartial {
			t.Errorf("unexpected type %v", msg["type"])
		}
		if msg["text"] != "hello" {
			t.Errorf("unexpected text %v", msg["text"])
		}
	}
}

func TestBroadcastDoesNotBlockOnSlowClient(t *testing.T) {
	env := newTestEnv(t)

	slow := &Client{
		hub:    env.hub,
		id:     "slow",
		send:   make(chan []byte, 1),
		logger: zap.NewNop(),
	}
	env.hub.register <- slow
	waitForCond(t, time.Second, func() bool { return env.hub.ClientCount() == 1 })

	// Fill the buffer, then broadcast more than it can hold.
	for i := 0; i < 5; i++ {
		done := make(chan struct{})
		go func() {
			env.hub.Broadcast(usecase.TranscriptPartial{Type: usecase.EventTranscriptPartial, Text: "x"})
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("broadcast blocked on a slow client")
		}
	}
}

func TestAudioChunkIsAlwaysAcked(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	sendJSON(t, conn, InboundMessage{
		Type:      TypeAudioChunk,
		SessionID: "s1",
		Seq:       7,
		Mime:      "audio/webm",
		Bytes:     base64.StdEncoding.EncodeToString([]byte("audio")),
	})

	ack := readEventOfType(t, conn, TypeAudioAck)
	if ack["seq"] != float64(7) {
		t.Errorf("unexpected seq %v", ack["seq"])
	}

	// Malformed base64 still gets its ack.
	sendJSON(t, conn, InboundMessage{
		Type:      TypeAudioChunk,
		SessionID: "s1",
		Seq:       8,
		Bytes:     "!!! not base64 !!!",
	})
	ack = readEventOfType(t, conn, TypeAudioAck)
	if ack["seq"] != float64(8) {
		t.Errorf("unexpected seq %v", ack["seq"])
	}
}

func TestStopRecordingReturnsSavedMetadata(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	payload := []byte("chunk-data")
	sendJSON(t, conn, InboundMessage{
		Type:      TypeAudioChunk,
		SessionID: "s1",
		Seq:       1,
		Mime:      "audio/webm",
		Bytes:     base64.StdEncoding.EncodeToString(payload),
	})
	readEventOfType(t, conn, TypeAudioAck)

	sendJSON(t, conn, InboundMessage{Type: TypeStopRecording, SessionID: "s1"})
	saved := readEventOfType(t, conn, TypeRecordingSaved)
	if saved["ok"] != true {
		t.Fatalf("expected ok, got %v", saved)
	}
	if saved["size"] != float64(len(payload)) {
		t.Errorf("unexpected size %v", saved["size"])
	}
	if saved["filename"] != "s1.webm" {
		t.Errorf("unexpected filename %v", saved["filename"])
	}
}

func TestStopRecordingUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	sendJSON(t, conn, InboundMessage{Type: TypeStopRecording, SessionID: "ghost"})
	saved := readEventOfType(t, conn, TypeRecordingSaved)
	if saved["ok"] != false {
		t.Errorf("expected ok false, got %v", saved["ok"])
	}
	if saved["error"] != "unknown session" {
		t.Errorf("unexpected error %v", saved["error"])
	}
}

func TestTranscriptionOverWebSocket(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	sendJSON(t, conn, InboundMessage{Type: TypeStartTranscription, SessionID: "s1"})
	waitForCond(t, time.Second, func() bool { return env.recognizer.LastStream() != nil })

	sendJSON(t, conn, InboundMessage{
		Type:      TypeAudioChunk,
		SessionID: "s1",
		Seq:       1,
		Bytes:     base64.StdEncoding.EncodeToString([]byte("opus-frame")),
	})
	readEventOfType(t, conn, TypeAudioAck)

	stream := env.recognizer.LastStream()
	waitForCond(t, time.Second, func() bool { return len(stream.Sent()) == 1 })

	text := "hello"
	stream.Emit(mockResult(text, false))
	partial := readEventOfType(t, conn, usecase.EventTranscriptPartial)
	if partial["text"] != text {
		t.Errorf("unexpected partial %v", partial["text"])
	}

	stream.Emit(mockResult(text, true))
	readEventOfType(t, conn, usecase.EventTranscriptPatch)

	sendJSON(t, conn, InboundMessage{Type: TypeFinalizeTranscription, SessionID: "s1"})
	final := readEventOfType(t, conn, usecase.EventTranscriptFinal)
	if final["text"] != text {
		t.Errorf("unexpected final %v", final["text"])
	}
}

func TestDisconnectStopsTranscriptions(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	sendJSON(t, conn, InboundMessage{Type: TypeStartTranscription, SessionID: "s1"})
	waitForCond(t, time.Second, func() bool { return env.transcription.Running("s1") })

	conn.Close()
	waitForCond(t, time.Second, func() bool { return !env.transcription.Running("s1") })
}

func mockResult(text string, isFinal bool) repositories.RecognitionResult {
	start, end, conf := 0.0, 0.5, 0.9
	return repositories.RecognitionResult{
		Transcript: text,
		IsFinal:    isFinal,
		Words: []repositories.RecognitionWord{
			{Text: text, Start: &start, End: &end, Confidence: &conf},
		},
	}
}

func waitForCond(t *testing.T, timeout time.Duration, cond func() bool) {
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

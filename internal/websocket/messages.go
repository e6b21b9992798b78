package websocket

// Inbound message types.
const (
	TypeAudioChunk            = "audio_chunk"
	TypeStopRecording         = "stop_recording"
	TypeStartTranscription    = "start_transcription"
	TypeFinalizeTranscription = "finalize_transcription"
)

// Outbound message types. Transcript events are defined in the usecase
// package; these are the direct replies owned by the transport.
const (
	TypeAudioAck       = "audio_ack"
	TypeRecordingSaved = "recording_saved"
)

// InboundMessage is the envelope for every JSON text frame a client sends.
// Fields beyond Type are populated per message type.
type InboundMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Seq       int    `json:"seq"`
	Mime      string `json:"mime,omitempty"`
	// Bytes carries the base64-encoded audio payload of an audio_chunk.
	Bytes string `json:"bytes,omitempty"`
}

// AudioAck is the direct reply to every audio_chunk, sent regardless of
// whether the chunk was buffered or dropped.
type AudioAck struct {
	Type string `json:"type"`
	Seq  int    `json:"seq"`
}

// RecordingSaved is the direct reply to stop_recording.
type RecordingSaved struct {
	Type      string `json:"type"`
	OK        bool   `json:"ok"`
	SessionID string `json:"sessionId,omitempty"`
	Size      int    `json:"size,omitempty"`
	Filename  string `json:"filename,omitempty"`
	Error     string `json:"error,omitempty"`
}

package repositories

import "context"

// RecognitionWord is a word-level detail from one recognition event.
// Times are seconds from stream start; nil when the provider omits them.
type RecognitionWord struct {
	Text       string
	Start      *float64
	End        *float64
	Confidence *float64
}

// RecognitionResult is one interim or final event from the recognizer's
// primary alternative. Interim transcripts may be superseded; a final
// transcript settles the current segment.
type RecognitionResult struct {
	Transcript string
	IsFinal    bool
	Words      []RecognitionWord
}

// RecognitionHandler receives events from a live recognition stream.
// OnError is invoked for stream errors, which are advisory: the session
// keeps running until it is explicitly finalized.
type RecognitionHandler struct {
	OnResult func(RecognitionResult)
	OnError  func(error)
}

// RecognitionStream is an open live connection to the recognizer.
type RecognitionStream interface {
	// Send transmits raw audio bytes. Errors may be transient; callers are
	// expected to log and continue.
	Send(data []byte) error
	// Close signals end of audio and releases the connection. Idempotent.
	Close() error
}

// Recognizer abstracts the streaming speech-to-text provider.
type Recognizer interface {
	// Available reports whether the provider is configured with credentials.
	Available() bool
	// Open dials a live recognition stream with interim results, punctuation
	// and formatting enabled, delivering events to handler from a background
	// goroutine.
	Open(ctx context.Context, handler RecognitionHandler) (RecognitionStream, error)
}

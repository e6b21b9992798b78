package entities

import "time"

// Word is a single recognized word addressed by wid
// ("<sessionId>:<segmentId>:<index>"). The index is the word's position in
// the recognition event that produced it and is not stable across revisions
// of the same segment. Times and confidence are provider-supplied and may
// be absent.
type Word struct {
	WID        string   `json:"wid" bson:"wid"`
	Text       string   `json:"text" bson:"text"`
	Start      *float64 `json:"t0" bson:"t0"`
	End        *float64 `json:"t1" bson:"t1"`
	Confidence *float64 `json:"confidence" bson:"confidence"`
}

// Segment is the persisted unit of finalized speech. Identity is the
// (sessionId, segmentId) pair; resends upsert the same document.
type Segment struct {
	SessionID string    `json:"sessionId" bson:"sessionId"`
	SegmentID string    `json:"segmentId" bson:"segmentId"`
	IsFinal   bool      `json:"isFinal" bson:"isFinal"`
	Words     []Word    `json:"words" bson:"words"`
	CreatedAt time.Time `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// SessionRecord is the persisted session document. Fields are merged on
// every upsert, so any subset may be present.
type SessionRecord struct {
	SessionID  string    `json:"sessionId" bson:"sessionId"`
	Status     string    `json:"status,omitempty" bson:"status,omitempty"`
	FinalText  string    `json:"finalText,omitempty" bson:"finalText,omitempty"`
	AudioPath  string    `json:"audioPath,omitempty" bson:"audioPath,omitempty"`
	Mime       string    `json:"mime,omitempty" bson:"mime,omitempty"`
	ChunkCount int       `json:"chunkCount,omitempty" bson:"chunkCount,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

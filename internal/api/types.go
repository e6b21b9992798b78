package api

import "github.com/scrybe/scrybe-server/domain/entities"

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// SessionListResponse wraps the session listing.
type SessionListResponse struct {
	Sessions []entities.SessionRecord `json:"sessions"`
}

// SessionDetailResponse carries one session with its ordered segments plus
// the convenience fields clients render directly.
type SessionDetailResponse struct {
	Session   entities.SessionRecord `json:"session"`
	Segments  []entities.Segment     `json:"segments"`
	FinalText string                 `json:"finalText"`
	AudioPath string                 `json:"audioPath,omitempty"`
	Mime      string                 `json:"mime,omitempty"`
}

package repositories

import "github.com/scrybe/scrybe-server/domain/entities"

// BlobStore writes finalized audio blobs and reads them back for playback.
type BlobStore interface {
	// Save writes the blob exactly once and returns where it landed.
	Save(sessionID string, data []byte) (*entities.SavedRecording, error)
	// Load returns the stored blob for a session, matching by filename
	// prefix. Returns an error satisfying errors.Is(err, fs.ErrNotExist)
	// when no recording exists.
	Load(sessionID string) ([]byte, error)
}

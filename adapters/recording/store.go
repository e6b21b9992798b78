// Package recording stores finalized audio blobs on the local filesystem.
package recording

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scrybe/scrybe-server/domain/entities"
)

// Store implements repositories.BlobStore over a single directory.
// Recordings are named <sessionId>_<timestamp>.webm.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates the recordings directory if needed.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create recordings dir %s: %w", dir, err)
	}
	logger.Info("Recordings directory ready", zap.String("dir", dir))
	return &Store{dir: dir, logger: logger}, nil
}

// Save implements repositories.BlobStore.
func (s *Store) Save(sessionID string, data []byte) (*entities.SavedRecording, error) {
	ts := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s.webm", sessionID, ts)
	path := filepath.Join(s.dir, filename)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write recording %s: %w", path, err)
	}

	s.logger.Info("Saved recording",
		zap.String("sessionId", sessionID),
		zap.String("path", path),
		zap.Int("bytes", len(data)))

	return &entities.SavedRecording{
		Filename: filename,
		Path:     path,
		Size:     len(data),
	}, nil
}

// Load implements repositories.BlobStore. It scans the directory for the
// first file whose name starts with the session id, covering restarts where
// the in-memory buffer is gone but the file survived.
func (s *Store) Load(sessionID string) ([]byte, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read recordings dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), sessionID) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read recording %s: %w", entry.Name(), err)
		}
		return data, nil
	}

	return nil, fmt.Errorf("no recording for session %s: %w", sessionID, fs.ErrNotExist)
}

package persist

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FSStore implements Store using the filesystem: checkpoints live under
// <baseDir>/sessions/<sessionID>/checkpoint.json. Writes use a temp-file-
// then-rename pattern so a reader never observes a partial write.
type FSStore struct {
	baseDir string
}

// NewFSStore returns an FSStore rooted at baseDir, creating it if absent.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("persist: create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

func (fs *FSStore) sessionDir(sessionID string) string {
	return filepath.Join(fs.baseDir, "sessions", sessionID)
}

func (fs *FSStore) checkpointPath(sessionID string) string {
	return filepath.Join(fs.sessionDir(sessionID), "checkpoint.json")
}

// SaveCheckpoint implements Store.
func (fs *FSStore) SaveCheckpoint(sessionID string, checkpoint *Checkpoint) error {
	if sessionID == "" {
		return fmt.Errorf("persist: sessionID cannot be empty")
	}
	if checkpoint == nil {
		return fmt.Errorf("persist: checkpoint cannot be nil")
	}

	dir := fs.sessionDir(sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("persist: create session directory: %w", err)
	}

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("persist: serialize checkpoint: %w", err)
	}

	finalPath := fs.checkpointPath(sessionID)
	tempPath := finalPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("persist: write temp checkpoint file: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("persist: rename checkpoint file: %w", err)
	}

	slog.Debug("persist: checkpoint saved", "session_id", sessionID, "path", finalPath)
	return nil
}

// LoadCheckpoint implements Store.
func (fs *FSStore) LoadCheckpoint(sessionID string) (*Checkpoint, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("persist: sessionID cannot be empty")
	}

	path := fs.checkpointPath(sessionID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &NotFoundError{SessionID: sessionID}
	} else if err != nil {
		return nil, fmt.Errorf("persist: stat checkpoint file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("persist: read checkpoint file: %w", err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("persist: deserialize checkpoint: %w", err)
	}

	slog.Debug("persist: checkpoint loaded", "session_id", sessionID, "path", path)
	return &checkpoint, nil
}

// ListCheckpoints implements Store.
func (fs *FSStore) ListCheckpoints() ([]CheckpointInfo, error) {
	sessionsDir := filepath.Join(fs.baseDir, "sessions")

	if _, err := os.Stat(sessionsDir); os.IsNotExist(err) {
		return []CheckpointInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("persist: stat sessions directory: %w", err)
	}

	entries, err := os.ReadDir(sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("persist: read sessions directory: %w", err)
	}

	var infos []CheckpointInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		sessionID := entry.Name()
		if _, err := os.Stat(fs.checkpointPath(sessionID)); os.IsNotExist(err) {
			continue
		}

		checkpoint, err := fs.LoadCheckpoint(sessionID)
		if err != nil {
			slog.Warn("persist: failed to load checkpoint for listing", "session_id", sessionID, "error", err)
			continue
		}
		infos = append(infos, checkpoint.ToInfo())
	}

	slog.Debug("persist: listed checkpoints", "count", len(infos))
	return infos, nil
}

// DeleteCheckpoint implements Store.
func (fs *FSStore) DeleteCheckpoint(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("persist: sessionID cannot be empty")
	}

	dir := fs.sessionDir(sessionID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{SessionID: sessionID}
	} else if err != nil {
		return fmt.Errorf("persist: stat session directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("persist: remove session directory: %w", err)
	}

	slog.Debug("persist: checkpoint deleted", "session_id", sessionID, "path", dir)
	return nil
}

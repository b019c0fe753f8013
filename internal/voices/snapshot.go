package voices

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/book-expert/voice-service/internal/fsutil"
)

// Snapshot is the warm-restart file capturing the voice and API key maps.
type Snapshot struct {
	Voices  map[string]Entry    `json:"voices"`
	APIKeys map[string][]string `json:"api_keys"`
}

// LoadSnapshot reads the snapshot at path. A missing file yields an empty snapshot.
func LoadSnapshot(path string) (Snapshot, error) {
	snapshot := Snapshot{
		Voices:  map[string]Entry{},
		APIKeys: map[string][]string{},
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return snapshot, nil
	}

	if err != nil {
		return snapshot, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}

	unmarshalErr := json.Unmarshal(data, &snapshot)
	if unmarshalErr != nil {
		return snapshot, fmt.Errorf("failed to parse snapshot %s: %w", path, unmarshalErr)
	}

	if snapshot.Voices == nil {
		snapshot.Voices = map[string]Entry{}
	}

	if snapshot.APIKeys == nil {
		snapshot.APIKeys = map[string][]string{}
	}

	return snapshot, nil
}

// SaveSnapshot writes snapshot to path atomically.
func SaveSnapshot(path string, snapshot Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	writeErr := fsutil.WriteBytesAtomic(path, data)
	if writeErr != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", path, writeErr)
	}

	return nil
}

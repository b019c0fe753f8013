package voices_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/voice-service/internal/voices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSnapshot_Missing(t *testing.T) {
	t.Parallel()

	snapshot, err := voices.LoadSnapshot(filepath.Join(t.TempDir(), "voice_store.json"))
	require.NoError(t, err)
	assert.Empty(t, snapshot.Voices)
	assert.Empty(t, snapshot.APIKeys)
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", "voice_store.json")
	created := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	original := voices.Snapshot{
		Voices: map[string]voices.Entry{
			"voice_saad": {AudioPath: "samples/saad.wav", TextPath: "samples/saad.txt", VoiceName: "Saad", CreatedAt: created},
		},
		APIKeys: map[string][]string{"sk_abc": {"voice_saad"}},
	}

	require.NoError(t, voices.SaveSnapshot(path, original))

	loaded, err := voices.LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, original.APIKeys, loaded.APIKeys)
	assert.Equal(t, "Saad", loaded.Voices["voice_saad"].VoiceName)
	assert.True(t, created.Equal(loaded.Voices["voice_saad"].CreatedAt))
}

func TestLoadSnapshot_Corrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "voice_store.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := voices.LoadSnapshot(path)
	require.Error(t, err)
}

func TestLoadSnapshot_PartialDocument(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "voice_store.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"voices":{}}`), 0o600))

	snapshot, err := voices.LoadSnapshot(path)
	require.NoError(t, err)
	assert.NotNil(t, snapshot.APIKeys)
}

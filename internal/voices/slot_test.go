package voices_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/voices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTranscribe = errors.New("transcription failed")

func writeAudio(content string) func(string) error {
	return func(path string) error {
		return os.WriteFile(path, []byte(content), 0o600)
	}
}

func TestReferenceSlot_Overwrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	slot := voices.NewReferenceSlot(filepath.Join(dir, "reference.wav"), filepath.Join(dir, "reference.txt"))

	_, err := slot.Current()
	require.ErrorIs(t, err, core.ErrReferenceUnavailable)

	first, err := slot.Overwrite(writeAudio("one"), func(string) (string, error) { return " first words \n", nil })
	require.NoError(t, err)
	assert.Equal(t, "first words", first.Transcript)

	second, err := slot.Overwrite(writeAudio("two"), func(string) (string, error) { return "second words", nil })
	require.NoError(t, err)
	assert.Equal(t, first.AudioPath, second.AudioPath, "the slot has a single audio file")

	current, err := slot.Current()
	require.NoError(t, err)
	assert.Equal(t, "second words", current.Transcript)

	audio, err := os.ReadFile(slot.AudioPath())
	require.NoError(t, err)
	assert.Equal(t, "two", string(audio))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestReferenceSlot_TranscriptionFailureKeepsPreviousPair(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	slot := voices.NewReferenceSlot(filepath.Join(dir, "reference.wav"), filepath.Join(dir, "reference.txt"))

	_, err := slot.Overwrite(writeAudio("one"), func(string) (string, error) { return "kept", nil })
	require.NoError(t, err)

	var transcribed string

	_, err = slot.Overwrite(writeAudio("two"), func(path string) (string, error) {
		transcribed = path

		return "", errTranscribe
	})
	require.ErrorIs(t, err, errTranscribe)
	assert.NotEqual(t, slot.AudioPath(), transcribed, "the upload is transcribed before it replaces the slot")

	current, err := slot.Current()
	require.NoError(t, err)
	assert.Equal(t, "kept", current.Transcript)

	audio, err := os.ReadFile(slot.AudioPath())
	require.NoError(t, err)
	assert.Equal(t, "one", string(audio), "audio and transcript stay a matching pair")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "the staged upload is removed")
}

func TestReferenceSlot_StoreFailureLeavesSlotUntouched(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	slot := voices.NewReferenceSlot(filepath.Join(dir, "reference.wav"), filepath.Join(dir, "reference.txt"))

	_, err := slot.Overwrite(writeAudio("one"), func(string) (string, error) { return "kept", nil })
	require.NoError(t, err)

	_, err = slot.Overwrite(func(path string) error {
		require.NoError(t, os.WriteFile(path, []byte("partial"), 0o600))

		return core.ErrConversionFailure
	}, func(string) (string, error) { return "unused", nil })
	require.ErrorIs(t, err, core.ErrConversionFailure)

	audio, err := os.ReadFile(slot.AudioPath())
	require.NoError(t, err)
	assert.Equal(t, "one", string(audio))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

package transcribe_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/transcribe"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "transcribe-test.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	return log
}

func writeAudio(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "reference.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF....WAVE"), 0o600))

	return path
}

func TestWhisperClient_Transcribe(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"  Hello from the reference.  "}`))
	}))
	defer server.Close()

	client := transcribe.New("test-key", config.LLMConfig{TranscribeModel: "whisper-1"}, newTestLogger(t),
		option.WithBaseURL(server.URL), option.WithMaxRetries(0))

	require.True(t, client.Available())

	transcript, err := client.Transcribe(context.Background(), writeAudio(t))
	require.NoError(t, err)
	assert.Equal(t, "Hello from the reference.", transcript)
}

func TestWhisperClient_EmptyTranscript(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"   "}`))
	}))
	defer server.Close()

	client := transcribe.New("test-key", config.LLMConfig{}, newTestLogger(t),
		option.WithBaseURL(server.URL), option.WithMaxRetries(0))

	_, err := client.Transcribe(context.Background(), writeAudio(t))
	require.ErrorIs(t, err, transcribe.ErrEmptyTranscript)
}

func TestWhisperClient_ServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad audio"}}`))
	}))
	defer server.Close()

	client := transcribe.New("test-key", config.LLMConfig{}, newTestLogger(t),
		option.WithBaseURL(server.URL), option.WithMaxRetries(0))

	_, err := client.Transcribe(context.Background(), writeAudio(t))
	require.Error(t, err)
}

func TestWhisperClient_NoKey(t *testing.T) {
	t.Parallel()

	client := transcribe.New("", config.LLMConfig{}, newTestLogger(t))

	assert.False(t, client.Available())

	_, err := client.Transcribe(context.Background(), writeAudio(t))
	require.ErrorIs(t, err, transcribe.ErrAPIKeyMissing)
}

func TestWhisperClient_MissingFile(t *testing.T) {
	t.Parallel()

	client := transcribe.New("test-key", config.LLMConfig{}, newTestLogger(t))

	_, err := client.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)
}

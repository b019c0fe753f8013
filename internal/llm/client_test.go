package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/llm"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completionResponse = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "openai/gpt-4-turbo",
  "choices": [{"index": 0, "finish_reason": "stop",
    "message": {"role": "assistant", "content": "  1. What is a goroutine?  "}}],
  "usage": {"prompt_tokens": 10, "completion_tokens": 8, "total_tokens": 18}
}`

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "llm-test.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	return log
}

func TestClient_Complete(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer router-key", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "openai/gpt-4-turbo", body["model"])
		assert.InDelta(t, 300, body["max_tokens"], 0)
		assert.InDelta(t, 0.7, body["temperature"], 1e-9)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionResponse))
	}))
	defer server.Close()

	client := llm.New("router-key", config.LLMConfig{BaseURL: server.URL}, newTestLogger(t), option.WithMaxRetries(0))
	require.True(t, client.Available())

	reply, err := client.Complete(context.Background(), "Ask me something", core.CompletionOptions{MaxTokens: 300, Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, "1. What is a goroutine?", reply)
}

func TestClient_NoChoices(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	}))
	defer server.Close()

	client := llm.New("router-key", config.LLMConfig{BaseURL: server.URL}, newTestLogger(t), option.WithMaxRetries(0))

	_, err := client.Complete(context.Background(), "prompt", core.CompletionOptions{})
	require.ErrorIs(t, err, llm.ErrNoChoices)
}

func TestClient_Unconfigured(t *testing.T) {
	t.Parallel()

	client := llm.New("", config.LLMConfig{}, newTestLogger(t))
	assert.False(t, client.Available())

	_, err := client.Complete(context.Background(), "prompt", core.CompletionOptions{})
	require.ErrorIs(t, err, llm.ErrNotConfigured)

	var fallback core.TextCompleter = llm.Unavailable{}
	assert.False(t, fallback.Available())
}

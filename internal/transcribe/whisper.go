// Package transcribe converts reference recordings to text through the OpenAI Whisper API.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/config"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	openAIBaseURL         = "https://api.openai.com/v1"
	logFmtTranscribed     = "Transcribed %s (%d characters)"
	errFmtOpenAudio       = "failed to open audio file %s: %w"
	errFmtTranscription   = "transcription of %s failed: %w"
	errFmtEmptyTranscript = "%w: %s"
)

// Static errors.
var (
	ErrAPIKeyMissing   = errors.New("OPENAI_API_KEY is not set")
	ErrEmptyTranscript = errors.New("transcription returned no text")
)

// WhisperClient implements core.Transcriber.
type WhisperClient struct {
	client  openai.Client
	model   openai.AudioModel
	enabled bool
	logger  *logger.Logger
}

// New creates a Whisper client. Without an API key the client reports itself unavailable
// and every call fails with ErrAPIKeyMissing.
func New(apiKey string, cfg config.LLMConfig, log *logger.Logger, opts ...option.RequestOption) *WhisperClient {
	model := cfg.TranscribeModel
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}

	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(openAIBaseURL),
	}, opts...)

	return &WhisperClient{
		client:  openai.NewClient(clientOpts...),
		model:   openai.AudioModel(model),
		enabled: apiKey != "",
		logger:  log,
	}
}

// Available reports whether an API key is configured.
func (w *WhisperClient) Available() bool {
	return w.enabled
}

// Transcribe returns the trimmed transcript of the audio file at audioPath.
func (w *WhisperClient) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if !w.enabled {
		return "", ErrAPIKeyMissing
	}

	file, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf(errFmtOpenAudio, audioPath, err)
	}
	defer file.Close()

	resp, err := w.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  file,
		Model: w.model,
	})
	if err != nil {
		return "", fmt.Errorf(errFmtTranscription, audioPath, err)
	}

	transcript := strings.TrimSpace(resp.Text)
	if transcript == "" {
		return "", fmt.Errorf(errFmtEmptyTranscript, ErrEmptyTranscript, audioPath)
	}

	w.logger.Info(logFmtTranscribed, audioPath, len(transcript))

	return transcript, nil
}

package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/voice-service/internal/audio"
	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/core"
)

// API endpoints and paths.
const (
	apiEncodeReference = "/v1/encode/reference"
	apiGenerateSpeech  = "/v1/generate/speech"
	apiHealth          = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeWAV    = "audio/wav"
)

// HealthCheckTimeout bounds a single health probe.
const HealthCheckTimeout = 10 * time.Second

// Error messages.
const (
	errUnexpectedContentType   = "unexpected content type: expected audio/wav, got %s"
	errFmtServiceErrorWithCode = "inference service error (%s): %s (code: %s)"
	errFmtServiceNonOKStatus   = "inference service returned non-OK status: %s, body: %s"
	errFmtSampleRateMismatch   = "inference service returned %d Hz audio, expected %d Hz"
)

// Static errors.
var (
	ErrAudioPathEmpty     = errors.New("reference audio path cannot be empty")
	ErrTextEmpty          = errors.New("text cannot be empty")
	ErrEmptyAudio         = errors.New("received empty audio data")
	ErrEmptyReference     = errors.New("received empty reference encoding")
	ErrSampleRateMismatch = errors.New("sample rate mismatch")
)

// EncodeRequest asks the inference server to encode a reference waveform.
type EncodeRequest struct {
	RefAudioPath string `json:"ref_audio_path"`
}

// EncodeResponse carries the speaker encoding.
type EncodeResponse struct {
	RefCodes []int `json:"ref_codes"`
}

// SpeechRequest defines the JSON payload for one synthesis call.
type SpeechRequest struct {
	// Text is the chunk to render.
	Text string `json:"text"`
	// RefCodes is the reference encoding returned by the encode endpoint.
	RefCodes []int `json:"ref_codes"`
	// RefText is the transcript of the reference audio.
	RefText     string  `json:"ref_text"`
	Language    string  `json:"language"`
	Temperature float64 `json:"temperature"`
}

// ErrorResponse represents a structured error response from the inference server.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// HTTPSynthesizer implements core.Synthesizer against the standalone inference server.
type HTTPSynthesizer struct {
	httpClient  *http.Client
	baseURL     string
	language    string
	temperature float64
	sampleRate  int
}

// NewHTTPSynthesizer creates a synthesizer client. Audio returned by the server must be
// encoded at sampleRate.
func NewHTTPSynthesizer(cfg config.SynthesizerConfig, sampleRate int) *HTTPSynthesizer {
	if cfg.Language == "" {
		cfg.Language = config.DefaultLanguage
	}

	if cfg.Temperature == 0 {
		cfg.Temperature = config.DefaultTemperature
	}

	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = config.DefaultSynthesizerTimeout
	}

	return &HTTPSynthesizer{
		httpClient:  &http.Client{Timeout: cfg.Timeout()},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		language:    cfg.Language,
		temperature: cfg.Temperature,
		sampleRate:  sampleRate,
	}
}

// EncodeReference returns the speaker encoding of the waveform at audioPath. The path is
// resolved by the inference server, which shares the service's filesystem.
func (s *HTTPSynthesizer) EncodeReference(ctx context.Context, audioPath string) (core.ReferenceEncoding, error) {
	if audioPath == "" {
		return nil, ErrAudioPathEmpty
	}

	resp, err := s.postJSON(ctx, apiEncodeReference, EncodeRequest{RefAudioPath: audioPath}, contentTypeJSON)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var encoded EncodeResponse

	decodeErr := json.NewDecoder(resp.Body).Decode(&encoded)
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode reference encoding: %w", decodeErr)
	}

	if len(encoded.RefCodes) == 0 {
		return nil, ErrEmptyReference
	}

	return core.ReferenceEncoding(encoded.RefCodes), nil
}

// Infer renders text in the voice described by ref and refText.
func (s *HTTPSynthesizer) Infer(
	ctx context.Context,
	text string,
	ref core.ReferenceEncoding,
	refText string,
) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrTextEmpty
	}

	payload := SpeechRequest{
		Text:        text,
		RefCodes:    ref,
		RefText:     refText,
		Language:    s.language,
		Temperature: s.temperature,
	}

	resp, err := s.postJSON(ctx, apiGenerateSpeech, payload, contentTypeWAV)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get(headerContentType)
	if contentType != contentTypeWAV {
		return nil, fmt.Errorf(errUnexpectedContentType, contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}

	samples, rate, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, err
	}

	if rate != s.sampleRate {
		return nil, fmt.Errorf("%w: "+errFmtSampleRateMismatch, ErrSampleRateMismatch, rate, s.sampleRate)
	}

	return samples, nil
}

// HealthCheck verifies that the inference server is running.
func (s *HTTPSynthesizer) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed for service at %s: %w", s.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

func (s *HTTPSynthesizer) postJSON(ctx context.Context, path string, payload any, accept string) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(headerContentType, contentTypeJSON)
	req.Header.Set(headerAccept, accept)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to inference service at %s: %w", s.baseURL, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()

		return nil, parseErrorResponse(resp)
	}

	return resp, nil
}

// parseErrorResponse decodes a structured JSON error, falling back to the raw body.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errorResp ErrorResponse

	err := json.Unmarshal(body, &errorResp)
	if err == nil && errorResp.Detail != "" {
		return fmt.Errorf(errFmtServiceErrorWithCode, resp.Status, errorResp.Detail, errorResp.ErrorCode)
	}

	return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, string(body))
}

// Package core defines the collaborator interfaces and shared types of the voice service.
package core

import (
	"context"
	"time"
)

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// ReferenceEncoding is the opaque speaker encoding produced by a Synthesizer from a
// reference waveform. It is computed once per synthesis request and reused for every chunk.
type ReferenceEncoding []int

// Synthesizer renders speech in a cloned voice. Implementations are blocking.
type Synthesizer interface {
	EncodeReference(ctx context.Context, audioPath string) (ReferenceEncoding, error)
	Infer(ctx context.Context, text string, ref ReferenceEncoding, refText string) ([]float32, error)
}

// Transcriber converts a waveform file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// CompletionOptions tunes a single text-completion call.
type CompletionOptions struct {
	MaxTokens   int
	Temperature float64
}

// TextCompleter is an optional text-completion collaborator. Available reports whether
// the collaborator is configured; callers fall back to deterministic text when it is not.
type TextCompleter interface {
	Available() bool
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}

// VoiceProfile is a named reference voice held by the VoiceRegistry.
type VoiceProfile struct {
	Name         string    `json:"name"`
	VoiceID      string    `json:"voice_id,omitempty"`
	AudioPath    string    `json:"audio_path"`
	TextPath     string    `json:"text_path"`
	IsPredefined bool      `json:"is_predefined"`
	CreatedAt    time.Time `json:"created_at"`
	// AudioExists is derived at read time and never persisted.
	AudioExists bool `json:"audio_exists"`
}

// VoiceRegistry is the durable source of truth for voice profiles.
type VoiceRegistry interface {
	Seed(ctx context.Context, voices []VoiceProfile) error
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
	GetVoiceByName(ctx context.Context, name string) (VoiceProfile, error)
	AddVoice(ctx context.Context, voice VoiceProfile) error
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/book-expert/voice-service/internal/apikeys"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/tts"
	"github.com/book-expert/voice-service/internal/voices"
	"github.com/google/uuid"
)

const authorizedOutputFormat = "api_output_%s_%d_%s.wav"

// AuthorizedResult is the outcome of an authorized synthesis.
type AuthorizedResult struct {
	tts.Result

	VoiceID    string `json:"voice_id"`
	VoiceName  string `json:"voice_name"`
	TextLength int    `json:"text_length"`
}

// Synthesize renders text in the voice named by voiceRef, which may be a voice identifier
// issued by this service or a registry name. An empty voiceRef uses the reference slot.
// outputPath overrides the default output file when set.
func (s *Service) Synthesize(ctx context.Context, input, voiceRef, outputPath string) (tts.Result, error) {
	if strings.TrimSpace(input) == "" {
		return tts.Result{}, fmt.Errorf("%w: text", core.ErrInputMissing)
	}

	voice, err := s.resolveVoice(ctx, voiceRef)
	if err != nil {
		return tts.Result{}, err
	}

	return s.pipeline.Synthesize(ctx, tts.Request{
		Text:        input,
		Voice:       voice,
		OutputPath:  outputPath,
		DefaultName: tts.DefaultOutputName,
	})
}

// SynthesizeAuthorized gates Synthesize behind the API key registry. Checks run in order:
// the key must exist, text and voice identifier must be present, the voice must be granted
// to the key and the voice must be in the session store. No synthesizer call happens on denial.
func (s *Service) SynthesizeAuthorized(
	ctx context.Context,
	apiKey, voiceID, input, outputPath string,
) (AuthorizedResult, error) {
	entry, err := s.authorize(apiKey, voiceID, input)
	if err != nil {
		return AuthorizedResult{}, err
	}

	voice := tts.Voice{ID: voiceID, Name: entry.VoiceName, AudioPath: entry.AudioPath, TextPath: entry.TextPath}

	result, err := s.pipeline.Synthesize(ctx, tts.Request{
		Text:        input,
		Voice:       voice,
		OutputPath:  outputPath,
		DefaultName: fmt.Sprintf(authorizedOutputFormat, voiceID, time.Now().Unix(), uuid.NewString()[:8]),
	})
	if err != nil {
		return AuthorizedResult{}, err
	}

	s.logger.Info("Authorized synthesis for key %s with voice %s: %s", apikeys.MaskKey(apiKey), voiceID, result.OutputPath)

	return AuthorizedResult{
		Result:     result,
		VoiceID:    voiceID,
		VoiceName:  entry.VoiceName,
		TextLength: len(input),
	}, nil
}

// Authorize runs the key, grant and store checks without synthesizing.
func (s *Service) Authorize(apiKey, voiceID string) error {
	if !s.keys.Exists(apiKey) {
		return s.deny(core.DenialUnknownKey, apikeys.MaskKey(apiKey))
	}

	_, err := s.checkVoice(apiKey, voiceID)

	return err
}

func (s *Service) authorize(apiKey, voiceID, input string) (voices.Entry, error) {
	if !s.keys.Exists(apiKey) {
		return voices.Entry{}, s.deny(core.DenialUnknownKey, apikeys.MaskKey(apiKey))
	}

	if strings.TrimSpace(input) == "" {
		return voices.Entry{}, fmt.Errorf("%w: text", core.ErrInputMissing)
	}

	return s.checkVoice(apiKey, voiceID)
}

func (s *Service) checkVoice(apiKey, voiceID string) (voices.Entry, error) {
	if strings.TrimSpace(voiceID) == "" {
		return voices.Entry{}, fmt.Errorf("%w: voice_id", core.ErrInputMissing)
	}

	if !s.keys.Allows(apiKey, voiceID) {
		return voices.Entry{}, s.deny(core.DenialVoiceNotGranted, voiceID)
	}

	entry, ok := s.voices.Get(voiceID)
	if !ok {
		return voices.Entry{}, s.deny(core.DenialVoiceNotFound, voiceID)
	}

	return entry, nil
}

func (s *Service) deny(reason core.DenialReason, identifier string) error {
	s.logger.Warn("Authorization denied (%s): %s", reason, identifier)

	return core.NewAuthorizationError(reason, identifier)
}

// resolveVoice maps a voice reference to its reference pair. Identifiers in the session
// store win over registry names.
func (s *Service) resolveVoice(ctx context.Context, voiceRef string) (tts.Voice, error) {
	voiceRef = strings.TrimSpace(voiceRef)

	if voiceRef == "" {
		ref, err := s.slot.Current()
		if err != nil {
			return tts.Voice{}, err
		}

		return tts.Voice{Name: "reference", AudioPath: ref.AudioPath, TextPath: ref.TextPath}, nil
	}

	entry, ok := s.voices.Get(voiceRef)
	if ok {
		return tts.Voice{ID: voiceRef, Name: entry.VoiceName, AudioPath: entry.AudioPath, TextPath: entry.TextPath}, nil
	}

	profile, err := s.registry.GetVoiceByName(ctx, voiceRef)
	if err != nil {
		if errors.Is(err, core.ErrVoiceNotFound) {
			return tts.Voice{}, fmt.Errorf("%w: %w", core.ErrReferenceUnavailable, err)
		}

		return tts.Voice{}, err
	}

	if !profile.AudioExists {
		return tts.Voice{}, fmt.Errorf("%w: audio for voice %q is missing", core.ErrReferenceUnavailable, profile.Name)
	}

	return tts.Voice{ID: profile.VoiceID, Name: profile.Name, AudioPath: profile.AudioPath, TextPath: profile.TextPath}, nil
}

// SpeakAs renders text with the registry voice named voiceName into outputName inside the
// output directory and returns the written path.
func (s *Service) SpeakAs(ctx context.Context, voiceName, input, outputName string) (string, error) {
	profile, err := s.registry.GetVoiceByName(ctx, voiceName)
	if err != nil {
		return "", err
	}

	if !profile.AudioExists {
		return "", fmt.Errorf("%w: audio for voice %q is missing", core.ErrReferenceUnavailable, profile.Name)
	}

	result, err := s.pipeline.Synthesize(ctx, tts.Request{
		Text:        input,
		Voice:       tts.Voice{ID: profile.VoiceID, Name: profile.Name, AudioPath: profile.AudioPath, TextPath: profile.TextPath},
		DefaultName: outputName,
	})
	if err != nil {
		return "", err
	}

	return result.OutputPath, nil
}

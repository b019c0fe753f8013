package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/voice-service/internal/apikeys"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/fsutil"
	"github.com/book-expert/voice-service/internal/voices"
	"github.com/google/uuid"
)

// DefaultCustomVoiceName names mappings registered without a display name.
const DefaultCustomVoiceName = "Custom Voice"

const transcribeTempFormat = "temp_transcribe_%s.wav"

// Mapping ties a voice identifier to the key that may use it.
type Mapping struct {
	VoiceID   string `json:"voice_id"`
	VoiceName string `json:"voice_name"`
	APIKey    string `json:"api_key"`
}

// IssuedKey is the result of IssueAPIKey.
type IssuedKey struct {
	Label      string    `json:"api_name"`
	APIKey     string    `json:"api_key"`
	VoiceIDs   []string  `json:"voice_ids"`
	VoiceCount int       `json:"voice_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// CustomVoice is a non-predefined registry voice with its reconciled identifier.
type CustomVoice struct {
	Name      string `json:"name"`
	VoiceID   string `json:"voice_id"`
	AudioPath string `json:"audio_path"`
	TextPath  string `json:"text_path"`
}

// PredefinedAPIs lists the mappings created for the predefined voices.
type PredefinedAPIs struct {
	Mappings []Mapping `json:"created_apis"`
	APIKey   string    `json:"api_key"`
}

// KeyVoice is a voice visible to an API key.
type KeyVoice struct {
	VoiceID   string    `json:"voice_id"`
	VoiceName string    `json:"voice_name"`
	CreatedAt time.Time `json:"created_at"`
}

// RegisterReferenceVoice stores the upload in the reference slot and transcribes it.
func (s *Service) RegisterReferenceVoice(ctx context.Context, src io.Reader, filename string) (voices.Reference, error) {
	if src == nil || strings.TrimSpace(filename) == "" {
		return voices.Reference{}, fmt.Errorf("%w: audio file", core.ErrInputMissing)
	}

	ref, err := s.slot.Overwrite(
		func(audioPath string) error {
			return s.converter.Convert(src, filename, audioPath)
		},
		func(audioPath string) (string, error) {
			return s.transcriber.Transcribe(ctx, audioPath)
		},
	)
	if err != nil {
		return voices.Reference{}, err
	}

	s.logger.Info("Registered reference voice from %s (%d transcript chars)", filename, len(ref.Transcript))

	return ref, nil
}

// Transcribe converts the upload to a temporary canonical file, transcribes it and removes
// the file whatever the outcome.
func (s *Service) Transcribe(ctx context.Context, src io.Reader, filename string) (string, error) {
	if src == nil || strings.TrimSpace(filename) == "" {
		return "", fmt.Errorf("%w: audio file", core.ErrInputMissing)
	}

	tempPath := filepath.Join(s.pipeline.OutputDir(), fmt.Sprintf(transcribeTempFormat, uuid.NewString()[:8]))

	defer func() {
		removeErr := os.Remove(tempPath)
		if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			s.logger.Warn("Failed to remove temp file '%s': %v", tempPath, removeErr)
		}
	}()

	convertErr := s.converter.Convert(src, filename, tempPath)
	if convertErr != nil {
		return "", convertErr
	}

	transcript, err := s.transcriber.Transcribe(ctx, tempPath)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(transcript), nil
}

// IssueVoiceAPIMapping registers a reference pair in the session store and grants it to
// the master key. A display name yields the stable slug identifier, otherwise a random one.
func (s *Service) IssueVoiceAPIMapping(audioPath, textPath, voiceName string) (Mapping, error) {
	if strings.TrimSpace(audioPath) == "" || strings.TrimSpace(textPath) == "" {
		return Mapping{}, fmt.Errorf("%w: audio_path and text_path", core.ErrInputMissing)
	}

	voiceName = strings.TrimSpace(voiceName)

	voiceID := voices.NewCustomID()
	if voiceName != "" {
		voiceID = voices.PredefinedID(voiceName)
	} else {
		voiceName = DefaultCustomVoiceName
	}

	s.voices.Put(voiceID, voices.Entry{AudioPath: audioPath, TextPath: textPath, VoiceName: voiceName})
	s.keys.GrantMaster(voiceID)

	s.logger.Info("Mapped voice %q to %s", voiceName, voiceID)

	return Mapping{VoiceID: voiceID, VoiceName: voiceName, APIKey: s.keys.MasterKey()}, nil
}

// IssueAPIKey mints a key granting every voice identifier known now. Voices added later
// are not granted to it.
func (s *Service) IssueAPIKey(label string) (IssuedKey, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return IssuedKey{}, fmt.Errorf("%w: api_name", core.ErrInputMissing)
	}

	s.loadPredefinedOnDisk()

	grant := s.keys.Issue(label, s.voices.IDs())

	s.logger.Info("Issued API key %s for %q with %d voices", apikeys.MaskKey(grant.Key), label, len(grant.VoiceIDs))

	return IssuedKey{
		Label:      label,
		APIKey:     grant.Key,
		VoiceIDs:   grant.VoiceIDs,
		VoiceCount: len(grant.VoiceIDs),
		CreatedAt:  time.Now(),
	}, nil
}

// ListVoices returns every registry voice, predefined first.
func (s *Service) ListVoices(ctx context.Context) ([]core.VoiceProfile, error) {
	return s.registry.ListVoices(ctx)
}

// SaveCustomVoice adds a named voice to the registry under a fresh identifier, maps it in
// the session store and grants it to the master key.
func (s *Service) SaveCustomVoice(ctx context.Context, name, audioPath, textPath string) (Mapping, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(audioPath) == "" || strings.TrimSpace(textPath) == "" {
		return Mapping{}, fmt.Errorf("%w: voice_name, audio_path and text_path", core.ErrInputMissing)
	}

	voiceID := voices.NewCustomID()

	err := s.registry.AddVoice(ctx, core.VoiceProfile{
		Name:      name,
		VoiceID:   voiceID,
		AudioPath: audioPath,
		TextPath:  textPath,
	})
	if err != nil {
		return Mapping{}, err
	}

	s.voices.Put(voiceID, voices.Entry{AudioPath: audioPath, TextPath: textPath, VoiceName: name})
	s.keys.GrantMaster(voiceID)

	s.logger.Info("Saved custom voice %q as %s", name, voiceID)

	return Mapping{VoiceID: voiceID, VoiceName: name, APIKey: s.keys.MasterKey()}, nil
}

// ListCustomVoices returns the custom registry voices with identifiers reconciled against
// the session store. A voice with no matching entry is inserted under a new identifier;
// repeated calls return the same identifier.
func (s *Service) ListCustomVoices(ctx context.Context) ([]CustomVoice, error) {
	profiles, err := s.registry.ListVoices(ctx)
	if err != nil {
		return nil, err
	}

	custom := make([]CustomVoice, 0, len(profiles))

	for _, profile := range profiles {
		if profile.IsPredefined {
			continue
		}

		voiceID, created := s.voices.Reconcile(profile.Name, profile.AudioPath, profile.TextPath, voices.NewCustomID)
		if created {
			s.keys.GrantMaster(voiceID)
			s.logger.Info("Reconciled custom voice %q to new identifier %s", profile.Name, voiceID)
		}

		custom = append(custom, CustomVoice{
			Name:      profile.Name,
			VoiceID:   voiceID,
			AudioPath: profile.AudioPath,
			TextPath:  profile.TextPath,
		})
	}

	return custom, nil
}

// CreatePredefinedAPIs maps every predefined registry voice whose audio exists to its slug
// identifier and grants it to the master key.
func (s *Service) CreatePredefinedAPIs(ctx context.Context) (PredefinedAPIs, error) {
	profiles, err := s.registry.ListVoices(ctx)
	if err != nil {
		return PredefinedAPIs{}, err
	}

	result := PredefinedAPIs{Mappings: make([]Mapping, 0, len(profiles)), APIKey: s.keys.MasterKey()}

	for _, profile := range profiles {
		if !profile.IsPredefined || !profile.AudioExists {
			continue
		}

		voiceID := voices.PredefinedID(profile.Name)
		s.voices.Put(voiceID, voices.Entry{AudioPath: profile.AudioPath, TextPath: profile.TextPath, VoiceName: profile.Name})
		s.keys.GrantMaster(voiceID)

		result.Mappings = append(result.Mappings, Mapping{VoiceID: voiceID, VoiceName: profile.Name, APIKey: result.APIKey})
	}

	s.logger.Info("Created %d predefined voice mappings", len(result.Mappings))

	return result, nil
}

// ListVoicesForKey returns the voices granted to apiKey that are present in the session store.
func (s *Service) ListVoicesForKey(apiKey string) ([]KeyVoice, error) {
	voiceIDs, ok := s.keys.Grants(apiKey)
	if !ok {
		return nil, s.deny(core.DenialUnknownKey, apikeys.MaskKey(apiKey))
	}

	visible := make([]KeyVoice, 0, len(voiceIDs))

	for _, voiceID := range voiceIDs {
		entry, found := s.voices.Get(voiceID)
		if !found {
			continue
		}

		visible = append(visible, KeyVoice{VoiceID: voiceID, VoiceName: entry.VoiceName, CreatedAt: entry.CreatedAt})
	}

	return visible, nil
}

// loadPredefinedOnDisk stores every predefined voice whose audio exists and grants it to
// the master key. It returns the number of voices found on disk.
func (s *Service) loadPredefinedOnDisk() int {
	found := 0

	for _, voice := range s.cfg.Voices.Predefined {
		if !fsutil.FileExists(voice.AudioPath) {
			continue
		}

		id := voices.PredefinedID(voice.Name)

		added := s.voices.PutIfAbsent(id, voices.Entry{
			AudioPath: voice.AudioPath,
			TextPath:  voice.TextPath,
			VoiceName: voice.Name,
		})
		if added {
			s.logger.Info("Predefined voice %q found on disk as %s", voice.Name, id)
		}

		s.keys.GrantMaster(id)
		found++
	}

	return found
}

// Package service is the core facade of the voice service. It owns the voice session
// store, the API key registry, the reference slot and the interview sessions, and
// exposes every operation the HTTP layer and the NATS worker call.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/apikeys"
	"github.com/book-expert/voice-service/internal/audio"
	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/fsutil"
	"github.com/book-expert/voice-service/internal/interview"
	"github.com/book-expert/voice-service/internal/tts"
	"github.com/book-expert/voice-service/internal/voices"
)

// ErrHealthUnsupported is returned by Health when the synthesizer cannot be probed.
var ErrHealthUnsupported = errors.New("synthesizer does not support health checks")

// HealthChecker is implemented by synthesizers that can be probed.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies are the collaborators of the Service.
type Dependencies struct {
	Config      *config.Config
	Registry    core.VoiceRegistry
	Synthesizer core.Synthesizer
	Transcriber core.Transcriber
	Completer   core.TextCompleter
	Logger      *logger.Logger
}

// Service implements the core operations.
type Service struct {
	cfg         *config.Config
	registry    core.VoiceRegistry
	synth       core.Synthesizer
	transcriber core.Transcriber
	voices      *voices.Store
	keys        *apikeys.Registry
	slot        *voices.ReferenceSlot
	converter   *audio.Converter
	pipeline    *tts.Pipeline
	interviews  *interview.Service
	logger      *logger.Logger
}

// New builds the service and its owned state. deps.Config must have defaults applied.
func New(deps Dependencies) *Service {
	cfg := deps.Config
	log := deps.Logger

	svc := &Service{
		cfg:         cfg,
		registry:    deps.Registry,
		synth:       deps.Synthesizer,
		transcriber: deps.Transcriber,
		voices:      voices.NewStore(),
		keys:        apikeys.NewRegistry(cfg.Secrets.MasterAPIKey),
		slot:        voices.NewReferenceSlot(cfg.Voices.ReferenceAudioPath, cfg.Voices.ReferenceTextPath),
		converter:   audio.NewConverter(cfg.Pipeline.SampleRate, log),
		pipeline:    tts.NewPipeline(deps.Synthesizer, cfg.Pipeline, log),
		logger:      log,
	}

	generator := interview.NewGenerator(deps.Completer, cfg.Interview.QuestionCount, log)
	svc.interviews = interview.NewService(interview.NewStore(), generator, svc, cfg.Interview, log)

	return svc
}

// Voices returns the voice session store.
func (s *Service) Voices() *voices.Store {
	return s.voices
}

// Keys returns the API key registry.
func (s *Service) Keys() *apikeys.Registry {
	return s.keys
}

// Pipeline returns the synthesis pipeline.
func (s *Service) Pipeline() *tts.Pipeline {
	return s.pipeline
}

// ReportsDir returns the directory interview reports are written to.
func (s *Service) ReportsDir() string {
	return s.cfg.Interview.ReportsDir
}

// Interviews returns the interview service.
func (s *Service) Interviews() *interview.Service {
	return s.interviews
}

// Bootstrap seeds the registry with the predefined voices, loads every predefined voice
// whose audio exists into the session store under its stable identifier, grants them to
// the master key and finally merges the snapshot file. Seeded entries take priority over
// snapshot entries.
func (s *Service) Bootstrap(ctx context.Context) error {
	for _, dir := range []string{s.cfg.Voices.SamplesDir, s.pipeline.OutputDir(), s.cfg.Interview.ReportsDir} {
		dirErr := fsutil.EnsureDir(dir)
		if dirErr != nil {
			return dirErr
		}
	}

	seedErr := s.registry.Seed(ctx, s.predefinedProfiles())
	if seedErr != nil {
		return fmt.Errorf("failed to seed voice registry: %w", seedErr)
	}

	loaded := s.loadPredefinedOnDisk()

	snapshot, err := voices.LoadSnapshot(s.cfg.Voices.SnapshotPath)
	if err != nil {
		s.logger.Warn("Ignoring voice snapshot: %v", err)
	}

	mergedVoices := s.voices.Merge(snapshot.Voices)
	mergedKeys := s.keys.Merge(snapshot.APIKeys)

	s.logger.Info("Bootstrap complete: %d predefined voices on disk, %d voices and %d keys restored from %s",
		loaded, mergedVoices, mergedKeys, s.cfg.Voices.SnapshotPath)

	return nil
}

// SaveSnapshot persists the voice and API key maps for warm restart.
func (s *Service) SaveSnapshot() error {
	snapshot := voices.Snapshot{Voices: s.voices.Snapshot(), APIKeys: s.keys.Snapshot()}

	err := voices.SaveSnapshot(s.cfg.Voices.SnapshotPath, snapshot)
	if err != nil {
		return err
	}

	s.logger.Info("Saved %d voices and %d keys to %s", len(snapshot.Voices), len(snapshot.APIKeys), s.cfg.Voices.SnapshotPath)

	return nil
}

// Health probes the synthesizer.
func (s *Service) Health(ctx context.Context) error {
	checker, ok := s.synth.(HealthChecker)
	if !ok {
		return ErrHealthUnsupported
	}

	healthCtx, cancel := context.WithTimeout(ctx, tts.HealthCheckTimeout)
	defer cancel()

	return checker.HealthCheck(healthCtx)
}

func (s *Service) predefinedProfiles() []core.VoiceProfile {
	profiles := make([]core.VoiceProfile, 0, len(s.cfg.Voices.Predefined))

	for _, voice := range s.cfg.Voices.Predefined {
		profiles = append(profiles, core.VoiceProfile{
			Name:         voice.Name,
			VoiceID:      voices.PredefinedID(voice.Name),
			AudioPath:    voice.AudioPath,
			TextPath:     voice.TextPath,
			IsPredefined: true,
		})
	}

	return profiles
}

// Package httpapi exposes the voice service over HTTP with fiber.
package httpapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

const appName = "Voice Service"

// Server routes HTTP requests to the service facade.
type Server struct {
	app *fiber.App
	svc *service.Service
	cfg config.HTTPConfig
	log *logger.Logger
}

// New builds the fiber application and registers every route.
func New(svc *service.Service, cfg config.HTTPConfig, log *logger.Logger) *Server {
	if cfg.BodyLimitBytes <= 0 {
		cfg.BodyLimitBytes = config.DefaultBodyLimitBytes
	}

	s := &Server{svc: svc, cfg: cfg, log: log}

	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		BodyLimit:             cfg.BodyLimitBytes,
		ErrorHandler:          s.handleError,
	})

	app.Use(cors.New())

	app.Get("/health", s.handleHealth)
	app.Get("/download/:filename", s.handleDownload)

	app.Post("/upload_reference", s.handleUploadReference)
	app.Post("/transcribe_audio", s.handleTranscribe)
	app.Post("/generate_speech", s.handleGenerateSpeech)
	app.Post("/generate_speech_with_voice", s.handleGenerateSpeechWithVoice)

	app.Get("/get_voices", s.handleGetVoices)
	app.Post("/create_voice_api", s.handleCreateVoiceAPI)
	app.Post("/create_predefined_apis", s.handleCreatePredefinedAPIs)
	app.Post("/save_custom_voice", s.handleSaveCustomVoice)
	app.Get("/get_custom_voices", s.handleGetCustomVoices)
	app.Post("/create_api_key", s.handleCreateAPIKey)

	api := app.Group("/api")
	api.Post("/tts", s.handleAPITTS)
	api.Get("/voices", s.handleAPIVoices)

	app.Post("/process_cv_interview", s.handleProcessCVInterview)
	app.Post("/generate_question_audio", s.handleGenerateQuestionAudio)
	app.Post("/evaluate_interview", s.handleEvaluateInterview)

	s.app = app

	return s
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until Shutdown is called.
func (s *Server) Listen() error {
	s.log.Info("HTTP API listening on %s", s.cfg.ListenAddr)

	err := s.app.Listen(s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to serve HTTP on %s: %w", s.cfg.ListenAddr, err)
	}

	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}

	return nil
}

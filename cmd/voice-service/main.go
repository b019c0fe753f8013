// main package for the voice-service
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/httpapi"
	"github.com/book-expert/voice-service/internal/llm"
	"github.com/book-expert/voice-service/internal/objectstore"
	"github.com/book-expert/voice-service/internal/registry"
	"github.com/book-expert/voice-service/internal/service"
	"github.com/book-expert/voice-service/internal/transcribe"
	"github.com/book-expert/voice-service/internal/tts"
	"github.com/book-expert/voice-service/internal/worker"
	"github.com/nats-io/nats.go"
)

const (
	bootstrapLogFile = "voice-service-bootstrap.log"
	serviceLogFile   = "voice-service.log"
	shutdownTimeout  = 15 * time.Second
)

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger in %s: %w", logPath, err)
	}

	return log, nil
}

func loadConfig(path string, log *logger.Logger) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path, log)
	}

	return config.Load(log)
}

func run(configPath string) error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	defer func() { _ = bootstrapLog.Close() }()

	// 2. Load configuration
	cfg, err := loadConfig(configPath, bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	// 3. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, serviceLogFile)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, finalLog)
}

func serve(parent context.Context, cfg *config.Config, log *logger.Logger) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// 4. Connect to NATS and bind the durable buckets
	natsConnection, err := nats.Connect(cfg.NATS.URL, nats.Name("voice-service"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	voiceRegistry, err := registry.New(jetstreamContext, cfg.NATS.RegistryBucket, log)
	if err != nil {
		return err
	}

	outputs, err := objectstore.New(jetstreamContext, cfg.NATS.OutputBucket)
	if err != nil {
		return err
	}

	// 5. Wire the core service
	svc := service.New(service.Dependencies{
		Config:      cfg,
		Registry:    voiceRegistry,
		Synthesizer: tts.NewHTTPSynthesizer(cfg.Synthesizer, cfg.Pipeline.SampleRate),
		Transcriber: transcribe.New(cfg.Secrets.OpenAIAPIKey, cfg.LLM, log),
		Completer:   llm.New(cfg.Secrets.OpenRouterAPIKey, cfg.LLM, log),
		Logger:      log,
	})

	err = svc.Bootstrap(ctx)
	if err != nil {
		return fmt.Errorf("failed to bootstrap voice service: %w", err)
	}

	healthErr := svc.Health(ctx)
	if healthErr != nil {
		log.Warn("Inference server at %s is not healthy yet: %v", cfg.Synthesizer.BaseURL, healthErr)
	}

	// 6. Start the synthesis worker and the HTTP API
	synthesisWorker, err := worker.NewNatsWorker(natsConnection, cfg.NATS.SynthesisSubject, cfg.Pipeline.OutputDir, outputs, svc, log)
	if err != nil {
		return err
	}

	workerErr := make(chan error, 1)

	go func() { workerErr <- synthesisWorker.Run(ctx) }()

	server := httpapi.New(svc, cfg.HTTP, log)
	serverErr := make(chan error, 1)

	go func() { serverErr <- server.Listen() }()

	log.System("Voice-Service initialized. HTTP on %s, synthesis jobs on subject: %s",
		cfg.HTTP.ListenAddr, cfg.NATS.SynthesisSubject)

	var runErr error

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received.")
	case runErr = <-serverErr:
		log.Error("HTTP server stopped: %v", runErr)
	}

	cancel()

	return shutdown(svc, server, workerErr, runErr, log)
}

func shutdown(
	svc *service.Service,
	server *httpapi.Server,
	workerErr <-chan error,
	runErr error,
	log *logger.Logger,
) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := []error{runErr}

	errs = append(errs, server.Shutdown(shutdownCtx))

	select {
	case err := <-workerErr:
		errs = append(errs, err)
	case <-shutdownCtx.Done():
		errs = append(errs, fmt.Errorf("worker did not stop: %w", shutdownCtx.Err()))
	}

	snapshotErr := svc.SaveSnapshot()
	if snapshotErr != nil {
		log.Error("Failed to save voice snapshot: %v", snapshotErr)
	}

	errs = append(errs, snapshotErr)

	return errors.Join(errs...)
}

func main() {
	configPath := flag.String("config", "", "Path to a TOML config file (defaults to the central configurator)")
	flag.Parse()

	err := run(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}

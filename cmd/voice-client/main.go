// Command voice-client drives the chunked speech pipeline against the inference server
// without going through the HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/cleanup"
	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/tts"
)

// Flag descriptions.
const (
	flagTextDesc     = "Text to convert to speech"
	flagTextFileDesc = "File containing the text to convert to speech"
	flagVoiceDesc    = "Name of a predefined voice to clone"
	flagRefAudioDesc = "Reference audio (.wav) for a custom voice"
	flagRefTextDesc  = "Transcript of the reference audio"
	flagOutputDesc   = "Output file path (.wav)"
	flagConfigDesc   = "Path to a TOML config file (defaults to the central configurator)"
	flagVerboseDesc  = "Enable verbose logging"
	flagHealthDesc   = "Check inference server health and exit"
	flagCleanupDesc  = "Remove generated audio artifacts and exit"
	flagDryRunDesc   = "With --cleanup, list the files without removing them"
)

// Flag names.
const (
	flagText     = "text"
	flagTextFile = "text-file"
	flagVoice    = "voice"
	flagRefAudio = "ref-audio"
	flagRefText  = "ref-text"
	flagOutput   = "output"
	flagConfig   = "config"
	flagVerbose  = "verbose"
	flagHealth   = "health"
	flagCleanup  = "cleanup"
	flagDryRun   = "dry-run"
)

// Error messages.
const (
	errFailedToLoadConfig  = "Failed to load configuration: %w"
	errFailedToInitLogger  = "Failed to initialize logger: %w"
	errFailedToReadText    = "Failed to read text file: %w"
	errFailedToSynthesize  = "Failed to synthesize speech: %w"
	errFailedToCleanup     = "Failed to clean up: %w"
	errServiceNotHealthy   = "Inference server is not healthy: %v\n"
	errEitherTextOrFile    = "Either --text or --text-file must be provided"
	errCannotSpecifyBoth   = "Cannot specify both --text and --text-file"
	errVoiceOrReference    = "Cannot specify both --voice and --ref-audio"
	errReferenceIncomplete = "--ref-audio and --ref-text must be provided together"
	errUnknownVoice        = "unknown voice %q"
)

// Log messages.
const (
	logClientInitialized = "Voice client initialized (inference server: %s)"
	logServiceHealthy    = "Inference server is healthy"
	logSynthesizing      = "Synthesizing %d characters with voice %q"
	logGenerated         = "Generated: %s (%d chunks, %.2fs)\n"
)

const (
	logFileNameDefault = "voice-client.log"
	logFileNameVerbose = "voice-client-verbose.log"
)

// ErrInvalidArguments wraps every flag validation failure.
var ErrInvalidArguments = errors.New("invalid arguments")

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	text     string
	textFile string
	voice    string
	refAudio string
	refText  string
	output   string
	config   string
	verbose  bool
	health   bool
	cleanup  bool
	dryRun   bool
}

func main() {
	err := run()
	if err != nil {
		// A logger might not be initialized yet, so use the standard log package.
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	flags := parseFlags(flag.CommandLine, os.Args[1:])

	cfg, clientLog, err := setup(flags.config, flags.verbose)
	if err != nil {
		return err
	}
	defer func() { _ = clientLog.Close() }()

	synth := tts.NewHTTPSynthesizer(cfg.Synthesizer, cfg.Pipeline.SampleRate)
	clientLog.Info(logClientInitialized, cfg.Synthesizer.BaseURL)

	switch {
	case flags.health:
		return handleHealthCheck(synth, clientLog)
	case flags.cleanup:
		return handleCleanup(cfg, flags.dryRun)
	}

	err = validateArgumentsOnly(flags)
	if err != nil {
		flag.Usage()
		clientLog.Error("%v", err)

		return err
	}

	return handleExecution(tts.NewPipeline(synth, cfg.Pipeline, clientLog), cfg, clientLog, flags)
}

// parseFlags defines and parses command-line flags on fs.
func parseFlags(fs *flag.FlagSet, args []string) appFlags {
	var flags appFlags
	fs.StringVar(&flags.text, flagText, "", flagTextDesc)
	fs.StringVar(&flags.textFile, flagTextFile, "", flagTextFileDesc)
	fs.StringVar(&flags.voice, flagVoice, "", flagVoiceDesc)
	fs.StringVar(&flags.refAudio, flagRefAudio, "", flagRefAudioDesc)
	fs.StringVar(&flags.refText, flagRefText, "", flagRefTextDesc)
	fs.StringVar(&flags.output, flagOutput, "", flagOutputDesc)
	fs.StringVar(&flags.config, flagConfig, "", flagConfigDesc)
	fs.BoolVar(&flags.verbose, flagVerbose, false, flagVerboseDesc)
	fs.BoolVar(&flags.health, flagHealth, false, flagHealthDesc)
	fs.BoolVar(&flags.cleanup, flagCleanup, false, flagCleanupDesc)
	fs.BoolVar(&flags.dryRun, flagDryRun, false, flagDryRunDesc)
	_ = fs.Parse(args)

	return flags
}

func setup(configPath string, verbose bool) (*config.Config, *logger.Logger, error) {
	bootstrapLog, err := logger.New(os.TempDir(), logFileNameDefault)
	if err != nil {
		return nil, nil, fmt.Errorf(errFailedToInitLogger, err)
	}

	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.LoadFile(configPath, bootstrapLog)
	} else {
		cfg, err = config.Load(bootstrapLog)
	}

	if err != nil {
		_ = bootstrapLog.Close()

		return nil, nil, fmt.Errorf(errFailedToLoadConfig, err)
	}

	logFileName := logFileNameDefault
	if verbose {
		logFileName = logFileNameVerbose
	}

	_ = bootstrapLog.Close()

	clientLog, err := logger.New(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		return nil, nil, fmt.Errorf(errFailedToInitLogger, err)
	}

	return cfg, clientLog, nil
}

// validateArgumentsOnly checks required and conflicting flags without touching the
// filesystem or the network.
func validateArgumentsOnly(flags appFlags) error {
	if flags.text == "" && flags.textFile == "" {
		return fmt.Errorf("%w: %s", ErrInvalidArguments, errEitherTextOrFile)
	}

	if flags.text != "" && flags.textFile != "" {
		return fmt.Errorf("%w: %s", ErrInvalidArguments, errCannotSpecifyBoth)
	}

	if flags.voice != "" && flags.refAudio != "" {
		return fmt.Errorf("%w: %s", ErrInvalidArguments, errVoiceOrReference)
	}

	if (flags.refAudio == "") != (flags.refText == "") {
		return fmt.Errorf("%w: %s", ErrInvalidArguments, errReferenceIncomplete)
	}

	return nil
}

// resolveVoice picks the reference pair: an explicit reference, a predefined voice by
// name, or the configured default reference.
func resolveVoice(cfg *config.Config, flags appFlags) (tts.Voice, error) {
	if flags.refAudio != "" {
		return tts.Voice{Name: flags.refAudio, AudioPath: flags.refAudio, TextPath: flags.refText}, nil
	}

	if flags.voice == "" {
		return tts.Voice{
			Name:      "reference",
			AudioPath: cfg.Voices.ReferenceAudioPath,
			TextPath:  cfg.Voices.ReferenceTextPath,
		}, nil
	}

	for _, predefined := range cfg.Voices.Predefined {
		if strings.EqualFold(predefined.Name, flags.voice) {
			return tts.Voice{Name: predefined.Name, AudioPath: predefined.AudioPath, TextPath: predefined.TextPath}, nil
		}
	}

	return tts.Voice{}, fmt.Errorf("%w: "+errUnknownVoice, ErrInvalidArguments, flags.voice)
}

func readText(flags appFlags) (string, error) {
	if flags.text != "" {
		return flags.text, nil
	}

	data, err := os.ReadFile(flags.textFile)
	if err != nil {
		return "", fmt.Errorf(errFailedToReadText, err)
	}

	return string(data), nil
}

func handleHealthCheck(synth *tts.HTTPSynthesizer, clientLog *logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), tts.HealthCheckTimeout)
	defer cancel()

	err := synth.HealthCheck(ctx)
	if err != nil {
		clientLog.Error("%v", err)
		fmt.Printf(errServiceNotHealthy, err)

		return err
	}

	fmt.Println(logServiceHealthy)

	return nil
}

func handleCleanup(cfg *config.Config, dryRun bool) error {
	report, err := cleanup.Run([]string{".", cfg.Pipeline.OutputDir}, cleanup.DefaultPatterns, dryRun)
	if err != nil {
		return fmt.Errorf(errFailedToCleanup, err)
	}

	cleanup.PrintReport(os.Stdout, report)

	return nil
}

func handleExecution(pipeline *tts.Pipeline, cfg *config.Config, clientLog *logger.Logger, flags appFlags) error {
	text, err := readText(flags)
	if err != nil {
		return err
	}

	voice, err := resolveVoice(cfg, flags)
	if err != nil {
		return err
	}

	clientLog.Info(logSynthesizing, len(text), voice.Label())

	result, err := pipeline.Synthesize(context.Background(), tts.Request{
		Text:        text,
		Voice:       voice,
		OutputPath:  flags.output,
		DefaultName: tts.DefaultOutputName,
	})
	if err != nil {
		clientLog.Error("%v", err)

		return fmt.Errorf(errFailedToSynthesize, err)
	}

	fmt.Printf(logGenerated, result.OutputPath, result.Chunks, result.Duration)

	return nil
}

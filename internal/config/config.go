// Package config provides the configuration structure for the voice-service.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Defaults applied to zero-valued settings.
const (
	DefaultMaxWordsPerChunk   = 40
	DefaultSilenceSeconds     = 0.3
	DefaultSampleRate         = 24000
	DefaultOutputDir          = "output"
	DefaultSamplesDir         = "samples"
	DefaultSnapshotPath       = "voice_store.json"
	DefaultMasterAPIKey       = "mcr_master_api_key_2024"
	DefaultAgentVoice         = "Professor Abed"
	DefaultQuestionCount      = 3
	DefaultReportsDir         = "reports"
	DefaultListenAddr         = ":4000"
	DefaultSynthesizerURL     = "http://127.0.0.1:8000"
	DefaultSynthesizerTimeout = 300
	DefaultTemperature        = 0.75
	DefaultLanguage           = "en"
	DefaultLLMBaseURL         = "https://openrouter.ai/api/v1"
	DefaultLLMModel           = "openai/gpt-4-turbo"
	DefaultTranscribeModel    = "whisper-1"
	DefaultNATSURL            = "nats://127.0.0.1:4222"
	DefaultRegistryBucket     = "VOICE_REGISTRY"
	DefaultOutputBucket       = "VOICE_OUTPUTS"
	DefaultSynthesisSubject   = "voice.synthesize"
	DefaultBodyLimitBytes     = 50 * 1024 * 1024
)

// ErrConfigPathEmpty is returned by LoadFile when no path is given.
var ErrConfigPathEmpty = errors.New("config path cannot be empty")

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL              string `toml:"url"`
	RegistryBucket   string `toml:"registry_bucket"`
	OutputBucket     string `toml:"output_bucket"`
	SynthesisSubject string `toml:"synthesis_subject"`
}

// SynthesizerConfig describes the standalone inference server.
type SynthesizerConfig struct {
	BaseURL        string  `toml:"base_url"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	Temperature    float64 `toml:"temperature"`
	Language       string  `toml:"language"`
}

// Timeout returns the per-request timeout.
func (s SynthesizerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// PipelineConfig holds the chunking and stitching parameters.
type PipelineConfig struct {
	MaxWordsPerChunk int     `toml:"max_words_per_chunk"`
	SilenceSeconds   float64 `toml:"silence_seconds"`
	SampleRate       int     `toml:"sample_rate"`
	OutputDir        string  `toml:"output_dir"`
}

// PredefinedVoice is a seeded voice entry.
type PredefinedVoice struct {
	Name      string `toml:"name"`
	AudioPath string `toml:"audio_path"`
	TextPath  string `toml:"text_path"`
}

// VoicesConfig holds the voice registry seed set and reference slot paths.
type VoicesConfig struct {
	SamplesDir         string            `toml:"samples_dir"`
	ReferenceAudioPath string            `toml:"reference_audio_path"`
	ReferenceTextPath  string            `toml:"reference_text_path"`
	SnapshotPath       string            `toml:"snapshot_path"`
	Predefined         []PredefinedVoice `toml:"predefined"`
}

// InterviewConfig holds the CV interview settings.
type InterviewConfig struct {
	AgentVoice    string `toml:"agent_voice"`
	ReportsDir    string `toml:"reports_dir"`
	QuestionCount int    `toml:"question_count"`
}

// LLMConfig describes the OpenAI-compatible completion endpoint.
type LLMConfig struct {
	BaseURL         string `toml:"base_url"`
	Model           string `toml:"model"`
	TranscribeModel string `toml:"transcribe_model"`
}

// HTTPConfig holds the HTTP listener settings.
type HTTPConfig struct {
	ListenAddr     string `toml:"listen_addr"`
	BodyLimitBytes int    `toml:"body_limit_bytes"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Secrets are read from the environment only.
type Secrets struct {
	OpenRouterAPIKey string `env:"OPENROUTER_API_KEY"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	MasterAPIKey     string `env:"VOICE_MASTER_API_KEY"`
}

// Config is the root configuration structure.
type Config struct {
	NATS        NATSConfig        `toml:"nats"`
	Synthesizer SynthesizerConfig `toml:"synthesizer"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Voices      VoicesConfig      `toml:"voices"`
	Interview   InterviewConfig   `toml:"interview"`
	LLM         LLMConfig         `toml:"llm"`
	HTTP        HTTPConfig        `toml:"http"`
	Paths       PathsConfig       `toml:"paths"`
	Secrets     Secrets           `toml:"-"`
}

// Load loads the configuration for the voice-service through the central configurator
// and overlays secrets from the environment.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return finish(&cfg, log)
}

// LoadFile loads the configuration from an explicit TOML file.
func LoadFile(path string, log *logger.Logger) (*Config, error) {
	if path == "" {
		return nil, ErrConfigPathEmpty
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config

	err = toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return finish(&cfg, log)
}

func finish(cfg *Config, log *logger.Logger) (*Config, error) {
	dotenvErr := godotenv.Load()
	if dotenvErr != nil && log != nil {
		log.Info("No .env file loaded: %v", dotenvErr)
	}

	err := env.Parse(&cfg.Secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets from environment: %w", err)
	}

	cfg.ApplyDefaults()

	return cfg, nil
}

// ApplyDefaults fills every zero-valued setting with its default.
func (c *Config) ApplyDefaults() {
	setString(&c.NATS.URL, DefaultNATSURL)
	setString(&c.NATS.RegistryBucket, DefaultRegistryBucket)
	setString(&c.NATS.OutputBucket, DefaultOutputBucket)
	setString(&c.NATS.SynthesisSubject, DefaultSynthesisSubject)

	setString(&c.Synthesizer.BaseURL, DefaultSynthesizerURL)
	setInt(&c.Synthesizer.TimeoutSeconds, DefaultSynthesizerTimeout)
	setString(&c.Synthesizer.Language, DefaultLanguage)

	if c.Synthesizer.Temperature == 0 {
		c.Synthesizer.Temperature = DefaultTemperature
	}

	setInt(&c.Pipeline.MaxWordsPerChunk, DefaultMaxWordsPerChunk)
	setInt(&c.Pipeline.SampleRate, DefaultSampleRate)
	setString(&c.Pipeline.OutputDir, DefaultOutputDir)

	if c.Pipeline.SilenceSeconds == 0 {
		c.Pipeline.SilenceSeconds = DefaultSilenceSeconds
	}

	setString(&c.Voices.SamplesDir, DefaultSamplesDir)
	setString(&c.Voices.ReferenceAudioPath, c.Voices.SamplesDir+"/reference.wav")
	setString(&c.Voices.ReferenceTextPath, c.Voices.SamplesDir+"/reference.txt")
	setString(&c.Voices.SnapshotPath, DefaultSnapshotPath)

	if len(c.Voices.Predefined) == 0 {
		c.Voices.Predefined = DefaultPredefinedVoices(c.Voices.SamplesDir)
	}

	setString(&c.Interview.AgentVoice, DefaultAgentVoice)
	setString(&c.Interview.ReportsDir, DefaultReportsDir)
	setInt(&c.Interview.QuestionCount, DefaultQuestionCount)

	setString(&c.LLM.BaseURL, DefaultLLMBaseURL)
	setString(&c.LLM.Model, DefaultLLMModel)
	setString(&c.LLM.TranscribeModel, DefaultTranscribeModel)

	setString(&c.HTTP.ListenAddr, DefaultListenAddr)
	setInt(&c.HTTP.BodyLimitBytes, DefaultBodyLimitBytes)

	setString(&c.Paths.BaseLogsDir, os.TempDir())
	setString(&c.Secrets.MasterAPIKey, DefaultMasterAPIKey)
}

// DefaultPredefinedVoices returns the seeded voice set rooted at samplesDir.
func DefaultPredefinedVoices(samplesDir string) []PredefinedVoice {
	return []PredefinedVoice{
		{Name: "Saad", AudioPath: samplesDir + "/saad.wav", TextPath: samplesDir + "/saad.txt"},
		{
			Name:      "Professor Abed",
			AudioPath: samplesDir + "/professor_abed.wav",
			TextPath:  samplesDir + "/professor_abed.txt",
		},
		{Name: "Tariq Amin", AudioPath: samplesDir + "/tariq_amin.wav", TextPath: samplesDir + "/tariq_amin.txt"},
		{Name: "Christine", AudioPath: samplesDir + "/christine.wav", TextPath: samplesDir + "/christine.txt"},
	}
}

func setString(target *string, fallback string) {
	if *target == "" {
		*target = fallback
	}
}

func setInt(target *int, fallback int) {
	if *target == 0 {
		*target = fallback
	}
}

// Package tts renders long text in a cloned voice. The Pipeline splits input into
// word-bounded chunks, drives a core.Synthesizer once per chunk against a single reference
// encoding, and stitches the segments into one waveform separated by fixed silence.
package tts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/audio"
	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/fsutil"
	"github.com/book-expert/voice-service/internal/tts/text"
)

// DefaultOutputName is used when neither an explicit path nor a default name is supplied.
const DefaultOutputName = "output.wav"

// Log formats.
const (
	logFmtReferenceEncoded = "Encoded reference %s in %s"
	logFmtSingleCall       = "Synthesizing %d words in a single call"
	logFmtChunked          = "Split %d words into %d chunks of at most %d words"
	logFmtChunkDone        = "Chunk %d/%d: %d samples (%.2fs)"
	logFmtRendered         = "Rendered %d samples (%.2fs) for voice %q"
	logFmtWritten          = "Wrote %s (%.2fs)"
)

// Error formats.
const (
	errFmtTranscript = "%w: reference transcript %s: %w"
	errFmtAudio      = "%w: reference audio %s not found"
	errFmtEncode     = "%w: reference encoding: %w"
	errFmtChunk      = "%w: chunk %d/%d: %w"
	errFmtWrite      = "failed to write output %s: %w"
)

// Voice identifies the reference pair used for cloning.
type Voice struct {
	ID        string
	Name      string
	AudioPath string
	TextPath  string
}

// Label returns the most descriptive identifier for logs.
func (v Voice) Label() string {
	if v.Name != "" {
		return v.Name
	}

	return v.ID
}

// Request is a single synthesis job.
type Request struct {
	Text  string
	Voice Voice
	// OutputPath is used verbatim, with a forced .wav extension, when set.
	OutputPath string
	// DefaultName is the file name inside the output directory when OutputPath is empty.
	DefaultName string
}

// Rendering describes an in-memory synthesis result.
type Rendering struct {
	Samples      audio.Waveform
	ChunkSamples []int
	SilenceGap   int
	WordCount    int
}

// Chunks returns the number of synthesizer calls made.
func (r Rendering) Chunks() int {
	return len(r.ChunkSamples)
}

// Result describes a persisted synthesis result.
type Result struct {
	OutputPath string  `json:"output_path"`
	Samples    int     `json:"samples"`
	Chunks     int     `json:"chunks"`
	WordCount  int     `json:"word_count"`
	Duration   float64 `json:"duration_seconds"`
}

// Pipeline converts text plus a reference voice into one continuous waveform.
type Pipeline struct {
	synth  core.Synthesizer
	cfg    config.PipelineConfig
	logger *logger.Logger
}

// NewPipeline creates a pipeline. Zero-valued settings in cfg take their defaults.
func NewPipeline(synth core.Synthesizer, cfg config.PipelineConfig, log *logger.Logger) *Pipeline {
	if cfg.MaxWordsPerChunk <= 0 {
		cfg.MaxWordsPerChunk = config.DefaultMaxWordsPerChunk
	}

	if cfg.SampleRate <= 0 {
		cfg.SampleRate = config.DefaultSampleRate
	}

	if cfg.SilenceSeconds <= 0 {
		cfg.SilenceSeconds = config.DefaultSilenceSeconds
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = config.DefaultOutputDir
	}

	return &Pipeline{synth: synth, cfg: cfg, logger: log}
}

// SampleRate returns the rate of every waveform the pipeline produces.
func (p *Pipeline) SampleRate() int {
	return p.cfg.SampleRate
}

// OutputDir returns the directory used for default output paths.
func (p *Pipeline) OutputDir() string {
	return p.cfg.OutputDir
}

// ResolveOutputPath returns the explicit path with a forced .wav extension when set,
// otherwise defaultName inside the output directory.
func (p *Pipeline) ResolveOutputPath(explicit, defaultName string) string {
	if strings.TrimSpace(explicit) != "" {
		return fsutil.ForceExtension(explicit, fsutil.ExtWAV)
	}

	if defaultName == "" {
		defaultName = DefaultOutputName
	}

	return filepath.Join(p.cfg.OutputDir, defaultName)
}

// Synthesize renders the request and writes the waveform. The output file appears only
// once complete; on any failure no file is written.
func (p *Pipeline) Synthesize(ctx context.Context, req Request) (Result, error) {
	rendering, err := p.Render(ctx, req.Text, req.Voice)
	if err != nil {
		return Result{}, err
	}

	outputPath := p.ResolveOutputPath(req.OutputPath, req.DefaultName)

	writeErr := audio.WriteWAV(outputPath, rendering.Samples, p.cfg.SampleRate)
	if writeErr != nil {
		return Result{}, fmt.Errorf(errFmtWrite, outputPath, writeErr)
	}

	duration := audio.Duration(len(rendering.Samples), p.cfg.SampleRate)
	p.logger.Info(logFmtWritten, outputPath, duration)

	return Result{
		OutputPath: outputPath,
		Samples:    len(rendering.Samples),
		Chunks:     rendering.Chunks(),
		WordCount:  rendering.WordCount,
		Duration:   duration,
	}, nil
}

// Render produces the stitched waveform without touching the output directory. The
// reference transcript and audio are checked before the synthesizer is called, and the
// reference encoding is computed once and reused for every chunk. Inputs of at most
// MaxWordsPerChunk words are synthesized in a single call with the original text.
func (p *Pipeline) Render(ctx context.Context, input string, voice Voice) (Rendering, error) {
	if strings.TrimSpace(input) == "" {
		return Rendering{}, fmt.Errorf("%w: text", core.ErrInputMissing)
	}

	refText, err := p.loadReference(voice)
	if err != nil {
		return Rendering{}, err
	}

	started := time.Now()

	ref, err := p.synth.EncodeReference(ctx, voice.AudioPath)
	if err != nil {
		return Rendering{}, fmt.Errorf(errFmtEncode, core.ErrSynthesisFailure, err)
	}

	p.logger.Info(logFmtReferenceEncoded, voice.AudioPath, fsutil.FormatDuration(time.Since(started)))

	wordCount := text.CountWords(input)

	chunks := []string{input}
	if wordCount > p.cfg.MaxWordsPerChunk {
		chunks = text.ChunkWords(input, p.cfg.MaxWordsPerChunk)
		p.logger.Info(logFmtChunked, wordCount, len(chunks), p.cfg.MaxWordsPerChunk)
	} else {
		p.logger.Info(logFmtSingleCall, wordCount)
	}

	rendering, err := p.renderChunks(ctx, chunks, ref, refText)
	if err != nil {
		return Rendering{}, err
	}

	rendering.WordCount = wordCount

	p.logger.Info(logFmtRendered, len(rendering.Samples),
		audio.Duration(len(rendering.Samples), p.cfg.SampleRate), voice.Label())

	return rendering, nil
}

func (p *Pipeline) renderChunks(
	ctx context.Context,
	chunks []string,
	ref core.ReferenceEncoding,
	refText string,
) (Rendering, error) {
	gap := audio.SilenceSamples(p.cfg.SilenceSeconds, p.cfg.SampleRate)
	segments := make([]audio.Waveform, 0, 2*len(chunks)-1)
	chunkSamples := make([]int, 0, len(chunks))

	for index, chunk := range chunks {
		samples, inferErr := p.synth.Infer(ctx, chunk, ref, refText)
		if inferErr != nil {
			return Rendering{}, fmt.Errorf(errFmtChunk, core.ErrSynthesisFailure, index+1, len(chunks), inferErr)
		}

		if index > 0 {
			segments = append(segments, audio.Silence(gap))
		}

		segments = append(segments, audio.Waveform(samples))
		chunkSamples = append(chunkSamples, len(samples))

		p.logger.Info(logFmtChunkDone, index+1, len(chunks), len(samples),
			audio.Duration(len(samples), p.cfg.SampleRate))
	}

	return Rendering{
		Samples:      audio.Concat(segments...),
		ChunkSamples: chunkSamples,
		SilenceGap:   gap,
	}, nil
}

func (p *Pipeline) loadReference(voice Voice) (string, error) {
	if voice.TextPath == "" {
		return "", fmt.Errorf("%w: voice %q has no transcript", core.ErrReferenceUnavailable, voice.Label())
	}

	data, err := os.ReadFile(voice.TextPath)
	if err != nil {
		return "", fmt.Errorf(errFmtTranscript, core.ErrReferenceUnavailable, voice.TextPath, err)
	}

	if !fsutil.FileExists(voice.AudioPath) {
		return "", fmt.Errorf(errFmtAudio, core.ErrReferenceUnavailable, voice.AudioPath)
	}

	return strings.TrimSpace(string(data)), nil
}

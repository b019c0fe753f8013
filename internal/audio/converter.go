package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/fsutil"
	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
)

const (
	resampleQuality    = 4
	uploadTempPattern  = "temp_upload_*"
	errFmtUnsupported  = "%w: unsupported audio container %q"
	errFmtDecodeFailed = "%w: failed to decode %s: %w"
	errFmtEncodeFailed = "%w: failed to encode %s: %w"
)

// ErrTargetPathEmpty is returned when Convert is called without a destination.
var ErrTargetPathEmpty = errors.New("target path cannot be empty")

// Converter normalizes uploaded audio into the canonical mono WAV layout.
type Converter struct {
	format Format
	log    *logger.Logger
}

// NewConverter creates a converter producing mono 16-bit WAV at sampleRate.
func NewConverter(sampleRate int, log *logger.Logger) *Converter {
	return &Converter{
		format: CanonicalFormat(sampleRate),
		log:    log,
	}
}

// Convert stores the uploaded stream at targetPath in the canonical container. WAV uploads
// are moved into place without re-encoding; other containers are decoded, downmixed to
// one channel, resampled and re-encoded. On failure neither the temporary upload nor a
// partial target file is left behind.
func (c *Converter) Convert(src io.Reader, filename, targetPath string) error {
	if targetPath == "" {
		return ErrTargetPathEmpty
	}

	container := ContainerOf(filename)
	if container == ContainerUnknown {
		return fmt.Errorf(errFmtUnsupported, core.ErrConversionFailure, filepath.Ext(filename))
	}

	tempPath, err := c.saveUpload(src, filename, targetPath)
	if err != nil {
		return err
	}

	defer c.removeQuietly(tempPath)

	if container == ContainerWAV {
		renameErr := os.Rename(tempPath, targetPath)
		if renameErr != nil {
			return fmt.Errorf("%w: failed to move upload into place: %w", core.ErrConversionFailure, renameErr)
		}

		c.log.Info("Stored WAV reference at %s without re-encoding", targetPath)

		return nil
	}

	transcodeErr := c.transcode(tempPath, container, targetPath)
	if transcodeErr != nil {
		return transcodeErr
	}

	c.log.Info("Converted %s upload to canonical WAV at %s", container, targetPath)

	return nil
}

func (c *Converter) saveUpload(src io.Reader, filename, targetPath string) (string, error) {
	dir := filepath.Dir(targetPath)

	dirErr := fsutil.EnsureDir(dir)
	if dirErr != nil {
		return "", dirErr
	}

	tempFile, err := os.CreateTemp(dir, uploadTempPattern+filepath.Ext(filename))
	if err != nil {
		return "", fmt.Errorf("failed to create temp upload file: %w", err)
	}

	_, copyErr := io.Copy(tempFile, src)
	closeErr := tempFile.Close()

	if copyErr != nil || closeErr != nil {
		c.removeQuietly(tempFile.Name())

		return "", fmt.Errorf("failed to save upload: %w", errors.Join(copyErr, closeErr))
	}

	return tempFile.Name(), nil
}

func (c *Converter) transcode(sourcePath string, container Container, targetPath string) error {
	file, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf(errFmtDecodeFailed, core.ErrConversionFailure, sourcePath, err)
	}

	streamer, format, err := decode(file, container)
	if err != nil {
		_ = file.Close()

		return fmt.Errorf(errFmtDecodeFailed, core.ErrConversionFailure, sourcePath, err)
	}
	defer streamer.Close()

	var normalized beep.Streamer = &monoStreamer{src: streamer}

	targetRate := beep.SampleRate(c.format.SampleRate)
	if format.SampleRate != targetRate {
		normalized = beep.Resample(resampleQuality, format.SampleRate, targetRate, normalized)
	}

	writeErr := fsutil.WriteFileAtomic(targetPath, func(w io.WriteSeeker) error {
		return wav.Encode(w, normalized, c.format.beepFormat())
	})
	if writeErr != nil {
		return fmt.Errorf(errFmtEncodeFailed, core.ErrConversionFailure, targetPath, writeErr)
	}

	return nil
}

func decode(file *os.File, container Container) (beep.StreamSeekCloser, beep.Format, error) {
	switch container {
	case ContainerMP3:
		return mp3.Decode(file)
	case ContainerFLAC:
		return flac.Decode(file)
	case ContainerOGG:
		return vorbis.Decode(file)
	default:
		return nil, beep.Format{}, fmt.Errorf(errFmtUnsupported, core.ErrConversionFailure, container)
	}
}

func (c *Converter) removeQuietly(path string) {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		c.log.Warn("Failed to remove temp file '%s': %v", path, err)
	}
}

// monoStreamer averages both channels so every frame carries the same value.
type monoStreamer struct {
	src beep.Streamer
}

func (m *monoStreamer) Stream(samples [][2]float64) (int, bool) {
	n, ok := m.src.Stream(samples)
	for i := range n {
		value := (samples[i][0] + samples[i][1]) / 2
		samples[i] = [2]float64{value, value}
	}

	return n, ok
}

func (m *monoStreamer) Err() error {
	return m.src.Err()
}

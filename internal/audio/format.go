// Package audio provides the canonical waveform format, WAV encoding and decoding, silence
// generation and the upload converter used for reference voices.
package audio

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
)

// Canonical waveform settings shared by reference audio and synthesized output.
const (
	CanonicalSampleRate = 24000
	CanonicalChannels   = 1
	CanonicalBitDepth   = 16
)

// Supported bit depths.
const (
	bitDepth8  = 8
	bitDepth16 = 16
	bitDepth24 = 24
	bitDepth32 = 32
	bitsInByte = 8
)

// Quality validation limits.
const (
	maxSampleRate = 192000
	maxChannels   = 8
)

const (
	errFmtSampleRateRange = "%w: sample rate must be between 1 and %d Hz"
	errFmtBitDepthValues  = "%w: bit depth must be 8, 16, 24, or 32"
	errFmtChannelsRange   = "%w: channels must be between 1 and %d"
)

// ErrInvalidFormat is returned when waveform settings are out of range.
var ErrInvalidFormat = errors.New("invalid waveform format")

// Container represents supported upload containers.
type Container string

// Supported containers.
const (
	ContainerWAV     Container = "wav"
	ContainerMP3     Container = "mp3"
	ContainerFLAC    Container = "flac"
	ContainerOGG     Container = "ogg"
	ContainerUnknown Container = ""
)

// ContainerOf returns the container implied by a filename extension.
func ContainerOf(filename string) Container {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case string(ContainerWAV):
		return ContainerWAV
	case string(ContainerMP3):
		return ContainerMP3
	case string(ContainerFLAC):
		return ContainerFLAC
	case string(ContainerOGG), "oga":
		return ContainerOGG
	default:
		return ContainerUnknown
	}
}

// Format describes a PCM waveform layout.
type Format struct {
	SampleRate int `json:"sampleRate"`
	Channels   int `json:"channels"`
	BitDepth   int `json:"bitDepth"`
}

// CanonicalFormat returns the mono 16-bit layout at the given sample rate.
func CanonicalFormat(sampleRate int) Format {
	return Format{
		SampleRate: sampleRate,
		Channels:   CanonicalChannels,
		BitDepth:   CanonicalBitDepth,
	}
}

// Validate checks if the format settings are within reasonable bounds.
func (f Format) Validate() error {
	if f.SampleRate <= 0 || f.SampleRate > maxSampleRate {
		return fmt.Errorf(errFmtSampleRateRange, ErrInvalidFormat, maxSampleRate)
	}

	switch f.BitDepth {
	case bitDepth8, bitDepth16, bitDepth24, bitDepth32:
	default:
		return fmt.Errorf(errFmtBitDepthValues, ErrInvalidFormat)
	}

	if f.Channels <= 0 || f.Channels > maxChannels {
		return fmt.Errorf(errFmtChannelsRange, ErrInvalidFormat, maxChannels)
	}

	return nil
}

func (f Format) beepFormat() beep.Format {
	return beep.Format{
		SampleRate:  beep.SampleRate(f.SampleRate),
		NumChannels: f.Channels,
		Precision:   f.BitDepth / bitsInByte,
	}
}

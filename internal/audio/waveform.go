package audio

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/book-expert/voice-service/internal/fsutil"
	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

const streamBufferSize = 1024

// Waveform is a mono sequence of samples in [-1, 1].
type Waveform []float32

// SilenceSamples returns the number of zero samples in a gap of the given length,
// round(seconds * sampleRate).
func SilenceSamples(seconds float64, sampleRate int) int {
	return int(math.Round(seconds * float64(sampleRate)))
}

// Silence returns n zero-amplitude samples.
func Silence(n int) Waveform {
	return make(Waveform, n)
}

// Concat joins segments in order into one waveform.
func Concat(segments ...Waveform) Waveform {
	total := 0
	for _, segment := range segments {
		total += len(segment)
	}

	joined := make(Waveform, 0, total)
	for _, segment := range segments {
		joined = append(joined, segment...)
	}

	return joined
}

// Duration returns the playback length of samples at sampleRate, in seconds.
func Duration(samples, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}

	return float64(samples) / float64(sampleRate)
}

// sliceStreamer exposes a mono waveform as a beep.Streamer.
type sliceStreamer struct {
	samples Waveform
	pos     int
}

func (s *sliceStreamer) Stream(buf [][2]float64) (int, bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}

	n := 0
	for n < len(buf) && s.pos < len(s.samples) {
		value := float64(s.samples[s.pos])
		buf[n] = [2]float64{value, value}
		n++
		s.pos++
	}

	return n, true
}

func (s *sliceStreamer) Err() error {
	return nil
}

// EncodeWAV writes samples as a mono 16-bit WAV stream.
func EncodeWAV(w io.WriteSeeker, samples Waveform, sampleRate int) error {
	format := CanonicalFormat(sampleRate)

	validateErr := format.Validate()
	if validateErr != nil {
		return validateErr
	}

	err := wav.Encode(w, &sliceStreamer{samples: samples}, format.beepFormat())
	if err != nil {
		return fmt.Errorf("failed to encode wav: %w", err)
	}

	return nil
}

// WriteWAV persists samples at path. The file appears only once complete.
func WriteWAV(path string, samples Waveform, sampleRate int) error {
	return fsutil.WriteFileAtomic(path, func(w io.WriteSeeker) error {
		return EncodeWAV(w, samples, sampleRate)
	})
}

// DecodeWAV decodes a WAV payload into a mono waveform and its sample rate. Multi-channel
// input is averaged down to one channel.
func DecodeWAV(data []byte) (Waveform, int, error) {
	streamer, format, err := wav.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode wav: %w", err)
	}
	defer streamer.Close()

	samples, err := drain(streamer, streamer.Len())
	if err != nil {
		return nil, 0, err
	}

	return samples, int(format.SampleRate), nil
}

// ReadWAVFile decodes the WAV file at path.
func ReadWAVFile(path string) (Waveform, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read wav file %s: %w", path, err)
	}

	return DecodeWAV(data)
}

func drain(streamer beep.Streamer, sizeHint int) (Waveform, error) {
	if sizeHint < 0 {
		sizeHint = 0
	}

	samples := make(Waveform, 0, sizeHint)
	buf := make([][2]float64, streamBufferSize)

	for {
		n, ok := streamer.Stream(buf)
		for i := range n {
			samples = append(samples, float32((buf[i][0]+buf[i][1])/2))
		}

		if !ok {
			break
		}
	}

	streamErr := streamer.Err()
	if streamErr != nil {
		return nil, fmt.Errorf("failed to stream samples: %w", streamErr)
	}

	return samples, nil
}

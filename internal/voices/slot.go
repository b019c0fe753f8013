package voices

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/fsutil"
)

const stagingPrefix = "temp_staging_"

// Reference is the content of the reference slot.
type Reference struct {
	AudioPath  string `json:"audio_path"`
	TextPath   string `json:"text_path"`
	Transcript string `json:"transcript"`
}

// ReferenceSlot is the single "current reference" voice overwritten by every upload. It is
// distinct from the registry: it has exactly one audio file and one transcript file.
type ReferenceSlot struct {
	mu        sync.Mutex
	audioPath string
	textPath  string
}

// NewReferenceSlot creates a slot backed by the given file pair.
func NewReferenceSlot(audioPath, textPath string) *ReferenceSlot {
	return &ReferenceSlot{audioPath: audioPath, textPath: textPath}
}

// AudioPath returns the canonical audio file of the slot.
func (s *ReferenceSlot) AudioPath() string {
	return s.audioPath
}

// TextPath returns the transcript file of the slot.
func (s *ReferenceSlot) TextPath() string {
	return s.textPath
}

// Overwrite replaces the slot contents. store writes the canonical audio at a staging
// path next to the slot, transcribe produces the transcript from it, and the staged audio
// replaces the slot's audio only after the transcript is written. On any failure the slot
// keeps its previous pair and the staging file is removed. Concurrent overwrites are
// serialized.
func (s *ReferenceSlot) Overwrite(
	store func(audioPath string) error,
	transcribe func(audioPath string) (string, error),
) (Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stagingPath := filepath.Join(filepath.Dir(s.audioPath), stagingPrefix+filepath.Base(s.audioPath))
	defer func() { _ = os.Remove(stagingPath) }()

	storeErr := store(stagingPath)
	if storeErr != nil {
		return Reference{}, storeErr
	}

	transcript, err := transcribe(stagingPath)
	if err != nil {
		return Reference{}, err
	}

	transcript = strings.TrimSpace(transcript)

	writeErr := fsutil.WriteBytesAtomic(s.textPath, []byte(transcript))
	if writeErr != nil {
		return Reference{}, fmt.Errorf("failed to write reference transcript: %w", writeErr)
	}

	renameErr := os.Rename(stagingPath, s.audioPath)
	if renameErr != nil {
		return Reference{}, fmt.Errorf("failed to move reference audio into place: %w", renameErr)
	}

	return Reference{AudioPath: s.audioPath, TextPath: s.textPath, Transcript: transcript}, nil
}

// Current returns the slot contents or ErrReferenceUnavailable when either file is missing.
func (s *ReferenceSlot) Current() (Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !fsutil.FileExists(s.audioPath) {
		return Reference{}, fmt.Errorf("%w: no reference audio uploaded", core.ErrReferenceUnavailable)
	}

	data, err := os.ReadFile(s.textPath)
	if errors.Is(err, os.ErrNotExist) {
		return Reference{}, fmt.Errorf("%w: no reference transcript", core.ErrReferenceUnavailable)
	}

	if err != nil {
		return Reference{}, fmt.Errorf("failed to read reference transcript: %w", err)
	}

	return Reference{
		AudioPath:  s.audioPath,
		TextPath:   s.textPath,
		Transcript: strings.TrimSpace(string(data)),
	}, nil
}

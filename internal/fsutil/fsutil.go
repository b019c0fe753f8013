// Package fsutil provides file and path helpers shared by the voice-service packages.
//
// Every writer in the service that produces a file other processes may read goes through
// WriteFileAtomic, so a concurrent reader never observes a partially-written file.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DirPermissions is used for every directory the service creates.
	DirPermissions = 0o750
	// FilePermissions is used for every file the service creates.
	FilePermissions = 0o600

	invalidCharReplacement = "_"
	tempFilePattern        = ".tmp-*"
)

// File extension constants.
const (
	ExtWAV  = ".wav"
	extFLAC = ".flac"
	extMP3  = ".mp3"
	extOGA  = ".oga"
	extOGG  = ".ogg"
)

// Time formatting constants.
const (
	secondsInMinute = 60
	secondsInHour   = 3600
	formatSeconds   = "%.1fs"
	formatMinutes   = "%dm %.1fs"
	formatHours     = "%dh %dm"
)

// Error message and format string constants.
const (
	errFmtFailedToCreateDir  = "failed to create directory %s: %w"
	errFmtFailedToCreateTemp = "failed to create temp file in %s: %w"
	errFmtFailedToWriteTemp  = "failed to write temp file %s: %w"
	errFmtFailedToRename     = "failed to move %s into place: %w"
)

// ErrPathEmpty is returned when a required path is empty.
var ErrPathEmpty = errors.New("path cannot be empty")

// EnsureDir ensures a directory exists at the given path, creating it if it doesn't.
func EnsureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}

	mkdirErr := os.MkdirAll(path, DirPermissions)
	if mkdirErr != nil {
		return fmt.Errorf(errFmtFailedToCreateDir, path, mkdirErr)
	}

	return nil
}

// EnsureParentDir creates the parent directory of path if it is absent.
func EnsureParentDir(path string) error {
	return EnsureDir(filepath.Dir(path))
}

// FileExists reports whether path names an existing regular file.
func FileExists(path string) bool {
	if path == "" {
		return false
	}

	info, err := os.Stat(path)

	return err == nil && info.Mode().IsRegular()
}

// ForceExtension appends ext unless path already ends with it (case-insensitive).
func ForceExtension(path, ext string) string {
	if HasExtension(path, ext) {
		return path
	}

	return path + ext
}

// HasExtension reports whether filename carries ext (case-insensitive).
func HasExtension(filename, ext string) bool {
	return strings.EqualFold(filepath.Ext(filename), ext)
}

// IsValidAudioFile reports whether filename carries an extension of a container the
// reference converter can decode.
func IsValidAudioFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ExtWAV, extMP3, extFLAC, extOGG, extOGA:
		return true
	default:
		return false
	}
}

// SanitizeFilename removes or replaces characters that are invalid in most filesystems.
func SanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"<", invalidCharReplacement,
		">", invalidCharReplacement,
		":", invalidCharReplacement,
		"\"", invalidCharReplacement,
		"/", invalidCharReplacement,
		"\\", invalidCharReplacement,
		"|", invalidCharReplacement,
		"?", invalidCharReplacement,
		"*", invalidCharReplacement,
		" ", invalidCharReplacement,
	)

	return replacer.Replace(filename)
}

// WriteFileAtomic writes to a temporary file next to path and renames it into place.
// The parent directory is created if absent. On failure no file is left at path and the
// temporary file is removed.
func WriteFileAtomic(path string, write func(w io.WriteSeeker) error) error {
	if path == "" {
		return ErrPathEmpty
	}

	dirErr := EnsureParentDir(path)
	if dirErr != nil {
		return dirErr
	}

	dir := filepath.Dir(path)

	tempFile, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf(errFmtFailedToCreateTemp, dir, err)
	}

	tempPath := tempFile.Name()
	committed := false

	defer func() {
		if !committed {
			_ = tempFile.Close()
			_ = os.Remove(tempPath)
		}
	}()

	writeErr := write(tempFile)
	if writeErr != nil {
		return fmt.Errorf(errFmtFailedToWriteTemp, tempPath, writeErr)
	}

	closeErr := tempFile.Close()
	if closeErr != nil {
		return fmt.Errorf(errFmtFailedToWriteTemp, tempPath, closeErr)
	}

	chmodErr := os.Chmod(tempPath, FilePermissions)
	if chmodErr != nil {
		return fmt.Errorf(errFmtFailedToWriteTemp, tempPath, chmodErr)
	}

	renameErr := os.Rename(tempPath, path)
	if renameErr != nil {
		return fmt.Errorf(errFmtFailedToRename, path, renameErr)
	}

	committed = true

	return nil
}

// WriteBytesAtomic is WriteFileAtomic for an in-memory payload.
func WriteBytesAtomic(path string, data []byte) error {
	return WriteFileAtomic(path, func(w io.WriteSeeker) error {
		_, err := w.Write(data)

		return err
	})
}

// FormatDuration formats a duration in a human-readable string (e.g., "1h 15m", "5m
// 30.5s", "45.2s").
func FormatDuration(d time.Duration) string {
	seconds := d.Seconds()

	if seconds < secondsInMinute {
		return fmt.Sprintf(formatSeconds, seconds)
	}

	if seconds < secondsInHour {
		minutes := int(seconds / secondsInMinute)
		remainingSeconds := seconds - float64(minutes*secondsInMinute)

		return fmt.Sprintf(formatMinutes, minutes, remainingSeconds)
	}

	hours := int(seconds / secondsInHour)
	remainingSeconds := seconds - float64(hours*secondsInHour)
	remainingMinutes := int(remainingSeconds / secondsInMinute)

	return fmt.Sprintf(formatHours, hours, remainingMinutes)
}

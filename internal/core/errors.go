package core

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the core operations. Callers classify with errors.Is.
var (
	// ErrInputMissing indicates that a required field is absent or empty.
	ErrInputMissing = errors.New("input missing")
	// ErrReferenceUnavailable indicates that a voice profile or one of its files is missing.
	ErrReferenceUnavailable = errors.New("reference unavailable")
	// ErrAuthorizationDenied indicates that a synthesis request failed the API key gate.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrConversionFailure indicates an audio decode or transcode error.
	ErrConversionFailure = errors.New("audio conversion failed")
	// ErrSynthesisFailure indicates a Synthesizer error during a request.
	ErrSynthesisFailure = errors.New("synthesis failed")
	// ErrSessionNotFound indicates an unknown interview session identifier.
	ErrSessionNotFound = errors.New("interview session not found")
	// ErrVoiceExists indicates a uniqueness violation on the voice name.
	ErrVoiceExists = errors.New("voice already exists")
	// ErrVoiceNotFound indicates that no registry entry has the requested name.
	ErrVoiceNotFound = errors.New("voice not found")
)

// DenialReason distinguishes the three authorization checks.
type DenialReason string

// Authorization denial reasons, in the order the checks are evaluated.
const (
	DenialUnknownKey      DenialReason = "unknown_key"
	DenialVoiceNotGranted DenialReason = "voice_not_granted"
	DenialVoiceNotFound   DenialReason = "voice_not_found"
)

// AuthorizationError reports which authorization check failed and for which identifier.
// It unwraps to ErrAuthorizationDenied.
type AuthorizationError struct {
	Reason     DenialReason
	Identifier string
}

// Error implements the error interface.
func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s (%s): %s", ErrAuthorizationDenied, e.Reason, e.Identifier)
}

// Unwrap returns ErrAuthorizationDenied.
func (e *AuthorizationError) Unwrap() error {
	return ErrAuthorizationDenied
}

// NewAuthorizationError builds an AuthorizationError.
func NewAuthorizationError(reason DenialReason, identifier string) error {
	return &AuthorizationError{Reason: reason, Identifier: identifier}
}

// ErrorKind names an error kind for transport payloads.
type ErrorKind string

// Error kinds reported to remote callers.
const (
	KindInputMissing         ErrorKind = "input_missing"
	KindReferenceUnavailable ErrorKind = "reference_unavailable"
	KindAuthorizationDenied  ErrorKind = "authorization_denied"
	KindConversionFailure    ErrorKind = "conversion_failure"
	KindSynthesisFailure     ErrorKind = "synthesis_failure"
	KindSessionNotFound      ErrorKind = "session_not_found"
	KindVoiceExists          ErrorKind = "voice_exists"
	KindVoiceNotFound        ErrorKind = "voice_not_found"
	KindInternal             ErrorKind = "internal"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrAuthorizationDenied, KindAuthorizationDenied},
	{ErrInputMissing, KindInputMissing},
	{ErrReferenceUnavailable, KindReferenceUnavailable},
	{ErrConversionFailure, KindConversionFailure},
	{ErrSynthesisFailure, KindSynthesisFailure},
	{ErrSessionNotFound, KindSessionNotFound},
	{ErrVoiceExists, KindVoiceExists},
	{ErrVoiceNotFound, KindVoiceNotFound},
}

// KindOf classifies err. Errors outside the known kinds are KindInternal.
func KindOf(err error) ErrorKind {
	for _, candidate := range kinds {
		if errors.Is(err, candidate.err) {
			return candidate.kind
		}
	}

	return KindInternal
}

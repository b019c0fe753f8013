package core_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/book-expert/voice-service/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want core.ErrorKind
	}{
		{name: "wrapped input", err: fmt.Errorf("%w: text", core.ErrInputMissing), want: core.KindInputMissing},
		{name: "denial", err: core.NewAuthorizationError(core.DenialVoiceNotFound, "voice_x"), want: core.KindAuthorizationDenied},
		{
			name: "reference before voice not found",
			err:  fmt.Errorf("%w: %w", core.ErrReferenceUnavailable, core.ErrVoiceNotFound),
			want: core.KindReferenceUnavailable,
		},
		{name: "session", err: core.ErrSessionNotFound, want: core.KindSessionNotFound},
		{name: "unknown", err: errors.New("disk on fire"), want: core.KindInternal},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.want, core.KindOf(testCase.err))
		})
	}
}

func TestAuthorizationError(t *testing.T) {
	t.Parallel()

	err := core.NewAuthorizationError(core.DenialUnknownKey, "sk_a...")
	require.ErrorIs(t, err, core.ErrAuthorizationDenied)

	var authErr *core.AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, core.DenialUnknownKey, authErr.Reason)
	assert.Contains(t, err.Error(), "unknown_key")
}

package registry_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/registry"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestRegistry runs an in-process JetStream server and returns a registry bound to it.
func startTestRegistry(t *testing.T) (*registry.NatsRegistry, nats.JetStreamContext) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)
	t.Cleanup(natsServer.Shutdown)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	require.NoError(t, err)
	t.Cleanup(natsConnection.Close)

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	log, err := logger.New(t.TempDir(), "registry-test.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	reg, err := registry.New(jetstreamContext, "TEST_VOICES", log)
	require.NoError(t, err)

	return reg, jetstreamContext
}

func seedProfiles(dir string) []core.VoiceProfile {
	return []core.VoiceProfile{
		{Name: "Saad", VoiceID: "voice_saad", AudioPath: filepath.Join(dir, "saad.wav"), TextPath: filepath.Join(dir, "saad.txt"), IsPredefined: true},
		{Name: "Professor Abed", VoiceID: "voice_professor_abed", AudioPath: filepath.Join(dir, "professor_abed.wav"), TextPath: filepath.Join(dir, "professor_abed.txt"), IsPredefined: true},
		{Name: "Tariq Amin", VoiceID: "voice_tariq_amin", AudioPath: filepath.Join(dir, "tariq_amin.wav"), TextPath: filepath.Join(dir, "tariq_amin.txt"), IsPredefined: true},
	}
}

func TestNatsRegistry_SeedIsIdempotent(t *testing.T) {
	t.Parallel()

	reg, _ := startTestRegistry(t)
	ctx := context.Background()
	dir := t.TempDir()

	require.NoError(t, reg.Seed(ctx, seedProfiles(dir)))
	require.NoError(t, reg.Seed(ctx, seedProfiles(dir)))

	profiles, err := reg.ListVoices(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 3)
}

func TestNatsRegistry_ListOrderAndExistence(t *testing.T) {
	t.Parallel()

	reg, _ := startTestRegistry(t)
	ctx := context.Background()
	dir := t.TempDir()

	require.NoError(t, reg.Seed(ctx, seedProfiles(dir)))
	require.NoError(t, reg.AddVoice(ctx, core.VoiceProfile{Name: "Alice", VoiceID: "voice_alice", AudioPath: filepath.Join(dir, "alice.wav")}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "saad.wav"), []byte("RIFF"), 0o600))

	profiles, err := reg.ListVoices(ctx)
	require.NoError(t, err)

	names := make([]string, 0, len(profiles))
	for _, profile := range profiles {
		names = append(names, profile.Name)
	}

	assert.Equal(t, []string{"Professor Abed", "Saad", "Tariq Amin", "Alice"}, names)
	assert.True(t, profiles[1].AudioExists)
	assert.False(t, profiles[0].AudioExists)
	assert.False(t, profiles[3].IsPredefined)
}

func TestNatsRegistry_AddVoiceUniqueName(t *testing.T) {
	t.Parallel()

	reg, _ := startTestRegistry(t)
	ctx := context.Background()

	profile := core.VoiceProfile{Name: "My Voice", VoiceID: "voice_12345678_abcd", AudioPath: "a.wav", TextPath: "a.txt"}
	require.NoError(t, reg.AddVoice(ctx, profile))

	err := reg.AddVoice(ctx, profile)
	require.ErrorIs(t, err, core.ErrVoiceExists)

	err = reg.AddVoice(ctx, core.VoiceProfile{Name: "  "})
	require.ErrorIs(t, err, core.ErrInputMissing)
}

func TestNatsRegistry_GetVoiceByName(t *testing.T) {
	t.Parallel()

	reg, _ := startTestRegistry(t)
	ctx := context.Background()
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, reg.AddVoice(ctx, core.VoiceProfile{
		Name: "Professor Abed", VoiceID: "voice_professor_abed", AudioPath: "p.wav", TextPath: "p.txt",
		IsPredefined: true, CreatedAt: created,
	}))

	profile, err := reg.GetVoiceByName(ctx, "Professor Abed")
	require.NoError(t, err)
	assert.Equal(t, "voice_professor_abed", profile.VoiceID)
	assert.Equal(t, "p.txt", profile.TextPath)
	assert.True(t, profile.IsPredefined)
	assert.True(t, created.Equal(profile.CreatedAt))

	_, err = reg.GetVoiceByName(ctx, "Nobody")
	require.ErrorIs(t, err, core.ErrVoiceNotFound)
}

func TestNatsRegistry_EmptyList(t *testing.T) {
	t.Parallel()

	reg, _ := startTestRegistry(t)

	profiles, err := reg.ListVoices(context.Background())
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestNatsRegistry_BindsExistingBucket(t *testing.T) {
	t.Parallel()

	reg, jetstreamContext := startTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.AddVoice(ctx, core.VoiceProfile{Name: "Persisted", AudioPath: "x.wav"}))

	log, err := logger.New(t.TempDir(), "registry-rebind.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	rebound, err := registry.New(jetstreamContext, "TEST_VOICES", log)
	require.NoError(t, err)

	_, err = rebound.GetVoiceByName(ctx, "Persisted")
	require.NoError(t, err)
}

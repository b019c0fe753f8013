package objectstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/voice-service/internal/objectstore"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestJetStream runs an in-process JetStream server.
func startTestJetStream(t *testing.T) nats.JetStreamContext {
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

	return jetstreamContext
}

func TestNatsObjectStore_UploadDownload(t *testing.T) {
	t.Parallel()

	store, err := objectstore.New(startTestJetStream(t), "TEST_OUTPUTS")
	require.NoError(t, err)

	ctx := context.Background()
	payload := []byte("RIFF fake wave payload")

	require.NoError(t, store.Upload(ctx, "voice_saad/one.wav", payload))

	downloaded, err := store.Download(ctx, "voice_saad/one.wav")
	require.NoError(t, err)
	assert.Equal(t, payload, downloaded)
}

func TestNatsObjectStore_UploadFileAndDelete(t *testing.T) {
	t.Parallel()

	store, err := objectstore.New(startTestJetStream(t), "TEST_OUTPUTS")
	require.NoError(t, err)

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "speech.wav")
	require.NoError(t, os.WriteFile(path, []byte("wave bytes"), 0o600))

	require.NoError(t, store.UploadFile(ctx, "speech.wav", path))

	downloaded, err := store.Download(ctx, "speech.wav")
	require.NoError(t, err)
	assert.Equal(t, []byte("wave bytes"), downloaded)

	require.NoError(t, store.Delete(ctx, "speech.wav"))
	require.NoError(t, store.Delete(ctx, "speech.wav"))

	_, err = store.Download(ctx, "speech.wav")
	require.ErrorIs(t, err, objectstore.ErrObjectNotFound)
}

func TestNatsObjectStore_BindsToExistingBucket(t *testing.T) {
	t.Parallel()

	jetstreamContext := startTestJetStream(t)

	first, err := objectstore.New(jetstreamContext, "TEST_OUTPUTS")
	require.NoError(t, err)
	require.NoError(t, first.Upload(context.Background(), "kept.wav", []byte("kept")))

	second, err := objectstore.New(jetstreamContext, "TEST_OUTPUTS")
	require.NoError(t, err)

	downloaded, err := second.Download(context.Background(), "kept.wav")
	require.NoError(t, err)
	assert.Equal(t, []byte("kept"), downloaded)
}

func TestNatsObjectStore_MissingUploadFile(t *testing.T) {
	t.Parallel()

	store, err := objectstore.New(startTestJetStream(t), "TEST_OUTPUTS")
	require.NoError(t, err)

	require.Error(t, store.UploadFile(context.Background(), "x.wav", filepath.Join(t.TempDir(), "missing.wav")))
}

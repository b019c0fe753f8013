// Package worker_test tests the NATS synthesis worker.
package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/service"
	"github.com/book-expert/voice-service/internal/tts"
	"github.com/book-expert/voice-service/internal/worker"
	"github.com/google/uuid"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSubject = "test.voice.synthesize"

var (
	errMockUpload  = errors.New("mock upload error")
	errMockMissing = errors.New("mock object missing")
)

// mockObjectStore is an in-memory ObjectStore.
type mockObjectStore struct {
	mu               sync.Mutex
	objects          map[string][]byte
	uploadShouldFail bool
}

func (m *mockObjectStore) Download(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, errMockMissing
	}

	return data, nil
}

func (m *mockObjectStore) Upload(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.uploadShouldFail {
		return errMockUpload
	}

	m.objects[key] = data

	return nil
}

// mockSynthesizer writes the requested text to a file and denies unknown keys.
type mockSynthesizer struct {
	mu    sync.Mutex
	dir   string
	texts []string
	paths []string
}

func (m *mockSynthesizer) SynthesizeAuthorized(
	_ context.Context,
	apiKey, voiceID, text, outputPath string,
) (service.AuthorizedResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if apiKey != "sk_valid" {
		return service.AuthorizedResult{}, core.NewAuthorizationError(core.DenialUnknownKey, "sk_inv***")
	}

	m.texts = append(m.texts, text)

	path := outputPath
	if path == "" {
		path = filepath.Join(m.dir, voiceID+".wav")
	}

	m.paths = append(m.paths, path)

	writeErr := os.WriteFile(path, []byte("wave:"+text), 0o600)
	if writeErr != nil {
		return service.AuthorizedResult{}, writeErr
	}

	return service.AuthorizedResult{
		Result:    tts.Result{OutputPath: path, Samples: 2400, Chunks: 1, WordCount: len(strings.Fields(text)), Duration: 0.1},
		VoiceID:   voiceID,
		VoiceName: "Saad",
	}, nil
}

func setupTest(t *testing.T) (*mockObjectStore, *mockSynthesizer, *nats.Conn) {
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

	testLogger, err := logger.New(t.TempDir(), "worker-test.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testLogger.Close() })

	store := &mockObjectStore{objects: map[string][]byte{"texts/greeting": []byte("Hello from the store")}}
	synth := &mockSynthesizer{dir: t.TempDir()}

	workerInstance, err := worker.NewNatsWorker(natsConnection, testSubject, synth.dir, store, synth, testLogger)
	require.NoError(t, err)

	baseline := natsServer.NumSubscriptions()

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-errChan, "worker.Run should not error on graceful shutdown")
	})

	// Wait for the subscription to be registered before publishing.
	require.Eventually(t, func() bool {
		return natsServer.NumSubscriptions() > baseline
	}, 5*time.Second, 10*time.Millisecond)

	return store, synth, natsConnection
}

func request(t *testing.T, natsConnection *nats.Conn, event worker.SynthesisRequestedEvent) worker.SpeechSynthesizedEvent {
	t.Helper()

	eventData, err := json.Marshal(event)
	require.NoError(t, err)

	replyMsg, err := natsConnection.Request(testSubject, eventData, 5*time.Second)
	require.NoError(t, err, "Request should succeed and receive a reply")

	var reply worker.SpeechSynthesizedEvent
	require.NoError(t, json.Unmarshal(replyMsg.Data, &reply))

	return reply
}

func newHeader() events.EventHeader {
	return events.EventHeader{
		Timestamp:  time.Now(),
		WorkflowID: uuid.NewString(),
		EventID:    uuid.NewString(),
	}
}

func TestWorker_Success(t *testing.T) {
	t.Parallel()

	store, synth, natsConnection := setupTest(t)
	header := newHeader()

	reply := request(t, natsConnection, worker.SynthesisRequestedEvent{
		Header: header, APIKey: "sk_valid", VoiceID: "voice_saad", Text: "Hello there",
	})

	require.Empty(t, reply.Error)
	assert.Equal(t, header.WorkflowID, reply.Header.WorkflowID)
	assert.True(t, strings.HasPrefix(reply.AudioKey, "voice_saad/"))
	assert.Equal(t, "Saad", reply.VoiceName)
	assert.Equal(t, 2, reply.WordCount)
	assert.Equal(t, []string{"Hello there"}, synth.texts)

	uploaded, err := store.Download(context.Background(), reply.AudioKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("wave:Hello there"), uploaded)

	require.Len(t, synth.paths, 1)
	assert.Equal(t, synth.dir, filepath.Dir(synth.paths[0]))
	assert.True(t, strings.HasPrefix(filepath.Base(synth.paths[0]), "temp_job_"))
	assert.NoFileExists(t, synth.paths[0], "the job file is removed after upload")
}

func TestWorker_ConcurrentJobsSameVoiceKeepTheirOwnAudio(t *testing.T) {
	t.Parallel()

	store, synth, natsConnection := setupTest(t)

	const jobs = 6

	replies := make([]worker.SpeechSynthesizedEvent, jobs)

	var wg sync.WaitGroup

	for i := range jobs {
		wg.Add(1)

		go func() {
			defer wg.Done()

			replies[i] = request(t, natsConnection, worker.SynthesisRequestedEvent{
				Header: newHeader(), APIKey: "sk_valid", VoiceID: "voice_saad", Text: fmt.Sprintf("job number %d", i),
			})
		}()
	}

	wg.Wait()

	seen := map[string]bool{}

	for i, reply := range replies {
		require.Empty(t, reply.Error)
		assert.False(t, seen[reply.AudioKey], "audio keys are unique")
		seen[reply.AudioKey] = true

		uploaded, err := store.Download(context.Background(), reply.AudioKey)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("wave:job number %d", i), string(uploaded))
	}

	entries, err := os.ReadDir(synth.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWorker_TextFromObjectStore(t *testing.T) {
	t.Parallel()

	_, synth, natsConnection := setupTest(t)

	reply := request(t, natsConnection, worker.SynthesisRequestedEvent{
		Header: newHeader(), APIKey: "sk_valid", VoiceID: "voice_saad", TextKey: "texts/greeting",
	})

	require.Empty(t, reply.Error)
	assert.Equal(t, []string{"Hello from the store"}, synth.texts)
}

func TestWorker_DeniedKeyRepliesWithKind(t *testing.T) {
	t.Parallel()

	store, synth, natsConnection := setupTest(t)

	reply := request(t, natsConnection, worker.SynthesisRequestedEvent{
		Header: newHeader(), APIKey: "sk_invalid", VoiceID: "voice_saad", Text: "Hello",
	})

	assert.Equal(t, core.KindAuthorizationDenied, reply.ErrorKind)
	assert.Empty(t, reply.AudioKey)
	assert.Empty(t, synth.texts)
	assert.Len(t, store.objects, 1)
}

func TestWorker_UploadFailure(t *testing.T) {
	t.Parallel()

	store, _, natsConnection := setupTest(t)
	store.mu.Lock()
	store.uploadShouldFail = true
	store.mu.Unlock()

	reply := request(t, natsConnection, worker.SynthesisRequestedEvent{
		Header: newHeader(), APIKey: "sk_valid", VoiceID: "voice_saad", Text: "Hello",
	})

	assert.Contains(t, reply.Error, errMockUpload.Error())
	assert.Equal(t, core.KindInternal, reply.ErrorKind)
}

func TestWorker_MalformedRequest(t *testing.T) {
	t.Parallel()

	_, _, natsConnection := setupTest(t)

	replyMsg, err := natsConnection.Request(testSubject, []byte("{not json"), 5*time.Second)
	require.NoError(t, err)

	var reply worker.SpeechSynthesizedEvent
	require.NoError(t, json.Unmarshal(replyMsg.Data, &reply))
	assert.Equal(t, core.KindInputMissing, reply.ErrorKind)
}

func TestNewNatsWorker_EmptySubject(t *testing.T) {
	t.Parallel()

	_, err := worker.NewNatsWorker(nil, "", "", nil, nil, nil)
	require.ErrorIs(t, err, worker.ErrSubjectEmpty)
}

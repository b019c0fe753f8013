// Package worker provides a NATS worker that serves authorized synthesis requests.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/apikeys"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/fsutil"
	"github.com/book-expert/voice-service/internal/service"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// DefaultHandleTimeout bounds a single synthesis job.
const DefaultHandleTimeout = 5 * time.Minute

const jobOutputFormat = "temp_job_%s.wav"

// ErrSubjectEmpty is returned when the worker has no subject to listen on.
var ErrSubjectEmpty = errors.New("subject cannot be empty")

// SynthesisRequestedEvent asks for text to be spoken in a granted voice. The text comes
// from Text, or from the object store under TextKey when Text is empty.
type SynthesisRequestedEvent struct {
	Header  events.EventHeader `json:"header"`
	APIKey  string             `json:"api_key"`
	VoiceID string             `json:"voice_id"`
	Text    string             `json:"text,omitempty"`
	TextKey string             `json:"text_key,omitempty"`
}

// SpeechSynthesizedEvent is the reply to a SynthesisRequestedEvent. On failure only the
// header and the error fields are set.
type SpeechSynthesizedEvent struct {
	Header          events.EventHeader `json:"header"`
	AudioKey        string             `json:"audio_key,omitempty"`
	VoiceID         string             `json:"voice_id,omitempty"`
	VoiceName       string             `json:"voice_name,omitempty"`
	Samples         int                `json:"samples,omitempty"`
	WordCount       int                `json:"word_count,omitempty"`
	DurationSeconds float64            `json:"duration_seconds,omitempty"`
	Error           string             `json:"error,omitempty"`
	ErrorKind       core.ErrorKind     `json:"error_kind,omitempty"`
}

// Synthesizer is the authorized synthesis operation the worker drives.
type Synthesizer interface {
	SynthesizeAuthorized(ctx context.Context, apiKey, voiceID, text, outputPath string) (service.AuthorizedResult, error)
}

// NatsWorker listens for synthesis jobs on a NATS subject and replies with the object
// store key of the rendered waveform.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	outputDir      string
	store          core.ObjectStore
	synthesizer    Synthesizer
	timeout        time.Duration
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker. Each job renders into its own
// file under outputDir, removed once uploaded.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	outputDir string,
	store core.ObjectStore,
	synthesizer Synthesizer,
	log *logger.Logger,
) (*NatsWorker, error) {
	if subject == "" {
		return nil, ErrSubjectEmpty
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		outputDir:      outputDir,
		store:          store,
		synthesizer:    synthesizer,
		timeout:        DefaultHandleTimeout,
		log:            log,
	}, nil
}

// Run subscribes with a queue group and blocks until ctx is done.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.QueueSubscribe(w.subject, w.subject+"-workers", w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.Info("Synthesis worker listening on %s", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	event, err := parseEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse synthesis request: %v", err)
		w.reply(msg, failure(events.EventHeader{}, err))

		return
	}

	reply, processErr := w.processJob(ctx, event)
	if processErr != nil {
		w.log.Error("Synthesis job %s for key %s failed: %v",
			event.Header.WorkflowID, apikeys.MaskKey(event.APIKey), processErr)
		w.reply(msg, failure(event.Header, processErr))

		return
	}

	w.reply(msg, reply)
}

// processJob resolves the text, synthesizes it and uploads the waveform.
func (w *NatsWorker) processJob(ctx context.Context, event *SynthesisRequestedEvent) (*SpeechSynthesizedEvent, error) {
	text := event.Text

	if strings.TrimSpace(text) == "" && event.TextKey != "" {
		textData, err := w.store.Download(ctx, event.TextKey)
		if err != nil {
			return nil, fmt.Errorf("failed to download text data for key '%s': %w", event.TextKey, err)
		}

		text = string(textData)
	}

	jobID := uuid.NewString()
	jobPath := filepath.Join(w.outputDir, fmt.Sprintf(jobOutputFormat, jobID))

	result, err := w.synthesizer.SynthesizeAuthorized(ctx, event.APIKey, event.VoiceID, text, jobPath)
	if err != nil {
		return nil, err
	}

	defer w.removeJobFile(result.OutputPath)

	audioData, err := os.ReadFile(result.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio '%s': %w", result.OutputPath, err)
	}

	audioKey := fsutil.SanitizeFilename(event.VoiceID) + "/" + jobID + ".wav"

	err = w.store.Upload(ctx, audioKey, audioData)
	if err != nil {
		return nil, fmt.Errorf("failed to upload audio data for key '%s': %w", audioKey, err)
	}

	w.log.Info("Synthesis job %s uploaded %s (%d chunks)", event.Header.WorkflowID, audioKey, result.Chunks)

	return &SpeechSynthesizedEvent{
		Header:          event.Header,
		AudioKey:        audioKey,
		VoiceID:         result.VoiceID,
		VoiceName:       result.VoiceName,
		Samples:         result.Samples,
		WordCount:       result.WordCount,
		DurationSeconds: result.Duration,
	}, nil
}

func (w *NatsWorker) removeJobFile(path string) {
	removeErr := os.Remove(path)
	if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		w.log.Warn("Failed to remove job file '%s': %v", path, removeErr)
	}
}

func failure(header events.EventHeader, err error) *SpeechSynthesizedEvent {
	return &SpeechSynthesizedEvent{Header: header, Error: err.Error(), ErrorKind: core.KindOf(err)}
}

func (w *NatsWorker) reply(msg *nats.Msg, replyEvent *SpeechSynthesizedEvent) {
	if msg.Reply == "" {
		return
	}

	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		w.log.Error("Failed to marshal reply event: %v", err)

		return
	}

	respondErr := msg.Respond(replyData)
	if respondErr != nil {
		w.log.Error("Failed to publish reply event for workflow %s: %v", replyEvent.Header.WorkflowID, respondErr)
	}
}

func parseEvent(msg *nats.Msg) (*SynthesisRequestedEvent, error) {
	var event SynthesisRequestedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal event: %w", core.ErrInputMissing, err)
	}

	return &event, nil
}

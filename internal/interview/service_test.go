package interview_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/interview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSpeaker records spoken texts and fails with err when set.
type fakeSpeaker struct {
	err    error
	voices []string
	texts  []string
	dir    string
}

func (f *fakeSpeaker) SpeakAs(_ context.Context, voiceName, text, outputName string) (string, error) {
	f.voices = append(f.voices, voiceName)
	f.texts = append(f.texts, text)

	if f.err != nil {
		return "", f.err
	}

	return filepath.Join(f.dir, outputName), nil
}

func newTestService(t *testing.T, completer core.TextCompleter, speaker interview.Speaker) (*interview.Service, string) {
	t.Helper()

	reportsDir := t.TempDir()
	log := newTestLogger(t)
	cfg := config.InterviewConfig{AgentVoice: "Professor Abed", ReportsDir: reportsDir, QuestionCount: 3}

	return interview.NewService(interview.NewStore(), interview.NewGenerator(completer, 3, log), speaker, cfg, log), reportsDir
}

func TestStartInterview(t *testing.T) {
	t.Parallel()

	speaker := &fakeSpeaker{dir: t.TempDir()}
	service, _ := newTestService(t, &fakeCompleter{}, speaker)

	started, err := service.StartInterview(context.Background(), []byte("Go, NATS, PostgreSQL"), "cv.txt", " Ada ")
	require.NoError(t, err)

	assert.NotEmpty(t, started.SessionID)
	assert.Equal(t, "Ada", started.CandidateName)
	assert.Equal(t, interview.FallbackSummary, started.CVSummary)
	assert.Equal(t, interview.FallbackQuestions, started.Questions)
	assert.Equal(t, "Professor Abed", started.AgentVoice)
	assert.Equal(t, []string{"Professor Abed"}, speaker.voices)
	assert.Equal(t, []string{interview.FallbackQuestions[0]}, speaker.texts)
	assert.NotEmpty(t, started.FirstQuestionAudio)

	session, err := service.Store().Get(started.SessionID)
	require.NoError(t, err)
	assert.Equal(t, interview.StateCreated, session.State)
	assert.Equal(t, "Go, NATS, PostgreSQL", session.CVText)
}

func TestStartInterview_NoTextFailsBeforeGeneration(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{available: true, reply: "unused"}
	speaker := &fakeSpeaker{}
	service, _ := newTestService(t, completer, speaker)

	_, err := service.StartInterview(context.Background(), []byte("   "), "cv.txt", "Ada")
	require.ErrorIs(t, err, core.ErrInputMissing)

	_, err = service.StartInterview(context.Background(), []byte("garbage"), "cv.pdf", "Ada")
	require.ErrorIs(t, err, core.ErrConversionFailure)

	assert.Empty(t, completer.prompts)
	assert.Empty(t, speaker.texts)
	assert.Zero(t, service.Store().Len())
}

func TestStartInterview_MissingCandidate(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t, &fakeCompleter{}, nil)

	_, err := service.StartInterview(context.Background(), []byte("cv"), "cv.txt", "")
	require.ErrorIs(t, err, core.ErrInputMissing)
}

func TestQuestionAudio_AgentVoiceMissing(t *testing.T) {
	t.Parallel()

	speaker := &fakeSpeaker{err: fmt.Errorf("%w: audio missing", core.ErrReferenceUnavailable)}
	service, _ := newTestService(t, &fakeCompleter{}, speaker)

	path, err := service.QuestionAudio(context.Background(), "Explain channels.", "")
	require.NoError(t, err)
	assert.Empty(t, path)

	_, err = service.QuestionAudio(context.Background(), " ", "")
	require.ErrorIs(t, err, core.ErrInputMissing)
}

func TestQuestionAudio_SynthesisFailure(t *testing.T) {
	t.Parallel()

	speaker := &fakeSpeaker{err: fmt.Errorf("%w: chunk 1/1", core.ErrSynthesisFailure)}
	service, _ := newTestService(t, &fakeCompleter{}, speaker)

	_, err := service.QuestionAudio(context.Background(), "Explain channels.", "q.wav")
	require.ErrorIs(t, err, core.ErrSynthesisFailure)
}

func TestSubmitAnswersAndEvaluate(t *testing.T) {
	t.Parallel()

	service, reportsDir := newTestService(t, &fakeCompleter{}, nil)
	ctx := context.Background()

	started, err := service.StartInterview(ctx, []byte("cv"), "cv.txt", "Ada")
	require.NoError(t, err)

	result, err := service.SubmitAnswersAndEvaluate(ctx, started.SessionID, nil, []string{"a1", "a2", "a3"})
	require.NoError(t, err)

	assert.Equal(t, interview.FallbackEvaluation, result.Evaluation)
	assert.Equal(t, filepath.Join(reportsDir, interview.ReportName(started.SessionID, 1)), result.ReportPath)

	report, err := os.ReadFile(result.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(report), "A3: a3")

	session, err := service.Store().Get(started.SessionID)
	require.NoError(t, err)
	assert.Equal(t, interview.StateEvaluated, session.State)
	assert.Equal(t, []string{"a1", "a2", "a3"}, session.Answers)
}

func TestSubmitAnswersAndEvaluate_TwiceKeepsFirst(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{}
	service, _ := newTestService(t, completer, nil)
	ctx := context.Background()

	started, err := service.StartInterview(ctx, []byte("cv"), "cv.txt", "Ada")
	require.NoError(t, err)

	first, err := service.SubmitAnswersAndEvaluate(ctx, started.SessionID, nil, []string{"a1"})
	require.NoError(t, err)

	completer.available = true
	completer.reply = "Second opinion."

	second, err := service.SubmitAnswersAndEvaluate(ctx, started.SessionID, nil, []string{"a1", "a2"})
	require.NoError(t, err)

	assert.Equal(t, 2, second.Attempt)
	assert.NotEqual(t, first.ReportPath, second.ReportPath)
	assert.FileExists(t, first.ReportPath)

	session, err := service.Store().Get(started.SessionID)
	require.NoError(t, err)
	require.Len(t, session.Evaluations, 2)
	assert.Equal(t, interview.FallbackEvaluation, session.Evaluations[0].Text)
	assert.Equal(t, []string{"a1"}, session.Evaluations[0].Answers)
	assert.Equal(t, "Second opinion.", session.Evaluations[1].Text)
}

func TestSubmitAnswersAndEvaluate_UnknownSession(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t, &fakeCompleter{}, nil)

	_, err := service.SubmitAnswersAndEvaluate(context.Background(), "missing", nil, []string{"a"})
	require.ErrorIs(t, err, core.ErrSessionNotFound)

	_, err = service.SubmitAnswersAndEvaluate(context.Background(), "", nil, nil)
	require.ErrorIs(t, err, core.ErrInputMissing)
}

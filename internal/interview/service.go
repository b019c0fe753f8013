package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/core"
)

// Speaker vocalizes text with a registered voice and returns the written file path.
type Speaker interface {
	SpeakAs(ctx context.Context, voiceName, text, outputName string) (string, error)
}

// Started is the result of StartInterview.
type Started struct {
	SessionID          string   `json:"session_id"`
	CandidateName      string   `json:"candidate_name"`
	CVSummary          string   `json:"cv_summary"`
	Questions          []string `json:"questions"`
	AgentVoice         string   `json:"selected_agent"`
	FirstQuestionAudio string   `json:"first_question_audio,omitempty"`
}

// Evaluated is the result of SubmitAnswersAndEvaluate.
type Evaluated struct {
	SessionID  string `json:"session_id"`
	Evaluation string `json:"evaluation"`
	ReportPath string `json:"report_path,omitempty"`
	Attempt    int    `json:"attempt"`
}

// Service drives interview sessions.
type Service struct {
	store     *Store
	generator *Generator
	speaker   Speaker
	cfg       config.InterviewConfig
	logger    *logger.Logger
}

// NewService wires the interview flow. speaker may be nil, in which case no question
// audio is produced.
func NewService(
	store *Store,
	generator *Generator,
	speaker Speaker,
	cfg config.InterviewConfig,
	log *logger.Logger,
) *Service {
	if cfg.AgentVoice == "" {
		cfg.AgentVoice = config.DefaultAgentVoice
	}

	if cfg.ReportsDir == "" {
		cfg.ReportsDir = config.DefaultReportsDir
	}

	return &Service{store: store, generator: generator, speaker: speaker, cfg: cfg, logger: log}
}

// Store returns the session store.
func (s *Service) Store() *Store {
	return s.store
}

// StartInterview extracts the CV text, generates the summary and questions and opens a
// session. Extraction failures abort before any question generation. The first question
// is vocalized on a best-effort basis.
func (s *Service) StartInterview(ctx context.Context, cv []byte, filename, candidateName string) (Started, error) {
	candidateName = strings.TrimSpace(candidateName)
	if candidateName == "" {
		return Started{}, fmt.Errorf("%w: candidate name", core.ErrInputMissing)
	}

	cvText, err := ExtractCVText(filename, cv)
	if err != nil {
		return Started{}, err
	}

	summary := s.generator.Summary(ctx, cvText)
	questions := s.generator.Questions(ctx, cvText)
	session := s.store.Create(candidateName, cvText, summary, questions)

	s.logger.Info("Started interview %s for %s with %d questions", session.ID, candidateName, len(questions))

	started := Started{
		SessionID:     session.ID,
		CandidateName: candidateName,
		CVSummary:     summary,
		Questions:     session.Questions,
		AgentVoice:    s.cfg.AgentVoice,
	}

	if len(questions) > 0 {
		path, audioErr := s.QuestionAudio(ctx, questions[0], "first_question_"+session.ID+".wav")
		if audioErr != nil {
			s.logger.Warn("First question audio for %s failed: %v", session.ID, audioErr)
		}

		started.FirstQuestionAudio = path
	}

	return started, nil
}

// QuestionAudio speaks question with the agent voice. When the agent voice has no
// reference audio on disk it returns an empty path and no error.
func (s *Service) QuestionAudio(ctx context.Context, question, outputName string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("%w: question text", core.ErrInputMissing)
	}

	if s.speaker == nil {
		return "", nil
	}

	if outputName == "" {
		outputName = fmt.Sprintf("question_%d.wav", time.Now().UnixNano())
	}

	path, err := s.speaker.SpeakAs(ctx, s.cfg.AgentVoice, question, outputName)
	if errors.Is(err, core.ErrReferenceUnavailable) || errors.Is(err, core.ErrVoiceNotFound) {
		s.logger.Warn("Agent voice %q unavailable, no question audio: %v", s.cfg.AgentVoice, err)

		return "", nil
	}

	if err != nil {
		return "", err
	}

	return path, nil
}

// SubmitAnswersAndEvaluate appends the answers to the session, evaluates them and writes
// a report. questions defaults to the session's questions when empty. Calling it again
// for the same session adds a new evaluation and report without touching earlier ones.
// A report that cannot be written is logged and omitted.
func (s *Service) SubmitAnswersAndEvaluate(
	ctx context.Context,
	sessionID string,
	questions, answers []string,
) (Evaluated, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Evaluated{}, fmt.Errorf("%w: session_id", core.ErrInputMissing)
	}

	session, err := s.store.AppendAnswers(sessionID, answers)
	if err != nil {
		return Evaluated{}, err
	}

	if len(questions) == 0 {
		questions = session.Questions
	}

	attempt, err := s.store.ReserveAttempt(sessionID)
	if err != nil {
		return Evaluated{}, err
	}

	evaluation := s.generator.Evaluate(ctx, session.CVText, questions, answers)

	reportPath, reportErr := WriteReport(s.cfg.ReportsDir, ReportName(sessionID, attempt),
		session.CandidateName, questions, answers, evaluation)
	if reportErr != nil {
		s.logger.Warn("Report for interview %s not written: %v", sessionID, reportErr)
	}

	_, recordErr := s.store.RecordEvaluation(sessionID, Evaluation{
		Text:       evaluation,
		ReportPath: reportPath,
		Questions:  questions,
		Answers:    answers,
	})
	if recordErr != nil {
		return Evaluated{}, recordErr
	}

	s.logger.Info("Evaluated interview %s (attempt %d)", sessionID, attempt)

	return Evaluated{SessionID: sessionID, Evaluation: evaluation, ReportPath: reportPath, Attempt: attempt}, nil
}

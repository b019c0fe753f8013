package service

import (
	"context"

	"github.com/book-expert/voice-service/internal/interview"
)

// StartInterview opens an interview session from a CV upload.
func (s *Service) StartInterview(ctx context.Context, cv []byte, filename, candidateName string) (interview.Started, error) {
	return s.interviews.StartInterview(ctx, cv, filename, candidateName)
}

// SubmitAnswersAndEvaluate records answers for a session and evaluates them.
func (s *Service) SubmitAnswersAndEvaluate(
	ctx context.Context,
	sessionID string,
	questions, answers []string,
) (interview.Evaluated, error) {
	return s.interviews.SubmitAnswersAndEvaluate(ctx, sessionID, questions, answers)
}

// GenerateQuestionAudio speaks a question with the agent voice. An empty path with no
// error means the agent voice is not available on disk.
func (s *Service) GenerateQuestionAudio(ctx context.Context, question string) (string, error) {
	return s.interviews.QuestionAudio(ctx, question, "")
}

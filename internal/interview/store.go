// Package interview runs the CV interview flow: text extraction, personalized questions,
// spoken prompts, answer collection and a scored evaluation report.
package interview

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/book-expert/voice-service/internal/core"
	"github.com/google/uuid"
)

// State is the position of a session in its forward-only lifecycle.
type State string

// Session states.
const (
	StateCreated   State = "created"
	StateAnswered  State = "answered"
	StateEvaluated State = "evaluated"
)

// Evaluation is one evaluation attached to a session.
type Evaluation struct {
	Text       string    `json:"evaluation"`
	ReportPath string    `json:"report_path,omitempty"`
	Questions  []string  `json:"questions"`
	Answers    []string  `json:"answers"`
	CreatedAt  time.Time `json:"created_at"`
}

// Session is the state of one interview.
type Session struct {
	ID            string       `json:"session_id"`
	CandidateName string       `json:"candidate_name"`
	CVText        string       `json:"-"`
	CVSummary     string       `json:"cv_summary"`
	Questions     []string     `json:"questions"`
	Answers       []string     `json:"answers"`
	State         State        `json:"state"`
	Evaluations   []Evaluation `json:"evaluations"`
	CreatedAt     time.Time    `json:"created_at"`

	attempts int
}

func (s *Session) clone() Session {
	out := *s
	out.Questions = slices.Clone(s.Questions)
	out.Answers = slices.Clone(s.Answers)
	out.Evaluations = make([]Evaluation, len(s.Evaluations))

	for i, evaluation := range s.Evaluations {
		evaluation.Questions = slices.Clone(evaluation.Questions)
		evaluation.Answers = slices.Clone(evaluation.Answers)
		out.Evaluations[i] = evaluation
	}

	return out
}

// Store holds interview sessions for the lifetime of the process.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create registers a session in the created state.
func (s *Store) Create(candidateName, cvText, summary string, questions []string) Session {
	session := &Session{
		ID:            uuid.NewString(),
		CandidateName: candidateName,
		CVText:        cvText,
		CVSummary:     summary,
		Questions:     slices.Clone(questions),
		Answers:       []string{},
		State:         StateCreated,
		Evaluations:   []Evaluation{},
		CreatedAt:     time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session.clone()
}

// Get returns a copy of the session.
func (s *Store) Get(id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}

	return session.clone(), nil
}

// AppendAnswers records answers in question order. answers is the full list submitted by
// the candidate; entries beyond those already stored are appended, and never more than
// one per question. Stored answers are never rewritten.
func (s *Store) AppendAnswers(id string, answers []string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}

	limit := min(len(answers), len(session.Questions))
	for index := len(session.Answers); index < limit; index++ {
		session.Answers = append(session.Answers, answers[index])
	}

	if session.State == StateCreated {
		session.State = StateAnswered
	}

	return session.clone(), nil
}

// ReserveAttempt returns the next evaluation attempt number for the session. Concurrent
// evaluations of one session receive distinct numbers.
func (s *Store) ReserveAttempt(id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}

	session.attempts++

	return session.attempts, nil
}

// RecordEvaluation appends an evaluation and moves the session to its terminal state.
// Earlier evaluations are kept unchanged.
func (s *Store) RecordEvaluation(id string, evaluation Evaluation) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}

	if evaluation.CreatedAt.IsZero() {
		evaluation.CreatedAt = time.Now().UTC()
	}

	evaluation.Questions = slices.Clone(evaluation.Questions)
	evaluation.Answers = slices.Clone(evaluation.Answers)
	session.Evaluations = append(session.Evaluations, evaluation)
	session.State = StateEvaluated

	return session.clone(), nil
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

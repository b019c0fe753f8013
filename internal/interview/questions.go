package interview

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/core"
)

// Prompt truncation limits, in characters of CV text.
const (
	summaryCVLimit    = 2000
	questionsCVLimit  = 3000
	evaluationCVLimit = 1000
)

// Completion settings per prompt.
var (
	summaryOptions    = core.CompletionOptions{MaxTokens: 150, Temperature: 0.7}
	questionsOptions  = core.CompletionOptions{MaxTokens: 500, Temperature: 0.8}
	evaluationOptions = core.CompletionOptions{MaxTokens: 800, Temperature: 0.7}
)

// Question filters applied to completion output.
const (
	minCandidateLineLen = 30
	minQuestionLen      = 20
)

// Deterministic texts used when the completion endpoint is unconfigured or fails.
const (
	FallbackSummary            = "CV contains relevant experience and skills."
	FallbackSummaryOnError     = "CV processed successfully."
	FallbackEvaluation         = "Interview completed successfully. Good responses overall."
	FallbackEvaluationOnError  = "Interview completed. Good responses overall."
	logFmtCompletionFallback   = "Completion for %s failed, using fallback: %v"
	logFmtQuestionsUnparseable = "Completion returned %d usable questions, need %d; using fallback"
)

// FallbackQuestions are asked when no completion endpoint is configured.
var FallbackQuestions = []string{
	"Explain a complex technical problem you solved and your approach to solving it.",
	"Describe the most challenging technical project from your CV and the technologies you used.",
	"Walk me through your experience with the key programming languages or frameworks mentioned in your CV.",
}

// FallbackQuestionsOnError are asked when the completion fails or yields too few questions.
var FallbackQuestionsOnError = []string{
	"Explain a key technical concept from your field of expertise.",
	"What is the most important methodology or technique you use in your work?",
	"How do you approach problem-solving in your professional domain?",
}

var questionPrefix = regexp.MustCompile(`(?i)^\s*(?:(?:question|q)\s*\d+\s*[:.)]|\d+\s*[.)]|[-*•])\s*`)

const summaryPrompt = "Summarize this CV in 2-3 sentences, highlighting key skills and experience:\n\n%s"

const questionsPrompt = `Carefully analyze this CV and extract SPECIFIC technologies mentioned in:
1. THESIS/RESEARCH projects
2. WORK EXPERIENCE projects
3. TECHNICAL SKILLS section
4. PROJECT descriptions

Look for exact technical terms like:
- Programming languages, frameworks, libraries
- Medical procedures, drugs, diagnostic methods
- Engineering tools, software, methodologies
- Scientific techniques, equipment, algorithms
- Business tools, methodologies, systems

Then generate %d HIGHLY TECHNICAL questions about the SPECIFIC technologies found.
Ask about internal workings, not general experience. Examples:
- If "Python" found: "Explain Python's GIL and its impact on multithreading"
- If "React" found: "How does React's reconciliation algorithm work?"
- If "PCR" found: "Explain the three steps of PCR amplification cycle"

CV Content:
%s

Extract specific technologies, then ask technical questions about HOW they work internally.`

const evaluationPrompt = `Generate a detailed interview evaluation report based on CV and Q&A:

CV Summary: %s

Interview Q&A:
%s

Provide detailed analysis in this format:

**OVERALL SCORE: X/10**

**STRENGTHS:**
- Specific strength with example

**WEAKNESSES:**
- Specific weakness with improvement suggestion

**QUESTION-BY-QUESTION ANALYSIS:**
Q1: [Brief assessment of answer quality]

**RECOMMENDATIONS:**
- Specific recommendation`

// Generator produces CV summaries, questions and evaluations. Every method returns a
// deterministic fallback rather than an error.
type Generator struct {
	completer core.TextCompleter
	count     int
	logger    *logger.Logger
}

// NewGenerator creates a generator asking count questions.
func NewGenerator(completer core.TextCompleter, count int, log *logger.Logger) *Generator {
	if count <= 0 {
		count = len(FallbackQuestions)
	}

	return &Generator{completer: completer, count: count, logger: log}
}

// Summary returns a short summary of cvText.
func (g *Generator) Summary(ctx context.Context, cvText string) string {
	if !g.available() {
		return FallbackSummary
	}

	reply, err := g.completer.Complete(ctx, fmt.Sprintf(summaryPrompt, truncate(cvText, summaryCVLimit)), summaryOptions)
	if err != nil || reply == "" {
		g.logger.Warn(logFmtCompletionFallback, "CV summary", err)

		return FallbackSummaryOnError
	}

	return reply
}

// Questions returns exactly the configured number of interview questions.
func (g *Generator) Questions(ctx context.Context, cvText string) []string {
	if !g.available() {
		return limit(FallbackQuestions, g.count)
	}

	prompt := fmt.Sprintf(questionsPrompt, g.count, truncate(cvText, questionsCVLimit))

	reply, err := g.completer.Complete(ctx, prompt, questionsOptions)
	if err != nil {
		g.logger.Warn(logFmtCompletionFallback, "interview questions", err)

		return limit(FallbackQuestionsOnError, g.count)
	}

	questions, ok := ParseQuestions(reply, g.count)
	if !ok {
		g.logger.Warn(logFmtQuestionsUnparseable, len(questions), g.count)

		return limit(FallbackQuestionsOnError, g.count)
	}

	return questions
}

// Evaluate scores the answers against their questions.
func (g *Generator) Evaluate(ctx context.Context, cvText string, questions, answers []string) string {
	if !g.available() {
		return FallbackEvaluation
	}

	prompt := fmt.Sprintf(evaluationPrompt, truncate(cvText, evaluationCVLimit), formatPairs(questions, answers))

	reply, err := g.completer.Complete(ctx, prompt, evaluationOptions)
	if err != nil || reply == "" {
		g.logger.Warn(logFmtCompletionFallback, "evaluation", err)

		return FallbackEvaluationOnError
	}

	return reply
}

func (g *Generator) available() bool {
	return g.completer != nil && g.completer.Available()
}

// ParseQuestions extracts up to count questions from a completion. Lines qualify when they
// contain a question mark or are long enough to be a prompt; numbering prefixes such as
// "1.", "Q1:" or "Question 1:" are removed and short remnants dropped. The second result
// reports whether count questions were found.
func ParseQuestions(reply string, count int) ([]string, bool) {
	questions := make([]string, 0, count)

	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || (!strings.Contains(line, "?") && len(line) <= minCandidateLineLen) {
			continue
		}

		line = strings.TrimSpace(questionPrefix.ReplaceAllString(line, ""))
		line = strings.Trim(line, `"`)

		if len(line) <= minQuestionLen {
			continue
		}

		questions = append(questions, line)
		if len(questions) == count {
			return questions, true
		}
	}

	return questions, false
}

func formatPairs(questions, answers []string) string {
	pairs := make([]string, 0, len(answers))

	for index := range min(len(questions), len(answers)) {
		pairs = append(pairs, fmt.Sprintf("Q%d: %s\nA%d: %s", index+1, questions[index], index+1, answers[index]))
	}

	return strings.Join(pairs, "\n\n")
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}

	return string(runes[:limit])
}

func limit(items []string, count int) []string {
	out := make([]string, min(count, len(items)))
	copy(out, items)

	return out
}

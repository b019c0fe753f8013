package interview

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/book-expert/voice-service/internal/fsutil"
)

// ReportName returns the file name of the attempt-th report for a session. The first
// report keeps the plain name; later ones are numbered so earlier reports survive.
func ReportName(sessionID string, attempt int) string {
	if attempt <= 1 {
		return fmt.Sprintf("interview_report_%s.txt", sessionID)
	}

	return fmt.Sprintf("interview_report_%s_%d.txt", sessionID, attempt)
}

// RenderReport formats the plain-text interview report.
func RenderReport(candidateName string, questions, answers []string, evaluation string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Interview Report - %s\n\n", candidateName)
	b.WriteString("Questions & Answers:\n")

	for index := range min(len(questions), len(answers)) {
		fmt.Fprintf(&b, "Q%d: %s\nA%d: %s\n\n", index+1, questions[index], index+1, answers[index])
	}

	fmt.Fprintf(&b, "Evaluation:\n%s\n", evaluation)

	return b.String()
}

// WriteReport renders the report into dir and returns its path.
func WriteReport(dir, name, candidateName string, questions, answers []string, evaluation string) (string, error) {
	path := filepath.Join(dir, name)

	err := fsutil.WriteBytesAtomic(path, []byte(RenderReport(candidateName, questions, answers, evaluation)))
	if err != nil {
		return "", fmt.Errorf("failed to write interview report: %w", err)
	}

	return path, nil
}

// Package cleanup removes temporary and generated audio artifacts from the service's
// working directories.
package cleanup

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Report section headers.
const (
	reportHeaderAnalysis = "=== Voice Service Cleanup ==="
	reportHeaderSummary  = "=== Summary ==="
	reportFilesRemoved   = "Removed files:"
	reportFilesMatched   = "Files that would be removed:"
	reportErrors         = "Errors encountered:"
)

// Summary format strings.
const (
	summaryFiles  = "Files: %d\n"
	summaryBytes  = "Bytes: %d\n"
	summaryErrors = "Errors: %d\n"
	summaryDryRun = "Dry run: %t\n"
)

const listItemFormat = "  - %s\n"

// ErrNoDirectories is returned when Run is called without directories to scan.
var ErrNoDirectories = errors.New("no directories to clean")

// DefaultPatterns are the generated artifacts the service and its interview flow leave
// behind.
var DefaultPatterns = []string{
	"api_output_*.wav",
	"temp_*.wav",
	"temp_upload_*",
	"question_*.wav",
	"first_question_*.wav",
	"response_*.wav",
	"response_*.mp3",
	"ai_response_*.mp3",
	"greeting_*.mp3",
	"question_*.mp3",
	"first_question_*.mp3",
}

// Report lists what a cleanup pass removed, or would remove on a dry run.
type Report struct {
	Files  []string
	Bytes  int64
	Errors []string
	DryRun bool
}

// Run matches patterns in each directory and removes regular files. With dryRun set
// nothing is removed. A file matched by several patterns is handled once.
func Run(dirs, patterns []string, dryRun bool) (*Report, error) {
	if len(dirs) == 0 {
		return nil, ErrNoDirectories
	}

	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	report := &Report{DryRun: dryRun}

	for _, path := range matches(dirs, patterns, report) {
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		if !dryRun {
			removeErr := os.Remove(path)
			if removeErr != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", path, removeErr))

				continue
			}
		}

		report.Files = append(report.Files, path)
		report.Bytes += info.Size()
	}

	return report, nil
}

func matches(dirs, patterns []string, report *Report) []string {
	seen := make(map[string]struct{})

	for _, dir := range dirs {
		for _, pattern := range patterns {
			found, err := filepath.Glob(filepath.Join(dir, pattern))
			if err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("pattern %q: %v", pattern, err))

				continue
			}

			for _, path := range found {
				seen[path] = struct{}{}
			}
		}
	}

	paths := make([]string, 0, len(seen))
	for path := range seen {
		paths = append(paths, path)
	}

	sort.Strings(paths)

	return paths
}

// PrintReport writes a formatted report to w.
func PrintReport(w io.Writer, report *Report) {
	fmt.Fprintln(w, reportHeaderAnalysis)
	fmt.Fprintln(w)

	if len(report.Files) > 0 {
		header := reportFilesRemoved
		if report.DryRun {
			header = reportFilesMatched
		}

		fmt.Fprintln(w, header)

		for _, file := range report.Files {
			fmt.Fprintf(w, listItemFormat, file)
		}

		fmt.Fprintln(w)
	}

	if len(report.Errors) > 0 {
		fmt.Fprintln(w, reportErrors)

		for _, err := range report.Errors {
			fmt.Fprintf(w, listItemFormat, err)
		}

		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, reportHeaderSummary)
	fmt.Fprintf(w, summaryFiles, len(report.Files))
	fmt.Fprintf(w, summaryBytes, report.Bytes)
	fmt.Fprintf(w, summaryErrors, len(report.Errors))
	fmt.Fprintf(w, summaryDryRun, report.DryRun)
}

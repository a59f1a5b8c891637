package report

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/avikharat/cloudScanRunner/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.Report) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// WriteFile renders report into path using the writer built by newWriter.
// Parent directories are created and the file is readable by the owner only.
func WriteFile(path string, report *model.Report, newWriter func(io.Writer) Writer) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}

	if _, err := newWriter(f).Write(report); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close report file: %w", err)
	}
	return nil
}

// IssueTypeCount is the number of issues sharing one issue code.
type IssueTypeCount struct {
	Code  string
	Count int
}

// TopIssueTypes returns the n most frequent issue codes, most frequent first.
// Ties are broken by code so the order is stable. n <= 0 returns every code.
func TopIssueTypes(issues []model.Issue, n int) []IssueTypeCount {
	counts := make(map[string]int)
	for _, issue := range issues {
		counts[issue.IssueCode]++
	}

	types := make([]IssueTypeCount, 0, len(counts))
	for code, count := range counts {
		types = append(types, IssueTypeCount{Code: code, Count: count})
	}
	slices.SortFunc(types, func(a, b IssueTypeCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Code, b.Code)
	})

	if n > 0 && len(types) > n {
		types = types[:n]
	}
	return types
}

// impactOrder lists buckets from most to least severe.
var impactOrder = []model.Impact{model.ImpactHigh, model.ImpactMedium, model.ImpactLow}

// impactLabel returns the display name of an impact bucket ("High").
func impactLabel(impact model.Impact) string {
	return cases.Title(language.English).String(impact.String())
}

// countFor returns the tally of one bucket.
func countFor(counts model.ImpactCounts, impact model.Impact) int {
	switch impact {
	case model.ImpactHigh:
		return counts.High
	case model.ImpactMedium:
		return counts.Medium
	default:
		return counts.Low
	}
}

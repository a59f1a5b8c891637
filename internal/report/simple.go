package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/avikharat/cloudScanRunner/internal/model"
)

// DefaultTopIssueTypes is how many issue codes the console summary lists.
const DefaultTopIssueTypes = 5

// SimpleWriter outputs the console summary printed at the end of a run.
type SimpleWriter struct {
	baseWriter

	// topN is the number of issue codes listed under "Top issue types".
	topN int
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithTopIssueTypes sets how many issue codes are listed.
// Zero or a negative value hides the section.
func WithTopIssueTypes(n int) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.topN = n
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		topN:       DefaultTopIssueTypes,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(report *model.Report) (int, error) {
	var sb strings.Builder

	w.writeSummary(&sb, report)
	w.writeTopIssueTypes(&sb, report)
	w.writeFooter(&sb, report)

	return w.output.Write([]byte(sb.String()))
}

// writeSummary writes the identity and impact totals.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.Report) {
	summary := report.Body.ScanSummary
	counts := summary.Counts()

	sb.WriteString("\n=== Scan Summary ===\n")
	sb.WriteString(fmt.Sprintf("Scan ID: %s\n", report.Body.ScanID))
	sb.WriteString(fmt.Sprintf("Pages scanned: %d\n", summary.TotalPagesScanned))
	sb.WriteString(fmt.Sprintf("Total issues found: %d\n", summary.TotalIssuesFound))
	for _, impact := range impactOrder {
		sb.WriteString(fmt.Sprintf("  - %s impact: %d\n", impactLabel(impact), countFor(counts, impact)))
	}
}

// writeTopIssueTypes lists the most frequent issue codes.
func (w *SimpleWriter) writeTopIssueTypes(sb *strings.Builder, report *model.Report) {
	if w.topN <= 0 || len(report.Body.Issues) == 0 {
		return
	}

	sb.WriteString("\nTop issue types:\n")
	for _, t := range TopIssueTypes(report.Body.Issues, w.topN) {
		sb.WriteString(fmt.Sprintf("  %s: %d\n", t.Code, t.Count))
	}
}

// writeFooter states where the results ended up.
func (w *SimpleWriter) writeFooter(sb *strings.Builder, report *model.Report) {
	sb.WriteString("\n")
	if report.Body.ScanID.IsZero() || report.Body.ScanID.IsLocal() {
		sb.WriteString("Scan completed - results saved locally only\n")
		return
	}
	sb.WriteString("Scan completed and saved to database\n")
}

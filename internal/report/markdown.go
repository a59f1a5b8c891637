package report

import (
	"io"
	"strconv"

	"github.com/avikharat/cloudScanRunner/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// impactBadges prefixes each bucket in Markdown tables and headings.
var impactBadges = map[model.Impact]string{
	model.ImpactHigh:   "🔴",
	model.ImpactMedium: "🟡",
	model.ImpactLow:    "🔵",
}

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter

	// topN is the number of issue codes in the "Top Issue Types" table.
	topN int
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMarkdownTopIssueTypes sets how many issue codes the frequency table lists.
func WithMarkdownTopIssueTypes(n int) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.topN = n
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		topN:       10,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteMarkdownFile writes the report to path in Markdown format.
func WriteMarkdownFile(path string, report *model.Report) error {
	return WriteFile(path, report, func(out io.Writer) Writer {
		return NewMarkdownWriter(out)
	})
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writePages(md, report)
	w.writeTopIssueTypes(md, report)
	w.writeIssues(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.Report) {
	summary := report.Body.ScanSummary

	md.H1("Accessibility Scan Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Scan ID", "`" + report.Body.ScanID.String() + "`"},
			{"Created By", orDash(report.Body.CreatedBy)},
			{"Scan Date", summary.ScanTimestamp},
			{"Pages Scanned", strconv.Itoa(summary.TotalPagesScanned)},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")
}

// statusText tells remote runs apart from local-only ones.
func statusText(report *model.Report) string {
	if report.Body.ScanID.IsZero() || report.Body.ScanID.IsLocal() {
		return "💾 Saved locally only"
	}
	return "✅ Saved to scan store"
}

// writeSummary writes the impact summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.Report) {
	counts := report.Body.ScanSummary.Counts()

	md.H2("Impact Summary")
	md.PlainText("")

	rows := make([][]string, 0, len(impactOrder)+1)
	for _, impact := range impactOrder {
		rows = append(rows, []string{
			impactBadges[impact] + " " + impactLabel(impact),
			strconv.Itoa(countFor(counts, impact)),
		})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(report.Body.ScanSummary.TotalIssuesFound) + "**"})

	md.Table(markdown.TableSet{
		Header: []string{"Impact", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if counts.Total() > 0 {
		w.writePieChart(md, counts)
	}

	w.writeAlert(md, counts)
}

// writePieChart writes a mermaid pie chart for the impact distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, counts model.ImpactCounts) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Issue Impact Distribution"),
		piechart.WithShowData(true),
	)

	for _, impact := range impactOrder {
		if n := countFor(counts, impact); n > 0 {
			chart.LabelAndIntValue(impactLabel(impact), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching the most severe bucket present.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, counts model.ImpactCounts) {
	switch {
	case counts.High > 0:
		md.Warningf(
			"%d high impact issue(s) block users of assistive technology and should be fixed first.",
			counts.High,
		)
	case counts.Medium > 0:
		md.Importantf(
			"%d medium impact issue(s) make pages harder to use.",
			counts.Medium,
		)
	case counts.Low > 0:
		md.Note("Only low impact issues were found.")
	default:
		md.Tip("No accessibility issues detected.")
	}
	md.PlainText("")
}

// writePages writes one row per scanned page.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.Report) {
	md.H2("Pages")
	md.PlainText("")

	pages := report.Body.ScanSummary.PagesScanned
	if len(pages) == 0 {
		md.PlainText("No pages were scanned.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(pages))
	for i, p := range pages {
		shot := "-"
		switch {
		case p.ScreenshotURL != nil:
			shot = "[view](" + *p.ScreenshotURL + ")"
		case p.ScreenshotAvailable:
			shot = "local"
		}
		rows[i] = []string{
			p.URL,
			strconv.Itoa(p.IssuesCount),
			shot,
			orDash(p.ScanURLID.String()),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Issues", "Screenshot", "Scan URL ID"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeTopIssueTypes writes the issue code frequency table.
func (w *MarkdownWriter) writeTopIssueTypes(md *markdown.Markdown, report *model.Report) {
	if len(report.Body.Issues) == 0 {
		return
	}

	md.H2("Top Issue Types")
	md.PlainText("")

	types := TopIssueTypes(report.Body.Issues, w.topN)
	rows := make([][]string, len(types))
	for i, t := range types {
		rows[i] = []string{"`" + t.Code + "`", strconv.Itoa(t.Count)}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Issue", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeIssues writes every issue grouped by impact.
func (w *MarkdownWriter) writeIssues(md *markdown.Markdown, report *model.Report) {
	md.H2("Issues")
	md.PlainText("")

	if len(report.Body.Issues) == 0 {
		md.PlainText("No accessibility issues detected.")
		md.PlainText("")
		return
	}

	for _, impact := range impactOrder {
		var issues []model.Issue
		for _, issue := range report.Body.Issues {
			if issue.Impact == impact {
				issues = append(issues, issue)
			}
		}
		if len(issues) == 0 {
			continue
		}

		md.PlainText("### " + impactBadges[impact] + " " + impactLabel(impact))
		md.PlainText("")
		w.writeIssuesTable(md, issues)
	}
}

// writeIssuesTable writes a table of issues followed by one details block per issue code.
func (w *MarkdownWriter) writeIssuesTable(md *markdown.Markdown, issues []model.Issue) {
	rows := make([][]string, len(issues))
	for i, issue := range issues {
		selector := "-"
		if issue.Selector != nil {
			selector = "`" + truncateString(*issue.Selector, 40) + "`"
		}
		rows[i] = []string{
			issue.IssueCode,
			issue.WCAGGuideline,
			selector,
			truncateString(orDash(issue.Recommendation), 60),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Issue", "Guideline", "Selector", "Recommendation"},
		Rows:   rows,
	})
	md.PlainText("")

	seen := make(map[string]bool)
	for _, issue := range issues {
		if seen[issue.IssueCode] || issue.Description == "" {
			continue
		}
		seen[issue.IssueCode] = true

		text := issue.Description
		if issue.HelpURL != nil {
			text += "\n\n" + *issue.HelpURL
		}
		md.Details(issue.IssueCode, text)
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by scanrunner*")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

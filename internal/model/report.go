package model

import (
	"fmt"
	"time"
)

// TimestampLayout is the UTC millisecond timestamp used in reports.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

const localPrefix = "local-"

// LocalScanID returns the identifier used when the run has no remote scan.
func LocalScanID(at time.Time) RemoteID {
	return StringID(fmt.Sprintf("%s%d", localPrefix, at.UnixMilli()))
}

// Report is the persisted run report.
type Report struct {
	Body ReportBody `json:"body"`
}

// ReportBody carries the run identity, its summary, and every issue found.
type ReportBody struct {
	ScanID      RemoteID    `json:"scan_id"`
	CreatedBy   string      `json:"created_by"`
	ScanSummary ScanSummary `json:"scan_summary"`
	Issues      []Issue     `json:"issues"`
}

// ScanSummary aggregates the run's statistics.
type ScanSummary struct {
	TotalPagesScanned  int         `json:"total_pages_scanned"`
	TotalIssuesFound   int         `json:"total_issues_found"`
	HighImpactIssues   int         `json:"high_impact_issues"`
	MediumImpactIssues int         `json:"medium_impact_issues"`
	LowImpactIssues    int         `json:"low_impact_issues"`
	ScanTimestamp      string      `json:"scan_timestamp"`
	PagesScanned       []PageEntry `json:"pages_scanned"`
}

// PageEntry is the per-page line of the scan summary.
type PageEntry struct {
	URL                 string   `json:"url"`
	ScanURLID           RemoteID `json:"scan_url_id"`
	IssuesCount         int      `json:"issues_count"`
	ScreenshotAvailable bool     `json:"screenshot_available"`
	ScreenshotURL       *string  `json:"screenshot_url"`
}

// Counts returns the summary's impact tallies.
func (s ScanSummary) Counts() ImpactCounts {
	return ImpactCounts{
		High:   s.HighImpactIssues,
		Medium: s.MediumImpactIssues,
		Low:    s.LowImpactIssues,
	}
}

// RunSummary accumulates page results over a run.
// The zero value is ready to use.
type RunSummary struct {
	pages  []*PageScanResult
	counts ImpactCounts
	issues int
}

// Add records a scanned page.
func (s *RunSummary) Add(page *PageScanResult) {
	s.pages = append(s.pages, page)
	for _, issue := range page.Issues {
		s.counts.add(issue.Impact)
	}
	s.issues += len(page.Issues)
}

// Pages returns the recorded pages in scan order.
func (s *RunSummary) Pages() []*PageScanResult {
	return s.pages
}

// PageCount returns the number of pages recorded.
func (s *RunSummary) PageCount() int {
	return len(s.pages)
}

// IssueCount returns the number of issues across all pages.
func (s *RunSummary) IssueCount() int {
	return s.issues
}

// Counts returns the per-bucket issue tallies.
func (s *RunSummary) Counts() ImpactCounts {
	return s.counts
}

// Report builds the final report from what has been recorded so far.
func (s *RunSummary) Report(scanID RemoteID, createdBy string, at time.Time) *Report {
	entries := make([]PageEntry, 0, len(s.pages))
	issues := make([]Issue, 0, s.issues)
	for _, page := range s.pages {
		entry := PageEntry{
			URL:                 page.URL,
			ScanURLID:           page.RemoteID,
			IssuesCount:         len(page.Issues),
			ScreenshotAvailable: page.HasEvidence(),
		}
		if page.EvidenceURL != "" {
			u := page.EvidenceURL
			entry.ScreenshotURL = &u
		}
		entries = append(entries, entry)
		issues = append(issues, page.Issues...)
	}

	return &Report{
		Body: ReportBody{
			ScanID:    scanID,
			CreatedBy: createdBy,
			ScanSummary: ScanSummary{
				TotalPagesScanned:  len(s.pages),
				TotalIssuesFound:   s.issues,
				HighImpactIssues:   s.counts.High,
				MediumImpactIssues: s.counts.Medium,
				LowImpactIssues:    s.counts.Low,
				ScanTimestamp:      at.UTC().Format(TimestampLayout),
				PagesScanned:       entries,
			},
			Issues: issues,
		},
	}
}

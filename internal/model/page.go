package model

import "time"

// PageScanResult is the outcome of one successfully scanned URL.
// A URL whose navigation or analysis failed produces no PageScanResult.
type PageScanResult struct {
	// URL is the address that was requested.
	URL string `json:"url"`

	// RemoteID is the page identifier issued by the scan store.
	// It is empty in local-only runs or when registration failed.
	RemoteID RemoteID `json:"scan_url_id"`

	// Issues holds one entry per affected element, in engine order.
	Issues []Issue `json:"issues"`

	// EvidencePath is the local screenshot file, empty when none was captured.
	EvidencePath string `json:"screenshot_path,omitempty"`

	// EvidenceURL is where the screenshot was uploaded, empty if it was not.
	EvidenceURL string `json:"screenshot_url,omitempty"`

	Title      string        `json:"page_title"`
	LoadTime   time.Duration `json:"-"`
	StatusCode int           `json:"status_code"`
}

// HasEvidence reports whether a screenshot was captured for the page.
func (p *PageScanResult) HasEvidence() bool {
	return p.EvidencePath != ""
}

// LoadTimeMillis returns the navigation time in whole milliseconds.
func (p *PageScanResult) LoadTimeMillis() int64 {
	return p.LoadTime.Milliseconds()
}

// CountByImpact returns the page's issue counts per impact bucket.
func (p *PageScanResult) CountByImpact() ImpactCounts {
	var c ImpactCounts
	for _, issue := range p.Issues {
		c.add(issue.Impact)
	}
	return c
}

// ImpactCounts tallies issues per impact bucket.
type ImpactCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Total returns the number of counted issues.
func (c ImpactCounts) Total() int {
	return c.High + c.Medium + c.Low
}

func (c *ImpactCounts) add(impact Impact) {
	switch impact {
	case ImpactHigh:
		c.High++
	case ImpactMedium:
		c.Medium++
	default:
		c.Low++
	}
}

package pipeline

import (
	"time"

	"github.com/avikharat/cloudScanRunner/internal/axe"
	"github.com/avikharat/cloudScanRunner/internal/browser"
	"github.com/avikharat/cloudScanRunner/internal/config"
	"github.com/avikharat/cloudScanRunner/internal/model"
	"github.com/avikharat/cloudScanRunner/internal/store"
)

// RunContext is the run-wide state shared by every page scan.
// It is owned by the run aggregator and never mutated by the steps.
type RunContext struct {
	// ScanID is the remote scan, zero in local-only mode.
	ScanID model.RemoteID

	UserID string
	Config *config.ScanConfig

	// Store is nil in local-only mode.
	Store store.Store

	StartedAt time.Time
}

// Remote reports whether results are persisted to the scan store.
func (rc *RunContext) Remote() bool {
	return rc.Store != nil && !rc.ScanID.IsZero()
}

// PageState is threaded through the steps of one page scan.
type PageState struct {
	Run  *RunContext
	URL  string
	Page browser.Page

	// Result accumulates what the steps learn about the page.
	Result *model.PageScanResult

	// Violations is set by the analyze step.
	Violations []axe.Violation

	// Performed and Failed record step names in execution order.
	Performed []string
	Failed    []string
}

// NewPageState prepares the state for scanning url on page.
func NewPageState(rc *RunContext, url string, page browser.Page) *PageState {
	return &PageState{
		Run:    rc,
		URL:    url,
		Page:   page,
		Result: &model.PageScanResult{URL: url, Issues: []model.Issue{}},
	}
}

// Package store talks to the remote scan store that tracks scans, scanned
// pages, issues and screenshots.
//
// Every call is a single attempt. Callers decide which failures degrade the
// run to local-only and which are fatal.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avikharat/cloudScanRunner/internal/config"
	"github.com/avikharat/cloudScanRunner/internal/model"
)

var (
	// ErrNoID is returned when the store accepted a create call but returned no identifier.
	ErrNoID = errors.New("no id returned")

	// ErrInvalidResponse is returned when a response does not have the expected shape.
	ErrInvalidResponse = errors.New("invalid response structure")

	// ErrMissingParameter is returned before any request is made when a required argument is empty.
	ErrMissingParameter = errors.New("missing required parameter")
)

// Status is the lifecycle state of a remote scan.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Store is the remote scan store.
type Store interface {
	CreateScan(ctx context.Context, req ScanRequest) (*Scan, error)
	UpdateScanStatus(ctx context.Context, scanID model.RemoteID, status Status, userID string, stats *Stats) error
	CreateScanURL(ctx context.Context, page PageRecord) (*ScanURL, error)
	CreateBulkIssues(ctx context.Context, scanURLID model.RemoteID, userID string, issues []model.Issue) error
	UploadScreenshot(ctx context.Context, path string) (*Upload, error)
	GetScan(ctx context.Context, scanID model.RemoteID, userID string) (json.RawMessage, error)
	GetScanSummary(ctx context.Context, scanID model.RemoteID, userID string) (json.RawMessage, error)
}

// ScanRequest describes a scan to create.
type ScanRequest struct {
	ProjectID string
	UserID    string
	Config    config.ScanConfig
	Metadata  map[string]any
}

// Scan is a created remote scan.
type Scan struct {
	ID        model.RemoteID `json:"id"`
	CreatedAt string         `json:"created_at"`
	Status    string         `json:"status,omitempty"`
}

// Created returns the creation time reported by the store, if it parses.
func (s *Scan) Created() (time.Time, bool) {
	if s.CreatedAt == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s.CreatedAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Stats are reported with the completed status.
type Stats struct {
	TotalURLs          int   `json:"total_urls"`
	TotalIssues        int   `json:"total_issues"`
	HighImpactIssues   int   `json:"high_impact_issues"`
	MediumImpactIssues int   `json:"medium_impact_issues"`
	LowImpactIssues    int   `json:"low_impact_issues"`
	DurationMS         int64 `json:"duration_ms"`
}

// PageRecord registers one scanned page.
type PageRecord struct {
	ScanID      model.RemoteID
	URL         string
	UserID      string
	Title       string
	LoadTime    time.Duration
	StatusCode  int
	EvidenceURL string
}

// ScanURL is a registered page.
type ScanURL struct {
	ID model.RemoteID `json:"id"`
}

// Upload is a stored screenshot.
type Upload struct {
	URL string `json:"url"`
}

// APIError is a non-2xx response from the store.
type APIError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed: %s %s: %d - %s", e.Method, e.Endpoint, e.StatusCode, e.Body)
}

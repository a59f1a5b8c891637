package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avikharat/cloudScanRunner/internal/model"
)

// Defaults for fields the store requires.
const (
	DefaultTriggerSource = "automated_scanner"
	DefaultEnvironment   = "automated"
	DefaultNotes         = "Automated accessibility scan"
)

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 8 << 20

// ClientOption configures an APIClient.
type ClientOption func(*APIClient)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *APIClient) {
		c.http = client
	}
}

// WithToken sends token as a bearer credential on every request.
func WithToken(token string) ClientOption {
	return func(c *APIClient) {
		c.token = token
	}
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *APIClient) {
		c.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *APIClient) {
		c.logger = logger
	}
}

// APIClient is a Store backed by the REST API.
type APIClient struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *http.Client
	logger  *slog.Logger
}

var _ Store = (*APIClient)(nil)

// NewAPIClient creates a client for the API rooted at baseURL.
func NewAPIClient(baseURL string, opts ...ClientOption) *APIClient {
	c := &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// BaseURL returns the API root.
func (c *APIClient) BaseURL() string {
	return c.baseURL
}

type createScanBody struct {
	TriggeredBy   string         `json:"triggered_by"`
	TriggerSource string         `json:"trigger_source"`
	ScanConfig    scanConfigBody `json:"scan_config"`
	Metadata      map[string]any `json:"metadata"`
}

type scanConfigBody struct {
	ScanDepth             int      `json:"scan_depth"`
	MaxURLs               int      `json:"max_urls"`
	Viewport              string   `json:"viewport"`
	AccessibilityStandard string   `json:"accessibility_standard"`
	TimeoutMS             int      `json:"timeout_ms"`
	IncludePatterns       []string `json:"include_patterns"`
	ExcludePatterns       []string `json:"exclude_patterns"`
}

// CreateScan creates the remote scan record for a run.
func (c *APIClient) CreateScan(ctx context.Context, req ScanRequest) (*Scan, error) {
	if req.ProjectID == "" || req.UserID == "" {
		return nil, fmt.Errorf("%w: project id and user id are required", ErrMissingParameter)
	}

	metadata := map[string]any{
		"environment": DefaultEnvironment,
		"notes":       DefaultNotes,
	}
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	source := DefaultTriggerSource
	if s, ok := req.Metadata["trigger_source"].(string); ok && s != "" {
		source = s
	}

	cfg := req.Config
	body := createScanBody{
		TriggeredBy:   req.UserID,
		TriggerSource: source,
		ScanConfig: scanConfigBody{
			ScanDepth:             cfg.ScanDepth,
			MaxURLs:               cfg.MaxURLs,
			Viewport:              cfg.Viewport,
			AccessibilityStandard: cfg.AccessibilityStandard,
			TimeoutMS:             cfg.TimeoutMS,
			IncludePatterns:       nonNil(cfg.IncludePatterns),
			ExcludePatterns:       nonNil(cfg.ExcludePatterns),
		},
		Metadata: metadata,
	}

	var resp struct {
		Scan *Scan `json:"scan"`
	}
	endpoint := "/api/projects/" + url.PathEscape(req.ProjectID) + "/scans"
	if err := c.doJSON(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return nil, err
	}
	if resp.Scan == nil {
		return nil, fmt.Errorf("failed to create scan: %w", ErrInvalidResponse)
	}
	if resp.Scan.ID.IsZero() {
		return nil, fmt.Errorf("failed to create scan: %w", ErrNoID)
	}
	return resp.Scan, nil
}

type statusBody struct {
	Status    Status `json:"status"`
	UpdatedBy string `json:"updated_by"`
	*Stats
}

// UpdateScanStatus moves the scan to status. Stats may be nil.
func (c *APIClient) UpdateScanStatus(ctx context.Context, scanID model.RemoteID, status Status, userID string, stats *Stats) error {
	if scanID.IsZero() {
		return fmt.Errorf("%w: scan id is required", ErrMissingParameter)
	}
	body := statusBody{Status: status, UpdatedBy: userID, Stats: stats}
	endpoint := "/api/scans/" + url.PathEscape(scanID.String()) + "/status"
	return c.doJSON(ctx, http.MethodPut, endpoint, body, nil)
}

type scanURLBody struct {
	ScanID           model.RemoteID `json:"scan_id"`
	URL              string         `json:"url"`
	CreatedBy        string         `json:"created_by"`
	PageTitle        string         `json:"page_title"`
	PageLoadTimeMS   int64          `json:"page_load_time_ms"`
	StatusCode       int            `json:"status_code"`
	ScreenshotPath   *string        `json:"screenshot_path"`
	HTMLSnapshotPath *string        `json:"html_snapshot_path"`
}

// CreateScanURL registers a scanned page under its scan.
func (c *APIClient) CreateScanURL(ctx context.Context, page PageRecord) (*ScanURL, error) {
	if page.ScanID.IsZero() || page.URL == "" || page.UserID == "" {
		return nil, fmt.Errorf("%w: scan id, url and user id are required", ErrMissingParameter)
	}

	body := scanURLBody{
		ScanID:         page.ScanID,
		URL:            page.URL,
		CreatedBy:      page.UserID,
		PageTitle:      page.Title,
		PageLoadTimeMS: page.LoadTime.Milliseconds(),
		StatusCode:     page.StatusCode,
	}
	if body.StatusCode == 0 {
		body.StatusCode = http.StatusOK
	}
	if page.EvidenceURL != "" {
		evidence := page.EvidenceURL
		body.ScreenshotPath = &evidence
	}

	var resp struct {
		SnakeCase *ScanURL `json:"scan_url"`
		CamelCase *ScanURL `json:"scanUrl"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/scan-urls", body, &resp); err != nil {
		return nil, err
	}
	scanURL := resp.SnakeCase
	if scanURL == nil {
		scanURL = resp.CamelCase
	}
	if scanURL == nil {
		return nil, fmt.Errorf("failed to create scan url: %w", ErrInvalidResponse)
	}
	if scanURL.ID.IsZero() {
		return nil, fmt.Errorf("failed to create scan url: %w", ErrNoID)
	}
	return scanURL, nil
}

type bulkIssuesBody struct {
	CreatedBy string      `json:"created_by"`
	Issues    []issueBody `json:"issues"`
}

type issueBody struct {
	IssueCode        string        `json:"issue_code"`
	Description      string        `json:"description"`
	Impact           model.Impact  `json:"impact"`
	WCAGGuideline    string        `json:"wcag_guideline"`
	Selector         *string       `json:"selector"`
	HTMLSnippet      string        `json:"html_snippet"`
	Recommendation   string        `json:"recommendation"`
	Tags             model.TagList `json:"tags"`
	HelpURL          *string       `json:"help_url"`
	ScreenshotRegion *model.Region `json:"screenshot_region"`
}

// CreateBulkIssues stores the issues found on a registered page.
func (c *APIClient) CreateBulkIssues(ctx context.Context, scanURLID model.RemoteID, userID string, issues []model.Issue) error {
	if scanURLID.IsZero() || userID == "" || len(issues) == 0 {
		return fmt.Errorf("%w: scan url id, user id and a non-empty issue list are required", ErrMissingParameter)
	}

	body := bulkIssuesBody{
		CreatedBy: userID,
		Issues:    make([]issueBody, 0, len(issues)),
	}
	for _, issue := range issues {
		b := issueBody{
			IssueCode:        issue.IssueCode,
			Description:      issue.Description,
			Impact:           issue.Impact,
			WCAGGuideline:    issue.WCAGGuideline,
			Selector:         issue.Selector,
			HTMLSnippet:      issue.HTMLSnippet,
			Recommendation:   issue.Recommendation,
			Tags:             issue.Tags,
			HelpURL:          issue.HelpURL,
			ScreenshotRegion: issue.ScreenshotRegion,
		}
		if b.IssueCode == "" {
			b.IssueCode = "unknown-issue"
		}
		if b.Description == "" {
			b.Description = "No description available"
		}
		if b.WCAGGuideline == "" {
			b.WCAGGuideline = model.GuidelineUnknown
		}
		if b.Tags == nil {
			b.Tags = model.TagList{}
		}
		body.Issues = append(body.Issues, b)
	}

	endpoint := "/api/scan-urls/" + url.PathEscape(scanURLID.String()) + "/issues/bulk"
	return c.doJSON(ctx, http.MethodPost, endpoint, body, nil)
}

// UploadScreenshot uploads the PNG at path and returns where it is served.
func (c *APIClient) UploadScreenshot(ctx context.Context, path string) (*Upload, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read screenshot: %w", err)
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filepath.Base(path)))
	header.Set("Content-Type", "image/png")
	part, err := form.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/upload-image", &buf, "upload")
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var resp struct {
		Upload *Upload `json:"upload"`
	}
	if err := c.send(req, "/api/upload-image", &resp); err != nil {
		return nil, err
	}
	if resp.Upload == nil || resp.Upload.URL == "" {
		return nil, fmt.Errorf("failed to upload screenshot: %w", ErrInvalidResponse)
	}
	return resp.Upload, nil
}

// GetScan returns the stored scan record as the store encodes it.
func (c *APIClient) GetScan(ctx context.Context, scanID model.RemoteID, userID string) (json.RawMessage, error) {
	return c.get(ctx, "/api/scans/"+url.PathEscape(scanID.String()), userID)
}

// GetScanSummary returns the store's summary of a scan.
func (c *APIClient) GetScanSummary(ctx context.Context, scanID model.RemoteID, userID string) (json.RawMessage, error) {
	return c.get(ctx, "/api/scans/"+url.PathEscape(scanID.String())+"/summary", userID)
}

func (c *APIClient) get(ctx context.Context, endpoint, userID string) (json.RawMessage, error) {
	if userID != "" {
		endpoint += "?" + url.Values{"user_id": {userID}}.Encode()
	}
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *APIClient) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, endpoint, reader, "scan")
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, endpoint, out)
}

func (c *APIClient) newRequest(ctx context.Context, method, endpoint string, body io.Reader, idPrefix string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-request-id", idPrefix+"-"+uuid.NewString())
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *APIClient) send(req *http.Request, endpoint string, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%s %s: failed to read response: %w", req.Method, endpoint, err)
	}

	c.logger.Debug("scan store request",
		"method", req.Method,
		"endpoint", endpoint,
		"request_id", req.Header.Get("x-request-id"),
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Method:     req.Method,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s %s: %w: %w", req.Method, endpoint, ErrInvalidResponse, err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

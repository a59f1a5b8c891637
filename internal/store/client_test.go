package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/avikharat/cloudScanRunner/internal/config"
	"github.com/avikharat/cloudScanRunner/internal/model"
)

// recorded is one request seen by the fake API.
type recorded struct {
	Method    string
	Path      string
	Query     string
	RequestID string
	Auth      string
	Type      string
	Body      map[string]any
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recorded
	handler  func(w http.ResponseWriter, r *http.Request, body map[string]any)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recorded{
		Method:    r.Method,
		Path:      r.URL.Path,
		Query:     r.URL.RawQuery,
		RequestID: r.Header.Get("x-request-id"),
		Auth:      r.Header.Get("Authorization"),
		Type:      r.Header.Get("Content-Type"),
	}
	if strings.HasPrefix(rec.Type, "application/json") {
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			_ = json.Unmarshal(data, &rec.Body)
		}
	}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()
	f.handler(w, r, rec.Body)
}

func (f *fakeAPI) last(t *testing.T) recorded {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("no request recorded")
	}
	return f.requests[len(f.requests)-1]
}

func (f *fakeAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, body map[string]any), opts ...ClientOption) (*APIClient, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{handler: handler}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	base := []ClientOption{
		WithTimeout(5 * time.Second),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return NewAPIClient(srv.URL+"/", append(base, opts...)...), api
}

func reply(status int, body string) func(http.ResponseWriter, *http.Request, map[string]any) {
	return func(w http.ResponseWriter, _ *http.Request, _ map[string]any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func scanRequest() ScanRequest {
	return ScanRequest{
		ProjectID: "proj-1",
		UserID:    "user-9",
		Config: config.ScanConfig{
			Mode:                  config.ModeManual,
			URLs:                  []string{"https://example.com/"},
			MaxURLs:               50,
			ScanDepth:             3,
			Viewport:              "1920x1080",
			TimeoutMS:             30000,
			AccessibilityStandard: "wcag2aa",
		},
		Metadata: map[string]any{"notes": "nightly", "branch": "main"},
	}
}

func TestCreateScan(t *testing.T) {
	t.Parallel()

	client, api := newClient(t, reply(http.StatusCreated, `{"scan":{"id":42,"created_at":"2026-10-19T10:00:00.000Z"}}`))

	scan, err := client.CreateScan(context.Background(), scanRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scan.ID != model.NumericID("42") {
		t.Errorf("expected numeric id kept as 42, got %q", scan.ID)
	}
	if created, ok := scan.Created(); !ok || created.Hour() != 10 {
		t.Errorf("unexpected created time %v %v", created, ok)
	}

	req := api.last(t)
	if req.Method != http.MethodPost || req.Path != "/api/projects/proj-1/scans" {
		t.Errorf("unexpected request %s %s", req.Method, req.Path)
	}
	if !strings.HasPrefix(req.RequestID, "scan-") {
		t.Errorf("unexpected request id %q", req.RequestID)
	}
	if req.Type != "application/json" {
		t.Errorf("unexpected content type %q", req.Type)
	}
	if req.Auth != "" {
		t.Error("no authorization header expected without a token")
	}
	if req.Body["triggered_by"] != "user-9" || req.Body["trigger_source"] != DefaultTriggerSource {
		t.Errorf("unexpected trigger fields: %v", req.Body)
	}
	cfg := req.Body["scan_config"].(map[string]any)
	if cfg["max_urls"] != float64(50) || cfg["viewport"] != "1920x1080" || cfg["accessibility_standard"] != "wcag2aa" {
		t.Errorf("unexpected scan_config: %v", cfg)
	}
	if patterns, ok := cfg["include_patterns"].([]any); !ok || len(patterns) != 0 {
		t.Errorf("expected empty include_patterns array, got %v", cfg["include_patterns"])
	}
	meta := req.Body["metadata"].(map[string]any)
	if meta["environment"] != DefaultEnvironment || meta["notes"] != "nightly" || meta["branch"] != "main" {
		t.Errorf("unexpected metadata: %v", meta)
	}
}

func TestCreateScan_TriggerSourceFromMetadata(t *testing.T) {
	t.Parallel()

	client, api := newClient(t, reply(http.StatusOK, `{"scan":{"id":"abc"}}`))
	req := scanRequest()
	req.Metadata["trigger_source"] = "github_action"

	if _, err := client.CreateScan(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if got := api.last(t).Body["trigger_source"]; got != "github_action" {
		t.Errorf("trigger_source = %v", got)
	}
}

func TestCreateScan_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		wantErr  error
		wantCode int
	}{
		{"server error", http.StatusInternalServerError, `{"error":"db down"}`, nil, 500},
		{"no scan object", http.StatusOK, `{"ok":true}`, ErrInvalidResponse, 0},
		{"no id", http.StatusOK, `{"scan":{"created_at":"x"}}`, ErrNoID, 0},
		{"malformed", http.StatusOK, `not json`, ErrInvalidResponse, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client, _ := newClient(t, reply(tt.status, tt.body))
			_, err := client.CreateScan(context.Background(), scanRequest())
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantCode != 0 {
				var apiErr *APIError
				if !errors.As(err, &apiErr) || apiErr.StatusCode != tt.wantCode {
					t.Fatalf("expected APIError %d, got %v", tt.wantCode, err)
				}
				if !strings.Contains(apiErr.Error(), "db down") {
					t.Errorf("expected body in error, got %q", apiErr.Error())
				}
			}
		})
	}
}

func TestCreateScan_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	client := NewAPIClient(base, WithTimeout(2*time.Second), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if _, err := client.CreateScan(context.Background(), scanRequest()); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestCreateScan_MissingParameters(t *testing.T) {
	t.Parallel()

	client, api := newClient(t, reply(http.StatusOK, `{}`))
	req := scanRequest()
	req.UserID = ""
	if _, err := client.CreateScan(context.Background(), req); !errors.Is(err, ErrMissingParameter) {
		t.Errorf("expected ErrMissingParameter, got %v", err)
	}
	if api.count() != 0 {
		t.Error("no request should be sent")
	}
}

func TestUpdateScanStatus(t *testing.T) {
	t.Parallel()

	client, api := newClient(t, reply(http.StatusOK, `{"scan":{"id":42,"status":"completed"}}`), WithToken("tok-123"))

	stats := &Stats{TotalURLs: 3, TotalIssues: 7, HighImpactIssues: 2, MediumImpactIssues: 1, LowImpactIssues: 4, DurationMS: 1500}
	if err := client.UpdateScanStatus(context.Background(), model.NumericID("42"), StatusCompleted, "user-9", stats); err != nil {
		t.Fatal(err)
	}

	req := api.last(t)
	if req.Method != http.MethodPut || req.Path != "/api/scans/42/status" {
		t.Errorf("unexpected request %s %s", req.Method, req.Path)
	}
	if req.Auth != "Bearer tok-123" {
		t.Errorf("unexpected authorization %q", req.Auth)
	}
	want := map[string]any{
		"status":               "completed",
		"updated_by":           "user-9",
		"total_urls":           float64(3),
		"total_issues":         float64(7),
		"high_impact_issues":   float64(2),
		"medium_impact_issues": float64(1),
		"low_impact_issues":    float64(4),
		"duration_ms":          float64(1500),
	}
	for k, v := range want {
		if req.Body[k] != v {
			t.Errorf("%s = %v, want %v", k, req.Body[k], v)
		}
	}
}

func TestUpdateScanStatus_WithoutStats(t *testing.T) {
	t.Parallel()

	client, api := newClient(t, reply(http.StatusNoContent, ``))
	if err := client.UpdateScanStatus(context.Background(), model.StringID("s-1"), StatusRunning, "user-9", nil); err != nil {
		t.Fatal(err)
	}
	body := api.last(t).Body
	if len(body) != 2 || body["status"] != "running" {
		t.Errorf("expected only status and updated_by, got %v", body)
	}
}

func TestCreateScanURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp string
		want model.RemoteID
	}{
		{"snake case", `{"scan_url":{"id":7}}`, model.NumericID("7")},
		{"camel case", `{"scanUrl":{"id":"su-7"}}`, model.StringID("su-7")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client, api := newClient(t, reply(http.StatusCreated, tt.resp))

			got, err := client.CreateScanURL(context.Background(), PageRecord{
				ScanID:      model.NumericID("42"),
				URL:         "https://example.com/about",
				UserID:      "user-9",
				Title:       "About",
				LoadTime:    1234 * time.Millisecond,
				EvidenceURL: "https://cdn.example.com/shot.png",
			})
			if err != nil {
				t.Fatal(err)
			}
			if got.ID != tt.want {
				t.Errorf("id = %q, want %q", got.ID, tt.want)
			}

			req := api.last(t)
			if req.Path != "/api/scan-urls" {
				t.Errorf("unexpected path %s", req.Path)
			}
			if req.Body["scan_id"] != float64(42) {
				t.Errorf("numeric scan id should be sent as a number, got %v", req.Body["scan_id"])
			}
			if req.Body["page_load_time_ms"] != float64(1234) || req.Body["status_code"] != float64(200) {
				t.Errorf("unexpected page fields %v", req.Body)
			}
			if req.Body["screenshot_path"] != "https://cdn.example.com/shot.png" {
				t.Errorf("screenshot_path = %v", req.Body["screenshot_path"])
			}
			if v, ok := req.Body["html_snapshot_path"]; !ok || v != nil {
				t.Errorf("html_snapshot_path should be null, got %v", v)
			}
		})
	}
}

func TestCreateScanURL_Failures(t *testing.T) {
	t.Parallel()

	page := PageRecord{ScanID: model.NumericID("42"), URL: "https://example.com/", UserID: "user-9", StatusCode: 404}

	client, _ := newClient(t, reply(http.StatusOK, `{"scan_url":{}}`))
	if _, err := client.CreateScanURL(context.Background(), page); !errors.Is(err, ErrNoID) {
		t.Errorf("expected ErrNoID, got %v", err)
	}

	client, _ = newClient(t, reply(http.StatusOK, `{}`))
	if _, err := client.CreateScanURL(context.Background(), page); !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("expected ErrInvalidResponse, got %v", err)
	}

	client, api := newClient(t, reply(http.StatusOK, `{}`))
	if _, err := client.CreateScanURL(context.Background(), PageRecord{URL: "https://example.com/", UserID: "u"}); !errors.Is(err, ErrMissingParameter) {
		t.Errorf("expected ErrMissingParameter, got %v", err)
	}
	if api.count() != 0 {
		t.Error("no request should be sent without a scan id")
	}
}

func TestCreateBulkIssues(t *testing.T) {
	t.Parallel()

	client, api := newClient(t, reply(http.StatusCreated, `{"created":2}`))

	selector := "#logo"
	issues := []model.Issue{
		{
			IssueCode:        "image-alt",
			Description:      "Images must have alternate text",
			Impact:           model.ImpactHigh,
			WCAGGuideline:    "2.a",
			Selector:         &selector,
			Tags:             model.TagList{"wcag2a", "wcag111"},
			ScreenshotRegion: &model.Region{X: 1, Y: 2, Width: 3, Height: 4},
			ElementData:      model.ElementData{OccurrenceIndex: 1, TotalOccurrences: 1},
		},
		{Impact: model.ImpactLow},
	}
	if err := client.CreateBulkIssues(context.Background(), model.NumericID("7"), "user-9", issues); err != nil {
		t.Fatal(err)
	}

	req := api.last(t)
	if req.Path != "/api/scan-urls/7/issues/bulk" {
		t.Errorf("unexpected path %s", req.Path)
	}
	sent := req.Body["issues"].([]any)
	if len(sent) != 2 {
		t.Fatalf("expected 2 issues, got %d", len(sent))
	}
	first := sent[0].(map[string]any)
	if first["impact"] != "high" || first["tags"] != "wcag2a,wcag111" || first["selector"] != "#logo" {
		t.Errorf("unexpected first issue %v", first)
	}
	if _, ok := first["element_data"]; ok {
		t.Error("element_data is not part of the bulk payload")
	}
	second := sent[1].(map[string]any)
	if second["issue_code"] != "unknown-issue" || second["wcag_guideline"] != "unknown" || second["selector"] != nil {
		t.Errorf("expected defaults on second issue, got %v", second)
	}
}

func TestCreateBulkIssues_RejectsEmpty(t *testing.T) {
	t.Parallel()

	client, api := newClient(t, reply(http.StatusOK, `{}`))
	if err := client.CreateBulkIssues(context.Background(), model.NumericID("7"), "user-9", nil); !errors.Is(err, ErrMissingParameter) {
		t.Errorf("expected ErrMissingParameter, got %v", err)
	}
	if api.count() != 0 {
		t.Error("no request should be sent for an empty issue list")
	}
}

func TestUploadScreenshot(t *testing.T) {
	t.Parallel()

	png := []byte("\x89PNG\r\n\x1a\nshot")
	path := filepath.Join(t.TempDir(), "page.png")
	if err := os.WriteFile(path, png, 0600); err != nil {
		t.Fatal(err)
	}

	var gotName, gotType string
	var gotData []byte
	client, api := newClient(t, func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		file, header, err := r.FormFile("image")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotName = header.Filename
		gotType = header.Header.Get("Content-Type")
		gotData, _ = io.ReadAll(file)
		_, _ = io.WriteString(w, `{"upload":{"url":"https://cdn.example.com/page.png"}}`)
	})

	upload, err := client.UploadScreenshot(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upload.URL != "https://cdn.example.com/page.png" {
		t.Errorf("unexpected url %q", upload.URL)
	}
	if gotName != "page.png" || gotType != "image/png" || string(gotData) != string(png) {
		t.Errorf("unexpected part %q %q %q", gotName, gotType, gotData)
	}

	req := api.last(t)
	if req.Path != "/api/upload-image" || !strings.HasPrefix(req.Type, "multipart/form-data") {
		t.Errorf("unexpected request %s %s", req.Path, req.Type)
	}
	if !strings.HasPrefix(req.RequestID, "upload-") {
		t.Errorf("unexpected request id %q", req.RequestID)
	}
}

func TestUploadScreenshot_Failures(t *testing.T) {
	t.Parallel()

	client, api := newClient(t, reply(http.StatusOK, `{"upload":{}}`))
	if _, err := client.UploadScreenshot(context.Background(), filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
	if api.count() != 0 {
		t.Error("no request should be sent for a missing file")
	}

	path := filepath.Join(t.TempDir(), "page.png")
	if err := os.WriteFile(path, []byte("png"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := client.UploadScreenshot(context.Background(), path); !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestGetScan(t *testing.T) {
	t.Parallel()

	client, api := newClient(t, reply(http.StatusOK, `{"scan":{"id":42,"status":"completed"}}`))

	raw, err := client.GetScan(context.Background(), model.NumericID("42"), "user-9")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"completed"`) {
		t.Errorf("unexpected body %s", raw)
	}
	req := api.last(t)
	if req.Method != http.MethodGet || req.Path != "/api/scans/42" || req.Query != "user_id=user-9" {
		t.Errorf("unexpected request %s %s?%s", req.Method, req.Path, req.Query)
	}

	if _, err := client.GetScanSummary(context.Background(), model.NumericID("42"), "user-9"); err != nil {
		t.Fatal(err)
	}
	if got := api.last(t).Path; got != "/api/scans/42/summary" {
		t.Errorf("unexpected summary path %s", got)
	}
}

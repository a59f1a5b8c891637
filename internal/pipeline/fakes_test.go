package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/avikharat/cloudScanRunner/internal/axe"
	"github.com/avikharat/cloudScanRunner/internal/browser"
	"github.com/avikharat/cloudScanRunner/internal/config"
	"github.com/avikharat/cloudScanRunner/internal/lazyload"
	"github.com/avikharat/cloudScanRunner/internal/model"
	"github.com/avikharat/cloudScanRunner/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func fastStabilizer() *lazyload.Stabilizer {
	return lazyload.New(lazyload.WithSleep(noSleep), lazyload.WithLogger(quietLogger()))
}

func scanConfig() *config.ScanConfig {
	return &config.ScanConfig{
		Mode:                  config.ModeManual,
		URLs:                  []string{"https://example.com/"},
		Viewport:              "1280x720",
		TimeoutMS:             15000,
		AccessibilityStandard: "wcag2aa",
	}
}

// fakeEngine returns canned violations.
type fakeEngine struct {
	mu         sync.Mutex
	violations []axe.Violation
	err        error
	tags       [][]string
}

func (e *fakeEngine) Analyze(ctx context.Context, _ browser.Page, tags []string) (*axe.Results, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tags = append(e.tags, tags)
	if e.err != nil {
		return nil, e.err
	}
	return &axe.Results{Violations: e.violations}, ctx.Err()
}

func imageAltViolation() axe.Violation {
	return axe.Violation{
		ID:          "image-alt",
		Description: "Ensures <img> elements have alternate text",
		Help:        "Images must have alternate text",
		HelpURL:     "https://dequeuniversity.com/rules/axe/4.10/image-alt",
		Impact:      "critical",
		Tags:        []string{"wcag2a", "wcag111"},
		Nodes: []axe.Node{
			{Target: []axe.Selector{{"#logo"}}, HTML: `<img id="logo">`},
			{Target: []axe.Selector{{"#banner"}}, HTML: `<img id="banner">`},
		},
	}
}

// fakeStore records calls and fails on demand.
type fakeStore struct {
	mu sync.Mutex

	scanURLID     model.RemoteID
	uploadURL     string
	scanURLErr    error
	bulkErr       error
	uploadErr     error
	pages         []store.PageRecord
	bulk          map[model.RemoteID][]model.Issue
	uploads       []string
	statusUpdates []store.Status
}

var _ store.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		scanURLID: model.NumericID("101"),
		uploadURL: "https://cdn.example.com/shot.png",
		bulk:      make(map[model.RemoteID][]model.Issue),
	}
}

func (s *fakeStore) CreateScan(context.Context, store.ScanRequest) (*store.Scan, error) {
	return &store.Scan{ID: model.NumericID("42")}, nil
}

func (s *fakeStore) UpdateScanStatus(_ context.Context, _ model.RemoteID, status store.Status, _ string, _ *store.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusUpdates = append(s.statusUpdates, status)
	return nil
}

func (s *fakeStore) CreateScanURL(_ context.Context, page store.PageRecord) (*store.ScanURL, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = append(s.pages, page)
	if s.scanURLErr != nil {
		return nil, s.scanURLErr
	}
	return &store.ScanURL{ID: s.scanURLID}, nil
}

func (s *fakeStore) CreateBulkIssues(_ context.Context, id model.RemoteID, _ string, issues []model.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bulkErr != nil {
		return s.bulkErr
	}
	s.bulk[id] = append(s.bulk[id], issues...)
	return nil
}

func (s *fakeStore) UploadScreenshot(_ context.Context, path string) (*store.Upload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, path)
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	return &store.Upload{URL: s.uploadURL}, nil
}

func (s *fakeStore) GetScan(context.Context, model.RemoteID, string) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (s *fakeStore) GetScanSummary(context.Context, model.RemoteID, string) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (s *fakeStore) bulkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, issues := range s.bulk {
		n += len(issues)
	}
	return n
}

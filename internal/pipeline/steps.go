package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/avikharat/cloudScanRunner/internal/axe"
	"github.com/avikharat/cloudScanRunner/internal/browser"
	"github.com/avikharat/cloudScanRunner/internal/lazyload"
	"github.com/avikharat/cloudScanRunner/internal/normalize"
	"github.com/avikharat/cloudScanRunner/internal/store"
)

// Step names.
const (
	StepNavigate = "navigate"
	StepAnalyze  = "analyze"
	StepEvidence = "evidence"
	StepRegister = "register"
	StepIssues   = "issues"
)

// NavigateStep loads the page and records its status, load time and title.
type NavigateStep struct {
	waitUntil browser.WaitUntil
	now       func() time.Time
	logger    *slog.Logger
}

// NavigateStepOption configures a NavigateStep.
type NavigateStepOption func(*NavigateStep)

// WithWaitUntil selects the navigation completion event.
func WithWaitUntil(w browser.WaitUntil) NavigateStepOption {
	return func(s *NavigateStep) {
		s.waitUntil = w
	}
}

// WithClock replaces the clock used to measure load time.
func WithClock(now func() time.Time) NavigateStepOption {
	return func(s *NavigateStep) {
		s.now = now
	}
}

// WithNavigateLogger sets a custom logger for the navigate step.
func WithNavigateLogger(logger *slog.Logger) NavigateStepOption {
	return func(s *NavigateStep) {
		s.logger = logger
	}
}

// NewNavigateStep creates a navigate step.
func NewNavigateStep(opts ...NavigateStepOption) *NavigateStep {
	s := &NavigateStep{
		waitUntil: browser.WaitLoad,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *NavigateStep) Name() string {
	return StepNavigate
}

// Do navigates to the state's URL within the configured timeout.
func (s *NavigateStep) Do(ctx context.Context, state *PageState) error {
	start := s.now()
	resp, err := state.Page.Goto(ctx, state.URL, browser.GotoOptions{
		WaitUntil: s.waitUntil,
		Timeout:   state.Run.Config.Timeout(),
	})
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	state.Result.LoadTime = s.now().Sub(start)

	state.Result.StatusCode = http.StatusOK
	if resp != nil && resp.Status != 0 {
		state.Result.StatusCode = resp.Status
	}

	title, err := state.Page.Title(ctx)
	if err != nil {
		s.logger.Debug("failed to read page title", "url", state.URL, "error", err)
	}
	state.Result.Title = title
	return nil
}

// AnalyzeStep runs the analysis engine with the run's ruleset.
type AnalyzeStep struct {
	engine axe.Engine
}

// NewAnalyzeStep creates an analyze step.
func NewAnalyzeStep(engine axe.Engine) *AnalyzeStep {
	return &AnalyzeStep{engine: engine}
}

// Name returns the step name.
func (s *AnalyzeStep) Name() string {
	return StepAnalyze
}

// Do analyzes the loaded page.
func (s *AnalyzeStep) Do(ctx context.Context, state *PageState) error {
	results, err := s.engine.Analyze(ctx, state.Page, axe.TagsFor(state.Run.Config.AccessibilityStandard))
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	state.Violations = results.Violations
	return nil
}

// EvidenceStep captures a full-page screenshot and uploads it in remote runs.
type EvidenceStep struct {
	dir        string
	stabilizer *lazyload.Stabilizer
	logger     *slog.Logger
}

// EvidenceStepOption configures an EvidenceStep.
type EvidenceStepOption func(*EvidenceStep)

// WithStabilizer sets the stabilizer run before the screenshot.
func WithStabilizer(stabilizer *lazyload.Stabilizer) EvidenceStepOption {
	return func(s *EvidenceStep) {
		s.stabilizer = stabilizer
	}
}

// WithEvidenceLogger sets a custom logger for the evidence step.
func WithEvidenceLogger(logger *slog.Logger) EvidenceStepOption {
	return func(s *EvidenceStep) {
		s.logger = logger
	}
}

// NewEvidenceStep creates an evidence step writing screenshots into dir.
func NewEvidenceStep(dir string, opts ...EvidenceStepOption) *EvidenceStep {
	s := &EvidenceStep{
		dir:    dir,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.stabilizer == nil {
		s.stabilizer = lazyload.New(lazyload.WithLogger(s.logger))
	}
	return s
}

// Name returns the step name.
func (s *EvidenceStep) Name() string {
	return StepEvidence
}

// Do captures evidence when the run asks for screenshots. It never fails
// the page except on cancellation.
func (s *EvidenceStep) Do(ctx context.Context, state *PageState) error {
	if !state.Run.Config.CaptureScreenshots {
		return nil
	}

	if height, err := s.stabilizer.Stabilize(ctx, state.Page); err != nil {
		if isCancelled(ctx, err) {
			return err
		}
		s.logger.Warn("lazy loading did not complete", "url", state.URL, "error", err)
	} else {
		s.logger.Debug("page stabilized", "url", state.URL, "height", height)
	}

	path := EvidencePath(s.dir, state.URL)
	err := state.Page.Screenshot(ctx, browser.ScreenshotOptions{
		Path:     path,
		FullPage: true,
		Timeout:  state.Run.Config.Timeout(),
	})
	if err != nil {
		if isCancelled(ctx, err) {
			return err
		}
		s.logger.Warn("failed to capture screenshot", "url", state.URL, "error", err)
		return nil
	}
	state.Result.EvidencePath = path

	if !state.Run.Remote() {
		return nil
	}
	upload, err := state.Run.Store.UploadScreenshot(ctx, path)
	if err != nil {
		s.logger.Warn("failed to upload screenshot, keeping it locally",
			"url", state.URL,
			"path", path,
			"error", err,
		)
		return nil
	}
	state.Result.EvidenceURL = upload.URL
	s.logger.Info("screenshot uploaded", "url", state.URL, "screenshot_url", upload.URL)
	return nil
}

// EvidencePath returns the screenshot file for pageURL inside dir.
// The name is derived from the URL so rescans overwrite the same file.
func EvidencePath(dir, pageURL string) string {
	sum := sha3.Sum256([]byte(pageURL))
	return filepath.Join(dir, hex.EncodeToString(sum[:16])+".png")
}

// RegisterStep records the page in the remote scan.
type RegisterStep struct {
	logger *slog.Logger
}

// NewRegisterStep creates a register step.
func NewRegisterStep(logger *slog.Logger) *RegisterStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegisterStep{logger: logger}
}

// Name returns the step name.
func (s *RegisterStep) Name() string {
	return StepRegister
}

// Do registers the page. Without a remote scan, or when registration
// fails, the page simply has no remote ID.
func (s *RegisterStep) Do(ctx context.Context, state *PageState) error {
	if !state.Run.Remote() {
		return nil
	}
	result := state.Result
	scanURL, err := state.Run.Store.CreateScanURL(ctx, store.PageRecord{
		ScanID:      state.Run.ScanID,
		URL:         state.URL,
		UserID:      state.Run.UserID,
		Title:       result.Title,
		LoadTime:    result.LoadTime,
		StatusCode:  result.StatusCode,
		EvidenceURL: result.EvidenceURL,
	})
	if err != nil {
		if isCancelled(ctx, err) {
			return err
		}
		s.logger.Warn("failed to register page, continuing without remote linkage",
			"url", state.URL,
			"error", err,
		)
		return nil
	}
	result.RemoteID = scanURL.ID
	s.logger.Debug("page registered", "url", state.URL, "scan_url_id", scanURL.ID)
	return nil
}

// IssuesStep normalizes violations and uploads them for registered pages.
type IssuesStep struct {
	normalizer *normalize.Normalizer
	logger     *slog.Logger
}

// NewIssuesStep creates an issues step.
func NewIssuesStep(normalizer *normalize.Normalizer, logger *slog.Logger) *IssuesStep {
	if logger == nil {
		logger = slog.Default()
	}
	if normalizer == nil {
		normalizer = normalize.New(normalize.WithLogger(logger))
	}
	return &IssuesStep{normalizer: normalizer, logger: logger}
}

// Name returns the step name.
func (s *IssuesStep) Name() string {
	return StepIssues
}

// Do builds the page's issues. Regions are resolved only when a screenshot
// was captured. Upload failures keep the issues in the local result.
func (s *IssuesStep) Do(ctx context.Context, state *PageState) error {
	result := state.Result
	result.Issues = s.normalizer.Normalize(ctx, state.Violations, state.Page, result.HasEvidence())

	if !state.Run.Remote() || result.RemoteID.IsZero() || len(result.Issues) == 0 {
		return nil
	}
	if err := state.Run.Store.CreateBulkIssues(ctx, result.RemoteID, state.Run.UserID, result.Issues); err != nil {
		if isCancelled(ctx, err) {
			return err
		}
		s.logger.Warn("failed to upload issues, keeping them locally",
			"url", state.URL,
			"issues", len(result.Issues),
			"error", err,
		)
		return nil
	}
	s.logger.Debug("issues uploaded", "url", state.URL, "issues", len(result.Issues))
	return nil
}

func isCancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

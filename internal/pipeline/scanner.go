package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avikharat/cloudScanRunner/internal/axe"
	"github.com/avikharat/cloudScanRunner/internal/browser"
	"github.com/avikharat/cloudScanRunner/internal/lazyload"
	"github.com/avikharat/cloudScanRunner/internal/model"
	"github.com/avikharat/cloudScanRunner/internal/normalize"
)

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithScreenshotDir sets where evidence files are written.
func WithScreenshotDir(dir string) ScannerOption {
	return func(s *Scanner) {
		s.screenshotDir = dir
	}
}

// WithScannerStabilizer sets the lazy-load stabilizer used before screenshots.
func WithScannerStabilizer(stabilizer *lazyload.Stabilizer) ScannerOption {
	return func(s *Scanner) {
		s.stabilizer = stabilizer
	}
}

// WithNavigateOptions passes options to the navigate step.
func WithNavigateOptions(opts ...NavigateStepOption) ScannerOption {
	return func(s *Scanner) {
		s.navigateOpts = append(s.navigateOpts, opts...)
	}
}

// WithScannerLogger sets the logger for the scanner and its steps.
func WithScannerLogger(logger *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// Scanner scans one URL at a time on pages from a browser session.
type Scanner struct {
	session       browser.Session
	engine        axe.Engine
	screenshotDir string
	stabilizer    *lazyload.Stabilizer
	navigateOpts  []NavigateStepOption
	logger        *slog.Logger
	steps         []Step
}

// NewScanner creates a Scanner.
func NewScanner(session browser.Session, engine axe.Engine, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		session:       session,
		engine:        engine,
		screenshotDir: "screenshots",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.stabilizer == nil {
		s.stabilizer = lazyload.New(lazyload.WithLogger(s.logger))
	}

	navigateOpts := append([]NavigateStepOption{WithNavigateLogger(s.logger)}, s.navigateOpts...)
	s.steps = []Step{
		NewNavigateStep(navigateOpts...),
		NewAnalyzeStep(s.engine),
		NewEvidenceStep(s.screenshotDir, WithStabilizer(s.stabilizer), WithEvidenceLogger(s.logger)),
		NewRegisterStep(s.logger),
		NewIssuesStep(normalize.New(normalize.WithLogger(s.logger)), s.logger),
	}
	return s
}

// StepNames returns the page scan steps in execution order.
func (s *Scanner) StepNames() []string {
	return s.pipeline().StepNames()
}

// Scan runs the page pipeline for url. The page it opens is closed before
// Scan returns, whatever the outcome.
func (s *Scanner) Scan(ctx context.Context, rc *RunContext, url string) (*model.PageScanResult, error) {
	page, err := s.session.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			s.logger.Debug("failed to close page", "url", url, "error", err)
		}
	}()

	viewport := rc.Config.ViewportSize()
	if err := page.SetViewport(ctx, viewport.Width, viewport.Height); err != nil {
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}
	if creds := rc.Config.BasicCredentials(); creds != nil {
		if err := page.Authenticate(ctx, creds.Username, creds.Password); err != nil {
			return nil, fmt.Errorf("failed to apply credentials: %w", err)
		}
	}

	state := NewPageState(rc, url, page)
	err = s.pipeline().Execute(ctx, state)
	s.logger.Debug("page steps finished",
		"url", url,
		"performed", state.Performed,
		"failed", state.Failed,
	)
	if err != nil {
		return nil, err
	}
	return state.Result, nil
}

func (s *Scanner) pipeline() *Pipeline {
	p := New(WithLogger(s.logger))
	p.AddSteps(s.steps...)
	return p
}

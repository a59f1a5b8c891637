package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/avikharat/cloudScanRunner/internal/auth"
	"github.com/avikharat/cloudScanRunner/internal/browser"
	"github.com/avikharat/cloudScanRunner/internal/config"
	"github.com/avikharat/cloudScanRunner/internal/crawler"
	"github.com/avikharat/cloudScanRunner/internal/database"
	"github.com/avikharat/cloudScanRunner/internal/model"
	"github.com/avikharat/cloudScanRunner/internal/pipeline"
	"github.com/avikharat/cloudScanRunner/internal/report"
	"github.com/avikharat/cloudScanRunner/internal/store"
)

// DefaultReportPath is where the JSON report is written when no path is configured.
const DefaultReportPath = "accessibility-results.json"

// ErrAuthentication is returned when the login before scanning fails.
var ErrAuthentication = errors.New("authentication failed")

// PageScanner scans a single URL.
type PageScanner interface {
	Scan(ctx context.Context, rc *pipeline.RunContext, url string) (*model.PageScanResult, error)
}

// History records finished runs.
type History interface {
	SaveRun(ctx context.Context, run *database.RunRecord, pages []*model.PageScanResult, report *model.Report) (int64, error)
}

// Option configures a Runner.
type Option func(*Runner)

// WithStore enables remote persistence for runs whose config uploads.
func WithStore(s store.Store) Option {
	return func(r *Runner) {
		r.store = s
	}
}

// WithAuthenticator sets the authenticator used for the login page.
func WithAuthenticator(a *auth.Authenticator) Option {
	return func(r *Runner) {
		r.authenticator = a
	}
}

// WithOutput sets where progress and the summary are printed.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		r.out = w
	}
}

// WithReportPath sets the JSON report path.
func WithReportPath(path string) Option {
	return func(r *Runner) {
		r.reportPath = path
	}
}

// WithMarkdownPath also writes a Markdown report to path.
func WithMarkdownPath(path string) Option {
	return func(r *Runner) {
		r.markdownPath = path
	}
}

// WithHistory records every finished run in h.
func WithHistory(h History) Option {
	return func(r *Runner) {
		r.history = h
	}
}

// WithSpiderOptions passes extra options to the crawler.
func WithSpiderOptions(opts ...crawler.SpiderOption) Option {
	return func(r *Runner) {
		r.spiderOpts = append(r.spiderOpts, opts...)
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// Runner executes scan runs. A Runner may be reused for several runs but
// runs must not overlap.
type Runner struct {
	session       browser.Session
	scanner       PageScanner
	store         store.Store
	authenticator *auth.Authenticator
	history       History
	spiderOpts    []crawler.SpiderOption

	out          io.Writer
	reportPath   string
	markdownPath string

	now    func() time.Time
	logger *slog.Logger
}

// New creates a Runner that opens pages in session and scans them with scanner.
func New(session browser.Session, scanner PageScanner, opts ...Option) *Runner {
	r := &Runner{
		session:    session,
		scanner:    scanner,
		out:        io.Discard,
		reportPath: DefaultReportPath,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.authenticator == nil {
		r.authenticator = auth.New(auth.WithLogger(r.logger))
	}
	return r
}

// run is the state of one Run call.
type run struct {
	cfg       *config.Run
	rc        *pipeline.RunContext
	scanID    model.RemoteID
	startedAt time.Time
	urls      []string
	summary   model.RunSummary
}

// Run performs a full scan run for cfg, which must already be validated.
//
// Per-URL failures are logged and the URL is left out of the report. A failed
// login aborts the run with ErrAuthentication. In every case a report is
// built and written before Run returns; it is nil only when writing the JSON
// report itself failed before anything could be returned.
func (r *Runner) Run(ctx context.Context, cfg *config.Run) (*model.Report, error) {
	st := &run{
		cfg:       cfg,
		startedAt: r.now(),
		rc: &pipeline.RunContext{
			UserID: cfg.UserID,
			Config: &cfg.Scan,
		},
	}
	st.rc.StartedAt = st.startedAt

	r.startRemote(ctx, st)
	st.scanID = st.rc.ScanID
	if st.scanID.IsZero() {
		st.scanID = model.LocalScanID(st.startedAt)
	}

	var authPage browser.Page
	defer func() {
		if authPage != nil {
			if err := authPage.Close(); err != nil {
				r.logger.Debug("failed to close login page", "error", err)
			}
		}
	}()

	if cfg.Scan.AuthEnabled() {
		page, err := r.login(ctx, cfg.Scan.Authentication)
		authPage = page
		if err != nil {
			r.logger.Error("authentication failed", "error", err)
			r.markFailed(ctx, st)
			return r.finish(ctx, st, fmt.Errorf("%w: %w", ErrAuthentication, err))
		}
	}

	urls, err := r.resolveURLs(ctx, &cfg.Scan)
	if err != nil {
		r.markFailed(ctx, st)
		return r.finish(ctx, st, err)
	}
	st.urls = urls
	fmt.Fprintf(r.out, "Found %d URLs to scan\n", len(urls))

	if err := r.scanAll(ctx, st); err != nil {
		r.markFailed(ctx, st)
		return r.finish(ctx, st, err)
	}

	r.markCompleted(ctx, st)
	return r.finish(ctx, st, nil)
}

// startRemote creates the remote scan and marks it running. Any failure
// leaves the run local-only.
func (r *Runner) startRemote(ctx context.Context, st *run) {
	if r.store == nil || !st.cfg.Scan.Uploads() {
		return
	}

	scan, err := r.store.CreateScan(ctx, store.ScanRequest{
		ProjectID: st.cfg.ProjectID,
		UserID:    st.cfg.UserID,
		Config:    st.cfg.Scan,
		Metadata:  st.cfg.Metadata,
	})
	if err != nil {
		r.logger.Warn("failed to create remote scan, continuing with local storage only", "error", err)
		return
	}

	if err := r.store.UpdateScanStatus(ctx, scan.ID, store.StatusRunning, st.cfg.UserID, nil); err != nil {
		r.logger.Warn("failed to mark scan running, continuing with local storage only",
			"scan_id", scan.ID.String(), "error", err)
		return
	}

	st.rc.ScanID = scan.ID
	st.rc.Store = r.store
	if created, ok := scan.Created(); ok {
		st.rc.StartedAt = created
	}
	r.logger.Info("created remote scan", "scan_id", scan.ID.String())
}

// login opens the page that stays authenticated for the whole run.
// The page is returned even when authentication fails so the caller can close it.
func (r *Runner) login(ctx context.Context, cfg *config.Authentication) (browser.Page, error) {
	page, err := r.session.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open login page: %w", err)
	}
	if err := r.authenticator.Authenticate(ctx, page, cfg); err != nil {
		return page, err
	}
	return page, nil
}

// resolveURLs returns the URLs to scan in order.
func (r *Runner) resolveURLs(ctx context.Context, cfg *config.ScanConfig) ([]string, error) {
	if cfg.Mode != config.ModeCrawler {
		return cfg.URLs, nil
	}

	opts := []crawler.SpiderOption{
		crawler.WithMaxURLs(cfg.MaxURLs),
		crawler.WithMaxVisits(cfg.ScanDepth),
		crawler.WithPatterns(cfg.IncludePatterns, cfg.ExcludePatterns),
		crawler.WithTimeout(cfg.Timeout()),
		crawler.WithLogger(r.logger),
	}
	if creds := cfg.BasicCredentials(); creds != nil {
		opts = append(opts, crawler.WithBasicAuth(creds.Username, creds.Password))
	}
	opts = append(opts, r.spiderOpts...)

	fmt.Fprintf(r.out, "Crawling from %s\n", cfg.StartURL)
	urls, err := crawler.NewSpider(r.session, opts...).Discover(ctx, cfg.StartURL)
	if err != nil {
		return nil, fmt.Errorf("failed to crawl %s: %w", cfg.StartURL, err)
	}
	return urls, nil
}

// scanAll scans every URL in order. Only cancellation stops it early.
func (r *Runner) scanAll(ctx context.Context, st *run) error {
	total := len(st.urls)
	for i, url := range st.urls {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprintf(r.out, "Scanning %d/%d: %s\n", i+1, total, url)
		result, err := r.scanner.Scan(ctx, st.rc, url)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			fmt.Fprintf(r.out, "Error scanning %s: %v\n", url, err)
			r.logger.Warn("page scan failed", "url", url, "error", err)
			continue
		}

		st.summary.Add(result)
		fmt.Fprintf(r.out, "Page scan completed: %d issues found\n", len(result.Issues))
	}
	return nil
}

// markCompleted reports the final statistics to the store.
func (r *Runner) markCompleted(ctx context.Context, st *run) {
	if !st.rc.Remote() {
		return
	}

	counts := st.summary.Counts()
	stats := &store.Stats{
		TotalURLs:          len(st.urls),
		TotalIssues:        st.summary.IssueCount(),
		HighImpactIssues:   counts.High,
		MediumImpactIssues: counts.Medium,
		LowImpactIssues:    counts.Low,
		DurationMS:         r.now().Sub(st.rc.StartedAt).Milliseconds(),
	}

	if err := st.rc.Store.UpdateScanStatus(ctx, st.rc.ScanID, store.StatusCompleted, st.cfg.UserID, stats); err != nil {
		r.logger.Warn("failed to mark scan completed", "scan_id", st.rc.ScanID.String(), "error", err)
		return
	}
	r.logger.Info("scan completed", "scan_id", st.rc.ScanID.String())
}

// markFailed flags the remote scan as failed. It runs even after
// cancellation and never returns an error.
func (r *Runner) markFailed(ctx context.Context, st *run) {
	if !st.rc.Remote() {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := st.rc.Store.UpdateScanStatus(ctx, st.rc.ScanID, store.StatusFailed, st.cfg.UserID, nil); err != nil {
		r.logger.Warn("failed to mark scan failed", "scan_id", st.rc.ScanID.String(), "error", err)
	}
}

// finish writes every output of the run and returns runErr, joined with the
// JSON report write error if there was one.
func (r *Runner) finish(ctx context.Context, st *run, runErr error) (*model.Report, error) {
	ctx = context.WithoutCancel(ctx)
	finishedAt := r.now()
	rep := st.summary.Report(st.scanID, st.cfg.UserID, finishedAt)

	if err := report.WriteJSONFile(r.reportPath, rep); err != nil {
		return rep, errors.Join(runErr, fmt.Errorf("failed to write report %s: %w", r.reportPath, err))
	}
	r.logger.Info("report written", "path", r.reportPath)

	if r.markdownPath != "" {
		if err := report.WriteMarkdownFile(r.markdownPath, rep); err != nil {
			r.logger.Warn("failed to write markdown report", "path", r.markdownPath, "error", err)
		}
	}

	if r.history != nil {
		r.record(ctx, st, rep, runErr, finishedAt)
	}

	if _, err := report.NewSimpleWriter(r.out).Write(rep); err != nil {
		r.logger.Debug("failed to print summary", "error", err)
	}

	return rep, runErr
}

// record saves the run in history. Failures are logged only.
func (r *Runner) record(ctx context.Context, st *run, rep *model.Report, runErr error, finishedAt time.Time) {
	status := string(store.StatusCompleted)
	if runErr != nil {
		status = string(store.StatusFailed)
	}

	id, err := r.history.SaveRun(ctx, &database.RunRecord{
		ScanID:     st.scanID,
		ProjectID:  st.cfg.ProjectID,
		UserID:     st.cfg.UserID,
		Mode:       st.cfg.Scan.Mode,
		Status:     status,
		StartedAt:  st.startedAt,
		FinishedAt: finishedAt,
	}, st.summary.Pages(), rep)
	if err != nil {
		r.logger.Warn("failed to record run history", "error", err)
		return
	}
	r.logger.Debug("run recorded", "history_id", id)
}

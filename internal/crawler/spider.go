package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avikharat/cloudScanRunner/internal/browser"
)

// Spider discovers URLs breadth-first by loading pages in a browser.
type Spider struct {
	session browser.Session

	// maxURLs caps the number of discovered URLs, start URL included.
	maxURLs int

	// maxVisits caps the number of pages loaded during discovery.
	maxVisits int

	matcher *Matcher
	timeout time.Duration

	username string
	password string

	logger *slog.Logger
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxURLs sets the maximum number of URLs to discover.
func WithMaxURLs(n int) SpiderOption {
	return func(s *Spider) {
		s.maxURLs = n
	}
}

// WithMaxVisits sets the maximum number of pages to load while discovering.
func WithMaxVisits(n int) SpiderOption {
	return func(s *Spider) {
		s.maxVisits = n
	}
}

// WithPatterns sets the include and exclude patterns discovered links must pass.
func WithPatterns(include, exclude []string) SpiderOption {
	return func(s *Spider) {
		s.matcher = NewMatcher(include, exclude)
	}
}

// WithTimeout bounds each page navigation.
func WithTimeout(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.timeout = d
	}
}

// WithBasicAuth answers HTTP authentication challenges on every crawled page.
func WithBasicAuth(username, password string) SpiderOption {
	return func(s *Spider) {
		s.username = username
		s.password = password
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a Spider that opens its pages in session.
func NewSpider(session browser.Session, opts ...SpiderOption) *Spider {
	s := &Spider{
		session:   session,
		maxURLs:   50,
		maxVisits: 3,
		matcher:   NewMatcher(nil, nil),
		timeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Discover crawls from startURL and returns the discovered URLs in the
// order they were found, start URL first. A page that fails to load is
// logged and contributes no links. On cancellation the URLs discovered so
// far are returned together with the context error.
func (s *Spider) Discover(ctx context.Context, startURL string) ([]string, error) {
	f := NewFrontier(stripFragment(startURL))

	for f.Pending() > 0 && f.DiscoveredCount() < s.maxURLs && f.VisitedCount() < s.maxVisits {
		if err := ctx.Err(); err != nil {
			return f.Discovered(), err
		}

		current, _ := f.Next()
		if !f.Visit(current) {
			continue
		}

		links, err := s.links(ctx, current)
		if err != nil {
			s.logger.Warn("crawl page failed", "url", current, "error", err)
			continue
		}

		if f.DiscoveredCount() >= s.maxURLs || f.VisitedCount() >= s.maxVisits {
			continue
		}
		for _, link := range links {
			if f.DiscoveredCount() >= s.maxURLs {
				break
			}
			if !s.matcher.Admit(link) {
				continue
			}
			if f.Discover(link) {
				s.logger.Debug("discovered url", "url", link, "from", current)
			}
		}
	}

	s.logger.Debug("crawl finished",
		"discovered", f.DiscoveredCount(),
		"visited", f.VisitedCount(),
	)
	return f.Discovered(), nil
}

// links loads pageURL in a fresh tab and returns its outbound links.
// The tab is closed before returning.
func (s *Spider) links(ctx context.Context, pageURL string) ([]string, error) {
	page, err := s.session.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	if s.username != "" {
		if err := page.Authenticate(ctx, s.username, s.password); err != nil {
			return nil, fmt.Errorf("failed to set credentials: %w", err)
		}
	}

	resp, err := page.Goto(ctx, pageURL, browser.GotoOptions{
		WaitUntil: browser.WaitLoad,
		Timeout:   s.timeout,
	})
	if err != nil {
		return nil, err
	}

	document, err := page.Content(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	base := pageURL
	if resp != nil && resp.URL != "" {
		base = resp.URL
	}
	return ExtractLinks(base, document)
}

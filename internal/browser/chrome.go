package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// networkIdleWindow is how long no request may be in flight before the
// network counts as idle.
const networkIdleWindow = 500 * time.Millisecond

// ChromeOption configures a ChromeSession.
type ChromeOption func(*ChromeSession)

// WithHeadless runs the browser with or without a window. Default true.
func WithHeadless(headless bool) ChromeOption {
	return func(s *ChromeSession) {
		s.headless = headless
	}
}

// WithExecPath sets the browser executable. Default is a PATH lookup.
func WithExecPath(path string) ChromeOption {
	return func(s *ChromeSession) {
		s.execPath = path
	}
}

// WithLogger sets the logger for browser protocol noise.
func WithLogger(logger *slog.Logger) ChromeOption {
	return func(s *ChromeSession) {
		s.logger = logger
	}
}

// ChromeSession drives a Chrome or Chromium process over the DevTools protocol.
type ChromeSession struct {
	headless bool
	execPath string
	logger   *slog.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	closeOnce     sync.Once
}

// NewChromeSession starts a browser. The browser lives until Close is
// called or ctx is cancelled.
func NewChromeSession(ctx context.Context, opts ...ChromeOption) (*ChromeSession, error) {
	s := &ChromeSession{headless: true}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", s.headless),
	)
	if s.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(s.execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			s.logger.Debug("browser protocol error", "detail", fmt.Sprintf(format, args...))
		}),
	)

	// The first Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	s.allocCancel = allocCancel
	s.browserCtx = browserCtx
	s.browserCancel = browserCancel
	return s, nil
}

// NewPage opens a new tab.
func (s *ChromeSession) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(s.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}

	p := &chromePage{ctx: tabCtx, cancel: cancel}
	if c := chromedp.FromContext(tabCtx); c != nil && c.Target != nil {
		p.mainFrame = cdp.FrameID(c.Target.TargetID)
	}
	chromedp.ListenTarget(tabCtx, p.onEvent)
	return p, nil
}

// Close shuts the browser down.
func (s *ChromeSession) Close() error {
	s.closeOnce.Do(func() {
		s.browserCancel()
		s.allocCancel()
	})
	return nil
}

type chromePage struct {
	ctx       context.Context
	cancel    context.CancelFunc
	mainFrame cdp.FrameID
	closeOnce sync.Once

	mu       sync.Mutex
	status   int
	username string
	password string
}

func (p *chromePage) onEvent(ev any) {
	switch e := ev.(type) {
	case *network.EventResponseReceived:
		if e.Type != network.ResourceTypeDocument || e.Response == nil {
			return
		}
		if p.mainFrame != "" && e.FrameID != p.mainFrame {
			return
		}
		p.mu.Lock()
		p.status = int(e.Response.Status)
		p.mu.Unlock()
	case *fetch.EventRequestPaused:
		go p.continueRequest(e.RequestID)
	case *fetch.EventAuthRequired:
		go p.answerAuth(e.RequestID)
	}
}

// Event handlers must not block the event loop, so protocol calls made in
// response to events run on their own goroutine against the tab executor.
func (p *chromePage) executor() context.Context {
	c := chromedp.FromContext(p.ctx)
	return cdp.WithExecutor(p.ctx, c.Target)
}

func (p *chromePage) continueRequest(id fetch.RequestID) {
	_ = fetch.ContinueRequest(id).Do(p.executor())
}

func (p *chromePage) answerAuth(id fetch.RequestID) {
	p.mu.Lock()
	resp := &fetch.AuthChallengeResponse{
		Response: fetch.AuthChallengeResponseResponseProvideCredentials,
		Username: p.username,
		Password: p.password,
	}
	p.mu.Unlock()
	_ = fetch.ContinueWithAuth(id, resp).Do(p.executor())
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(p.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(p.ctx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Goto(ctx context.Context, url string, opts GotoOptions) (*Response, error) {
	p.mu.Lock()
	p.status = 0
	p.mu.Unlock()

	var location string
	actions := []chromedp.Action{network.Enable()}
	if opts.WaitUntil == WaitNetworkIdle {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			idle, loaded := waitNetworkIdle(ctx, networkIdleWindow)
			if err := chromedp.Navigate(url).Do(ctx); err != nil {
				return err
			}
			loaded()
			select {
			case <-idle:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}))
	} else {
		actions = append(actions, chromedp.Navigate(url))
	}
	actions = append(actions, chromedp.Location(&location))

	if err := p.run(ctx, opts.Timeout, actions...); err != nil {
		return nil, fmt.Errorf("navigation to %s failed: %w", url, err)
	}

	p.mu.Lock()
	status := p.status
	p.mu.Unlock()
	return &Response{Status: status, URL: location}, nil
}

func (p *chromePage) Evaluate(ctx context.Context, expression string, out any) error {
	awaitPromise := func(params *runtime.EvaluateParams) *runtime.EvaluateParams {
		return params.WithAwaitPromise(true)
	}
	if out == nil {
		// A RemoteObject target skips decoding, so undefined results are fine.
		var ignored *runtime.RemoteObject
		return p.run(ctx, 0, chromedp.Evaluate(expression, &ignored, awaitPromise))
	}
	return p.run(ctx, 0, chromedp.Evaluate(expression, out, awaitPromise))
}

func (p *chromePage) Screenshot(ctx context.Context, opts ScreenshotOptions) error {
	var buf []byte
	capture := chromedp.CaptureScreenshot(&buf)
	if opts.FullPage {
		// Quality 100 produces PNG.
		capture = chromedp.FullScreenshot(&buf, 100)
	}
	if err := p.run(ctx, opts.Timeout, capture); err != nil {
		return fmt.Errorf("screenshot failed: %w", err)
	}

	if dir := filepath.Dir(opts.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create screenshot directory: %w", err)
		}
	}
	if err := os.WriteFile(opts.Path, buf, 0600); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	return nil
}

func (p *chromePage) SetViewport(ctx context.Context, width, height int) error {
	return p.run(ctx, 0, chromedp.EmulateViewport(int64(width), int64(height)))
}

func (p *chromePage) Authenticate(ctx context.Context, username, password string) error {
	p.mu.Lock()
	p.username = username
	p.password = password
	p.mu.Unlock()
	return p.run(ctx, 0, fetch.Enable().WithHandleAuthRequests(true))
}

func (p *chromePage) Title(ctx context.Context) (string, error) {
	var title string
	err := p.run(ctx, 0, chromedp.Title(&title))
	return title, err
}

func (p *chromePage) Content(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *chromePage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	return p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (p *chromePage) Type(ctx context.Context, selector, text string) error {
	return p.run(ctx, 0, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

func (p *chromePage) ClickAndWaitForNavigation(ctx context.Context, selector string, timeout time.Duration) error {
	listenCtx, stopListening := context.WithCancel(p.ctx)
	defer stopListening()

	parsed := make(chan struct{}, 1)
	chromedp.ListenTarget(listenCtx, func(ev any) {
		if _, ok := ev.(*page.EventDomContentEventFired); ok {
			select {
			case parsed <- struct{}{}:
			default:
			}
		}
	})

	if err := p.run(ctx, timeout, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to click %s: %w", selector, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-parsed:
		return nil
	case <-timer.C:
		return ErrNavigationTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *chromePage) Close() error {
	p.closeOnce.Do(p.cancel)
	return nil
}

// waitNetworkIdle returns a channel that is signalled once no request has
// been in flight for idleAfter. Call loaded after the navigation returns so
// that a page with no further requests also counts as idle.
func waitNetworkIdle(ctx context.Context, idleAfter time.Duration) (<-chan struct{}, func()) {
	idle := make(chan struct{}, 1)
	var (
		mu       sync.Mutex
		inFlight int
		timer    *time.Timer
		once     sync.Once
	)

	// arm must be called with mu held.
	arm := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(idleAfter, func() {
			mu.Lock()
			quiet := inFlight == 0
			mu.Unlock()
			if quiet {
				once.Do(func() { idle <- struct{}{} })
			}
		})
	}

	chromedp.ListenTarget(ctx, func(ev any) {
		mu.Lock()
		defer mu.Unlock()
		switch ev.(type) {
		case *network.EventRequestWillBeSent:
			inFlight++
		case *network.EventLoadingFinished, *network.EventLoadingFailed:
			if inFlight > 0 {
				inFlight--
			}
			if inFlight == 0 {
				arm()
			}
		}
	})

	loaded := func() {
		mu.Lock()
		defer mu.Unlock()
		if inFlight == 0 {
			arm()
		}
	}
	return idle, loaded
}

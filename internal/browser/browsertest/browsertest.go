// Package browsertest provides a scripted, in-memory browser.Session for tests.
package browsertest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/avikharat/cloudScanRunner/internal/browser"
)

// ErrNoPage is returned by Goto for URLs the session has no PageSpec for.
var ErrNoPage = errors.New("browsertest: no page scripted for url")

// PNG is the content written by Screenshot.
var PNG = []byte("\x89PNG\r\n\x1a\nfake")

// EvalFunc answers an Evaluate call made on the page at url.
type EvalFunc func(url, expression string) (any, error)

// PageSpec scripts what a URL looks like.
type PageSpec struct {
	Status int
	// FinalURL is reported as the post-redirect URL. Defaults to the requested URL.
	FinalURL      string
	Title         string
	HTML          string
	GotoErr       error
	ScreenshotErr error
	// Eval overrides Session.Eval for this page.
	Eval EvalFunc
}

// Session is a fake browser. Configure the exported fields before use.
type Session struct {
	// Pages maps URLs to their scripts.
	Pages map[string]*PageSpec

	// Eval answers Evaluate calls for pages without their own Eval.
	// With no evaluator the result is null.
	Eval EvalFunc

	// NewPageErr makes NewPage fail.
	NewPageErr error

	mu     sync.Mutex
	opened int
	closed int
	visits []string
	tabs   []*Tab
	shut   bool
}

var _ browser.Session = (*Session)(nil)

// NewSession returns a Session with an empty page map.
func NewSession() *Session {
	return &Session{Pages: make(map[string]*PageSpec)}
}

// Add scripts url and returns the spec for further tweaks.
func (s *Session) Add(url string, spec PageSpec) *PageSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Pages == nil {
		s.Pages = make(map[string]*PageSpec)
	}
	p := spec
	s.Pages[url] = &p
	return &p
}

// NewPage opens a fake tab.
func (s *Session) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.NewPageErr != nil {
		return nil, s.NewPageErr
	}
	s.opened++
	tab := &Tab{session: s}
	s.tabs = append(s.tabs, tab)
	return tab, nil
}

// Close marks the session closed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shut = true
	return nil
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shut
}

// OpenPages returns the number of pages opened and not yet closed.
func (s *Session) OpenPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened - s.closed
}

// PagesOpened returns how many pages were ever opened.
func (s *Session) PagesOpened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// Visits returns every URL passed to Goto, in order.
func (s *Session) Visits() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visits...)
}

// Tabs returns every tab opened so far.
func (s *Session) Tabs() []*Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Tab(nil), s.tabs...)
}

func (s *Session) lookup(url string) *PageSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visits = append(s.visits, url)
	return s.Pages[url]
}

// Tab is a fake browser.Page.
type Tab struct {
	session *Session

	mu          sync.Mutex
	url         string
	spec        *PageSpec
	closed      bool
	Viewport    [2]int
	Username    string
	Password    string
	Typed       map[string]string
	Clicked     []string
	Waited      []string
	Screenshots []browser.ScreenshotOptions
	Gotos       []browser.GotoOptions
}

var _ browser.Page = (*Tab)(nil)

// URL returns the tab's current URL.
func (t *Tab) URL() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.url
}

// IsClosed reports whether Close was called.
func (t *Tab) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Tab) current() (string, *PageSpec) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.url, t.spec
}

func (t *Tab) Goto(ctx context.Context, url string, opts browser.GotoOptions) (*browser.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	spec := t.session.lookup(url)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.Gotos = append(t.Gotos, opts)
	if spec == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPage, url)
	}
	if spec.GotoErr != nil {
		return nil, spec.GotoErr
	}
	final := spec.FinalURL
	if final == "" {
		final = url
	}
	t.url = final
	t.spec = spec
	return &browser.Response{Status: spec.Status, URL: final}, nil
}

func (t *Tab) Evaluate(ctx context.Context, expression string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	url, spec := t.current()
	eval := t.session.Eval
	if spec != nil && spec.Eval != nil {
		eval = spec.Eval
	}
	if eval == nil {
		return nil
	}
	value, err := eval(url, expression)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (t *Tab) Screenshot(ctx context.Context, opts browser.ScreenshotOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, spec := t.current()
	t.mu.Lock()
	t.Screenshots = append(t.Screenshots, opts)
	t.mu.Unlock()
	if spec != nil && spec.ScreenshotErr != nil {
		return spec.ScreenshotErr
	}
	if dir := filepath.Dir(opts.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return err
		}
	}
	return os.WriteFile(opts.Path, PNG, 0600)
}

func (t *Tab) SetViewport(_ context.Context, width, height int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Viewport = [2]int{width, height}
	return nil
}

func (t *Tab) Authenticate(_ context.Context, username, password string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Username = username
	t.Password = password
	return nil
}

func (t *Tab) Title(context.Context) (string, error) {
	_, spec := t.current()
	if spec == nil {
		return "", nil
	}
	return spec.Title, nil
}

func (t *Tab) Content(context.Context) (string, error) {
	_, spec := t.current()
	if spec == nil {
		return "", nil
	}
	return spec.HTML, nil
}

func (t *Tab) WaitForSelector(ctx context.Context, selector string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Waited = append(t.Waited, selector)
	return nil
}

func (t *Tab) Type(_ context.Context, selector, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Typed == nil {
		t.Typed = make(map[string]string)
	}
	t.Typed[selector] += text
	return nil
}

func (t *Tab) ClickAndWaitForNavigation(ctx context.Context, selector string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Clicked = append(t.Clicked, selector)
	return nil
}

func (t *Tab) Close() error {
	t.mu.Lock()
	already := t.closed
	t.closed = true
	t.mu.Unlock()
	if !already {
		t.session.mu.Lock()
		t.session.closed++
		t.session.mu.Unlock()
	}
	return nil
}

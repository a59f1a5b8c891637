package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNavigationTimeout is returned when an expected navigation never happens.
var ErrNavigationTimeout = errors.New("timed out waiting for navigation")

// WaitUntil selects when Goto considers a navigation finished.
type WaitUntil int

const (
	// WaitLoad waits for the load event.
	WaitLoad WaitUntil = iota

	// WaitNetworkIdle additionally waits until no requests are in flight.
	WaitNetworkIdle
)

// GotoOptions controls a navigation.
type GotoOptions struct {
	WaitUntil WaitUntil

	// Timeout bounds the whole navigation. Zero means no timeout.
	Timeout time.Duration
}

// Response describes the main document of a navigation.
type Response struct {
	// Status is the HTTP status code, 0 when the browser reported none.
	Status int

	// URL is the document URL after redirects.
	URL string
}

// ScreenshotOptions controls a screenshot.
type ScreenshotOptions struct {
	// Path is the PNG file to write.
	Path     string
	FullPage bool
	Timeout  time.Duration
}

// Session is a running browser.
type Session interface {
	// NewPage opens a new tab. The caller must Close it.
	NewPage(ctx context.Context) (Page, error)

	// Close shuts the browser down.
	Close() error
}

// Page is a single browser tab.
type Page interface {
	Goto(ctx context.Context, url string, opts GotoOptions) (*Response, error)

	// Evaluate runs a JavaScript expression in the page, awaiting it if it
	// is a promise, and decodes the JSON result into out. A nil out discards
	// the result.
	Evaluate(ctx context.Context, expression string, out any) error

	Screenshot(ctx context.Context, opts ScreenshotOptions) error
	SetViewport(ctx context.Context, width, height int) error

	// Authenticate answers HTTP authentication challenges for every later
	// request made by this page.
	Authenticate(ctx context.Context, username, password string) error

	Title(ctx context.Context) (string, error)

	// Content returns the serialized DOM of the current document.
	Content(ctx context.Context) (string, error)

	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	Type(ctx context.Context, selector, text string) error

	// ClickAndWaitForNavigation clicks the first element matching selector
	// and waits until the resulting document has been parsed.
	ClickAndWaitForNavigation(ctx context.Context, selector string, timeout time.Duration) error

	Close() error
}

// Call builds an expression that invokes the JavaScript function source fn
// with args encoded as JSON literals.
func Call(fn string, args ...any) (string, error) {
	encoded := make([]string, len(args))
	for i, arg := range args {
		data, err := json.Marshal(arg)
		if err != nil {
			return "", fmt.Errorf("failed to encode argument %d: %w", i, err)
		}
		encoded[i] = string(data)
	}
	return "(" + fn + ")(" + strings.Join(encoded, ", ") + ")", nil
}

package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// startChrome starts a headless browser or skips the test when none is available.
func startChrome(t *testing.T) *ChromeSession {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	session, err := NewChromeSession(ctx)
	if err != nil {
		t.Skipf("Skipping chromedp test (environment does not support chromedp): %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestChromeSession_Navigation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head><title>Home</title></head><body><a href="/about">About</a></body></html>`)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `<html><body>gone</body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	session := startChrome(t)
	ctx := context.Background()

	page, err := session.NewPage(ctx)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	defer page.Close()

	resp, err := page.Goto(ctx, server.URL+"/", GotoOptions{WaitUntil: WaitNetworkIdle, Timeout: 15 * time.Second})
	if err != nil {
		t.Fatalf("Goto: %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.Status)
	}

	title, err := page.Title(ctx)
	if err != nil || title != "Home" {
		t.Errorf("Title() = %q, %v", title, err)
	}

	html, err := page.Content(ctx)
	if err != nil || !strings.Contains(html, `href="/about"`) {
		t.Errorf("Content() missing link: %v", err)
	}

	var sum int
	if err := page.Evaluate(ctx, "Promise.resolve(40 + 2)", &sum); err != nil || sum != 42 {
		t.Errorf("Evaluate() = %d, %v", sum, err)
	}
	if err := page.Evaluate(ctx, "window.scrollTo(0, 0)", nil); err != nil {
		t.Errorf("Evaluate() with nil out: %v", err)
	}

	resp, err = page.Goto(ctx, server.URL+"/missing", GotoOptions{Timeout: 15 * time.Second})
	if err != nil {
		t.Fatalf("Goto missing: %v", err)
	}
	if resp.Status != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", resp.Status)
	}

	shot := filepath.Join(t.TempDir(), "shots", "page.png")
	if err := page.Screenshot(ctx, ScreenshotOptions{Path: shot, FullPage: true, Timeout: 15 * time.Second}); err != nil {
		t.Fatalf("Screenshot: %v", err)
	}
	data, err := os.ReadFile(shot)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 8 || string(data[1:4]) != "PNG" {
		t.Error("expected a PNG file")
	}
}

func TestChromeSession_BasicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "pw" {
			w.Header().Set("WWW-Authenticate", `Basic realm="test"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `<html><head><title>Secret</title></head></html>`)
	}))
	defer server.Close()

	session := startChrome(t)
	ctx := context.Background()

	page, err := session.NewPage(ctx)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	defer page.Close()

	if err := page.Authenticate(ctx, "admin", "pw"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	resp, err := page.Goto(ctx, server.URL, GotoOptions{Timeout: 15 * time.Second})
	if err != nil {
		t.Fatalf("Goto: %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Errorf("expected status 200 after auth, got %d", resp.Status)
	}
}

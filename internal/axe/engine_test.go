package axe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/avikharat/cloudScanRunner/internal/browser"
	"github.com/avikharat/cloudScanRunner/internal/browser/browsertest"
)

const (
	testURL    = "https://example.com/"
	testSource = "window.axe = window.axe || {};"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openPage(t *testing.T, eval browsertest.EvalFunc) browser.Page {
	t.Helper()
	session := browsertest.NewSession()
	session.Add(testURL, browsertest.PageSpec{Status: 200, Eval: eval})
	page, err := session.NewPage(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = page.Close() })
	if _, err := page.Goto(context.Background(), testURL, browser.GotoOptions{}); err != nil {
		t.Fatal(err)
	}
	return page
}

func TestAxeEngine_Analyze(t *testing.T) {
	t.Parallel()

	var injected bool
	var runExpr string
	page := openPage(t, func(_ string, expr string) (any, error) {
		switch {
		case expr == testSource:
			injected = true
			return nil, nil
		case strings.HasPrefix(expr, "("+runFunc+")("):
			runExpr = expr
			return map[string]any{
				"results": map[string]any{
					"testEngine": map[string]any{"name": "axe-core", "version": "4.10.2"},
					"violations": []any{
						map[string]any{
							"id":      "color-contrast",
							"impact":  "serious",
							"help":    "Elements must meet minimum color contrast ratio thresholds",
							"helpUrl": "https://dequeuniversity.com/rules/axe/4.10/color-contrast",
							"tags":    []string{"wcag2aa", "wcag143"},
							"nodes": []any{
								map[string]any{"target": []string{"p.muted"}, "html": "<p class=\"muted\">"},
							},
						},
					},
				},
			}, nil
		}
		return nil, errors.New("unexpected expression")
	})

	engine := NewAxeEngine(testSource, WithLogger(quietLogger()))
	results, err := engine.Analyze(context.Background(), page, TagsFor("wcag2aa"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !injected {
		t.Error("expected engine source to be injected")
	}
	if !strings.HasSuffix(runExpr, `(["wcag2a","wcag2aa"])`) {
		t.Error("expected run restricted to the AA tags")
	}
	if len(results.Violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(results.Violations))
	}
	v := results.Violations[0]
	if v.ID != "color-contrast" || v.Impact != "serious" {
		t.Errorf("unexpected violation: %+v", v)
	}
	if sel, ok := v.Nodes[0].Primary(); !ok || sel != "p.muted" {
		t.Errorf("unexpected selector %q", sel)
	}
	if results.TestEngine.Version != "4.10.2" {
		t.Errorf("unexpected engine version %q", results.TestEngine.Version)
	}
}

func TestAxeEngine_EngineErrorYieldsNoViolations(t *testing.T) {
	t.Parallel()

	page := openPage(t, func(_ string, expr string) (any, error) {
		if expr == testSource {
			return nil, nil
		}
		return map[string]any{"error": "No elements found for include in page Context"}, nil
	})

	results, err := NewAxeEngine(testSource, WithLogger(quietLogger())).
		Analyze(context.Background(), page, TagsFor("wcag2a"))
	if err != nil {
		t.Fatalf("engine errors must not fail the page, got %v", err)
	}
	if results.Violations == nil || len(results.Violations) != 0 {
		t.Errorf("expected empty violations, got %v", results.Violations)
	}
}

func TestAxeEngine_NoViolations(t *testing.T) {
	t.Parallel()

	page := openPage(t, func(_ string, expr string) (any, error) {
		if expr == testSource {
			return nil, nil
		}
		return map[string]any{"results": map[string]any{"violations": nil}}, nil
	})

	results, err := NewAxeEngine(testSource, WithLogger(quietLogger())).
		Analyze(context.Background(), page, TagsFor("wcag2aa"))
	if err != nil {
		t.Fatal(err)
	}
	if results.Violations == nil {
		t.Error("expected a non-nil empty violation list")
	}
}

func TestAxeEngine_Failures(t *testing.T) {
	t.Parallel()

	pageErr := errors.New("Execution context was destroyed")

	tests := []struct {
		name    string
		source  string
		eval    browsertest.EvalFunc
		wantErr error
	}{
		{
			name:    "empty source",
			source:  "",
			eval:    func(string, string) (any, error) { return nil, nil },
			wantErr: ErrEmptySource,
		},
		{
			name:    "injection fails",
			source:  testSource,
			eval:    func(string, string) (any, error) { return nil, pageErr },
			wantErr: ErrInject,
		},
		{
			name:   "run fails",
			source: testSource,
			eval: func(_ string, expr string) (any, error) {
				if expr == testSource {
					return nil, nil
				}
				return nil, pageErr
			},
			wantErr: ErrRun,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			page := openPage(t, tt.eval)
			_, err := NewAxeEngine(tt.source, WithLogger(quietLogger())).
				Analyze(context.Background(), page, TagsFor("wcag2aa"))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

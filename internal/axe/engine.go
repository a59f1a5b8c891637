package axe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avikharat/cloudScanRunner/internal/browser"
)

// runFunc invokes axe-core and resolves with either its results or the
// error it reported. It never rejects.
const runFunc = `(tags) => new Promise((resolve) => {
	if (typeof axe === 'undefined') {
		resolve({ error: 'axe is not defined' });
		return;
	}
	axe.run(document, { runOnly: { type: 'tag', values: tags } }, (err, results) => {
		if (err) {
			resolve({ error: String((err && err.message) || err) });
			return;
		}
		resolve({ results: { violations: results.violations, testEngine: results.testEngine } });
	});
})`

type outcome struct {
	Error   string   `json:"error"`
	Results *Results `json:"results"`
}

// EngineOption configures an AxeEngine.
type EngineOption func(*AxeEngine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *AxeEngine) {
		e.logger = logger
	}
}

// AxeEngine is an Engine backed by the axe-core script.
type AxeEngine struct {
	source string
	logger *slog.Logger
}

var _ Engine = (*AxeEngine)(nil)

// NewAxeEngine returns an engine that injects source into each page it analyzes.
func NewAxeEngine(source string, opts ...EngineOption) *AxeEngine {
	e := &AxeEngine{source: source}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Analyze injects axe-core and runs the rules matching tags.
// An error raised by axe itself yields no violations rather than an error.
func (e *AxeEngine) Analyze(ctx context.Context, page browser.Page, tags []string) (*Results, error) {
	if e.source == "" {
		return nil, ErrEmptySource
	}
	if err := page.Evaluate(ctx, e.source, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInject, err)
	}

	expr, err := browser.Call(runFunc, tags)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRun, err)
	}
	var out outcome
	if err := page.Evaluate(ctx, expr, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRun, err)
	}

	if out.Error != "" || out.Results == nil {
		e.logger.Warn("axe-core reported an error, treating page as having no violations",
			"error", out.Error,
		)
		return &Results{Violations: []Violation{}}, nil
	}
	if out.Results.Violations == nil {
		out.Results.Violations = []Violation{}
	}

	e.logger.Debug("axe-core run complete",
		"engine_version", out.Results.TestEngine.Version,
		"violations", len(out.Results.Violations),
	)
	return out.Results, nil
}

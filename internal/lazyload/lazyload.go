// Package lazyload scrolls a page until its content height stops growing,
// so that a full-page screenshot includes content that loads on scroll.
//
// There is no reliable "done loading" signal for arbitrary pages, so the
// stabilizer runs a bounded fixed-point loop: scroll the whole document in
// viewport-sized steps, wait, re-measure, and stop once a pass adds no
// height or the attempt ceiling is reached. Not converging is not an error.
package lazyload

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/avikharat/cloudScanRunner/internal/browser"
)

// Defaults.
const (
	DefaultMaxAttempts = 20
	DefaultStepDelay   = 300 * time.Millisecond
	DefaultLoadDelay   = 2 * time.Second
	DefaultSettleDelay = 2 * time.Second
)

// Page scripts.
const (
	heightScript   = `Math.max(document.documentElement.scrollHeight, document.body ? document.body.scrollHeight : 0)`
	viewportScript = `window.innerHeight`
	scrollFunc     = `(y) => { window.scrollTo(0, y); return true; }`
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a Stabilizer.
type Option func(*Stabilizer)

// WithMaxAttempts sets the maximum number of full scroll passes.
func WithMaxAttempts(n int) Option {
	return func(s *Stabilizer) {
		s.maxAttempts = n
	}
}

// WithStepDelay sets the pause after each scroll step.
func WithStepDelay(d time.Duration) Option {
	return func(s *Stabilizer) {
		s.stepDelay = d
	}
}

// WithLoadDelay sets the pause after a full pass, before re-measuring.
func WithLoadDelay(d time.Duration) Option {
	return func(s *Stabilizer) {
		s.loadDelay = d
	}
}

// WithSettleDelay sets the pause after scrolling back to the top.
func WithSettleDelay(d time.Duration) Option {
	return func(s *Stabilizer) {
		s.settleDelay = d
	}
}

// WithSleep replaces the clock, for tests.
func WithSleep(sleep SleepFunc) Option {
	return func(s *Stabilizer) {
		s.sleep = sleep
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stabilizer) {
		s.logger = logger
	}
}

// Stabilizer drives a page through incremental scrolling.
type Stabilizer struct {
	maxAttempts int
	stepDelay   time.Duration
	loadDelay   time.Duration
	settleDelay time.Duration
	sleep       SleepFunc
	logger      *slog.Logger
}

// New creates a Stabilizer with the default timings.
func New(opts ...Option) *Stabilizer {
	s := &Stabilizer{
		maxAttempts: DefaultMaxAttempts,
		stepDelay:   DefaultStepDelay,
		loadDelay:   DefaultLoadDelay,
		settleDelay: DefaultSettleDelay,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Stabilize scrolls page until its height converges and returns the final
// height. The page is left scrolled to the top. Only script evaluation
// failures and cancellation are returned as errors.
func (s *Stabilizer) Stabilize(ctx context.Context, page browser.Page) (int, error) {
	height, err := measure(ctx, page, heightScript)
	if err != nil {
		return 0, fmt.Errorf("failed to measure page height: %w", err)
	}

	previous := 0
	attempts := 0
	for height > previous && attempts < s.maxAttempts {
		previous = height
		attempts++

		if err := s.pass(ctx, page, height); err != nil {
			return previous, err
		}

		height, err = measure(ctx, page, heightScript)
		if err != nil {
			return previous, fmt.Errorf("failed to measure page height: %w", err)
		}
		s.logger.Debug("lazy load pass",
			"attempt", attempts,
			"previous_height", previous,
			"height", height,
		)
	}

	if err := scrollTo(ctx, page, 0); err != nil {
		return height, err
	}
	if err := s.sleep(ctx, s.settleDelay); err != nil {
		return height, err
	}

	s.logger.Debug("lazy load complete", "attempts", attempts, "height", height)
	return height, nil
}

// pass scrolls from the top to height in viewport-sized steps.
func (s *Stabilizer) pass(ctx context.Context, page browser.Page, height int) error {
	viewport, err := measure(ctx, page, viewportScript)
	if err != nil {
		return fmt.Errorf("failed to measure viewport: %w", err)
	}
	steps := 1
	if viewport > 0 {
		steps = max(1, int(math.Ceil(float64(height)/float64(viewport))))
	}

	for i := 0; i <= steps; i++ {
		y := float64(height) / float64(steps) * float64(i)
		if err := scrollTo(ctx, page, y); err != nil {
			return err
		}
		if err := s.sleep(ctx, s.stepDelay); err != nil {
			return err
		}
	}
	return s.sleep(ctx, s.loadDelay)
}

func measure(ctx context.Context, page browser.Page, script string) (int, error) {
	var v float64
	if err := page.Evaluate(ctx, script, &v); err != nil {
		return 0, err
	}
	return int(v), nil
}

func scrollTo(ctx context.Context, page browser.Page, y float64) error {
	expr, err := browser.Call(scrollFunc, y)
	if err != nil {
		return err
	}
	if err := page.Evaluate(ctx, expr, nil); err != nil {
		return fmt.Errorf("failed to scroll: %w", err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

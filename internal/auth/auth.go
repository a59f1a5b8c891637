// Package auth performs the one-time login that precedes a scan.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avikharat/cloudScanRunner/internal/browser"
	"github.com/avikharat/cloudScanRunner/internal/config"
)

// DefaultTimeout bounds each wait of the login flow.
const DefaultTimeout = 30 * time.Second

// ErrUnsupportedType is returned for an authentication type other than form or basic.
var ErrUnsupportedType = errors.New("unsupported authentication type")

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithTimeout sets the per-step timeout of the form login.
func WithTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		a.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticator) {
		a.logger = logger
	}
}

// Authenticator logs a page into the target site.
type Authenticator struct {
	timeout time.Duration
	logger  *slog.Logger
}

// New creates an Authenticator.
func New(opts ...Option) *Authenticator {
	a := &Authenticator{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Authenticate logs page in with the default settings.
func Authenticate(ctx context.Context, page browser.Page, cfg *config.Authentication) error {
	return New().Authenticate(ctx, page, cfg)
}

// Authenticate logs page in according to cfg. A nil or disabled cfg is a no-op.
// Session cookies set by a form login are shared with every page of the
// browser session; basic credentials only apply to this page.
func (a *Authenticator) Authenticate(ctx context.Context, page browser.Page, cfg *config.Authentication) error {
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	a.logger.Info("performing authentication", "type", cfg.Type, "username", cfg.Credentials.Username)

	switch cfg.Type {
	case config.AuthForm:
		return a.form(ctx, page, cfg)
	case config.AuthBasic:
		if err := page.Authenticate(ctx, cfg.Credentials.Username, cfg.Credentials.Password); err != nil {
			return fmt.Errorf("failed to set basic credentials: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedType, cfg.Type)
	}
}

func (a *Authenticator) form(ctx context.Context, page browser.Page, cfg *config.Authentication) error {
	if _, err := page.Goto(ctx, cfg.LoginURL, browser.GotoOptions{
		WaitUntil: browser.WaitLoad,
		Timeout:   a.timeout,
	}); err != nil {
		return fmt.Errorf("failed to open login page: %w", err)
	}
	if err := page.WaitForSelector(ctx, cfg.UsernameField, a.timeout); err != nil {
		return fmt.Errorf("login form not found: %w", err)
	}
	if err := page.Type(ctx, cfg.UsernameField, cfg.Credentials.Username); err != nil {
		return fmt.Errorf("failed to enter username: %w", err)
	}
	if err := page.Type(ctx, cfg.PasswordField, cfg.Credentials.Password); err != nil {
		return fmt.Errorf("failed to enter password: %w", err)
	}
	if err := page.ClickAndWaitForNavigation(ctx, cfg.SubmitSelector, a.timeout); err != nil {
		return fmt.Errorf("failed to submit login form: %w", err)
	}
	if cfg.PostLoginWaitSelector != "" {
		if err := page.WaitForSelector(ctx, cfg.PostLoginWaitSelector, a.timeout); err != nil {
			return fmt.Errorf("login did not complete: %w", err)
		}
	}

	a.logger.Debug("form login complete", "login_url", cfg.LoginURL)
	return nil
}

package config

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Scan modes.
const (
	ModeCrawler = "crawler"
	ModeManual  = "manual"
)

// Accessibility standards.
const (
	StandardWCAG2A  = "wcag2a"
	StandardWCAG2AA = "wcag2aa"
)

// Authentication types.
const (
	AuthForm  = "form"
	AuthBasic = "basic"
)

// Run defaults, applied by ApplyDefaults to fields left unset.
const (
	DefaultMaxURLs   = 50
	DefaultScanDepth = 3
	DefaultViewport  = "1920x1080"
	DefaultTimeoutMS = 30000
	DefaultStandard  = StandardWCAG2AA
)

// Run is one scan's inputs.
type Run struct {
	ProjectID string         `yaml:"project_id"`
	UserID    string         `yaml:"user_id"`
	Metadata  map[string]any `yaml:"metadata,omitempty"`
	Scan      ScanConfig     `yaml:"scan_config"`
}

// ScanConfig describes what to scan and how.
// It is treated as immutable once a run starts.
type ScanConfig struct {
	Mode     string   `yaml:"mode"`
	StartURL string   `yaml:"start_url,omitempty"`
	URLs     []string `yaml:"urls,omitempty"`

	MaxURLs int `yaml:"max_urls"`

	// ScanDepth caps the number of pages visited while crawling.
	// It is not a link distance from the start URL.
	ScanDepth int `yaml:"scan_depth"`

	IncludePatterns []string `yaml:"include_patterns,omitempty"`
	ExcludePatterns []string `yaml:"exclude_patterns,omitempty"`

	Viewport              string `yaml:"viewport"`
	TimeoutMS             int    `yaml:"timeout_ms"`
	AccessibilityStandard string `yaml:"accessibility_standard"`
	CaptureScreenshots    bool   `yaml:"capture_screenshots"`

	// UploadToAPI is nil when unset, which counts as enabled.
	UploadToAPI *bool `yaml:"upload_to_api,omitempty"`

	Authentication *Authentication `yaml:"authentication,omitempty"`
}

// Authentication configures the one-time login performed before scanning.
type Authentication struct {
	Enabled               bool        `yaml:"enabled"`
	Type                  string      `yaml:"type"`
	LoginURL              string      `yaml:"login_url,omitempty"`
	UsernameField         string      `yaml:"username_field,omitempty"`
	PasswordField         string      `yaml:"password_field,omitempty"`
	SubmitSelector        string      `yaml:"submit_selector,omitempty"`
	PostLoginWaitSelector string      `yaml:"post_login_wait_selector,omitempty"`
	Credentials           Credentials `yaml:"credentials"`
}

// Credentials are the username and password used to log in.
type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// String hides the password so credentials never end up in logs verbatim.
func (c Credentials) String() string {
	return c.Username + ":***"
}

// Viewport is a browser window size in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

// ParseViewport parses "WIDTHxHEIGHT".
func ParseViewport(s string) (Viewport, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Viewport{}, ErrInvalidViewport
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return Viewport{}, ErrInvalidViewport
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return Viewport{}, ErrInvalidViewport
	}
	return Viewport{Width: width, Height: height}, nil
}

// String returns the "WIDTHxHEIGHT" form.
func (v Viewport) String() string {
	return strconv.Itoa(v.Width) + "x" + strconv.Itoa(v.Height)
}

// ApplyDefaults fills unset scan options with their defaults.
func (r *Run) ApplyDefaults() {
	s := &r.Scan
	if s.MaxURLs == 0 {
		s.MaxURLs = DefaultMaxURLs
	}
	if s.ScanDepth == 0 {
		s.ScanDepth = DefaultScanDepth
	}
	if s.Viewport == "" {
		s.Viewport = DefaultViewport
	}
	if s.TimeoutMS == 0 {
		s.TimeoutMS = DefaultTimeoutMS
	}
	if s.AccessibilityStandard == "" {
		s.AccessibilityStandard = DefaultStandard
	}
}

// Validate checks the run configuration and returns the first problem found.
func (r *Run) Validate() error {
	s := &r.Scan

	switch s.Mode {
	case ModeCrawler:
		if s.StartURL == "" {
			return ErrNoStartURL
		}
		if !isWebURL(s.StartURL) {
			return ErrInvalidStartURL
		}
	case ModeManual:
		if len(s.URLs) == 0 {
			return ErrNoURLs
		}
		for _, u := range s.URLs {
			if !isWebURL(u) {
				return ErrInvalidURL
			}
		}
	default:
		return ErrNoMode
	}

	if s.MaxURLs < 1 {
		return ErrInvalidMaxURLs
	}
	if s.ScanDepth < 1 {
		return ErrInvalidScanDepth
	}
	if _, err := ParseViewport(s.Viewport); err != nil {
		return err
	}
	if s.TimeoutMS <= 0 {
		return ErrInvalidTimeout
	}
	if s.AccessibilityStandard != StandardWCAG2A && s.AccessibilityStandard != StandardWCAG2AA {
		return ErrInvalidStandard
	}

	if s.Uploads() {
		if r.ProjectID == "" {
			return ErrNoProjectID
		}
		if r.UserID == "" {
			return ErrNoUserID
		}
	}

	if a := s.Authentication; a != nil && a.Enabled {
		return a.validate()
	}
	return nil
}

func (a *Authentication) validate() error {
	switch a.Type {
	case AuthForm:
		if a.LoginURL == "" || a.UsernameField == "" || a.PasswordField == "" || a.SubmitSelector == "" {
			return ErrIncompleteAuth
		}
		if !isWebURL(a.LoginURL) {
			return ErrIncompleteAuth
		}
	case AuthBasic:
	default:
		return ErrInvalidAuthType
	}
	if a.Credentials.Username == "" {
		return ErrIncompleteAuth
	}
	return nil
}

// Uploads reports whether results go to the remote scan store.
func (s *ScanConfig) Uploads() bool {
	return s.UploadToAPI == nil || *s.UploadToAPI
}

// Timeout returns timeout_ms as a duration.
func (s *ScanConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// ViewportSize returns the parsed viewport. Call only after Validate.
func (s *ScanConfig) ViewportSize() Viewport {
	v, err := ParseViewport(s.Viewport)
	if err != nil {
		v, _ = ParseViewport(DefaultViewport)
	}
	return v
}

// AuthEnabled reports whether a login must happen before scanning.
func (s *ScanConfig) AuthEnabled() bool {
	return s.Authentication != nil && s.Authentication.Enabled
}

// BasicCredentials returns the credentials to answer HTTP auth challenges
// with, or nil when basic authentication is not configured.
func (s *ScanConfig) BasicCredentials() *Credentials {
	if !s.AuthEnabled() || s.Authentication.Type != AuthBasic {
		return nil
	}
	c := s.Authentication.Credentials
	return &c
}

func isWebURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

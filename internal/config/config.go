package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default process settings.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "scanrunner"

	// DefaultAPIBaseURL is the scan store used when none is configured.
	DefaultAPIBaseURL = "http://localhost:3000"

	// DefaultAPITimeout bounds each call to the scan store.
	DefaultAPITimeout = 30 * time.Second

	// DefaultReportPath is where the JSON report is written.
	DefaultReportPath = "accessibility-results.json"

	// DefaultScreenshotDir holds full-page screenshots.
	DefaultScreenshotDir = "screenshots"

	// DefaultAxeScriptURL is downloaded once and cached when no local
	// axe-core script is configured.
	DefaultAxeScriptURL = "https://cdnjs.cloudflare.com/ajax/libs/axe-core/4.10.2/axe.min.js"
)

// Settings holds process-level options for a scan run.
// It is populated from CLI flags and environment variables and passed
// explicitly to the components that need it.
type Settings struct {
	// APIBaseURL is the root of the remote scan store.
	APIBaseURL string

	// APIToken is sent as a bearer token when set.
	APIToken string

	// APITimeout bounds each individual scan store request.
	APITimeout time.Duration

	// ReportPath is the JSON report destination. It is always written.
	ReportPath string

	// MarkdownPath, when set, also writes a Markdown summary there.
	MarkdownPath string

	// ScreenshotDir receives evidence files.
	ScreenshotDir string

	// Headless runs the browser without a window.
	Headless bool

	// ChromePath overrides the browser executable lookup.
	ChromePath string

	// WaitNetworkIdle makes page scans wait for the network to go idle
	// after the load event.
	WaitNetworkIdle bool

	// AxeScript is a local path or http(s) URL of the axe-core script.
	// Empty means DefaultAxeScriptURL.
	AxeScript string

	// DBDir is the directory of the run history database.
	// Empty disables history.
	DBDir string

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches log output to JSON.
	LogJSON bool
}

// NewSettings returns Settings with defaults applied.
func NewSettings() *Settings {
	return &Settings{
		APIBaseURL:    DefaultAPIBaseURL,
		APITimeout:    DefaultAPITimeout,
		ReportPath:    DefaultReportPath,
		ScreenshotDir: DefaultScreenshotDir,
		Headless:      true,
		DBDir:         XDGDataDir(),
	}
}

// Validate checks the settings.
func (s *Settings) Validate() error {
	if s.APIBaseURL == "" {
		return ErrNoAPIURL
	}
	if s.ReportPath == "" {
		return ErrNoReportPath
	}
	if s.APITimeout <= 0 {
		return ErrInvalidRequestTimeout
	}
	return nil
}

// AxeScriptSource returns the configured axe-core location or the default URL.
func (s *Settings) AxeScriptSource() string {
	if s.AxeScript == "" {
		return DefaultAxeScriptURL
	}
	return s.AxeScript
}

// XDGDataDir returns the XDG data directory for the scan runner.
// On Linux: ~/.local/share/scanrunner
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for the scan runner.
// On Linux: ~/.cache/scanrunner
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/avikharat/cloudScanRunner/internal/config"
	applog "github.com/avikharat/cloudScanRunner/internal/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// envPrefix is prepended to flag names to form environment variable names:
// --api-url is read from SCANRUNNER_API_URL.
const envPrefix = "SCANRUNNER"

// legacyAPIURLEnv is still honored after SCANRUNNER_API_URL.
const legacyAPIURLEnv = "API_BASE_URL"

// newViper binds cmd's flags and their SCANRUNNER_* environment variables.
// An explicitly set flag wins over the environment, which wins over the flag default.
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	if f := cmd.Flags().Lookup("api-url"); f != nil {
		if err := v.BindEnv(f.Name, envPrefix+"_API_URL", legacyAPIURLEnv); err != nil {
			return nil, fmt.Errorf("failed to bind environment: %w", err)
		}
	}
	return v, nil
}

// addSettingsFlags registers the process-level flags shared by scan.
func addSettingsFlags(cmd *cobra.Command) {
	cmd.Flags().String("api-url", config.DefaultAPIBaseURL,
		"Scan store base URL (env: SCANRUNNER_API_URL or API_BASE_URL)")
	cmd.Flags().String("api-token", "",
		"Bearer token for the scan store (env: SCANRUNNER_API_TOKEN)")
	cmd.Flags().Duration("api-timeout", config.DefaultAPITimeout,
		"Timeout for each scan store request")
	cmd.Flags().StringP("output", "o", config.DefaultReportPath,
		"JSON report path")
	cmd.Flags().StringP("markdown", "m", "",
		"Also write a Markdown report to this path")
	cmd.Flags().String("screenshots-dir", config.DefaultScreenshotDir,
		"Directory for full-page evidence screenshots")
	cmd.Flags().Bool("headless", true,
		"Run Chrome without a window")
	cmd.Flags().String("chrome-path", "",
		"Chrome or Chromium executable (default: auto-detect)")
	cmd.Flags().Bool("wait-network-idle", false,
		"Wait for network idle after load before analyzing a page")
	cmd.Flags().String("axe-script", "",
		"Local path or URL of axe-core (default: "+config.DefaultAxeScriptURL+")")
	addHistoryFlags(cmd)
	cmd.Flags().Bool("no-history", false,
		"Do not record this run in the local history database")
	cmd.Flags().Bool("log-json", false,
		"Write logs as JSON")
}

// addHistoryFlags registers the history database location flag.
func addHistoryFlags(cmd *cobra.Command) {
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the run history database (env: SCANRUNNER_DB_DIR)")
}

// buildSettings resolves config.Settings from flags and the environment.
func buildSettings(cmd *cobra.Command) (*config.Settings, error) {
	v, err := newViper(cmd)
	if err != nil {
		return nil, err
	}

	s := config.NewSettings()
	s.APIBaseURL = strings.TrimSpace(v.GetString("api-url"))
	s.APIToken = v.GetString("api-token")
	s.APITimeout = v.GetDuration("api-timeout")
	s.ReportPath = v.GetString("output")
	s.MarkdownPath = v.GetString("markdown")
	s.ScreenshotDir = v.GetString("screenshots-dir")
	s.Headless = v.GetBool("headless")
	s.ChromePath = v.GetString("chrome-path")
	s.WaitNetworkIdle = v.GetBool("wait-network-idle")
	s.AxeScript = v.GetString("axe-script")
	s.DBDir = v.GetString("db-dir")
	if v.GetBool("no-history") {
		s.DBDir = ""
	}
	s.Verbose = v.GetBool("verbose")
	s.LogJSON = v.GetBool("log-json")

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return s, nil
}

// historyDir returns the history database directory for cmd.
func historyDir(cmd *cobra.Command) (string, error) {
	v, err := newViper(cmd)
	if err != nil {
		return "", err
	}
	return v.GetString("db-dir"), nil
}

// setupLogger creates the process logger. Credential-like attributes are
// masked before they reach w.
func setupLogger(w io.Writer, verbose, jsonOutput bool) *slog.Logger {
	if jsonOutput {
		return applog.NewSecureJSONLogger(w, verbose)
	}
	return applog.NewSecureLogger(w, verbose)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/avikharat/cloudScanRunner/internal/auth"
	"github.com/avikharat/cloudScanRunner/internal/axe"
	"github.com/avikharat/cloudScanRunner/internal/browser"
	"github.com/avikharat/cloudScanRunner/internal/config"
	"github.com/avikharat/cloudScanRunner/internal/database"
	"github.com/avikharat/cloudScanRunner/internal/lazyload"
	"github.com/avikharat/cloudScanRunner/internal/pipeline"
	"github.com/avikharat/cloudScanRunner/internal/runner"
	"github.com/avikharat/cloudScanRunner/internal/store"
	"github.com/spf13/cobra"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan web pages for accessibility issues",
		Long: `Scan runs one accessibility scan described by a run configuration file.

In crawler mode the site is crawled from start_url, following same-origin
links that pass the include and exclude patterns. In manual mode exactly the
listed urls are scanned. Every page is audited with axe-core against the
configured WCAG level.

The JSON report is always written. When upload_to_api is enabled the scan
is also recorded in the scan store; if the store cannot be reached the run
continues locally.

Examples:
  # Scan using scanrunner.yaml (or scanrunner.yml, config.json) in the current directory
  scanrunner scan

  # Use a specific run configuration
  scanrunner scan -c site.yaml

  # Write the report elsewhere and add a Markdown summary
  scanrunner scan -c site.yaml -o out/results.json -m out/results.md

  # Point at another scan store
  SCANRUNNER_API_URL=https://scans.example.com scanrunner scan`,
		Args: cobra.NoArgs,
		RunE: runScanCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Run configuration file (default: scanrunner.yaml, scanrunner.yml or config.json in the current directory)")
	addSettingsFlags(cmd)

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	settings, err := buildSettings(cmd)
	if err != nil {
		return err
	}

	runCfg, err := loadRunConfig(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cmd.ErrOrStderr(), settings.Verbose, settings.LogJSON)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runScan(ctx, settings, runCfg, cmd.OutOrStdout(), logger)
}

// loadRunConfig finds and loads the run configuration.
func loadRunConfig(configPath string) (*config.Run, error) {
	path := config.FindRunFile(configPath)
	if path == "" {
		if configPath != "" {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("%w: looked for %s (use 'scanrunner init' to create one)",
			config.ErrConfigNotFound, strings.Join(config.DefaultRunFiles, ", "))
	}

	cfg, err := config.LoadRunFile(path)
	if err != nil {
		return nil, fmt.Errorf("configuration error in %s: %w", path, err)
	}
	return cfg, nil
}

// runScan starts the browser and runs the scan.
func runScan(ctx context.Context, settings *config.Settings, runCfg *config.Run, out io.Writer, logger *slog.Logger) error {
	logger.Info("starting scan",
		"mode", runCfg.Scan.Mode,
		"standard", runCfg.Scan.AccessibilityStandard,
		"upload", runCfg.Scan.Uploads(),
		"api_url", settings.APIBaseURL,
	)

	source, err := axe.LoadSource(ctx, settings.AxeScriptSource(),
		axe.WithCacheDir(config.XDGCacheDir()),
		axe.WithSourceLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to load axe-core: %w", err)
	}

	session, err := browser.NewChromeSession(ctx,
		browser.WithHeadless(settings.Headless),
		browser.WithExecPath(settings.ChromePath),
		browser.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Debug("failed to close browser", "error", err)
		}
	}()

	opts := []runner.Option{
		runner.WithOutput(out),
		runner.WithReportPath(settings.ReportPath),
		runner.WithMarkdownPath(settings.MarkdownPath),
		runner.WithAuthenticator(auth.New(auth.WithLogger(logger))),
		runner.WithStore(newStore(settings, logger)),
		runner.WithLogger(logger),
	}

	if settings.DBDir != "" {
		db, err := database.Open(settings.DBDir, database.DefaultOptions())
		if err != nil {
			logger.Warn("run history disabled", "dir", settings.DBDir, "error", err)
		} else {
			defer db.Close()
			opts = append(opts, runner.WithHistory(db))
		}
	}

	scanner := pipeline.NewScanner(session, axe.NewAxeEngine(source, axe.WithLogger(logger)),
		pipeline.WithScreenshotDir(settings.ScreenshotDir),
		pipeline.WithScannerStabilizer(lazyload.New(lazyload.WithLogger(logger))),
		pipeline.WithScannerLogger(logger),
		pipeline.WithNavigateOptions(navigateOptions(settings)...),
	)

	start := time.Now()
	_, err = runner.New(session, scanner, opts...).Run(ctx, runCfg)
	if err != nil {
		if errors.Is(err, runner.ErrAuthentication) {
			return fmt.Errorf("scan aborted: %w", err)
		}
		return fmt.Errorf("scan failed: %w", err)
	}

	fmt.Fprintf(out, "Scan completed in %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

// navigateOptions maps settings onto the page navigation step.
func navigateOptions(settings *config.Settings) []pipeline.NavigateStepOption {
	if settings.WaitNetworkIdle {
		return []pipeline.NavigateStepOption{pipeline.WithWaitUntil(browser.WaitNetworkIdle)}
	}
	return nil
}

// newStore creates the scan store client from settings.
func newStore(settings *config.Settings, logger *slog.Logger) *store.APIClient {
	return store.NewAPIClient(settings.APIBaseURL,
		store.WithToken(settings.APIToken),
		store.WithTimeout(settings.APITimeout),
		store.WithLogger(logger),
	)
}

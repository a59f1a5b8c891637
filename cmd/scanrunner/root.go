package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for scanrunner.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scanrunner",
		Short: "Accessibility scan runner for web applications",
		Long: `scanrunner audits web pages for accessibility issues.

It either crawls a site from a start URL or scans a fixed list of URLs,
runs axe-core in a headless Chrome on every page, and writes a JSON report.
When upload is enabled the scan, its pages and their issues are also
recorded in the remote scan store.

Every run is also kept in a local history database so two runs can be
compared with 'scanrunner compare'.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

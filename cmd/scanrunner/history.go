package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/avikharat/cloudScanRunner/internal/config"
	"github.com/avikharat/cloudScanRunner/internal/database"
	"github.com/avikharat/cloudScanRunner/internal/model"
	"github.com/avikharat/cloudScanRunner/internal/report"
	"github.com/avikharat/cloudScanRunner/internal/store"
	"github.com/spf13/cobra"
)

// defaultHistoryLimit is the number of runs listed when -n is not given.
const defaultHistoryLimit = 20

// noIssuesMessage is shown in place of impact counts for a clean run.
const noIssuesMessage = "No issues"

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show previous scan runs",
		Long: `History lists the scan runs recorded in the local history database.

Each finished run is recorded by 'scanrunner scan' unless --no-history
was given. Use --id to print the summary of one run again, or --remote to
fetch a scan as the scan store has it.

Examples:
  # List the 20 most recent runs
  scanrunner history

  # List every run
  scanrunner history -n 0

  # Show the summary of run 3
  scanrunner history --id 3

  # Show run 3 as Markdown
  scanrunner history --id 3 --markdown

  # Fetch scan 42 and its summary from the scan store
  scanrunner history --remote 42 --user-id u-1`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Number of runs to list (0 lists every run)")
	cmd.Flags().Int64P("id", "i", 0,
		"Show the report summary of the run with this history ID")
	cmd.Flags().BoolP("markdown", "m", false,
		"Print the run selected with --id as Markdown")
	addHistoryFlags(cmd)

	cmd.Flags().StringP("remote", "r", "",
		"Fetch the scan with this ID from the scan store")
	cmd.Flags().StringP("user-id", "u", "",
		"User ID sent with --remote requests")
	cmd.Flags().String("api-url", config.DefaultAPIBaseURL,
		"Scan store base URL (env: SCANRUNNER_API_URL or API_BASE_URL)")
	cmd.Flags().String("api-token", "",
		"Bearer token for the scan store (env: SCANRUNNER_API_TOKEN)")
	cmd.Flags().Duration("api-timeout", config.DefaultAPITimeout,
		"Timeout for each scan store request")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	remoteID, err := cmd.Flags().GetString("remote")
	if err != nil {
		return err
	}
	if remoteID != "" {
		return showRemoteScan(cmd, model.StringID(remoteID))
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	runID, err := cmd.Flags().GetInt64("id")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if markdownOutput && runID == 0 {
		return errors.New("--markdown requires --id")
	}

	dbDir, err := historyDir(cmd)
	if err != nil {
		return err
	}
	db, err := openHistory(dbDir)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if runID > 0 {
		return showRun(ctx, out, db, runID, markdownOutput)
	}
	return listRuns(ctx, out, db, limit)
}

// openHistory opens an existing history database.
func openHistory(dbDir string) (*database.HistoryDB, error) {
	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database (run 'scanrunner scan' first): %w", err)
	}
	return db, nil
}

// listRuns prints the most recent runs.
func listRuns(ctx context.Context, out io.Writer, db *database.HistoryDB, limit int) error {
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found in the history database.")
		fmt.Fprintln(out, "\nUse 'scanrunner scan' to run a scan.")
		return nil
	}

	fmt.Fprintf(out, "Run history (%d runs):\n\n", len(runs))
	fmt.Fprintf(out, "  %-6s  %-20s  %-10s  %-6s  %-6s  %s\n", "ID", "Date", "Status", "Pages", "Issues", "Impact")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 72))

	for _, run := range runs {
		fmt.Fprintf(out, "  %-6d  %-20s  %-10s  %-6d  %-6d  %s\n",
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Status,
			run.Pages,
			run.Issues,
			formatCounts(run.Counts),
		)
	}

	fmt.Fprintln(out, "\nUse 'scanrunner history --id <id>' to show a run.")
	fmt.Fprintln(out, "Use 'scanrunner compare' to compare the latest two runs.")

	return nil
}

// showRun prints the stored report of one run.
func showRun(ctx context.Context, out io.Writer, db *database.HistoryDB, id int64, markdownOutput bool) error {
	rep, err := db.GetRunReport(ctx, id)
	if err != nil {
		return err
	}

	var w report.Writer = report.NewSimpleWriter(out)
	if markdownOutput {
		w = report.NewMarkdownWriter(out)
	}
	_, err = w.Write(rep)
	return err
}

// formatCounts formats impact counts as "H:1 M:2 L:3".
func formatCounts(counts model.ImpactCounts) string {
	var parts []string
	if counts.High > 0 {
		parts = append(parts, fmt.Sprintf("H:%d", counts.High))
	}
	if counts.Medium > 0 {
		parts = append(parts, fmt.Sprintf("M:%d", counts.Medium))
	}
	if counts.Low > 0 {
		parts = append(parts, fmt.Sprintf("L:%d", counts.Low))
	}

	if len(parts) == 0 {
		return noIssuesMessage
	}
	return strings.Join(parts, " ")
}

// showRemoteScan prints a scan and its summary as the scan store returns them.
func showRemoteScan(cmd *cobra.Command, scanID model.RemoteID) error {
	if scanID.IsLocal() {
		return fmt.Errorf("%s is a local-only run and was never uploaded", scanID)
	}

	userID, err := cmd.Flags().GetString("user-id")
	if err != nil {
		return err
	}

	v, err := newViper(cmd)
	if err != nil {
		return err
	}
	client := store.NewAPIClient(v.GetString("api-url"),
		store.WithToken(v.GetString("api-token")),
		store.WithTimeout(v.GetDuration("api-timeout")),
	)

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	scan, err := client.GetScan(ctx, scanID, userID)
	if err != nil {
		return fmt.Errorf("failed to fetch scan %s: %w", scanID, err)
	}
	if err := printJSON(out, "Scan", scan); err != nil {
		return err
	}

	summary, err := client.GetScanSummary(ctx, scanID, userID)
	if err != nil {
		return fmt.Errorf("failed to fetch summary of scan %s: %w", scanID, err)
	}
	return printJSON(out, "Summary", summary)
}

// printJSON writes a titled, indented copy of raw.
func printJSON(out io.Writer, title string, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("invalid JSON from scan store: %w", err)
	}
	fmt.Fprintf(out, "%s:\n%s\n", title, buf.String())
	return nil
}

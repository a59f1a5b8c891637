package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/avikharat/cloudScanRunner/internal/database"
	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"
)

// NewCompareCmd creates the compare command.
// It compares two runs stored in the history database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [old-id new-id]",
		Short: "Compare two scan runs",
		Long: `Compare displays differences between two runs recorded in the history database.

Issues are matched by page URL, rule and element selector. The output shows:
- New issues that appeared in the newer run
- Resolved issues that are no longer present
- Changes in the number of high, medium and low impact issues

Without arguments the latest two runs are compared. Use 'scanrunner history'
to see run IDs.

Examples:
  # Compare the latest two runs
  scanrunner compare

  # Compare run 3 with run 7
  scanrunner compare 3 7

  # Output comparison in JSON format
  scanrunner compare --json

  # Output comparison in Markdown format
  scanrunner compare --markdown 3 7`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("expected no arguments or two run IDs, got %d arguments", len(args))
			}
			return nil
		},
		RunE: runCompareCmd,
	}

	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")
	addHistoryFlags(cmd)

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return errors.New("--json and --markdown are mutually exclusive")
	}

	// Parse IDs before opening the database.
	var previousID, currentID int64
	if len(args) == 2 {
		if previousID, err = parseRunID(args[0]); err != nil {
			return err
		}
		if currentID, err = parseRunID(args[1]); err != nil {
			return err
		}
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
	if len(args) == 0 {
		previousID, currentID, err = latestTwoRuns(ctx, db)
		if err != nil {
			return err
		}
	}

	comparison, err := db.CompareRuns(ctx, previousID, currentID)
	if err != nil {
		return fmt.Errorf("failed to compare runs: %w", err)
	}

	out := cmd.OutOrStdout()
	switch {
	case jsonOutput:
		return outputComparisonJSON(out, comparison)
	case markdownOutput:
		return outputComparisonMarkdown(out, comparison)
	default:
		return outputComparisonText(out, comparison)
	}
}

func parseRunID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid run ID %q: must be a positive integer", s)
	}
	return id, nil
}

// latestTwoRuns returns the IDs of the second newest and the newest run.
func latestTwoRuns(ctx context.Context, db *database.HistoryDB) (int64, int64, error) {
	runs, err := db.ListRuns(ctx, 2)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) < 2 {
		return 0, 0, fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
	}
	return runs[1].ID, runs[0].ID, nil
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(out io.Writer, result *database.Comparison) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *database.Comparison) error {
	fmt.Fprintf(out, "Run Comparison: #%d -> #%d\n", result.Previous.ID, result.Current.ID)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nStatus: %s\n", formatDirection(result.Direction))

	fmt.Fprintf(out, "\nPrevious run: %s  (%s)\n", result.Previous.StartedAt.Local().Format("2006-01-02 15:04:05"), result.Previous.ScanID)
	fmt.Fprintf(out, "Current run:  %s  (%s)\n", result.Current.StartedAt.Local().Format("2006-01-02 15:04:05"), result.Current.ScanID)

	fmt.Fprintln(out, "\nIssues Summary:")
	fmt.Fprintf(out, "  %-10s  %-10s  %-10s  %-10s\n", "Impact", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 45))
	for _, row := range summaryRows(result) {
		fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", row.label, row.previous, row.current, formatDelta(row.delta))
	}

	if len(result.New) > 0 {
		fmt.Fprintf(out, "\nNew Issues (%d):\n", len(result.New))
		for _, pi := range result.New {
			fmt.Fprintf(out, "  + [%s] %s on %s\n", pi.Issue.Impact, pi.Issue.IssueCode, pi.PageURL)
			if sel := selectorOf(pi); sel != "" {
				fmt.Fprintf(out, "      Selector: %s\n", sel)
			}
		}
	}

	if len(result.Resolved) > 0 {
		fmt.Fprintf(out, "\nResolved Issues (%d):\n", len(result.Resolved))
		for _, pi := range result.Resolved {
			fmt.Fprintf(out, "  - [%s] %s on %s\n", pi.Issue.Impact, pi.Issue.IssueCode, pi.PageURL)
		}
	}

	if len(result.New) == 0 && len(result.Resolved) == 0 {
		fmt.Fprintln(out, "\nNo changes in issues.")
	}

	fmt.Fprintf(out, "\nUnchanged issues: %d\n", result.Unchanged)
	return nil
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, result *database.Comparison) error {
	md := markdown.NewMarkdown(out)

	md.H1(fmt.Sprintf("Run Comparison: #%d → #%d", result.Previous.ID, result.Current.ID))
	md.PlainText("")
	md.H2("Summary")
	md.PlainText("")
	md.PlainTextf("**Status:** %s", formatDirection(result.Direction))
	md.PlainText("")

	rows := [][]string{{
		"Date",
		result.Previous.StartedAt.Local().Format("2006-01-02 15:04"),
		result.Current.StartedAt.Local().Format("2006-01-02 15:04"),
		"-",
	}}
	for _, row := range summaryRows(result) {
		rows = append(rows, []string{row.label, strconv.Itoa(row.previous), strconv.Itoa(row.current), formatDelta(row.delta)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(result.New) > 0 {
		md.H2(fmt.Sprintf("New Issues (%d)", len(result.New)))
		md.PlainText("")
		md.Table(issueTable(result.New))
		md.PlainText("")
	}

	if len(result.Resolved) > 0 {
		md.H2(fmt.Sprintf("Resolved Issues (%d)", len(result.Resolved)))
		md.PlainText("")
		md.Table(issueTable(result.Resolved))
		md.PlainText("")
	}

	if result.Unchanged > 0 {
		md.HorizontalRule()
		md.PlainTextf("*%d issues unchanged*", result.Unchanged)
	}

	return md.Build()
}

type summaryRow struct {
	label             string
	previous, current int
	delta             int
}

func summaryRows(result *database.Comparison) []summaryRow {
	prev, cur := result.Previous.Counts, result.Current.Counts
	return []summaryRow{
		{"High", prev.High, cur.High, result.HighDelta},
		{"Medium", prev.Medium, cur.Medium, result.MediumDelta},
		{"Low", prev.Low, cur.Low, result.LowDelta},
		{"Total", result.Previous.Issues, result.Current.Issues, result.Current.Issues - result.Previous.Issues},
	}
}

func issueTable(issues []database.PageIssue) markdown.TableSet {
	rows := make([][]string, 0, len(issues))
	for _, pi := range issues {
		rows = append(rows, []string{
			pi.Issue.Impact.String(),
			"`" + pi.Issue.IssueCode + "`",
			pi.PageURL,
			orDash(selectorOf(pi)),
		})
	}
	return markdown.TableSet{
		Header: []string{"Impact", "Rule", "Page", "Selector"},
		Rows:   rows,
	}
}

func selectorOf(pi database.PageIssue) string {
	if pi.Issue.Selector == nil {
		return ""
	}
	return *pi.Issue.Selector
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatDelta formats a delta value with +/- prefix.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	} else if delta < 0 {
		return strconv.Itoa(delta)
	}
	return "0"
}

// formatDirection formats the direction for display.
func formatDirection(direction string) string {
	switch direction {
	case database.DirectionImproved:
		return "IMPROVED (fewer or less severe issues)"
	case database.DirectionWorsened:
		return "WORSENED (more or more severe issues)"
	default:
		return "UNCHANGED"
	}
}

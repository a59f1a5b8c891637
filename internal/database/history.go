package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/avikharat/cloudScanRunner/internal/model"
)

// FileName is the database file created inside the history directory.
const FileName = "scanrunner.db"

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// HistoryDB provides SQLite-based storage for finished runs.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc creates it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- One row per finished run
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_uuid TEXT NOT NULL UNIQUE,
		scan_id TEXT NOT NULL,
		scan_id_numeric INTEGER NOT NULL DEFAULT 0,
		project_id TEXT,
		user_id TEXT,
		mode TEXT,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		pages_scanned INTEGER NOT NULL DEFAULT 0,
		total_issues INTEGER NOT NULL DEFAULT 0,
		high_issues INTEGER NOT NULL DEFAULT 0,
		medium_issues INTEGER NOT NULL DEFAULT 0,
		low_issues INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_scan ON runs(scan_id);
	CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project_id);

	-- Pages scanned in a run
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		scan_url_id TEXT,
		title TEXT,
		status_code INTEGER,
		load_time_ms INTEGER,
		issues_count INTEGER NOT NULL DEFAULT 0,
		screenshot_url TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);

	-- Issues keyed by page so runs can be compared
	CREATE TABLE IF NOT EXISTS issues (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		page_url TEXT NOT NULL,
		issue_code TEXT NOT NULL,
		impact TEXT NOT NULL,
		selector TEXT,
		issue_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_issues_run ON issues(run_id);
	CREATE INDEX IF NOT EXISTS idx_issues_code ON issues(issue_code);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunRecord is the stored summary of one run.
type RunRecord struct {
	// ID is the local history identifier.
	ID int64 `json:"id"`

	// RunUUID identifies the run independently of this database file.
	RunUUID string `json:"run_uuid"`

	// ScanID is the remote scan id, or a local-... id for local-only runs.
	ScanID model.RemoteID `json:"scan_id"`

	ProjectID  string             `json:"project_id,omitempty"`
	UserID     string             `json:"user_id,omitempty"`
	Mode       string             `json:"mode"`
	Status     string             `json:"status"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Pages      int                `json:"pages_scanned"`
	Issues     int                `json:"total_issues"`
	Counts     model.ImpactCounts `json:"counts"`
}

// PageIssue is an issue together with the page it was found on.
type PageIssue struct {
	PageURL string      `json:"page_url"`
	Issue   model.Issue `json:"issue"`
}

// Key identifies the issue across runs.
func (p PageIssue) Key() string {
	return model.IssueKey(p.PageURL, p.Issue)
}

// SaveRun stores a finished run with its pages, issues and report.
// Totals in run are taken from report. A missing RunUUID is generated.
// It returns the new history ID.
func (hdb *HistoryDB) SaveRun(ctx context.Context, run *RunRecord, pages []*model.PageScanResult, report *model.Report) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	if run.RunUUID == "" {
		run.RunUUID = uuid.NewString()
	}
	summary := report.Body.ScanSummary
	run.Pages = summary.TotalPagesScanned
	run.Issues = summary.TotalIssuesFound
	run.Counts = summary.Counts()

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO runs (run_uuid, scan_id, scan_id_numeric, project_id, user_id, mode, status, started_at, finished_at,
		pages_scanned, total_issues, high_issues, medium_issues, low_issues, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.RunUUID,
		run.ScanID.String(),
		run.ScanID.IsNumeric(),
		run.ProjectID,
		run.UserID,
		run.Mode,
		run.Status,
		formatTimestamp(run.StartedAt),
		formatTimestamp(run.FinishedAt),
		run.Pages,
		run.Issues,
		run.Counts.High,
		run.Counts.Medium,
		run.Counts.Low,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	for _, page := range pages {
		if err := insertPage(ctx, tx, id, page); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}

	run.ID = id
	return id, nil
}

func insertPage(ctx context.Context, tx *sql.Tx, runID int64, page *model.PageScanResult) error {
	var screenshot sql.NullString
	if page.EvidenceURL != "" {
		screenshot = sql.NullString{String: page.EvidenceURL, Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
	INSERT INTO pages (run_id, url, scan_url_id, title, status_code, load_time_ms, issues_count, screenshot_url)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		page.URL,
		page.RemoteID.String(),
		page.Title,
		page.StatusCode,
		page.LoadTimeMillis(),
		len(page.Issues),
		screenshot,
	)
	if err != nil {
		return fmt.Errorf("failed to save page %s: %w", page.URL, err)
	}

	for _, issue := range page.Issues {
		issueJSON, err := json.Marshal(issue)
		if err != nil {
			return fmt.Errorf("failed to serialize issue: %w", err)
		}

		var selector sql.NullString
		if issue.Selector != nil {
			selector = sql.NullString{String: *issue.Selector, Valid: true}
		}

		_, err = tx.ExecContext(ctx, `
		INSERT INTO issues (run_id, page_url, issue_code, impact, selector, issue_json)
		VALUES (?, ?, ?, ?, ?, ?)
		`,
			runID,
			page.URL,
			issue.IssueCode,
			issue.Impact.String(),
			selector,
			string(issueJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to save issue %s: %w", issue.IssueCode, err)
		}
	}

	return nil
}

const runColumns = `id, run_uuid, scan_id, scan_id_numeric, project_id, user_id, mode, status, started_at, finished_at,
	pages_scanned, total_issues, high_issues, medium_issues, low_issues`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var (
		run                 RunRecord
		scanID              string
		numericID           bool
		projectID, userID   sql.NullString
		mode                sql.NullString
		startedAt, finished string
	)

	err := row.Scan(
		&run.ID,
		&run.RunUUID,
		&scanID,
		&numericID,
		&projectID,
		&userID,
		&mode,
		&run.Status,
		&startedAt,
		&finished,
		&run.Pages,
		&run.Issues,
		&run.Counts.High,
		&run.Counts.Medium,
		&run.Counts.Low,
	)
	if err != nil {
		return nil, err
	}

	run.ScanID = model.StringID(scanID)
	if numericID {
		run.ScanID = model.NumericID(scanID)
	}
	run.ProjectID = projectID.String
	run.UserID = userID.String
	run.Mode = mode.String
	run.StartedAt = parseTimestamp(startedAt)
	run.FinishedAt = parseTimestamp(finished)
	return &run, nil
}

// ListRuns returns the most recent runs, newest first.
// A limit of zero or less returns every run.
func (hdb *HistoryDB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// GetRun retrieves one run by its history ID.
func (hdb *HistoryDB) GetRun(ctx context.Context, id int64) (*RunRecord, error) {
	row := hdb.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// GetRunReport retrieves the report stored with a run.
func (hdb *HistoryDB) GetRunReport(ctx context.Context, id int64) (*model.Report, error) {
	var reportJSON string
	err := hdb.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report model.Report
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// GetRunIssues returns every issue of a run with its page URL, in insertion order.
func (hdb *HistoryDB) GetRunIssues(ctx context.Context, id int64) ([]PageIssue, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT page_url, issue_json FROM issues
	WHERE run_id = ?
	ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get issues: %w", err)
	}
	defer rows.Close()

	var issues []PageIssue
	for rows.Next() {
		var (
			pi        PageIssue
			issueJSON string
		)
		if err := rows.Scan(&pi.PageURL, &issueJSON); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		if err := json.Unmarshal([]byte(issueJSON), &pi.Issue); err != nil {
			continue // Skip malformed issues
		}
		issues = append(issues, pi)
	}

	return issues, rows.Err()
}

// formatTimestamp stores times as UTC RFC3339 with nanoseconds.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats that SQLite may return.
var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

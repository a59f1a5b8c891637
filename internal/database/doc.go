// Package database provides SQLite-based run history for scanrunner.
//
// HistoryDB keeps one row per finished run together with its pages, its
// issues, and the full JSON report, so runs can be listed and compared
// later without the remote scan store. The database is a single file under
// the XDG data directory and uses the CGO-free modernc.org/sqlite driver.
package database

// Package runner drives a whole scan run.
//
// A Runner resolves the target URLs (crawl or manual list), scans them one
// at a time through the page pipeline, and keeps the remote scan's status in
// step with the run. Remote persistence is best-effort: when the scan store
// cannot be reached the run continues local-only. The JSON report is always
// written at the end of a run, including runs aborted by a failed login.
package runner

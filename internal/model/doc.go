// Package model defines the data structures shared by the scan runner.
//
// This package contains the following main types:
//   - Issue: one accessibility violation on one element, as reported
//   - Impact: the high/medium/low bucket an issue is counted in
//   - PageScanResult: the outcome of scanning a single URL
//   - Report: the persisted run report and its scan summary
//
// The types serialize to the JSON shape consumed by the remote scan store
// and written to the local report file.
package model

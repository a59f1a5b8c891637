// Package report renders a finished run.
//
// This package contains writers for different output formats:
//   - JSONWriter: the persisted run report, also read back by compare
//   - MarkdownWriter: a shareable summary with an impact pie chart
//   - SimpleWriter: the console summary printed when a run ends
//
// WriteFile renders any of them into a file readable by the owner only.
package report

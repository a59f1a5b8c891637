// Package pipeline scans a single page through a fixed sequence of steps.
//
// Each URL gets its own browser page and PageState. The steps run in order:
// navigate, analyze, evidence, register, issues. Navigation and analysis
// failures abort the page; evidence and remote persistence failures only
// degrade the result. Scanner owns the page and closes it on every path.
package pipeline

// Package main provides the entry point for the scanrunner CLI.
//
// scanrunner drives a headless browser over a set of web pages, runs an
// accessibility audit on each one, and records the results locally and in a
// remote scan store.
//
// Usage:
//
//	scanrunner scan -c scanrunner.yaml
//	scanrunner history
//	scanrunner compare
//
// See --help for all available options.
package main

func main() {
	Execute()
}

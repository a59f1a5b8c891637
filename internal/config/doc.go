// Package config provides configuration structures for the scan runner.
//
// Two layers are kept apart. Settings holds process-level options that come
// from CLI flags and the environment (API endpoint, output paths, browser
// options). Run holds one scan's inputs as read from a YAML or JSON file and
// is validated into a fixed shape before any scanning starts.
package config

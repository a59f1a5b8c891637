package config

import "errors"

// Run configuration validation errors.
// Run.Validate returns the first rule that fails, so callers can use errors.Is.
var (
	// ErrNoMode is returned when scan_config.mode is missing or unknown.
	ErrNoMode = errors.New("invalid scan mode: must be \"crawler\" or \"manual\"")

	// ErrNoStartURL is returned when crawler mode has no start_url.
	ErrNoStartURL = errors.New("crawler mode requires start_url")

	// ErrInvalidStartURL is returned when start_url is not an absolute http(s) URL.
	ErrInvalidStartURL = errors.New("invalid start_url: must be an absolute http or https URL")

	// ErrNoURLs is returned when manual mode has an empty urls list.
	ErrNoURLs = errors.New("manual mode requires at least one entry in urls")

	// ErrInvalidURL is returned when an entry of urls is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid entry in urls: must be an absolute http or https URL")

	// ErrInvalidMaxURLs is returned when max_urls is below one.
	ErrInvalidMaxURLs = errors.New("invalid max_urls: must be at least 1")

	// ErrInvalidScanDepth is returned when scan_depth is below one.
	ErrInvalidScanDepth = errors.New("invalid scan_depth: must be at least 1")

	// ErrInvalidViewport is returned when viewport is not WIDTHxHEIGHT.
	ErrInvalidViewport = errors.New("invalid viewport: must be WIDTHxHEIGHT with positive integers")

	// ErrInvalidTimeout is returned when timeout_ms is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout_ms: must be positive")

	// ErrInvalidStandard is returned for an accessibility_standard other than wcag2a or wcag2aa.
	ErrInvalidStandard = errors.New("invalid accessibility_standard: must be \"wcag2a\" or \"wcag2aa\"")

	// ErrNoProjectID is returned when uploads are enabled without a project_id.
	ErrNoProjectID = errors.New("project_id is required when upload_to_api is enabled")

	// ErrNoUserID is returned when uploads are enabled without a user_id.
	ErrNoUserID = errors.New("user_id is required when upload_to_api is enabled")

	// ErrInvalidAuthType is returned when enabled authentication has an unknown type.
	ErrInvalidAuthType = errors.New("invalid authentication type: must be \"form\" or \"basic\"")

	// ErrIncompleteAuth is returned when enabled authentication lacks a required field.
	ErrIncompleteAuth = errors.New("incomplete authentication configuration")
)

// Settings validation errors.
var (
	// ErrNoAPIURL is returned when uploads may happen but no API base URL is set.
	ErrNoAPIURL = errors.New("api url must not be empty")

	// ErrNoReportPath is returned when the report output path is empty.
	ErrNoReportPath = errors.New("report output path must not be empty")

	// ErrInvalidRequestTimeout is returned when the per-request API timeout is not positive.
	ErrInvalidRequestTimeout = errors.New("invalid api timeout: must be positive")
)

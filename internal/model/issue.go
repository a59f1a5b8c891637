package model

import (
	"encoding/json"
	"strings"
)

// DefaultFailureSummary is reported when the engine gives no summary for a node.
const DefaultFailureSummary = "No failure summary available"

// Issue is a normalized, per-element accessibility finding.
type Issue struct {
	IssueCode      string  `json:"issue_code"`
	Description    string  `json:"description"`
	Impact         Impact  `json:"impact"`
	WCAGGuideline  string  `json:"wcag_guideline"`
	Selector       *string `json:"selector"`
	HTMLSnippet    string  `json:"html_snippet"`
	Recommendation string  `json:"recommendation"`
	Tags           TagList `json:"tags"`
	HelpURL        *string `json:"help_url"`

	// ScreenshotRegion is the element's rectangle in document coordinates,
	// nil when no evidence was captured or the element could not be located.
	ScreenshotRegion *Region     `json:"screenshot_region"`
	ElementData      ElementData `json:"element_data"`
}

// Region is a rectangle in document pixel coordinates.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ElementData locates a node within its violation.
// OccurrenceIndex is 1-based and never exceeds TotalOccurrences.
type ElementData struct {
	Ancestry         *string `json:"ancestry"`
	FailureSummary   string  `json:"failureSummary"`
	Impact           string  `json:"impact"`
	OccurrenceIndex  int     `json:"occurrence_index"`
	TotalOccurrences int     `json:"total_occurrences"`
	XPath            *string `json:"xpath"`
}

// TagList is an ordered tag sequence that travels as a comma-joined string.
type TagList []string

// MarshalJSON encodes the list as "a,b,c".
func (t TagList) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.Join(t, ","))
}

// UnmarshalJSON accepts either the comma-joined string or a JSON array.
func (t *TagList) UnmarshalJSON(data []byte) error {
	var joined string
	if err := json.Unmarshal(data, &joined); err == nil {
		if joined == "" {
			*t = TagList{}
			return nil
		}
		*t = strings.Split(joined, ",")
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*t = list
	return nil
}

// IssueKey identifies the same finding across two runs.
func IssueKey(pageURL string, issue Issue) string {
	selector := ""
	if issue.Selector != nil {
		selector = *issue.Selector
	}
	return pageURL + "|" + issue.IssueCode + "|" + selector
}

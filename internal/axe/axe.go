package axe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/avikharat/cloudScanRunner/internal/browser"
	"github.com/avikharat/cloudScanRunner/internal/model"
)

var (
	// ErrInject is returned when the engine script could not be loaded into the page.
	ErrInject = errors.New("failed to inject axe-core")

	// ErrRun is returned when the engine could not be invoked or its result decoded.
	ErrRun = errors.New("failed to run axe-core")

	// ErrEmptySource is returned when the engine script is empty.
	ErrEmptySource = errors.New("axe-core source is empty")
)

// TagsFor returns the rule tags to run for a conformance standard.
// Level AA includes all level A rules.
func TagsFor(standard string) []string {
	if standard == "wcag2aa" {
		return []string{model.TagWCAG2A, model.TagWCAG2AA}
	}
	return []string{model.TagWCAG2A}
}

// Engine analyzes a loaded page.
type Engine interface {
	Analyze(ctx context.Context, page browser.Page, tags []string) (*Results, error)
}

// Results is the subset of an axe run the scanner consumes.
type Results struct {
	Violations []Violation `json:"violations"`
	TestEngine TestEngine  `json:"testEngine"`
}

// TestEngine identifies the axe-core build that produced the results.
type TestEngine struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Violation is one failed rule with the nodes that fail it.
type Violation struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Help        string   `json:"help"`
	HelpURL     string   `json:"helpUrl"`
	Impact      string   `json:"impact"`
	Tags        []string `json:"tags"`
	Nodes       []Node   `json:"nodes"`
}

// Node is one element failing a rule.
type Node struct {
	Target         []Selector `json:"target"`
	HTML           string     `json:"html"`
	FailureSummary string     `json:"failureSummary"`
}

// Primary returns the node's first selector and whether it has one.
// For targets inside frames or shadow roots this is the outermost selector.
func (n Node) Primary() (string, bool) {
	if len(n.Target) == 0 || len(n.Target[0]) == 0 {
		return "", false
	}
	return n.Target[0][0], true
}

// Selector is one target entry: a CSS selector, or a selector chain that
// crosses frame or shadow boundaries.
type Selector []string

// UnmarshalJSON accepts a string or an array of strings.
func (s *Selector) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = Selector{single}
		return nil
	}
	var chain []string
	if err := json.Unmarshal(data, &chain); err != nil {
		return fmt.Errorf("invalid axe target: %w", err)
	}
	*s = chain
	return nil
}

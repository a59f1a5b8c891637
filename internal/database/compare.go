package database

import (
	"context"
	"fmt"
	"sort"

	"github.com/avikharat/cloudScanRunner/internal/model"
)

// Directions reported by Comparison.
const (
	DirectionImproved  = "improved"
	DirectionWorsened  = "worsened"
	DirectionUnchanged = "unchanged"
)

// Comparison is the difference between two runs.
type Comparison struct {
	Previous RunRecord `json:"previous_run"`
	Current  RunRecord `json:"current_run"`

	// New holds issues present only in the current run.
	New []PageIssue `json:"new_issues"`

	// Resolved holds issues present only in the previous run.
	Resolved []PageIssue `json:"resolved_issues"`

	// Unchanged is the number of issue keys present in both runs.
	Unchanged int `json:"unchanged_count"`

	HighDelta   int    `json:"high_delta"`
	MediumDelta int    `json:"medium_delta"`
	LowDelta    int    `json:"low_delta"`
	Direction   string `json:"direction"`
}

// CompareRuns loads two runs and compares them.
func (hdb *HistoryDB) CompareRuns(ctx context.Context, previousID, currentID int64) (*Comparison, error) {
	previous, err := hdb.GetRun(ctx, previousID)
	if err != nil {
		return nil, err
	}
	current, err := hdb.GetRun(ctx, currentID)
	if err != nil {
		return nil, err
	}

	previousIssues, err := hdb.GetRunIssues(ctx, previousID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %d issues: %w", previousID, err)
	}
	currentIssues, err := hdb.GetRunIssues(ctx, currentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %d issues: %w", currentID, err)
	}

	return Compare(previous, current, previousIssues, currentIssues), nil
}

// Compare matches issues by page URL, issue code and selector.
// Issues sharing a key collapse to one entry. New and Resolved are sorted by key.
func Compare(previous, current *RunRecord, previousIssues, currentIssues []PageIssue) *Comparison {
	result := &Comparison{
		Previous:    *previous,
		Current:     *current,
		New:         []PageIssue{},
		Resolved:    []PageIssue{},
		HighDelta:   current.Counts.High - previous.Counts.High,
		MediumDelta: current.Counts.Medium - previous.Counts.Medium,
		LowDelta:    current.Counts.Low - previous.Counts.Low,
	}

	before := indexIssues(previousIssues)
	after := indexIssues(currentIssues)

	for key, issue := range after {
		if _, ok := before[key]; !ok {
			result.New = append(result.New, issue)
		}
	}
	for key, issue := range before {
		if _, ok := after[key]; ok {
			result.Unchanged++
		} else {
			result.Resolved = append(result.Resolved, issue)
		}
	}

	sortIssues(result.New)
	sortIssues(result.Resolved)

	result.Direction = direction(previous.Counts, current.Counts)
	return result
}

func indexIssues(issues []PageIssue) map[string]PageIssue {
	m := make(map[string]PageIssue, len(issues))
	for _, issue := range issues {
		key := issue.Key()
		if _, ok := m[key]; !ok {
			m[key] = issue
		}
	}
	return m
}

func sortIssues(issues []PageIssue) {
	sort.Slice(issues, func(i, j int) bool {
		return issues[i].Key() < issues[j].Key()
	})
}

// direction weighs high impact issues heavier than medium and low ones.
func direction(previous, current model.ImpactCounts) string {
	score := func(c model.ImpactCounts) int {
		return c.High*50 + c.Medium*10 + c.Low*5
	}

	switch before, after := score(previous), score(current); {
	case after < before:
		return DirectionImproved
	case after > before:
		return DirectionWorsened
	default:
		return DirectionUnchanged
	}
}

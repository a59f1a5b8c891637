// Package normalize turns raw engine violations into report issues.
package normalize

import (
	"context"
	"log/slog"
	"math"
	"slices"

	"github.com/avikharat/cloudScanRunner/internal/axe"
	"github.com/avikharat/cloudScanRunner/internal/browser"
	"github.com/avikharat/cloudScanRunner/internal/model"
)

// rectFunc returns the element's bounding box in document coordinates,
// or null when the selector matches nothing.
const rectFunc = `(selector) => {
	const el = document.querySelector(selector);
	if (!el) {
		return null;
	}
	const r = el.getBoundingClientRect();
	const top = window.pageYOffset || document.documentElement.scrollTop;
	const left = window.pageXOffset || document.documentElement.scrollLeft;
	return { x: r.left + left, y: r.top + top, width: r.width, height: r.height };
}`

type rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Normalizer) {
		n.logger = logger
	}
}

// Normalizer maps violations to issues.
type Normalizer struct {
	logger *slog.Logger
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	return n
}

// Normalize emits one issue per violating node, in engine order.
// When withRegions is set each issue's screenshot region is looked up on
// page; lookups that fail leave the region nil.
func (n *Normalizer) Normalize(ctx context.Context, violations []axe.Violation, page browser.Page, withRegions bool) []model.Issue {
	issues := make([]model.Issue, 0, countNodes(violations))

	for _, v := range violations {
		impact := model.ImpactFromEngine(v.Impact)
		guideline := model.GuidelineFromTags(v.Tags)
		helpURL := optional(v.HelpURL)
		tags := model.TagList(slices.Clone(v.Tags))
		if tags == nil {
			tags = model.TagList{}
		}

		for i, node := range v.Nodes {
			issue := model.Issue{
				IssueCode:      v.ID,
				Description:    v.Description,
				Impact:         impact,
				WCAGGuideline:  guideline,
				HTMLSnippet:    node.HTML,
				Recommendation: v.Help,
				Tags:           tags,
				HelpURL:        helpURL,
				ElementData: model.ElementData{
					FailureSummary:   node.FailureSummary,
					Impact:           v.Impact,
					OccurrenceIndex:  i + 1,
					TotalOccurrences: len(v.Nodes),
				},
			}
			if issue.ElementData.FailureSummary == "" {
				issue.ElementData.FailureSummary = model.DefaultFailureSummary
			}

			if selector, ok := node.Primary(); ok {
				issue.Selector = &selector
				if withRegions && page != nil {
					issue.ScreenshotRegion = n.region(ctx, page, selector)
				}
			}
			issues = append(issues, issue)
		}
	}
	return issues
}

func (n *Normalizer) region(ctx context.Context, page browser.Page, selector string) *model.Region {
	expr, err := browser.Call(rectFunc, selector)
	if err != nil {
		return nil
	}
	var r *rect
	if err := page.Evaluate(ctx, expr, &r); err != nil {
		n.logger.Debug("could not locate element", "selector", selector, "error", err)
		return nil
	}
	if r == nil || r.Width <= 0 || r.Height <= 0 {
		return nil
	}
	return &model.Region{
		X:      int(math.Round(r.X)),
		Y:      int(math.Round(r.Y)),
		Width:  int(math.Round(r.Width)),
		Height: int(math.Round(r.Height)),
	}
}

func countNodes(violations []axe.Violation) int {
	total := 0
	for _, v := range violations {
		total += len(v.Nodes)
	}
	return total
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

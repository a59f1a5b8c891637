package model

import (
	"fmt"
	"slices"
	"strings"
)

// Impact is the severity bucket an issue is reported and counted in.
type Impact int

const (
	// ImpactLow covers minor violations and anything the engine could not rate.
	ImpactLow Impact = iota

	// ImpactMedium covers moderate violations.
	ImpactMedium

	// ImpactHigh covers critical and serious violations.
	ImpactHigh
)

// Ruleset tags understood by the analysis engine.
const (
	TagWCAG2A  = "wcag2a"
	TagWCAG2AA = "wcag2aa"
)

// Guideline values derived from a violation's tags.
const (
	GuidelineAA      = "2.aa"
	GuidelineA       = "2.a"
	GuidelineUnknown = "unknown"
)

// String returns the wire form of the impact.
func (i Impact) String() string {
	switch i {
	case ImpactHigh:
		return "high"
	case ImpactMedium:
		return "medium"
	default:
		return "low"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (i Impact) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Impact) UnmarshalText(text []byte) error {
	parsed, err := ParseImpact(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// ParseImpact parses the wire form produced by Impact.String.
func ParseImpact(s string) (Impact, error) {
	switch strings.ToLower(s) {
	case "high":
		return ImpactHigh, nil
	case "medium":
		return ImpactMedium, nil
	case "low":
		return ImpactLow, nil
	default:
		return ImpactLow, fmt.Errorf("unknown impact %q", s)
	}
}

// ImpactFromEngine maps the engine's impact rating onto a bucket.
// The mapping is total: unrated or unrecognised values land in ImpactLow.
func ImpactFromEngine(raw string) Impact {
	switch raw {
	case "critical", "serious":
		return ImpactHigh
	case "moderate":
		return ImpactMedium
	default:
		return ImpactLow
	}
}

// GuidelineFromTags derives the WCAG conformance level a violation belongs to.
// AA wins when both levels are tagged.
func GuidelineFromTags(tags []string) string {
	switch {
	case slices.Contains(tags, TagWCAG2AA):
		return GuidelineAA
	case slices.Contains(tags, TagWCAG2A):
		return GuidelineA
	default:
		return GuidelineUnknown
	}
}

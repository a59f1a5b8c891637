package crawler

import (
	"regexp"
	"strings"
)

// Admit reports whether url passes the include and exclude patterns.
// An empty include list admits everything; exclusion always wins.
// A pattern is matched against the whole URL and "*" stands for any
// substring. A pattern that cannot be compiled never matches.
func Admit(url string, include, exclude []string) bool {
	return NewMatcher(include, exclude).Admit(url)
}

// Matcher is a compiled include/exclude pattern set.
type Matcher struct {
	include []*regexp.Regexp
	exclude []*regexp.Regexp

	// hasInclude is true when include patterns were given, even if none compiled.
	hasInclude bool
}

// NewMatcher compiles the given patterns.
func NewMatcher(include, exclude []string) *Matcher {
	return &Matcher{
		include:    compilePatterns(include),
		exclude:    compilePatterns(exclude),
		hasInclude: len(include) > 0,
	}
}

// Admit reports whether url passes the pattern set.
func (m *Matcher) Admit(url string) bool {
	if m.hasInclude && !matchAny(m.include, url) {
		return false
	}
	return !matchAny(m.exclude, url)
}

func matchAny(patterns []*regexp.Regexp, url string) bool {
	for _, re := range patterns {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

func compilePatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := compileGlob(p); err == nil {
			compiled = append(compiled, re)
		}
	}
	return compiled
}

// compileGlob turns a glob into an anchored expression where "*" matches
// any run of characters, "/" included, and everything else is literal.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return regexp.Compile(`^(?s:` + strings.Join(parts, ".*") + `)$`)
}

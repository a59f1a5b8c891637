package crawler

import "testing"

func TestAdmit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		include []string
		exclude []string
		want    bool
	}{
		{"no patterns admits everything", "https://example.com/a", nil, nil, true},
		{"wildcard include", "https://example.com/a", []string{"*"}, nil, true},
		{"contains x", "https://example.com/x/page", []string{"*x*"}, nil, true},
		{"does not contain x", "https://example.com/page", []string{"*x*"}, nil, false},
		{"full match required", "https://example.com/blog/post", []string{"https://example.com/blog"}, nil, false},
		{"exact literal match", "https://example.com/blog", []string{"https://example.com/blog"}, nil, true},
		{"star crosses slashes", "https://example.com/a/b/c.pdf", []string{"https://example.com/*.pdf"}, nil, true},
		{"dots are literal", "https://exampleXcom/", []string{"https://example.com/"}, nil, false},
		{"question mark is literal", "https://example.com/a", []string{"https://example.com/?"}, nil, false},
		{"any include matches", "https://docs.example.com/", []string{"*blog*", "*docs*"}, nil, true},
		{"exclude drops url", "https://example.com/logout", nil, []string{"*logout*"}, false},
		{"exclude overrides include", "https://example.com/admin", []string{"*example.com*"}, []string{"*admin*"}, false},
		{"exclude not matching keeps url", "https://example.com/home", []string{"*example.com*"}, []string{"*admin*"}, true},
		{"malformed include never matches", "https://example.com/", []string{"\xff*"}, nil, false},
		{"malformed exclude never matches", "https://example.com/", nil, []string{"\xff*"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Admit(tt.url, tt.include, tt.exclude)
			if got != tt.want {
				t.Errorf("Admit(%q, %v, %v) = %v, want %v", tt.url, tt.include, tt.exclude, got, tt.want)
			}
			if again := Admit(tt.url, tt.include, tt.exclude); again != got {
				t.Errorf("Admit is not idempotent: %v then %v", got, again)
			}
		})
	}
}

func TestMatcherReuse(t *testing.T) {
	t.Parallel()

	m := NewMatcher([]string{"https://example.com/*"}, []string{"*.pdf"})
	urls := map[string]bool{
		"https://example.com/":         true,
		"https://example.com/docs/a":   true,
		"https://example.com/file.pdf": false,
		"https://other.com/":           false,
	}
	for u, want := range urls {
		if got := m.Admit(u); got != want {
			t.Errorf("Admit(%q) = %v, want %v", u, got, want)
		}
	}
}

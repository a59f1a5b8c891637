package crawler

import "testing"

func TestFrontier(t *testing.T) {
	t.Parallel()

	f := NewFrontier("https://example.com/")
	if f.DiscoveredCount() != 1 || f.Pending() != 1 {
		t.Fatalf("expected seeded frontier, got discovered=%d pending=%d", f.DiscoveredCount(), f.Pending())
	}

	if f.Discover("https://example.com/") {
		t.Error("seed must not be discovered twice")
	}
	if !f.Discover("https://example.com/a") {
		t.Error("expected new url to be discovered")
	}
	if f.Discover("https://example.com/a") {
		t.Error("url must not be queued twice")
	}

	first, ok := f.Next()
	if !ok || first != "https://example.com/" {
		t.Errorf("expected FIFO order, got %q", first)
	}
	if !f.Visit(first) {
		t.Error("expected first visit to succeed")
	}
	if f.Visit(first) {
		t.Error("second visit of the same url must report false")
	}

	second, _ := f.Next()
	if second != "https://example.com/a" {
		t.Errorf("unexpected second url %q", second)
	}
	if _, ok := f.Next(); ok {
		t.Error("expected empty queue")
	}

	got := f.Discovered()
	if len(got) != 2 || got[0] != "https://example.com/" || got[1] != "https://example.com/a" {
		t.Errorf("unexpected discovered order %v", got)
	}
	if !f.Known("https://example.com/a") || f.Known("https://example.com/b") {
		t.Error("Known reports wrong membership")
	}
	if f.VisitedCount() != 1 {
		t.Errorf("expected 1 visited, got %d", f.VisitedCount())
	}
}

package crawler

// Frontier is the breadth-first discovery state for one crawl.
//
// Every URL in the queue or in visited has been discovered, discovered
// only grows, and no URL is ever queued twice.
type Frontier struct {
	discovered []string
	known      map[string]struct{}
	visited    map[string]struct{}
	queue      []string
}

// NewFrontier returns a frontier seeded with start.
func NewFrontier(start string) *Frontier {
	f := &Frontier{
		known:   make(map[string]struct{}),
		visited: make(map[string]struct{}),
	}
	f.Discover(start)
	return f
}

// Discover records url and queues it. It returns false if url was already known.
func (f *Frontier) Discover(url string) bool {
	if _, ok := f.known[url]; ok {
		return false
	}
	f.known[url] = struct{}{}
	f.discovered = append(f.discovered, url)
	f.queue = append(f.queue, url)
	return true
}

// Next pops the head of the queue. ok is false when the queue is empty.
func (f *Frontier) Next() (url string, ok bool) {
	if len(f.queue) == 0 {
		return "", false
	}
	url = f.queue[0]
	f.queue = f.queue[1:]
	return url, true
}

// Visit marks url as visited. It returns false if it already was.
func (f *Frontier) Visit(url string) bool {
	if _, ok := f.visited[url]; ok {
		return false
	}
	f.visited[url] = struct{}{}
	return true
}

// Known reports whether url has been discovered.
func (f *Frontier) Known(url string) bool {
	_, ok := f.known[url]
	return ok
}

// Pending returns the number of queued URLs.
func (f *Frontier) Pending() int {
	return len(f.queue)
}

// DiscoveredCount returns the number of discovered URLs.
func (f *Frontier) DiscoveredCount() int {
	return len(f.discovered)
}

// VisitedCount returns the number of visited URLs.
func (f *Frontier) VisitedCount() int {
	return len(f.visited)
}

// Discovered returns the discovered URLs in insertion order.
func (f *Frontier) Discovered() []string {
	return append([]string(nil), f.discovered...)
}

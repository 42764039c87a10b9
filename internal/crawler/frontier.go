package crawler

import "sync"

// Frontier holds the URLs still to visit and the URLs already visited.
// The two sets are disjoint and a visited URL never becomes pending again.
// A Frontier is safe for concurrent use.
type Frontier struct {
	mu      sync.Mutex
	toVisit map[string]struct{}
	visited map[string]struct{}
}

// NewFrontier returns an empty Frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		toVisit: make(map[string]struct{}),
		visited: make(map[string]struct{}),
	}
}

// Admit adds url to the pending set unless it is already pending or visited.
// It reports whether url was added.
func (f *Frontier) Admit(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.toVisit[url]; ok {
		return false
	}
	if _, ok := f.visited[url]; ok {
		return false
	}
	f.toVisit[url] = struct{}{}
	return true
}

// Pop removes and returns an arbitrary pending URL.
// The second result is false when nothing is pending.
func (f *Frontier) Pop() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pop()
}

// MarkVisited moves url to the visited set.
func (f *Frontier) MarkVisited(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markVisited(url)
}

// Next pops a pending URL and marks it visited in one step.
func (f *Frontier) Next() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	url, ok := f.pop()
	if ok {
		f.markVisited(url)
	}
	return url, ok
}

// Pending returns the number of URLs still to visit.
func (f *Frontier) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.toVisit)
}

// VisitedCount returns the number of visited URLs.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// IsVisited reports whether url has been visited.
func (f *Frontier) IsVisited(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[url]
	return ok
}

// Snapshot returns copies of the pending and visited sets, in no particular order.
func (f *Frontier) Snapshot() (toVisit, visited []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	toVisit = make([]string, 0, len(f.toVisit))
	for u := range f.toVisit {
		toVisit = append(toVisit, u)
	}
	visited = make([]string, 0, len(f.visited))
	for u := range f.visited {
		visited = append(visited, u)
	}
	return toVisit, visited
}

func (f *Frontier) pop() (string, bool) {
	for u := range f.toVisit {
		delete(f.toVisit, u)
		return u, true
	}
	return "", false
}

func (f *Frontier) markVisited(url string) {
	delete(f.toVisit, url)
	f.visited[url] = struct{}{}
}

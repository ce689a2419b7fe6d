// Package frontier provides the deduplicating URL work queue that drives a
// crawl.
package frontier

import "sync"

// Frontier is a FIFO of URLs waiting to be crawled plus the set of URLs that
// have already been handed out. It is safe for concurrent use; a URL is
// marked seen in the same critical section that removes it from the queue,
// so no two callers can ever receive the same URL.
type Frontier struct {
	mu     sync.Mutex
	queue  []string
	queued map[string]struct{}
	seen   map[string]struct{}
}

// New constructs an empty Frontier.
func New() *Frontier {
	return &Frontier{
		queued: make(map[string]struct{}),
		seen:   make(map[string]struct{}),
	}
}

// Enqueue appends every URL that is neither queued nor already dispatched and
// returns how many were accepted. Empty strings are ignored.
func (f *Frontier) Enqueue(urls ...string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	added := 0
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := f.seen[u]; ok {
			continue
		}
		if _, ok := f.queued[u]; ok {
			continue
		}
		f.queued[u] = struct{}{}
		f.queue = append(f.queue, u)
		added++
	}
	return added
}

// DispatchBatch removes up to n URLs from the head of the queue and marks
// them seen.
func (f *Frontier) DispatchBatch(n int) []string {
	if n <= 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if n > len(f.queue) {
		n = len(f.queue)
	}
	batch := make([]string, n)
	copy(batch, f.queue[:n])
	// Zero the vacated slots so the backing array does not pin the strings.
	for i := 0; i < n; i++ {
		f.queue[i] = ""
	}
	f.queue = f.queue[n:]
	for _, u := range batch {
		delete(f.queued, u)
		f.seen[u] = struct{}{}
	}
	return batch
}

// DropPending discards every queued URL and returns how many were dropped.
// Dropped URLs were never dispatched, so they stay eligible for a later
// Enqueue. The seen set is untouched.
func (f *Frontier) DropPending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.queue)
	f.queue = nil
	clear(f.queued)
	return n
}

// MarkSeen records url as dispatched without it passing through the queue.
// It returns false when the URL had already been dispatched. A queued copy
// of the URL is discarded.
func (f *Frontier) MarkSeen(url string) bool {
	if url == "" {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[url]; ok {
		return false
	}
	f.seen[url] = struct{}{}
	if _, ok := f.queued[url]; ok {
		delete(f.queued, url)
		for i, q := range f.queue {
			if q == url {
				f.queue = append(f.queue[:i], f.queue[i+1:]...)
				break
			}
		}
	}
	return true
}

// Seen reports whether url has been dispatched.
func (f *Frontier) Seen(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[url]
	return ok
}

// Len returns the number of URLs waiting in the queue.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// SeenCount returns the number of URLs dispatched so far.
func (f *Frontier) SeenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

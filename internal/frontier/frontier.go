// Package frontier implements the crawl engine's FIFO work queue, visited
// set, and scope gate (spec §4.2 Frontier & scheduling), replacing the
// teacher's heap-based priority frontier (internal/engine/frontier.go) with
// a plain FIFO since the spec names no priority concept — only arrival
// order, a visited-dedup gate, and a page-count cap.
package frontier

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/siteprobe/siteprobe/internal/jobtypes"
	"github.com/siteprobe/siteprobe/internal/scope"
)

// Frontier is a thread-safe FIFO queue of URL records with scope-gated
// enqueue and visited-set dedup, grounded on the teacher's condition-variable
// Frontier (internal/engine/frontier.go) generalized from a priority heap to
// a plain list.
type Frontier struct {
	mu      sync.Mutex
	queue   *list.List
	visited map[string]bool
	filter  *scope.Filter
	closed  bool

	maxPages int
	enqueued int
}

// New builds a Frontier gated by filter and capped at maxPages total enqueues
// (spec §4.2 CLOSESPIDER_PAGECOUNT). maxPages <= 0 admits zero enqueues — the
// explicit max_pages=0 boundary case (spec §8: "no fetches, one failed final
// batch"), not "unlimited".
func New(filter *scope.Filter, maxPages int) *Frontier {
	return &Frontier{
		queue:    list.New(),
		visited:  make(map[string]bool),
		filter:   filter,
		maxPages: maxPages,
	}
}

// Seed enqueues start URLs unconditionally with respect to scope/depth (no
// scope check, no depth limit — spec §4.2 single/list/sitemap modes seed
// directly), but still respects the page-count cap: once maxPages enqueues
// have happened, further seeds are dropped. Returns the number actually
// enqueued, which may be less than len(records) at the cap boundary.
func (f *Frontier) Seed(records []jobtypes.URLRecord) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	before := f.enqueued
	for _, r := range records {
		if f.enqueued >= f.maxPages {
			break
		}
		key := scope.Normalize(r.URL)
		if f.visited[key] {
			continue
		}
		f.visited[key] = true
		f.queue.PushBack(r)
		f.enqueued++
	}
	return f.enqueued - before
}

// Enqueue adds a discovered link if it passes the scope filter, has not been
// visited, and the page-count cap has not been reached (spec §4.2 crawl mode).
func (f *Frontier) Enqueue(r jobtypes.URLRecord) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.enqueued >= f.maxPages {
		return false
	}
	if f.filter != nil && !f.filter.Allows(r.URL) {
		return false
	}
	key := scope.Normalize(r.URL)
	if f.visited[key] {
		return false
	}
	f.visited[key] = true
	f.queue.PushBack(r)
	f.enqueued++
	return true
}

// Pop blocks until a record is available or the frontier is closed/ctx done.
func (f *Frontier) Pop(ctx context.Context) (jobtypes.URLRecord, bool) {
	for {
		if r, ok := f.TryPop(); ok {
			return r, true
		}
		if f.IsClosed() {
			return jobtypes.URLRecord{}, false
		}
		select {
		case <-ctx.Done():
			return jobtypes.URLRecord{}, false
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// TryPop performs a non-blocking dequeue.
func (f *Frontier) TryPop() (jobtypes.URLRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	front := f.queue.Front()
	if front == nil {
		return jobtypes.URLRecord{}, false
	}
	f.queue.Remove(front)
	return front.Value.(jobtypes.URLRecord), true
}

// Len reports the number of queued-but-not-yet-popped records.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queue.Len()
}

// Enqueued reports the total number of records ever enqueued (against
// which maxPages is checked).
func (f *Frontier) Enqueued() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enqueued
}

// Close unblocks any waiting Pop calls; no further records can be dequeued
// once the queue drains.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

// IsClosed reports whether Close has been called.
func (f *Frontier) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

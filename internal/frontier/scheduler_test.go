package frontier

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/siteprobe/siteprobe/internal/jobtypes"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerDrainsFrontierAndFollowsLinks(t *testing.T) {
	f := New(newTestFilter(t), 100)
	th := NewThrottle(0)

	var mu sync.Mutex
	var visited []string

	fetch := func(ctx context.Context, rec jobtypes.URLRecord) ([]jobtypes.URLRecord, error) {
		mu.Lock()
		visited = append(visited, rec.URL)
		mu.Unlock()

		if rec.URL == "https://example.com/a" {
			return []jobtypes.URLRecord{{URL: "https://example.com/b", Depth: 1}}, nil
		}
		return nil, nil
	}

	sched := NewScheduler(f, th, 2, 2, fetch, discardLogger())
	f.Seed([]jobtypes.URLRecord{{URL: "https://example.com/a"}})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sched.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(visited) != 2 {
		t.Fatalf("expected 2 pages visited (seed + discovered link), got %d: %v", len(visited), visited)
	}
}

func TestSchedulerSwallowsFetchErrors(t *testing.T) {
	f := New(newTestFilter(t), 100)
	th := NewThrottle(0)

	fetch := func(ctx context.Context, rec jobtypes.URLRecord) ([]jobtypes.URLRecord, error) {
		return nil, context.DeadlineExceeded
	}

	sched := NewScheduler(f, th, 1, 1, fetch, discardLogger())
	f.Seed([]jobtypes.URLRecord{{URL: "https://example.com/a"}})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sched.Run(ctx)
	// Reaching here without a deadlock/panic confirms errors don't halt the run.
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	f := New(newTestFilter(t), 100)
	th := NewThrottle(0)

	block := make(chan struct{})
	fetch := func(ctx context.Context, rec jobtypes.URLRecord) ([]jobtypes.URLRecord, error) {
		<-block
		return nil, nil
	}

	sched := NewScheduler(f, th, 1, 1, fetch, discardLogger())
	f.Seed([]jobtypes.URLRecord{{URL: "https://example.com/a"}})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()
	go func() {
		// unblock the in-flight fetch shortly after the context deadline so
		// Run's p.Wait() can return.
		time.Sleep(150 * time.Millisecond)
		close(block)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

package jobtypes

import (
	"testing"
	"time"
)

func TestDefaultMaxDepth(t *testing.T) {
	cases := map[CrawlMode]int{
		CrawlModeFull:        10,
		"":                   10,
		CrawlModeURLsOnly:    0,
		CrawlModeSitemap:     0,
		CrawlModeAllExisting: 0,
	}
	for mode, want := range cases {
		if got := DefaultMaxDepth(mode); got != want {
			t.Errorf("DefaultMaxDepth(%q) = %d, want %d", mode, got, want)
		}
	}
}

func TestCanRetry(t *testing.T) {
	j := &Job{Status: StatusFailed, RetryCount: 2}
	if !j.CanRetry(3) {
		t.Error("expected retry to be allowed below max_retries")
	}
	j.RetryCount = 3
	if j.CanRetry(3) {
		t.Error("expected retry to be denied at max_retries")
	}
	j.Status = StatusCompleted
	j.RetryCount = 0
	if j.CanRetry(3) {
		t.Error("a non-failed job should never be eligible for retry")
	}
}

func TestBackoff(t *testing.T) {
	cases := map[int]time.Duration{
		0: 1 * time.Minute,
		1: 2 * time.Minute,
		2: 4 * time.Minute,
		3: 8 * time.Minute,
	}
	for retries, want := range cases {
		if got := Backoff(retries); got != want {
			t.Errorf("Backoff(%d) = %s, want %s", retries, got, want)
		}
	}
}

func TestRingBufferPushAndLast(t *testing.T) {
	rb := NewRingBuffer(3)
	for _, line := range []string{"a", "b", "c", "d"} {
		rb.Push(line)
	}
	// capacity 3, last push evicted "a"
	got := rb.All()
	want := []string{"b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("All()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRingBufferLastBoundedByCount(t *testing.T) {
	rb := NewRingBuffer(5)
	rb.Push("only-one")
	got := rb.Last(10)
	if len(got) != 1 || got[0] != "only-one" {
		t.Errorf("Last(10) on a ring buffer with 1 entry = %v", got)
	}
}

func TestRingBufferZeroCapacity(t *testing.T) {
	rb := NewRingBuffer(0)
	rb.Push("dropped")
	if got := rb.All(); len(got) != 0 {
		t.Errorf("expected a zero-capacity ring buffer to retain nothing, got %v", got)
	}
}

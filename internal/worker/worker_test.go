package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/siteprobe/siteprobe/internal/config"
	"github.com/siteprobe/siteprobe/internal/jobtypes"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testJob(mode jobtypes.CrawlMode) jobtypes.Job {
	return jobtypes.Job{
		ID:        "job-1",
		ProjectID: "proj-1",
		Domain:    "example.com",
		Settings: jobtypes.Settings{
			Scope:     jobtypes.ScopeDomain,
			CrawlMode: mode,
			JSMode:    jobtypes.JSModeOff,
			MaxPages:  100,
		},
	}
}

func TestPrimarySeedURLPrefersExplicitURLs(t *testing.T) {
	job := testJob(jobtypes.CrawlModeFull)
	job.Settings.URLs = []string{"https://example.com/start"}
	if got := primarySeedURL(job); got != "https://example.com/start" {
		t.Errorf("expected the first explicit URL to be used, got %q", got)
	}
}

func TestPrimarySeedURLFallsBackToDomain(t *testing.T) {
	job := testJob(jobtypes.CrawlModeFull)
	if got := primarySeedURL(job); got != "https://example.com" {
		t.Errorf("expected a fallback built from the domain, got %q", got)
	}
}

func newTestWorker(t *testing.T, job jobtypes.Job) *Worker {
	t.Helper()
	cfg := config.DefaultWorkerConfig()
	w, err := New(job, "https://api.example.com", "api-key", cfg, discardLogger())
	if err != nil {
		t.Fatalf("expected worker construction to succeed, got %v", err)
	}
	return w
}

func TestSeedURLsOnlyModeEnqueuesExplicitURLs(t *testing.T) {
	job := testJob(jobtypes.CrawlModeURLsOnly)
	job.Settings.URLs = []string{"https://example.com/a", "https://example.com/b"}
	w := newTestWorker(t, job)

	if err := w.seed(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := w.frontier.Enqueued(); got != 2 {
		t.Errorf("expected 2 enqueued URLs for urls_only mode, got %d", got)
	}
}

func TestSeedFullModeWithoutExplicitURLsUsesDomainFallback(t *testing.T) {
	job := testJob(jobtypes.CrawlModeFull)
	w := newTestWorker(t, job)

	if err := w.seed(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := w.frontier.Enqueued(); got != 1 {
		t.Errorf("expected exactly 1 seeded URL (domain fallback), got %d", got)
	}
}

func TestSeedAllExistingModeBehavesLikeURLsOnly(t *testing.T) {
	job := testJob(jobtypes.CrawlModeAllExisting)
	job.Settings.URLs = []string{"https://example.com/a"}
	w := newTestWorker(t, job)

	if err := w.seed(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := w.frontier.Enqueued(); got != 1 {
		t.Errorf("expected 1 enqueued URL, got %d", got)
	}
}

func TestPauseResumeIsIdempotentAndUnblocksWaiters(t *testing.T) {
	job := testJob(jobtypes.CrawlModeFull)
	w := newTestWorker(t, job)

	w.Pause()
	w.Pause() // idempotent, must not deadlock or panic

	done := make(chan struct{})
	go func() {
		w.waitIfPaused(context.Background())
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected waitIfPaused to block while paused")
	case <-time.After(50 * time.Millisecond):
	}

	w.Resume()
	w.Resume() // idempotent

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected waitIfPaused to unblock after Resume")
	}
}

func TestWaitIfPausedReturnsImmediatelyWhenNotPaused(t *testing.T) {
	job := testJob(jobtypes.CrawlModeFull)
	w := newTestWorker(t, job)

	done := make(chan struct{})
	go func() {
		w.waitIfPaused(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected waitIfPaused to return immediately when not paused")
	}
}

package observability

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecordStatusBuckets(t *testing.T) {
	m := NewMetrics(discardLogger())
	m.RecordStatus(200)
	m.RecordStatus(301)
	m.RecordStatus(404)
	m.RecordStatus(503)

	if m.Responses2xx.Load() != 1 {
		t.Errorf("expected 1 2xx, got %d", m.Responses2xx.Load())
	}
	if m.Responses3xx.Load() != 1 {
		t.Errorf("expected 1 3xx, got %d", m.Responses3xx.Load())
	}
	if m.Responses4xx.Load() != 1 {
		t.Errorf("expected 1 4xx, got %d", m.Responses4xx.Load())
	}
	if m.Responses5xx.Load() != 1 {
		t.Errorf("expected 1 5xx, got %d", m.Responses5xx.Load())
	}
}

func TestServeHTTPRendersCounters(t *testing.T) {
	m := NewMetrics(discardLogger())
	m.RequestsTotal.Add(5)
	m.PagesCrawled.Add(3)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "siteprobe_requests_total 5") {
		t.Errorf("expected requests_total=5 in output:\n%s", body)
	}
	if !strings.Contains(body, "siteprobe_pages_crawled_total 3") {
		t.Errorf("expected pages_crawled_total=3 in output:\n%s", body)
	}
}

func TestSupervisorMetricsRendersGaugesFromSource(t *testing.T) {
	m := NewSupervisorMetrics(func() SupervisorGaugeSnapshot {
		return SupervisorGaugeSnapshot{
			JobsByStatus:    map[string]int64{"running": 2, "failed": 1},
			RetryDisabled:   true,
			PollErrorStreak: 7,
		}
	}, discardLogger())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "siteprobe_retry_disabled 1") {
		t.Errorf("expected retry_disabled=1 in output:\n%s", body)
	}
	if !strings.Contains(body, "siteprobe_poll_error_streak 7") {
		t.Errorf("expected poll_error_streak=7 in output:\n%s", body)
	}
	if !strings.Contains(body, `siteprobe_tracked_jobs{status="running"} 2`) {
		t.Errorf("expected tracked_jobs{status=running}=2 in output:\n%s", body)
	}
	if !strings.Contains(body, `siteprobe_tracked_jobs{status="failed"} 1`) {
		t.Errorf("expected tracked_jobs{status=failed}=1 in output:\n%s", body)
	}
}

func TestSupervisorMetricsPullsSourceEachScrape(t *testing.T) {
	streak := int64(0)
	m := NewSupervisorMetrics(func() SupervisorGaugeSnapshot {
		return SupervisorGaugeSnapshot{PollErrorStreak: streak}
	}, discardLogger())

	streak = 3
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "siteprobe_poll_error_streak 3") {
		t.Errorf("expected the scrape to reflect the current source value, got:\n%s", rec.Body.String())
	}
}

func TestSnapshotReflectsCounters(t *testing.T) {
	m := NewMetrics(discardLogger())
	m.PagesQueued.Add(7)

	snap := m.Snapshot()
	if snap["pages_queued"] != 7 {
		t.Errorf("expected snapshot pages_queued=7, got %d", snap["pages_queued"])
	}
}

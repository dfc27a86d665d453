// Package backend implements the two external contracts consumed by
// siteprobe (spec §6): the job-backend contract against the `crawl_jobs`
// table (queried through Supabase's PostgREST interface, since no
// Supabase/Postgres driver appears anywhere in the retrieval pack — a plain
// net/http client against PostgREST's REST conventions is used instead,
// grounded on the same net/http.Client idiom as internal/fetcher/http.go and
// internal/shipper/shipper.go) and the worker's own job-fetch/status-callback
// calls against `<api_url>`.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/siteprobe/siteprobe/internal/jobtypes"
)

// BackendSchemaError indicates the crawl_jobs table's schema does not match
// what the queue poller/retry scheduler expect — a missing table or column,
// not a transient connectivity failure (spec §4.1 "a persistent schema
// incompatibility with the queue backend", §7 error kind 4). The supervisor
// uses this sentinel to permanently disable the retry loop while the poller
// continues independently.
type BackendSchemaError struct {
	Table   string
	Code    string
	Message string
}

func (e *BackendSchemaError) Error() string {
	return fmt.Sprintf("backend schema incompatibility on %s (code=%s): %s", e.Table, e.Code, e.Message)
}

// postgrestError mirrors PostgREST's standard JSON error body
// ({"code", "message", "details", "hint"}).
type postgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// schemaErrorCodes are PostgreSQL/PostgREST error codes for an undefined
// table or column — the sentinel pattern spec §4.1 calls for.
var schemaErrorCodes = map[string]bool{
	"42P01":    true, // undefined_table
	"42703":    true, // undefined_column
	"PGRST202": true, // PostgREST: schema cache relation/column not found
}

// classifyRestError turns a non-2xx PostgREST response into either a
// BackendSchemaError (sentinel code, or a "does not exist" message) or a
// plain error carrying the raw response for anything else.
func classifyRestError(table string, statusCode int, body []byte) error {
	var pe postgrestError
	if json.Unmarshal(body, &pe) == nil {
		if schemaErrorCodes[pe.Code] || strings.Contains(pe.Message, "does not exist") {
			return &BackendSchemaError{Table: table, Code: pe.Code, Message: pe.Message}
		}
	}
	return fmt.Errorf("supabase request against %s: status %d: %s", table, statusCode, body)
}

// Client talks to the Supabase/PostgREST-backed crawl_jobs table and to the
// ingestion API's job-fetch/status-callback endpoints.
type Client struct {
	httpClient  *http.Client
	apiURL      string
	apiKey      string
	supabaseURL string
	supabaseKey string
}

// New builds a backend Client. supabaseURL/supabaseKey may be empty when the
// supervisor runs with --no-watcher and --no-retry (no direct table access needed).
func New(apiURL, apiKey, supabaseURL, supabaseKey string) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		apiURL:      apiURL,
		apiKey:      apiKey,
		supabaseURL: supabaseURL,
		supabaseKey: supabaseKey,
	}
}

type crawlJobRow struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"project_id"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"completed_at"`
	FailedAt   *time.Time `json:"failed_at"`
	RetryCount int        `json:"retry_count"`
}

func (r crawlJobRow) toJob() jobtypes.Job {
	return jobtypes.Job{
		ID:         r.ID,
		ProjectID:  r.ProjectID,
		Status:     jobtypes.Status(r.Status),
		CreatedAt:  r.CreatedAt,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		FailedAt:   r.FailedAt,
		RetryCount: r.RetryCount,
	}
}

// ClaimPending selects pending jobs ordered by created_at asc and
// conditionally flips each to running (spec §6 job-backend contract).
func (c *Client) ClaimPending(ctx context.Context) ([]jobtypes.Job, error) {
	var rows []crawlJobRow
	if err := c.restGet(ctx, "crawl_jobs", "status=eq.pending&order=created_at.asc", &rows); err != nil {
		return nil, err
	}

	var claimed []jobtypes.Job
	for _, row := range rows {
		ok, err := c.restPatchConditional("crawl_jobs", row.ID, "pending", map[string]any{
			"status":     "running",
			"started_at": time.Now().UTC(),
		})
		if err != nil {
			return claimed, err
		}
		if ok {
			row.Status = "running"
			claimed = append(claimed, row.toJob())
		}
	}
	return claimed, nil
}

// ListFailed selects failed jobs with retry_count < maxRetries.
func (c *Client) ListFailed(ctx context.Context, maxRetries int) ([]jobtypes.Job, error) {
	var rows []crawlJobRow
	query := fmt.Sprintf("status=eq.failed&retry_count=lt.%d", maxRetries)
	if err := c.restGet(ctx, "crawl_jobs", query, &rows); err != nil {
		return nil, err
	}
	jobs := make([]jobtypes.Job, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, row.toJob())
	}
	return jobs, nil
}

// MarkRetrying updates a job's retry_count and resets it to pending so the
// poller picks it back up.
func (c *Client) MarkRetrying(ctx context.Context, job jobtypes.Job) error {
	_, err := c.restPatchConditional("crawl_jobs", job.ID, "failed", map[string]any{
		"status":      "pending",
		"retry_count": job.RetryCount,
	})
	return err
}

// restGet issues a PostgREST-style GET against the Supabase table API.
func (c *Client) restGet(ctx context.Context, table, query string, out any) error {
	u := fmt.Sprintf("%s/rest/v1/%s?%s", c.supabaseURL, table, query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	c.setSupabaseHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return classifyRestError(table, resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// restPatchConditional issues a PostgREST PATCH filtered by id and the
// expected current status, returning false (no error) if zero rows matched
// — the conditional-update race PostgREST's filter-as-WHERE-clause gives us
// for free, mirroring an optimistic compare-and-swap.
func (c *Client) restPatchConditional(table, id, expectedStatus string, fields map[string]any) (bool, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return false, err
	}

	q := url.Values{}
	q.Set("id", "eq."+id)
	q.Set("status", "eq."+expectedStatus)
	u := fmt.Sprintf("%s/rest/v1/%s?%s", c.supabaseURL, table, q.Encode())

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPatch, u, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	c.setSupabaseHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return false, classifyRestError(table, resp.StatusCode, respBody)
	}

	var updated []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		return false, nil
	}
	return len(updated) > 0, nil
}

func (c *Client) setSupabaseHeaders(req *http.Request) {
	req.Header.Set("apikey", c.supabaseKey)
	req.Header.Set("Authorization", "Bearer "+c.supabaseKey)
}

// jobFetchResponse mirrors the worker's `GET <api_url>/api/crawl/job/:id` response (spec §6).
type jobFetchResponse struct {
	ID        string            `json:"id"`
	ProjectID string            `json:"project_id"`
	Domain    string            `json:"domain"`
	URLs      []string          `json:"urls,omitempty"`
	CrawlMode string            `json:"crawlMode,omitempty"`
	Settings  jobtypes.Settings `json:"settings"`
}

// GetJob fetches full job settings for the worker CLI.
func (c *Client) GetJob(ctx context.Context, jobID string) (jobtypes.Job, error) {
	u := fmt.Sprintf("%s/api/crawl/job/%s", c.apiURL, jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return jobtypes.Job{}, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return jobtypes.Job{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return jobtypes.Job{}, fmt.Errorf("fetch job %s: status %d: %s", jobID, resp.StatusCode, body)
	}

	var jr jobFetchResponse
	if err := json.NewDecoder(resp.Body).Decode(&jr); err != nil {
		return jobtypes.Job{}, err
	}

	settings := jr.Settings
	if len(settings.URLs) == 0 {
		settings.URLs = jr.URLs
	}
	if settings.CrawlMode == "" && jr.CrawlMode != "" {
		settings.CrawlMode = jobtypes.CrawlMode(jr.CrawlMode)
	}
	if settings.MaxDepth == 0 {
		settings.MaxDepth = jobtypes.DefaultMaxDepth(settings.CrawlMode)
	}

	return jobtypes.Job{
		ID:        jr.ID,
		ProjectID: jr.ProjectID,
		Domain:    jr.Domain,
		Status:    jobtypes.StatusRunning,
		Settings:  settings,
	}, nil
}

// PostStatus sends the pause/resume status callback (spec §6).
func (c *Client) PostStatus(ctx context.Context, jobID string, status jobtypes.Status) error {
	payload := map[string]any{
		"crawl_job_id": jobID,
		"status":       status,
		"updated_at":   time.Now().UTC(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	u := fmt.Sprintf("%s/api/crawl/status", c.apiURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status callback: status %d: %s", resp.StatusCode, respBody)
	}
	return nil
}

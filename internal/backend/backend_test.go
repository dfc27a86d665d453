package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/siteprobe/siteprobe/internal/jobtypes"
)

func TestClaimPendingClaimsAndFlipsStatus(t *testing.T) {
	var patchedStatus string

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/crawl_jobs", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode([]map[string]any{
				{"id": "job-1", "project_id": "proj-1", "status": "pending", "retry_count": 0},
			})
		case http.MethodPatch:
			if r.URL.Query().Get("status") != "eq.pending" {
				t.Errorf("expected conditional PATCH filtered on status=eq.pending, got %s", r.URL.RawQuery)
			}
			patchedStatus = "running"
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode([]map[string]any{{"id": "job-1", "status": "running"}})
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New("https://api.example.com", "", srv.URL, "svc-key")
	jobs, err := c.ClaimPending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 || jobs[0].ID != "job-1" {
		t.Fatalf("expected 1 claimed job with ID job-1, got %+v", jobs)
	}
	if jobs[0].Status != jobtypes.StatusRunning {
		t.Errorf("expected claimed job status=running, got %q", jobs[0].Status)
	}
	if patchedStatus != "running" {
		t.Error("expected the conditional PATCH to be issued")
	}
}

func TestClaimPendingSkipsLostRace(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/crawl_jobs", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode([]map[string]any{
				{"id": "job-1", "project_id": "proj-1", "status": "pending", "retry_count": 0},
			})
		case http.MethodPatch:
			// Another supervisor won the race: zero rows match the conditional filter.
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode([]map[string]any{})
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New("https://api.example.com", "", srv.URL, "svc-key")
	jobs, err := c.ClaimPending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 0 {
		t.Errorf("expected 0 claimed jobs when the conditional PATCH matches nothing, got %d", len(jobs))
	}
}

func TestListFailedFiltersByRetryCount(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/crawl_jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("retry_count") != "lt.3" {
			t.Errorf("expected retry_count=lt.3 filter, got %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "job-2", "project_id": "proj-1", "status": "failed", "retry_count": 1},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New("https://api.example.com", "", srv.URL, "svc-key")
	jobs, err := c.ListFailed(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 || jobs[0].ID != "job-2" {
		t.Fatalf("expected job-2, got %+v", jobs)
	}
}

func TestGetJobMergesTopLevelSettings(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/crawl/job/job-3", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id":         "job-3",
			"project_id": "proj-1",
			"domain":     "example.com",
			"urls":       []string{"https://example.com/a"},
			"crawlMode":  "urls_only",
			"settings":   map[string]any{},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, "api-key", "", "")
	job, err := c.GetJob(context.Background(), "job-3")
	if err != nil {
		t.Fatal(err)
	}
	if job.Settings.CrawlMode != jobtypes.CrawlModeURLsOnly {
		t.Errorf("expected crawlMode to be merged from top-level field, got %q", job.Settings.CrawlMode)
	}
	if len(job.Settings.URLs) != 1 || job.Settings.URLs[0] != "https://example.com/a" {
		t.Errorf("expected urls to be merged from top-level field, got %v", job.Settings.URLs)
	}
}

func TestListFailedReturnsSchemaErrorOnUndefinedTable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/crawl_jobs", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"code":    "42P01",
			"message": `relation "crawl_jobs" does not exist`,
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New("https://api.example.com", "", srv.URL, "svc-key")
	_, err := c.ListFailed(context.Background(), 3)
	if err == nil {
		t.Fatal("expected an error on an undefined-table response")
	}
	var schemaErr *BackendSchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected a *BackendSchemaError, got %T: %v", err, err)
	}
	if schemaErr.Code != "42P01" {
		t.Errorf("expected code 42P01, got %q", schemaErr.Code)
	}
}

func TestListFailedReturnsSchemaErrorOnDoesNotExistMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/crawl_jobs", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"code":    "PGRST100",
			"message": `column "retry_count" does not exist`,
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New("https://api.example.com", "", srv.URL, "svc-key")
	_, err := c.ListFailed(context.Background(), 3)
	var schemaErr *BackendSchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected a *BackendSchemaError from a 'does not exist' message, got %T: %v", err, err)
	}
}

func TestListFailedReturnsPlainErrorOnOrdinaryFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/crawl_jobs", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{
			"code":    "53300",
			"message": "too many connections",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New("https://api.example.com", "", srv.URL, "svc-key")
	_, err := c.ListFailed(context.Background(), 3)
	var schemaErr *BackendSchemaError
	if errors.As(err, &schemaErr) {
		t.Fatal("expected an ordinary connectivity failure to not be classified as a schema error")
	}
	if err == nil {
		t.Fatal("expected a non-nil error")
	}
}

func TestPostStatusSendsBearerAuth(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "api-key", "", "")
	if err := c.PostStatus(context.Background(), "job-1", jobtypes.StatusPaused); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer api-key" {
		t.Errorf("expected Bearer auth header, got %q", gotAuth)
	}
}

package siteprobe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/siteprobe/siteprobe/internal/jobtypes"
)

func TestCrawlRequiresAtLeastOneSeed(t *testing.T) {
	c := NewCrawler()
	if _, err := c.Crawl(context.Background()); err == nil {
		t.Error("expected Crawl with no seed URLs to return an error")
	}
}

func TestCrawlRejectsInvalidSeed(t *testing.T) {
	c := NewCrawler()
	if _, err := c.Crawl(context.Background(), "not a url"); err == nil {
		t.Error("expected Crawl with an unparsable seed URL to return an error")
	}
}

func TestCrawlFollowsInternalLinksAndInvokesCallbacks(t *testing.T) {
	mux := http.NewServeMux()
	var mu sync.Mutex
	visited := map[string]bool{}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		visited[r.URL.Path] = true
		mu.Unlock()
		w.Write([]byte(`<html><body><a href="/page2">next</a></body></html>`))
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		visited[r.URL.Path] = true
		mu.Unlock()
		w.Write([]byte(`<html><body>leaf page</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var pagesMu sync.Mutex
	var pages []string

	c := NewCrawler(WithMaxDepth(3), WithMaxPages(10), WithConcurrency(2))
	c.OnPage(func(pr *jobtypes.PageResult) {
		pagesMu.Lock()
		pages = append(pages, pr.URL)
		pagesMu.Unlock()
	})

	report, err := c.Crawl(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatal(err)
	}
	if report.PagesCrawled != 2 {
		t.Errorf("expected 2 pages crawled (root + discovered link), got %d", report.PagesCrawled)
	}

	mu.Lock()
	defer mu.Unlock()
	if !visited["/"] || !visited["/page2"] {
		t.Errorf("expected both / and /page2 to be visited, got %+v", visited)
	}

	pagesMu.Lock()
	defer pagesMu.Unlock()
	if len(pages) != 2 {
		t.Errorf("expected OnPage to be invoked exactly twice, got %d", len(pages))
	}
	foundLeaf := false
	for _, p := range pages {
		if strings.HasSuffix(p, "/page2") {
			foundLeaf = true
		}
	}
	if !foundLeaf {
		t.Error("expected the discovered /page2 link to be crawled and reported")
	}
}

func TestCrawlInvokesOnErrorForUnreachableSeed(t *testing.T) {
	var mu sync.Mutex
	var errs []string

	c := NewCrawler(WithMaxPages(1))
	c.OnError(func(url string, err error) {
		mu.Lock()
		errs = append(errs, url)
		mu.Unlock()
	})

	report, err := c.Crawl(context.Background(), "https://127.0.0.1:0/unreachable")
	if err != nil {
		t.Fatal(err)
	}
	if report.PagesErrored == 0 {
		t.Error("expected an unreachable seed to register as a page error")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(errs) == 0 {
		t.Error("expected OnError to be invoked for the unreachable seed")
	}
}

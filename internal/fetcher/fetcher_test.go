package fetcher

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/siteprobe/siteprobe/internal/config"
	"github.com/siteprobe/siteprobe/internal/jobtypes"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFetcherConfig() *config.FetcherConfig {
	return &config.FetcherConfig{
		UserAgent:       "siteprobe-test",
		FollowRedirects: true,
		MaxRedirects:    5,
		MaxBodySize:     1 << 20,
	}
}

func TestDetectRenderSignalsFlagsSPAShell(t *testing.T) {
	if !DetectRenderSignals([]byte(`<html><body><div id="root"></div></body></html>`)) {
		t.Error("expected a framework-root container to be flagged as an SPA shell")
	}
	if !DetectRenderSignals([]byte(`<html><body>Please enable JavaScript to run this app.</body></html>`)) {
		t.Error("expected the SPA loading phrase to be flagged")
	}
	if !DetectRenderSignals([]byte(`<html><body></body></html>`)) {
		t.Error("expected near-empty body to be flagged as unrendered")
	}
}

func TestDetectRenderSignalsIgnoresRealContent(t *testing.T) {
	body := []byte(`<html><body><h1>Welcome</h1><p>` + string(make([]byte, 200)) + `This is a long article body with plenty of visible text content for a reader to consume.</p></body></html>`)
	if DetectRenderSignals(body) {
		t.Error("expected a page with substantial visible text to not be flagged")
	}
}

func TestHTTPFetcherFetchReturnsBodyAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(testFetcherConfig(), 5*time.Second, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	res, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", res.StatusCode)
	}
	if string(res.Body) != "<html><body>hello</body></html>" {
		t.Errorf("unexpected body: %s", res.Body)
	}
}

func TestHTTPFetcherRetriesRetryableStatus(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(testFetcherConfig(), 5*time.Second, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	res, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if attempts < 2 {
		t.Errorf("expected at least 2 attempts after a 503, got %d", attempts)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("expected eventual 200, got %d", res.StatusCode)
	}
}

func TestHTTPFetcherReturnsLastStatusAfterExhaustingRetries(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("still unavailable"))
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(testFetcherConfig(), 5*time.Second, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	res, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("expected a captured result (not an error) after exhausting retries against a persistent 503, got err=%v", err)
	}
	if attempts != MaxFetchRetries+1 {
		t.Errorf("expected %d attempts, got %d", MaxFetchRetries+1, attempts)
	}
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected the real final status code 503 to be preserved, got %d", res.StatusCode)
	}
	if string(res.Body) != "still unavailable" {
		t.Errorf("expected the final attempt's body to be preserved, got %q", res.Body)
	}
}

// stubFetcher is a minimal Fetcher for exercising Facade dispatch logic
// without a real transport.
type stubFetcher struct {
	calls   int
	result  *Result
	err     error
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	s.calls++
	return s.result, s.err
}
func (s *stubFetcher) Close() error { return nil }

func TestFacadeModeOffAlwaysUsesHTTP(t *testing.T) {
	h := &stubFetcher{result: &Result{StatusCode: 200}}
	b := &stubFetcher{result: &Result{StatusCode: 200}}
	f := NewFacade(jobtypes.JSModeOff, h, b)

	f.Fetch(context.Background(), "https://example.com", 0)
	f.Fetch(context.Background(), "https://example.com/a", 1)

	if h.calls != 2 || b.calls != 0 {
		t.Errorf("expected jsMode=off to only ever use HTTP, got http=%d browser=%d", h.calls, b.calls)
	}
}

func TestFacadeModeFullAlwaysUsesBrowser(t *testing.T) {
	h := &stubFetcher{result: &Result{StatusCode: 200}}
	b := &stubFetcher{result: &Result{StatusCode: 200}}
	f := NewFacade(jobtypes.JSModeFull, h, b)

	f.Fetch(context.Background(), "https://example.com", 0)

	if b.calls != 1 || h.calls != 0 {
		t.Errorf("expected jsMode=full to only ever use the renderer, got http=%d browser=%d", h.calls, b.calls)
	}
}

func TestFacadeModeAutoRendersRootThenFollowsSignal(t *testing.T) {
	h := &stubFetcher{result: &Result{StatusCode: 200, RenderSignals: true}}
	b := &stubFetcher{result: &Result{StatusCode: 200}}
	f := NewFacade(jobtypes.JSModeAuto, h, b)

	// depth 0 always renders.
	f.Fetch(context.Background(), "https://example.com", 0)
	if b.calls != 1 {
		t.Fatalf("expected depth-0 auto fetch to use the renderer, got browser calls=%d", b.calls)
	}

	// depth 1 uses plain HTTP, which reports render signals, recording them
	// for this host.
	f.Fetch(context.Background(), "https://example.com/a", 1)
	if h.calls != 1 {
		t.Fatalf("expected depth-1 auto fetch to try plain HTTP first, got http calls=%d", h.calls)
	}

	// depth 2 on the same host should now render, since the last plain
	// fetch showed render signals.
	f.Fetch(context.Background(), "https://example.com/b", 2)
	if b.calls != 2 {
		t.Errorf("expected the recorded render signal to trigger the renderer on a later request, got browser calls=%d", b.calls)
	}
}

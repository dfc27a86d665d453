// Package fetcher implements the crawl engine's unified fetch operation
// (spec §4.2 Fetcher): a plain HTTP client and a headless-renderer adapter,
// selected per request by jsMode, behind one Fetch signature.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Result is the uniform fetch outcome (spec §4.2): HTTP status >= 400 is
// not an error, it is captured here with Body/StatusCode set. Only
// transport failures (DNS, connect, TLS, timeout) return a non-nil error
// from Fetch; callers turn that into a synthetic page result.
type Result struct {
	FinalURL        string
	StatusCode      int
	RequestHeaders  map[string][]string
	ResponseHeaders map[string][]string
	Body            []byte
	DownloadLatency time.Duration
	ScreenshotPath  string
	Timing          *NavigationTiming
	RenderSignals   bool // true if the body looks like an unrendered SPA shell
}

// NavigationTiming mirrors the renderer's navigation-timing readout (spec §4.2).
type NavigationTiming struct {
	DNS                time.Duration
	TCP                time.Duration
	TTFB               time.Duration
	DOMContentLoaded   time.Duration
	FullLoad           time.Duration
	Interactive        time.Duration
	EncodedBodySize    int64
	DecodedBodySize    int64
}

// Fetcher is implemented by the plain-HTTP and headless-renderer adapters.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Result, error)
	Close() error
}

// Sentinel errors for transport-level failures (spec §7 error kind 1).
var (
	ErrTimeout       = errors.New("fetch timed out")
	ErrTooManyRedirects = errors.New("too many redirects")
)

// TransportError wraps a transport-level failure with retry metadata.
type TransportError struct {
	URL        string
	Err        error
	Retryable  bool
	RetryAfter time.Duration
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RetryableStatusCodes is the set of HTTP statuses the fetcher itself
// retries against, per spec §4.2.
var RetryableStatusCodes = map[int]bool{
	408: true, 429: true, 500: true, 502: true, 503: true, 504: true,
}

// MaxFetchRetries bounds in-fetcher retries (spec §4.2: "up to 2 times").
const MaxFetchRetries = 2

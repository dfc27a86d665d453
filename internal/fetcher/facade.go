package fetcher

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/siteprobe/siteprobe/internal/jobtypes"
)

// frameworkRootPattern flags SPA root-container markup used by the
// render-signal heuristic (spec §4.2: "framework-root markup").
var frameworkRootPattern = regexp.MustCompile(`(?i)id=["'](app|root|app-root|__next|___gatsby)["']`)

// spaLoadingPhrase flags common client-side-rendering loading placeholders.
var spaLoadingPhrase = regexp.MustCompile(`(?i)(loading\.\.\.|please enable javascript|you need to enable javascript)`)

// DetectRenderSignals reports whether raw HTML bytes look like an
// unrendered single-page-app shell: framework-root markup, under 100 chars
// of visible text once tags are stripped, or an SPA loading phrase.
func DetectRenderSignals(body []byte) bool {
	if frameworkRootPattern.Match(body) {
		return true
	}
	if spaLoadingPhrase.Match(body) {
		return true
	}
	stripped := stripTagsRough(body)
	return len(bytes.TrimSpace(stripped)) < 100
}

var tagPattern = regexp.MustCompile(`(?s)<[^>]*>`)

func stripTagsRough(body []byte) []byte {
	return tagPattern.ReplaceAll(body, []byte(" "))
}

// Facade selects between an HTTP fetcher and a browser fetcher per request,
// based on jsMode (spec §4.2):
//   - off:  always plain HTTP.
//   - full: always the renderer.
//   - auto: renderer for depth-0 requests; thereafter only if the last
//     plain-HTTP response on the same host showed render signals.
type Facade struct {
	mode    jobtypes.JSMode
	http    Fetcher
	browser Fetcher // may be nil if jsMode=off and no renderer was constructed

	mu          sync.Mutex
	hostSignals map[string]bool
}

// NewFacade builds a Facade. browser may be nil when jsMode is "off".
func NewFacade(mode jobtypes.JSMode, httpFetcher Fetcher, browserFetcher Fetcher) *Facade {
	return &Facade{
		mode:        mode,
		http:        httpFetcher,
		browser:     browserFetcher,
		hostSignals: make(map[string]bool),
	}
}

// Fetch dispatches to the plain or rendered fetcher for targetURL at depth.
func (f *Facade) Fetch(ctx context.Context, targetURL string, depth int) (*Result, error) {
	useRenderer := f.shouldRender(targetURL, depth)

	if useRenderer && f.browser != nil {
		return f.browser.Fetch(ctx, targetURL)
	}

	res, err := f.http.Fetch(ctx, targetURL)
	if err == nil && res.RenderSignals {
		f.recordSignal(targetURL, true)
	} else if err == nil {
		f.recordSignal(targetURL, false)
	}
	return res, err
}

func (f *Facade) shouldRender(targetURL string, depth int) bool {
	switch f.mode {
	case jobtypes.JSModeOff:
		return false
	case jobtypes.JSModeFull:
		return true
	case jobtypes.JSModeAuto:
		if depth == 0 {
			return true
		}
		return f.lastSignal(targetURL)
	default:
		return false
	}
}

func (f *Facade) hostOf(targetURL string) string {
	u, err := url.Parse(targetURL)
	if err != nil {
		return targetURL
	}
	return u.Hostname()
}

func (f *Facade) recordSignal(targetURL string, signal bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hostSignals[f.hostOf(targetURL)] = signal
}

func (f *Facade) lastSignal(targetURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hostSignals[f.hostOf(targetURL)]
}

// Close releases both underlying fetchers.
func (f *Facade) Close() error {
	if f.http != nil {
		_ = f.http.Close()
	}
	if f.browser != nil {
		return f.browser.Close()
	}
	return nil
}

// FetchTimeout returns the per-request timeout the facade's caller should
// apply (spec §5: 30s plain, 30000ms renderer — identical in practice).
const FetchTimeout = 30 * time.Second

package fetcher

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/siteprobe/siteprobe/internal/config"
)

// BrowserFetcher implements Fetcher using a headless Chromium instance via
// Rod, grounded on the teacher's BrowserFetcher: same launch flags and page
// pool idiom, generalized to inject a RenderProfile init script, capture a
// screenshot, and read navigation timing per spec §4.2.
type BrowserFetcher struct {
	browser       *rod.Browser
	cfg           *config.FetcherConfig
	profile       *RenderProfile
	screenshotDir string
	timeout       time.Duration
	logger        *slog.Logger

	mu       sync.Mutex
	pagePool chan *rod.Page
	maxPages int
}

// NewBrowserFetcher launches a headless browser and returns a fetcher bound to it.
func NewBrowserFetcher(cfg *config.FetcherConfig, timeout time.Duration, maxPages int, profile *RenderProfile, logger *slog.Logger) (*BrowserFetcher, error) {
	if profile == nil {
		profile = PermissiveProfile()
	}

	l := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	launchURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	if err := os.MkdirAll(cfg.ScreenshotDir, 0o755); err != nil {
		return nil, fmt.Errorf("create screenshot dir: %w", err)
	}

	bf := &BrowserFetcher{
		browser:       browser,
		cfg:           cfg,
		profile:       profile,
		screenshotDir: cfg.ScreenshotDir,
		timeout:       timeout,
		logger:        logger.With("component", "browser_fetcher", "profile", profile.Name),
		maxPages:      maxPages,
		pagePool:      make(chan *rod.Page, maxPages),
	}

	bf.logger.Info("browser fetcher ready", "max_pages", maxPages)
	return bf, nil
}

// Fetch navigates to a URL, injects the stealth init script, captures a
// screenshot and navigation timing, and returns the rendered HTML.
func (bf *BrowserFetcher) Fetch(ctx context.Context, targetURL string) (*Result, error) {
	start := time.Now()

	page, err := bf.getPage()
	if err != nil {
		return nil, &TransportError{URL: targetURL, Err: err, Retryable: true}
	}
	defer bf.putPage(page)

	if bf.profile.Name == "stealth" {
		sp, err := stealth.Page(bf.browser)
		if err == nil {
			page = sp
		} else {
			bf.logger.Warn("stealth page setup failed, continuing with plain page", "error", err)
		}
	}

	if _, err := page.EvalOnNewDocument(bf.profile.InitScript()); err != nil {
		bf.logger.Warn("init script injection failed", "error", err)
	}

	timeout := bf.timeout
	deadline, ok := ctx.Deadline()
	if ok {
		if d := time.Until(deadline); d > 0 && d < timeout {
			timeout = d
		}
	}

	if err := page.Timeout(timeout).Navigate(targetURL); err != nil {
		return nil, &TransportError{URL: targetURL, Err: err, Retryable: true}
	}
	if err := page.Timeout(timeout).WaitStable(300 * time.Millisecond); err != nil {
		bf.logger.Warn("page stability timeout, continuing", "url", targetURL, "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, &TransportError{URL: targetURL, Err: err, Retryable: true}
	}

	finalURL := targetURL
	if info, err := page.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	screenshotPath, err := bf.captureScreenshot(page, targetURL)
	if err != nil {
		bf.logger.Warn("screenshot capture failed", "url", targetURL, "error", err)
	}

	timing := bf.readNavigationTiming(page)

	return &Result{
		FinalURL:        finalURL,
		StatusCode:      200,
		Body:            []byte(html),
		DownloadLatency: time.Since(start),
		ScreenshotPath:  screenshotPath,
		Timing:          timing,
		RenderSignals:   DetectRenderSignals([]byte(html)),
	}, nil
}

// captureScreenshot saves a full-page PNG to <output>/<md5(url)[:12]>.png (spec §4.2).
func (bf *BrowserFetcher) captureScreenshot(page *rod.Page, targetURL string) (string, error) {
	sum := md5.Sum([]byte(targetURL))
	name := hex.EncodeToString(sum[:])[:12] + ".png"
	path := filepath.Join(bf.screenshotDir, name)

	img, err := page.Screenshot(true, &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng})
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// navTiming is the shape read back from window.performance.timing.
type navTiming struct {
	NavigationStart       int64 `json:"navigationStart"`
	DomainLookupStart     int64 `json:"domainLookupStart"`
	DomainLookupEnd       int64 `json:"domainLookupEnd"`
	ConnectStart          int64 `json:"connectStart"`
	ConnectEnd            int64 `json:"connectEnd"`
	RequestStart          int64 `json:"requestStart"`
	ResponseStart         int64 `json:"responseStart"`
	DomContentLoadedEventEnd int64 `json:"domContentLoadedEventEnd"`
	DomInteractive        int64 `json:"domInteractive"`
	LoadEventEnd          int64 `json:"loadEventEnd"`
	EncodedBodySize       int64 `json:"encodedBodySize"`
	DecodedBodySize       int64 `json:"decodedBodySize"`
}

func (bf *BrowserFetcher) readNavigationTiming(page *rod.Page) *NavigationTiming {
	res, err := page.Eval(`() => {
		const t = performance.timing;
		const entries = performance.getEntriesByType('navigation');
		const e = entries.length ? entries[0] : {encodedBodySize: 0, decodedBodySize: 0};
		return JSON.stringify({
			navigationStart: t.navigationStart,
			domainLookupStart: t.domainLookupStart,
			domainLookupEnd: t.domainLookupEnd,
			connectStart: t.connectStart,
			connectEnd: t.connectEnd,
			requestStart: t.requestStart,
			responseStart: t.responseStart,
			domContentLoadedEventEnd: t.domContentLoadedEventEnd,
			domInteractive: t.domInteractive,
			loadEventEnd: t.loadEventEnd,
			encodedBodySize: e.encodedBodySize || 0,
			decodedBodySize: e.decodedBodySize || 0,
		});
	}`)
	if err != nil {
		bf.logger.Debug("navigation timing read failed", "error", err)
		return nil
	}

	var nt navTiming
	if err := json.Unmarshal([]byte(res.Value.Str()), &nt); err != nil {
		return nil
	}

	ms := func(v int64) time.Duration { return time.Duration(v) * time.Millisecond }
	return &NavigationTiming{
		DNS:              ms(nt.DomainLookupEnd - nt.DomainLookupStart),
		TCP:              ms(nt.ConnectEnd - nt.ConnectStart),
		TTFB:             ms(nt.ResponseStart - nt.RequestStart),
		DOMContentLoaded: ms(nt.DomContentLoadedEventEnd - nt.NavigationStart),
		FullLoad:         ms(nt.LoadEventEnd - nt.NavigationStart),
		Interactive:      ms(nt.DomInteractive - nt.NavigationStart),
		EncodedBodySize:  nt.EncodedBodySize,
		DecodedBodySize:  nt.DecodedBodySize,
	}
}

// Close shuts down the browser and releases pooled pages.
func (bf *BrowserFetcher) Close() error {
	close(bf.pagePool)
	for page := range bf.pagePool {
		_ = page.Close()
	}
	if bf.browser != nil {
		return bf.browser.Close()
	}
	return nil
}

func (bf *BrowserFetcher) getPage() (*rod.Page, error) {
	select {
	case page := <-bf.pagePool:
		return page, nil
	default:
		return bf.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
}

func (bf *BrowserFetcher) putPage(page *rod.Page) {
	_ = page.Navigate("about:blank")
	select {
	case bf.pagePool <- page:
	default:
		_ = page.Close()
	}
}

// Package siteprobe provides a public SDK for embedding the crawl engine as a
// library, without standing up a supervisor or an ingestion API. Adapted
// from pkg/webstalk/sdk.go's functional-options Crawler, generalized from
// item/selector callbacks over a heap-based engine to page-result callbacks
// over the FIFO frontier and extraction pipeline (spec §3, §4.2, §4.3).
//
// Example usage:
//
//	crawler := siteprobe.NewCrawler(
//	    siteprobe.WithConcurrency(5),
//	    siteprobe.WithMaxDepth(3),
//	    siteprobe.WithScope("domain"),
//	)
//
//	crawler.OnPage(func(pr *jobtypes.PageResult) {
//	    fmt.Println(pr.URL, pr.Metadata.Title)
//	})
//
//	report, err := crawler.Crawl(context.Background(), "https://example.com")
package siteprobe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/siteprobe/siteprobe/internal/config"
	"github.com/siteprobe/siteprobe/internal/extract"
	"github.com/siteprobe/siteprobe/internal/fetcher"
	"github.com/siteprobe/siteprobe/internal/frontier"
	"github.com/siteprobe/siteprobe/internal/jobtypes"
	"github.com/siteprobe/siteprobe/internal/scope"

	"log/slog"
	"os"
)

// PageCallback is invoked once per successfully fetched and extracted page.
type PageCallback func(*jobtypes.PageResult)

// Crawler is the high-level, in-process API for running one crawl without a
// supervisor or ingestion API.
type Crawler struct {
	cfg      *config.WorkerConfig
	logger   *slog.Logger
	onPage   []PageCallback
	onError  []func(url string, err error)
}

// Option configures a Crawler's underlying WorkerConfig.
type Option func(*config.WorkerConfig)

// WithConcurrency sets the number of concurrent fetch workers.
func WithConcurrency(n int) Option {
	return func(c *config.WorkerConfig) { c.Engine.Concurrency = n }
}

// WithPerHostConcurrency bounds simultaneous in-flight fetches per host.
func WithPerHostConcurrency(n int) Option {
	return func(c *config.WorkerConfig) { c.Engine.PerHostConcurrency = n }
}

// WithMaxDepth sets the maximum crawl depth from the seed URLs.
func WithMaxDepth(depth int) Option {
	return func(c *config.WorkerConfig) { c.MaxDepth = depth }
}

// WithMaxPages caps the total number of URLs the frontier will accept.
func WithMaxPages(n int) Option {
	return func(c *config.WorkerConfig) { c.MaxPages = n }
}

// WithScope sets the URL scope policy: subdomain/domain/subfolder/subdomain+subfolder.
func WithScope(policy string) Option {
	return func(c *config.WorkerConfig) { c.Scope = policy }
}

// WithJSMode sets the rendering mode: off/auto/full.
func WithJSMode(mode string) Option {
	return func(c *config.WorkerConfig) { c.JSMode = mode }
}

// WithPerHostDelay sets the minimum per-host delay the adaptive throttle
// enforces before jitter (spec §4.2, §5).
func WithPerHostDelay(d time.Duration) Option {
	return func(c *config.WorkerConfig) { c.Engine.PerHostMinDelay = d }
}

// WithUserAgent sets a custom User-Agent string.
func WithUserAgent(ua string) Option {
	return func(c *config.WorkerConfig) { c.Fetcher.UserAgent = ua }
}

// WithVerbose enables debug-level logging.
func WithVerbose() Option {
	return func(c *config.WorkerConfig) { c.Logging.Level = "debug" }
}

// NewCrawler creates a Crawler with the given options layered over
// config.DefaultWorkerConfig.
func NewCrawler(opts ...Option) *Crawler {
	cfg := config.DefaultWorkerConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	level := slog.LevelInfo
	if cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return &Crawler{cfg: cfg, logger: logger}
}

// OnPage registers a callback invoked for every extracted page.
func (c *Crawler) OnPage(cb PageCallback) {
	c.onPage = append(c.onPage, cb)
}

// OnError registers a callback invoked whenever a fetch fails.
func (c *Crawler) OnError(cb func(url string, err error)) {
	c.onError = append(c.onError, cb)
}

// Report summarizes one Crawl call.
type Report struct {
	PagesCrawled int
	PagesErrored int
	Elapsed      time.Duration
}

// Crawl runs a synchronous crawl from the given seed URLs to completion,
// following internal links up to cfg.MaxDepth within the configured scope
// (spec §4.2 FIFO frontier, §4.3 extraction pipeline), and returns a summary
// report. It blocks until the frontier drains or ctx is canceled.
func (c *Crawler) Crawl(ctx context.Context, seedURLs ...string) (*Report, error) {
	if len(seedURLs) == 0 {
		return nil, fmt.Errorf("siteprobe: at least one seed URL is required")
	}

	start := time.Now()
	seeds := make([]scope.Seed, 0, len(seedURLs))
	for _, u := range seedURLs {
		s, err := scope.NewSeed(u)
		if err != nil {
			return nil, fmt.Errorf("invalid seed %q: %w", u, err)
		}
		seeds = append(seeds, s)
	}
	filter := scope.NewFilter(jobtypes.Scope(c.cfg.Scope), seeds)

	maxDepth := c.cfg.MaxDepth
	if maxDepth == 0 {
		maxDepth = jobtypes.DefaultMaxDepth(jobtypes.CrawlModeFull)
	}

	httpFetcher, err := fetcher.NewHTTPFetcher(&c.cfg.Fetcher, c.cfg.Engine.RequestTimeout, c.logger)
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}
	var browserFetcher fetcher.Fetcher
	if c.cfg.JSMode != string(jobtypes.JSModeOff) {
		if bf, berr := fetcher.NewBrowserFetcher(&c.cfg.Fetcher, c.cfg.Engine.RendererTimeout, c.cfg.Engine.Concurrency, fetcher.PermissiveProfile(), c.logger); berr == nil {
			browserFetcher = bf
		} else {
			c.logger.Warn("browser fetcher unavailable, falling back to plain HTTP", "error", berr)
		}
	}
	facade := fetcher.NewFacade(jobtypes.JSMode(c.cfg.JSMode), httpFetcher, browserFetcher)

	fr := frontier.New(filter, c.cfg.MaxPages)
	throttle := frontier.NewThrottle(c.cfg.Engine.PerHostMinDelay)

	report := &Report{}
	fetchOne := func(ctx context.Context, rec jobtypes.URLRecord) ([]jobtypes.URLRecord, error) {
		res, err := facade.Fetch(ctx, rec.URL, rec.Depth)
		if err != nil {
			report.PagesErrored++
			for _, cb := range c.onError {
				cb(rec.URL, err)
			}
			return nil, nil
		}

		pr := extract.Run(extract.Input{
			URL:             rec.URL,
			RawHTML:         res.Body,
			StatusCode:      res.StatusCode,
			ResponseHeaders: http.Header(res.ResponseHeaders),
			Depth:           rec.Depth,
			Referrer:        rec.Referrer,
			PageSizeBytes:   len(res.Body),
			Now:             time.Now(),
		})
		report.PagesCrawled++
		for _, cb := range c.onPage {
			cb(pr)
		}

		if rec.Depth >= maxDepth {
			return nil, nil
		}
		var discovered []jobtypes.URLRecord
		if pr.Links != nil {
			for _, l := range pr.Links.Internal {
				discovered = append(discovered, jobtypes.URLRecord{
					URL:      l.URL,
					Depth:    rec.Depth + 1,
					Referrer: rec.URL,
				})
			}
		}
		return discovered, nil
	}

	sched := frontier.NewScheduler(fr, throttle, c.cfg.Engine.Concurrency, c.cfg.Engine.PerHostConcurrency, fetchOne, c.logger)

	var records []jobtypes.URLRecord
	for _, u := range seedURLs {
		records = append(records, jobtypes.URLRecord{URL: u, Depth: 0})
	}
	fr.Seed(records)

	sched.Run(ctx)

	report.Elapsed = time.Since(start)
	return report, nil
}

// Package worker is the one-shot job orchestrator: it wires the fetcher
// facade, the frontier/scheduler, the sitemap ingester, the extraction
// pipeline and the shipper together for a single job, per spec §4.2/§4.4.
// Grounded on the teacher's internal/engine/engine.go top-level Engine,
// which plays the same wiring role around its heap-based frontier.
package worker

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/siteprobe/siteprobe/internal/config"
	"github.com/siteprobe/siteprobe/internal/extract"
	"github.com/siteprobe/siteprobe/internal/fetcher"
	"github.com/siteprobe/siteprobe/internal/frontier"
	"github.com/siteprobe/siteprobe/internal/jobtypes"
	"github.com/siteprobe/siteprobe/internal/mongosink"
	"github.com/siteprobe/siteprobe/internal/scope"
	"github.com/siteprobe/siteprobe/internal/shipper"
	"github.com/siteprobe/siteprobe/internal/sitemap"
)

// Worker runs exactly one job to completion (or fatal error) and exits.
type Worker struct {
	job    jobtypes.Job
	cfg    *config.WorkerConfig
	logger *slog.Logger

	facade   *fetcher.Facade
	frontier *frontier.Frontier
	sched    *frontier.Scheduler
	ship     *shipper.Shipper
	ingester *sitemap.Ingester

	pauseMu sync.Mutex
	paused  bool
	pauseCh chan struct{}
}

// New builds a Worker for one job, constructing the scope filter, frontier,
// fetchers, sitemap ingester, and shipper from job settings and cfg.
func New(job jobtypes.Job, apiURL, apiKey string, cfg *config.WorkerConfig, logger *slog.Logger) (*Worker, error) {
	seed, err := scope.NewSeed(primarySeedURL(job))
	if err != nil {
		return nil, err
	}
	filter := scope.NewFilter(job.Settings.Scope, []scope.Seed{seed})

	maxDepth := job.Settings.MaxDepth
	if maxDepth == 0 && job.Settings.CrawlMode == jobtypes.CrawlModeFull {
		maxDepth = jobtypes.DefaultMaxDepth(job.Settings.CrawlMode)
	}

	httpFetcher, err := fetcher.NewHTTPFetcher(&cfg.Fetcher, cfg.Engine.RequestTimeout, logger)
	if err != nil {
		return nil, err
	}
	var browserFetcher fetcher.Fetcher
	if job.Settings.JSMode != jobtypes.JSModeOff {
		bf, berr := fetcher.NewBrowserFetcher(&cfg.Fetcher, cfg.Engine.RendererTimeout, cfg.Engine.Concurrency, fetcher.PermissiveProfile(), logger)
		if berr != nil {
			logger.Warn("browser fetcher unavailable, falling back to plain HTTP", "error", berr)
		} else {
			browserFetcher = bf
		}
	}
	facade := fetcher.NewFacade(job.Settings.JSMode, httpFetcher, browserFetcher)

	fr := frontier.New(filter, job.Settings.MaxPages)
	throttle := frontier.NewThrottle(cfg.Engine.PerHostMinDelay)

	ship := shipper.New(apiURL, apiKey, job.ID, job.ProjectID, cfg.Shipper.BatchSize, logger)
	if cfg.MongoURI != "" {
		sink, serr := mongosink.New(cfg.MongoURI, "siteprobe", "page_results", logger)
		if serr != nil {
			logger.Warn("mongo auxiliary sink unavailable, continuing without it", "error", serr)
		} else {
			ship = ship.WithMongoSink(sink)
		}
	}
	ing := sitemap.NewIngester(cfg.Sitemap, job.Settings.SitemapAlternateLinks, logger)

	w := &Worker{
		job:      job,
		cfg:      cfg,
		logger:   logger.With("job_id", job.ID),
		facade:   facade,
		frontier: fr,
		ship:     ship,
		ingester: ing,
		pauseCh:  make(chan struct{}),
	}
	w.sched = frontier.NewScheduler(fr, throttle, cfg.Engine.Concurrency, cfg.Engine.PerHostConcurrency, w.fetchOne(maxDepth), logger)
	return w, nil
}

// primarySeedURL picks the URL the scope filter is anchored on.
func primarySeedURL(job jobtypes.Job) string {
	if len(job.Settings.URLs) > 0 {
		return job.Settings.URLs[0]
	}
	return "https://" + job.Domain
}

// Run seeds the frontier per crawl mode, drains it via the scheduler, and
// ships a final batch. It installs a SIGTERM handler that drains in-flight
// fetches before returning (spec §5 cancellation & timeouts).
func (w *Worker) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigCh)
	go w.handleSignals(sigCh, cancel)

	w.ship.Open(ctx)
	defer w.ship.Close(ctx)

	if err := w.seed(ctx); err != nil {
		w.logger.Error("seed construction failed", "error", err)
		return err
	}

	w.sched.Run(ctx)
	return nil
}

// handleSignals maps SIGUSR1/SIGUSR2 to pause/resume (the supervisor sends
// these to request cooperative pause) and SIGTERM to graceful shutdown.
func (w *Worker) handleSignals(sigCh chan os.Signal, cancel context.CancelFunc) {
	for sig := range sigCh {
		switch sig {
		case syscall.SIGTERM:
			w.logger.Info("received SIGTERM, draining in-flight fetches")
			cancel()
			return
		case syscall.SIGUSR1:
			w.Pause()
		case syscall.SIGUSR2:
			w.Resume()
		}
	}
}

// Pause blocks new fetch dispatch at the next fetch-completion boundary
// (spec §4.2, §9 "signal-driven cooperative pause").
func (w *Worker) Pause() {
	w.pauseMu.Lock()
	defer w.pauseMu.Unlock()
	if w.paused {
		return
	}
	w.paused = true
	w.pauseCh = make(chan struct{})
}

// Resume is idempotent (spec §5).
func (w *Worker) Resume() {
	w.pauseMu.Lock()
	defer w.pauseMu.Unlock()
	if !w.paused {
		return
	}
	w.paused = false
	close(w.pauseCh)
}

func (w *Worker) waitIfPaused(ctx context.Context) {
	w.pauseMu.Lock()
	ch := w.pauseCh
	paused := w.paused
	w.pauseMu.Unlock()
	if !paused {
		return
	}
	select {
	case <-ch:
	case <-ctx.Done():
	}
}

// seed constructs the initial frontier contents per crawl mode (spec §6 crawlMode).
func (w *Worker) seed(ctx context.Context) error {
	var records []jobtypes.URLRecord

	switch w.job.Settings.CrawlMode {
	case jobtypes.CrawlModeSitemap:
		entries, err := w.ingester.Ingest(ctx, []string{w.job.Settings.SitemapURL})
		if err != nil {
			return err
		}
		for _, e := range entries {
			records = append(records, jobtypes.URLRecord{URL: e.Loc, Depth: 0})
		}
	case jobtypes.CrawlModeURLsOnly:
		for _, u := range w.job.Settings.URLs {
			records = append(records, jobtypes.URLRecord{URL: u, Depth: 0})
		}
	case jobtypes.CrawlModeAllExisting:
		// spec §9 open question: no seed construction is specified beyond the
		// max_depth=0 default; behaves like urls_only against the job's
		// already-known URL list.
		for _, u := range w.job.Settings.URLs {
			records = append(records, jobtypes.URLRecord{URL: u, Depth: 0})
		}
	default: // full
		if len(w.job.Settings.URLs) > 0 {
			for _, u := range w.job.Settings.URLs {
				records = append(records, jobtypes.URLRecord{URL: u, Depth: 0})
			}
		} else {
			records = append(records, jobtypes.URLRecord{URL: primarySeedURL(w.job), Depth: 0})
		}
	}

	n := w.frontier.Seed(records)
	w.ship.MarkQueued(n)
	return nil
}

// fetchOne returns the per-record fetch+extract+enqueue callback the
// scheduler drives, closed over maxDepth.
func (w *Worker) fetchOne(maxDepth int) frontier.FetchFunc {
	return func(ctx context.Context, rec jobtypes.URLRecord) ([]jobtypes.URLRecord, error) {
		w.waitIfPaused(ctx)

		res, err := w.facade.Fetch(ctx, rec.URL, rec.Depth)
		if err != nil {
			w.ship.Add(ctx, *jobtypes.NewErrorResult(rec.URL, rec.Depth, rec.Referrer, err))
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
		w.ship.Add(ctx, *pr)

		if rec.Depth >= maxDepth || w.job.Settings.CrawlMode != jobtypes.CrawlModeFull {
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
		w.ship.MarkQueued(len(discovered))
		return discovered, nil
	}
}


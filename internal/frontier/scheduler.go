package frontier

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/siteprobe/siteprobe/internal/jobtypes"
)

// FetchFunc performs one fetch+extract cycle for a URL record and returns the
// links it discovered for further enqueue (the worker package supplies this;
// the scheduler only owns concurrency, throttling, and idle detection).
type FetchFunc func(ctx context.Context, rec jobtypes.URLRecord) (discovered []jobtypes.URLRecord, err error)

// idleTicksBeforeClose mirrors the teacher's idleMonitor, which only treats
// the engine as drained after 3 consecutive empty polls (internal/engine/scheduler.go),
// to avoid racing a Pop against an in-flight worker's Enqueue.
const idleTicksBeforeClose = 3

const idlePollInterval = 200 * time.Millisecond

// Scheduler drives a Frontier with a global worker pool (sourcegraph/conc)
// and a per-host semaphore + Throttle, closing the frontier once it has been
// empty with no in-flight work for idleTicksBeforeClose consecutive polls.
type Scheduler struct {
	frontier  *Frontier
	throttle  *Throttle
	fetch     FetchFunc
	logger    *slog.Logger

	concurrency int
	perHost     int

	hostSemMu sync.Mutex
	hostSem   map[string]chan struct{}

	active   int64
	activeMu sync.Mutex
}

// NewScheduler builds a Scheduler. concurrency bounds total simultaneous
// fetches; perHost bounds simultaneous fetches to a single host.
func NewScheduler(f *Frontier, throttle *Throttle, concurrency, perHost int, fetch FetchFunc, logger *slog.Logger) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	if perHost < 1 {
		perHost = 1
	}
	return &Scheduler{
		frontier:    f,
		throttle:    throttle,
		fetch:       fetch,
		logger:      logger.With("component", "scheduler"),
		concurrency: concurrency,
		perHost:     perHost,
		hostSem:     make(map[string]chan struct{}),
	}
}

// Run drains the frontier until it closes itself (idle-detected) or ctx is
// cancelled. It blocks until every in-flight worker has returned.
func (s *Scheduler) Run(ctx context.Context) {
	p := pool.New().WithContext(ctx).WithMaxGoroutines(s.concurrency)

	idle := 0
	for {
		select {
		case <-ctx.Done():
			p.Wait()
			return
		default:
		}

		rec, ok := s.frontier.TryPop()
		if !ok {
			if s.frontier.IsClosed() && s.activeCount() == 0 {
				p.Wait()
				return
			}
			idle++
			if idle >= idleTicksBeforeClose && s.activeCount() == 0 {
				s.frontier.Close()
				p.Wait()
				return
			}
			time.Sleep(idlePollInterval)
			continue
		}
		idle = 0

		s.incActive()
		p.Go(func(ctx context.Context) error {
			defer s.decActive()
			s.processOne(ctx, rec)
			return nil
		})
	}
}

func (s *Scheduler) processOne(ctx context.Context, rec jobtypes.URLRecord) {
	host := hostOf(rec.URL)
	sem := s.semFor(host)

	select {
	case sem <- struct{}{}:
		defer func() { <-sem }()
	case <-ctx.Done():
		return
	}

	s.throttle.Wait(host)

	start := time.Now()
	discovered, err := s.fetch(ctx, rec)
	s.throttle.Observe(host, time.Since(start))
	if err != nil {
		s.logger.Warn("fetch failed", "url", rec.URL, "error", err)
		return
	}
	for _, d := range discovered {
		s.frontier.Enqueue(d)
	}
}

func (s *Scheduler) semFor(host string) chan struct{} {
	s.hostSemMu.Lock()
	defer s.hostSemMu.Unlock()
	sem, ok := s.hostSem[host]
	if !ok {
		sem = make(chan struct{}, s.perHost)
		s.hostSem[host] = sem
	}
	return sem
}

func (s *Scheduler) incActive() {
	s.activeMu.Lock()
	s.active++
	s.activeMu.Unlock()
}

func (s *Scheduler) decActive() {
	s.activeMu.Lock()
	s.active--
	s.activeMu.Unlock()
}

func (s *Scheduler) activeCount() int64 {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	return s.active
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}

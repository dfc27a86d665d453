// Package supervisor spawns, tracks and retries worker processes, one OS
// process per job (spec §4.1, §9 "subprocess+signals for per-job isolation").
// Grounded on internal/distributed/master.go's lock-protected node/task maps,
// generalized here to a lock-protected job/worker map with a poller and a
// retry scheduler driven by github.com/robfig/cron/v3, as used for periodic
// background loops in ternarybob-quaero.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/siteprobe/siteprobe/internal/backend"
	"github.com/siteprobe/siteprobe/internal/config"
	"github.com/siteprobe/siteprobe/internal/jobtypes"
	"github.com/siteprobe/siteprobe/internal/observability"
)

// KillGraceTimeout bounds how long a killed worker has to exit cleanly
// before the supervisor escalates to SIGKILL (spec §5).
const KillGraceTimeout = 5 * time.Second

// Supervisor owns the worker map and the background poller/retry loops.
// All mutation of the worker map — spawn check, status transition, pruning —
// happens while mu is held (spec §5 "Supervisor is multi-threaded... Mutation
// of the worker map... requires holding a supervisor-wide mutex").
type Supervisor struct {
	cfg    *config.SupervisorConfig
	backend *backend.Client
	logger *slog.Logger

	mu      sync.Mutex
	workers map[string]*jobtypes.WorkerRecord
	procs   map[string]*exec.Cmd

	cron *cron.Cron

	// retryDisabled is set permanently once the retry scheduler detects a
	// backend schema incompatibility (spec §4.1, §7 error kind 4); the
	// poller is unaffected and keeps running.
	retryDisabled atomic.Bool
	// pollErrorStreak counts consecutive poll failures for log-rate-limiting
	// (spec §4.1 "Queue-poller loop"): logged once on the first failure,
	// silently counted thereafter with a reminder every pollErrorReminderEvery.
	pollErrorStreak atomic.Int64
}

// pollErrorReminderEvery is the consecutive-failure cadence at which the
// poller re-logs a reminder instead of staying silent (spec §4.1).
const pollErrorReminderEvery = 60

// New builds a Supervisor bound to a job-backend client.
func New(cfg *config.SupervisorConfig, be *backend.Client, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		cfg:     cfg,
		backend: be,
		logger:  logger.With("component", "supervisor"),
		workers: make(map[string]*jobtypes.WorkerRecord),
		procs:   make(map[string]*exec.Cmd),
		cron:    cron.New(),
	}
}

// workerRecordRetention bounds how long a terminal worker record (and its
// ring buffer) stays in memory after the process exits, before the GC sweep
// reclaims it.
const workerRecordRetention = 30 * time.Minute

// Start installs the poller ("@every 5s"), retry ("@every 30s") and
// worker-record GC sweep ("@every 5m") cron entries per spec §4.1, honoring
// NoWatcher/NoRetry, and starts the cron scheduler. It does not block.
func (s *Supervisor) Start(ctx context.Context) error {
	if !s.cfg.NoWatcher {
		if _, err := s.cron.AddFunc(everySpec(s.pollIntervalOrDefault()), func() { s.poll(ctx) }); err != nil {
			return fmt.Errorf("install poller: %w", err)
		}
	}
	if !s.cfg.NoRetry {
		if _, err := s.cron.AddFunc(everySpec(s.retryIntervalOrDefault()), func() { s.retryFailed(ctx) }); err != nil {
			return fmt.Errorf("install retry scheduler: %w", err)
		}
	}
	if _, err := s.cron.AddFunc("@every 5m", s.gcWorkerRecords); err != nil {
		return fmt.Errorf("install worker-record GC sweep: %w", err)
	}
	s.cron.Start()
	return nil
}

// gcWorkerRecords prunes worker records that finished more than
// workerRecordRetention ago, keeping List/Status from growing unbounded
// across a long-lived supervisor process.
func (s *Supervisor) gcWorkerRecords() {
	cutoff := time.Now().Add(-workerRecordRetention)

	s.mu.Lock()
	defer s.mu.Unlock()
	for jobID, rec := range s.workers {
		if rec.FinishedAt == nil || rec.FinishedAt.After(cutoff) {
			continue
		}
		delete(s.workers, jobID)
	}
}

// Stop halts the cron scheduler and waits for in-flight cron jobs to finish.
func (s *Supervisor) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Supervisor) pollIntervalOrDefault() time.Duration {
	if s.cfg.PollInterval > 0 {
		return s.cfg.PollInterval
	}
	return 5 * time.Second
}

func (s *Supervisor) retryIntervalOrDefault() time.Duration {
	if s.cfg.RetryInterval > 0 {
		return s.cfg.RetryInterval
	}
	return 30 * time.Second
}

func everySpec(d time.Duration) string {
	return "@every " + d.String()
}

// poll claims pending jobs from the backend (select pending ordered by
// created_at asc; conditional update pending -> running, spec §6) and spawns
// a worker for each. Upstream transient failures are log-rate-limited (spec
// §4.1): the first occurrence logs at Warn, subsequent consecutive failures
// are silently counted with a reminder every pollErrorReminderEvery
// iterations, and a single "restored" notice logs once a poll succeeds again.
func (s *Supervisor) poll(ctx context.Context) {
	jobs, err := s.backend.ClaimPending(ctx)
	if err != nil {
		streak := s.pollErrorStreak.Add(1)
		switch {
		case streak == 1:
			s.logger.Warn("poll claim failed", "error", err)
		case streak%pollErrorReminderEvery == 0:
			s.logger.Warn("poll claim still failing", "error", err, "consecutive_failures", streak)
		}
		return
	}
	if s.pollErrorStreak.Swap(0) > 0 {
		s.logger.Info("poll restored")
	}
	for _, job := range jobs {
		if err := s.Spawn(ctx, job); err != nil {
			s.logger.Error("spawn failed", "job_id", job.ID, "error", err)
		}
	}
}

// retryFailed re-spawns jobs eligible for retry (spec §4.1 backoff 2^n min,
// §8 "either retry_count >= max_retries holds... or a successful spawn was
// attempted max_retries times"). Permanently disables itself, logging once,
// on detecting a persistent schema incompatibility with the queue backend
// (spec §4.1, §7 error kind 4); the poller is unaffected and keeps running.
func (s *Supervisor) retryFailed(ctx context.Context) {
	if s.retryDisabled.Load() {
		return
	}

	jobs, err := s.backend.ListFailed(ctx, s.maxRetriesOrDefault())
	if err != nil {
		var schemaErr *backend.BackendSchemaError
		if errors.As(err, &schemaErr) {
			s.retryDisabled.Store(true)
			s.logger.Error("retry scheduler permanently disabled: backend schema incompatibility", "error", schemaErr)
			return
		}
		s.logger.Warn("retry list failed", "error", err)
		return
	}
	for _, job := range jobs {
		if job.FailedAt == nil {
			continue
		}
		if time.Since(*job.FailedAt) < jobtypes.Backoff(job.RetryCount) {
			continue
		}
		job.RetryCount++
		if err := s.backend.MarkRetrying(ctx, job); err != nil {
			s.logger.Warn("retry mark failed", "job_id", job.ID, "error", err)
			continue
		}
		if err := s.Spawn(ctx, job); err != nil {
			s.logger.Error("retry spawn failed", "job_id", job.ID, "error", err)
		}
	}
}

func (s *Supervisor) maxRetriesOrDefault() int {
	if s.cfg.MaxRetries > 0 {
		return s.cfg.MaxRetries
	}
	return jobtypes.DefaultMaxRetries
}

// Spawn launches one worker subprocess for job, capturing its stdout into a
// bounded ring buffer via a dedicated reader goroutine (spec §5 "one
// stdout-reader thread per live worker").
func (s *Supervisor) Spawn(ctx context.Context, job jobtypes.Job) error {
	s.mu.Lock()
	if rec, exists := s.workers[job.ID]; exists && rec.Status == jobtypes.StatusRunning {
		s.mu.Unlock()
		return fmt.Errorf("job %s already running", job.ID)
	}
	s.mu.Unlock()

	binary := s.cfg.WorkerBinary
	if binary == "" {
		binary = "siteprobe-worker"
	}
	cmd := exec.CommandContext(ctx, binary,
		"--job-id", job.ID,
		"--api-url", s.cfg.APIURL,
		"--project-id", job.ProjectID,
		"--domain", job.Domain,
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}

	// spawnID correlates this spawn's log line with the readStdout/wait
	// goroutines' log lines for the same process, since job IDs get reused
	// across retries but a spawn attempt is unique.
	spawnID := uuid.NewString()

	rec := &jobtypes.WorkerRecord{
		JobID:      job.ID,
		PID:        cmd.Process.Pid,
		Status:     jobtypes.StatusRunning,
		StartedAt:  time.Now(),
		RingBuffer: jobtypes.NewRingBuffer(jobtypes.RingBufferSize),
	}

	s.mu.Lock()
	s.workers[job.ID] = rec
	s.procs[job.ID] = cmd
	s.mu.Unlock()

	log := s.logger.With("spawn_id", spawnID)
	go s.readStdout(job.ID, stdout)
	go s.wait(job.ID, cmd, log)

	log.Info("worker spawned", "job_id", job.ID, "pid", rec.PID)
	return nil
}

func (s *Supervisor) readStdout(jobID string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		s.mu.Lock()
		if rec, ok := s.workers[jobID]; ok {
			rec.RingBuffer.Push(line)
		}
		s.mu.Unlock()
	}
}

func (s *Supervisor) wait(jobID string, cmd *exec.Cmd, log *slog.Logger) {
	err := cmd.Wait()
	code := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	s.mu.Lock()
	rec, ok := s.workers[jobID]
	if ok {
		now := time.Now()
		rec.FinishedAt = &now
		rec.ExitCode = &code
		if code == 0 {
			rec.Status = jobtypes.StatusCompleted
		} else {
			rec.Status = jobtypes.StatusFailed
		}
	}
	delete(s.procs, jobID)
	s.mu.Unlock()

	log.Info("worker exited", "job_id", jobID, "exit_code", code)
}

// Pause sends SIGUSR1 to the worker's process group, requesting cooperative
// pause (worker.go installs the corresponding signal handler).
func (s *Supervisor) Pause(jobID string) error {
	return s.signal(jobID, syscall.SIGUSR1, jobtypes.StatusPaused)
}

// Resume sends SIGUSR2, requesting the worker resume.
func (s *Supervisor) Resume(jobID string) error {
	return s.signal(jobID, syscall.SIGUSR2, jobtypes.StatusRunning)
}

func (s *Supervisor) signal(jobID string, sig syscall.Signal, newStatus jobtypes.Status) error {
	s.mu.Lock()
	cmd, ok := s.procs[jobID]
	rec := s.workers[jobID]
	s.mu.Unlock()
	if !ok || cmd.Process == nil {
		return fmt.Errorf("no running worker for job %s", jobID)
	}
	if err := cmd.Process.Signal(sig); err != nil {
		return err
	}
	s.mu.Lock()
	if rec != nil {
		rec.Status = newStatus
	}
	s.mu.Unlock()
	return nil
}

// Kill sends SIGTERM and escalates to SIGKILL after KillGraceTimeout if the
// process has not exited (spec §5 "kill-grace timeout (5 s)").
func (s *Supervisor) Kill(jobID string) error {
	s.mu.Lock()
	cmd, ok := s.procs[jobID]
	s.mu.Unlock()
	if !ok || cmd.Process == nil {
		return fmt.Errorf("no running worker for job %s", jobID)
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return err
	}

	go func() {
		timer := time.NewTimer(KillGraceTimeout)
		defer timer.Stop()
		done := make(chan struct{})
		go func() {
			_ = cmd.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-timer.C:
			_ = cmd.Process.Kill()
		}
	}()

	s.mu.Lock()
	if rec, ok := s.workers[jobID]; ok {
		rec.Status = jobtypes.StatusKilled
	}
	s.mu.Unlock()
	return nil
}

// Status returns a copy of the worker record and its last StatusLogLines
// of captured stdout, for GET /status/:job_id.
func (s *Supervisor) Status(jobID string) (jobtypes.WorkerRecord, []string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.workers[jobID]
	if !ok {
		return jobtypes.WorkerRecord{}, nil, false
	}
	return *rec, rec.RingBuffer.Last(jobtypes.StatusLogLines), true
}

// List returns a snapshot of every tracked worker record.
func (s *Supervisor) List() []jobtypes.WorkerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]jobtypes.WorkerRecord, 0, len(s.workers))
	for _, rec := range s.workers {
		out = append(out, *rec)
	}
	return out
}

// GaugeSnapshot reads the supervisor's current worker-map state for the
// /metrics endpoint (tracked jobs by status, retry-disabled flag, poller
// error-streak).
func (s *Supervisor) GaugeSnapshot() observability.SupervisorGaugeSnapshot {
	s.mu.Lock()
	byStatus := make(map[string]int64, len(s.workers))
	for _, rec := range s.workers {
		byStatus[string(rec.Status)]++
	}
	s.mu.Unlock()

	return observability.SupervisorGaugeSnapshot{
		JobsByStatus:    byStatus,
		RetryDisabled:   s.retryDisabled.Load(),
		PollErrorStreak: s.pollErrorStreak.Load(),
	}
}

// Command siteprobe-worker runs exactly one crawl job to completion, per
// spec §6 "CLI (worker)". It is the subprocess the supervisor spawns via
// internal/supervisor.Spawn; it can also be invoked by hand against any
// job-backend URL. Grounded on cmd/webstalk/main.go's cobra root command and
// setupLogger idiom, generalized from a multi-subcommand CLI to a single
// one-shot command matching this process's one job.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/siteprobe/siteprobe/internal/backend"
	"github.com/siteprobe/siteprobe/internal/config"
	"github.com/siteprobe/siteprobe/internal/jobtypes"
	"github.com/siteprobe/siteprobe/internal/worker"
)

var (
	cfgFile  string
	verbose  bool
	logLevel string

	jobID     string
	apiURL    string
	projectID string
	domain    string
	scope     string
	jsMode    string
	maxPages  int
	maxDepth  int
	mongoURI  string
)

func main() {
	cmd := &cobra.Command{
		Use:   "siteprobe-worker",
		Short: "Run a single SiteProbe crawl job to completion",
		Long: `siteprobe-worker runs exactly one crawl job: it fetches the job's
settings from the ingestion API, crawls per its scope/crawlMode, extracts SEO
and GEO signals from every page, and ships batched results back. It exits 0
on a clean run and non-zero on any fatal error.`,
		RunE: runWorker,
	}

	cmd.Flags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level override: debug/info/warn/error")

	cmd.Flags().StringVar(&jobID, "job-id", "", "job ID to run (required)")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "ingestion API base URL (required)")
	cmd.Flags().StringVar(&projectID, "project-id", "", "override the job's project ID")
	cmd.Flags().StringVar(&domain, "domain", "", "override the job's seed domain")
	cmd.Flags().StringVar(&scope, "scope", "", "override crawl scope: subdomain/domain/subfolder/subdomain+subfolder")
	cmd.Flags().StringVar(&jsMode, "js-mode", "", "override rendering mode: off/auto/full")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "override the job's page cap (0 = use job setting)")
	cmd.Flags().IntVar(&maxDepth, "max-depth", -1, "override the job's max crawl depth (-1 = use job setting)")
	cmd.Flags().StringVar(&mongoURI, "mongo-uri", "", "optional MongoDB URI for a best-effort auxiliary result sink")
	cmd.MarkFlagRequired("job-id")
	cmd.MarkFlagRequired("api-url")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWorker(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.JobID = jobID
	cfg.APIURL = apiURL
	if projectID != "" {
		cfg.ProjectID = projectID
	}
	if domain != "" {
		cfg.Domain = domain
	}
	if scope != "" {
		cfg.Scope = scope
	}
	if jsMode != "" {
		cfg.JSMode = jsMode
	}
	if maxPages > 0 {
		cfg.MaxPages = maxPages
	}
	if maxDepth >= 0 {
		cfg.MaxDepth = maxDepth
	}
	if mongoURI != "" {
		cfg.MongoURI = mongoURI
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	} else if verbose {
		cfg.Logging.Level = "debug"
	}

	if err := config.ValidateWorker(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(cfg.Logging.Level)
	ctx := context.Background()

	be := backend.New(cfg.APIURL, cfg.APIKey, "", "")
	job, err := be.GetJob(ctx, cfg.JobID)
	if err != nil {
		return fmt.Errorf("fetch job: %w", err)
	}
	applyJobOverrides(&job)

	w, err := worker.New(job, cfg.APIURL, cfg.APIKey, cfg, logger)
	if err != nil {
		return fmt.Errorf("build worker: %w", err)
	}

	logger.Info("worker starting",
		"job_id", job.ID,
		"crawl_mode", job.Settings.CrawlMode,
		"scope", job.Settings.Scope,
		"js_mode", job.Settings.JSMode,
	)

	if err := w.Run(ctx); err != nil {
		logger.Error("worker run failed", "error", err)
		return err
	}

	logger.Info("worker finished", "job_id", job.ID)
	return nil
}

// applyJobOverrides layers CLI overrides onto the job fetched from the
// backend, matching spec §6's worker CLI override set.
func applyJobOverrides(job *jobtypes.Job) {
	if projectID != "" {
		job.ProjectID = projectID
	}
	if domain != "" {
		job.Domain = domain
	}
	if scope != "" {
		job.Settings.Scope = jobtypes.Scope(scope)
	}
	if jsMode != "" {
		job.Settings.JSMode = jobtypes.JSMode(jsMode)
	}
	if maxPages > 0 {
		job.Settings.MaxPages = maxPages
	}
	if maxDepth >= 0 {
		job.Settings.MaxDepth = maxDepth
	}
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}

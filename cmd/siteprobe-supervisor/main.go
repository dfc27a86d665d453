// Command siteprobe-supervisor spawns and tracks siteprobe-worker processes,
// one per job, and exposes the authenticated HTTP control surface described
// in spec §4.1/§6. Grounded on cmd/webstalk/main.go's cobra root command and
// setupLogger idiom.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/siteprobe/siteprobe/internal/apisurface"
	"github.com/siteprobe/siteprobe/internal/backend"
	"github.com/siteprobe/siteprobe/internal/config"
	"github.com/siteprobe/siteprobe/internal/supervisor"
)

var (
	cfgFile string
	verbose bool

	port        int
	apiURL      string
	supabaseURL string
	supabaseKey string
	apiKey      string
	noWatcher   bool
	noRetry     bool
)

func main() {
	cmd := &cobra.Command{
		Use:   "siteprobe-supervisor",
		Short: "Supervise SiteProbe worker processes",
		Long: `siteprobe-supervisor polls the job backend for pending crawl jobs, spawns
one siteprobe-worker subprocess per job, retries failed jobs on a backoff
schedule, and exposes an authenticated HTTP control surface for spawning,
pausing, resuming, killing and inspecting workers.`,
		RunE: runSupervisor,
	}

	cmd.Flags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.Flags().IntVar(&port, "port", 0, "HTTP control-surface port (0 = use config default)")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "ingestion API base URL")
	cmd.Flags().StringVar(&supabaseURL, "supabase-url", "", "Supabase project URL (crawl_jobs table access)")
	cmd.Flags().StringVar(&supabaseKey, "supabase-key", "", "Supabase service-role key")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "bearer token required on the control surface")
	cmd.Flags().BoolVar(&noWatcher, "no-watcher", false, "disable the pending-job poller")
	cmd.Flags().BoolVar(&noRetry, "no-retry", false, "disable the failed-job retry scheduler")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSupervisor(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadSupervisor(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port > 0 {
		cfg.Port = port
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if supabaseURL != "" {
		cfg.SupabaseURL = supabaseURL
	}
	if supabaseKey != "" {
		cfg.SupabaseKey = supabaseKey
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	if noWatcher {
		cfg.NoWatcher = true
	}
	if noRetry {
		cfg.NoRetry = true
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	if err := config.ValidateSupervisor(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(cfg.Logging.Level)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	be := backend.New(cfg.APIURL, cfg.APIKey, cfg.SupabaseURL, cfg.SupabaseKey)
	sup := supervisor.New(cfg, be, logger)
	if err := sup.Start(ctx); err != nil {
		return fmt.Errorf("start supervisor: %w", err)
	}
	defer sup.Stop()

	srv := apisurface.New(sup, be, cfg.APIKey, logger)
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("control surface listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig)
	case err := <-errCh:
		logger.Error("control surface failed", "error", err)
		return err
	}

	cancel()
	return httpSrv.Close()
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

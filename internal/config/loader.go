package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadWorker reads worker configuration from env vars and an optional file,
// with precedence env vars > config file > defaults. CLI flags are not read
// here; callers apply them to the returned config afterwards.
func LoadWorker(configPath string) (*WorkerConfig, error) {
	cfg := DefaultWorkerConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	setWorkerDefaults(v, cfg)

	v.SetEnvPrefix("SITEPROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Environment fallback named explicitly in spec §6 for the supervisor,
	// also honored here since the worker authenticates against the same
	// ingestion API.
	v.BindEnv("api_key", "SITEPROBE_API_KEY")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal worker config: %w", err)
	}
	return cfg, nil
}

// LoadSupervisor reads supervisor configuration from env vars and an
// optional file, using the same precedence as LoadWorker.
func LoadSupervisor(configPath string) (*SupervisorConfig, error) {
	cfg := DefaultSupervisorConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	setSupervisorDefaults(v, cfg)

	v.SetEnvPrefix("SITEPROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Environment fallbacks named explicitly in spec §6.
	v.BindEnv("supabase_url", "SUPABASE_URL")
	v.BindEnv("supabase_key", "SUPABASE_KEY")
	v.BindEnv("api_key", "SITEPROBE_API_KEY")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal supervisor config: %w", err)
	}
	return cfg, nil
}

func setWorkerDefaults(v *viper.Viper, cfg *WorkerConfig) {
	v.SetDefault("scope", cfg.Scope)
	v.SetDefault("js_mode", cfg.JSMode)
	v.SetDefault("max_pages", cfg.MaxPages)
	v.SetDefault("max_depth", cfg.MaxDepth)
	v.SetDefault("engine.concurrency", cfg.Engine.Concurrency)
	v.SetDefault("engine.per_host_concurrency", cfg.Engine.PerHostConcurrency)
	v.SetDefault("engine.per_host_min_delay", cfg.Engine.PerHostMinDelay)
	v.SetDefault("engine.request_timeout", cfg.Engine.RequestTimeout)
	v.SetDefault("engine.renderer_timeout", cfg.Engine.RendererTimeout)
	v.SetDefault("engine.max_retries", cfg.Engine.MaxRetries)
	v.SetDefault("fetcher.user_agent", cfg.Fetcher.UserAgent)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.screenshot_dir", cfg.Fetcher.ScreenshotDir)
	v.SetDefault("sitemap.max_recursion_depth", cfg.Sitemap.MaxRecursionDepth)
	v.SetDefault("sitemap.max_urls", cfg.Sitemap.MaxURLs)
	v.SetDefault("sitemap.max_gzip_bytes", cfg.Sitemap.MaxGzipBytes)
	v.SetDefault("sitemap.fetch_timeout", cfg.Sitemap.FetchTimeout)
	v.SetDefault("shipper.batch_size", cfg.Shipper.BatchSize)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}

func setSupervisorDefaults(v *viper.Viper, cfg *SupervisorConfig) {
	v.SetDefault("port", cfg.Port)
	v.SetDefault("max_retries", cfg.MaxRetries)
	v.SetDefault("poll_interval", cfg.PollInterval)
	v.SetDefault("retry_interval", cfg.RetryInterval)
	v.SetDefault("worker_binary", cfg.WorkerBinary)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}

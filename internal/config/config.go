// Package config holds the worker's and supervisor's runtime configuration,
// loaded from CLI flags, environment variables and (optionally) a config
// file via viper, following the precedence the teacher established in its
// own loader: CLI flags > env vars > config file > defaults.
package config

import "time"

// Version is set at build time via ldflags.
var Version = "dev"

// WorkerConfig is the root configuration for the siteprobe-worker process.
type WorkerConfig struct {
	JobID     string `mapstructure:"job_id"`
	APIURL    string `mapstructure:"api_url"`
	APIKey    string `mapstructure:"api_key"`
	ProjectID string `mapstructure:"project_id"`
	Domain    string `mapstructure:"domain"`
	Scope     string `mapstructure:"scope"`
	JSMode    string `mapstructure:"js_mode"`
	MaxPages  int    `mapstructure:"max_pages"`
	MaxDepth  int    `mapstructure:"max_depth"`

	Engine    EngineConfig    `mapstructure:"engine"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Sitemap   SitemapConfig   `mapstructure:"sitemap"`
	Shipper   ShipperConfig   `mapstructure:"shipper"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	OutputDir string          `mapstructure:"output_dir"`
	MongoURI  string          `mapstructure:"mongo_uri"`
}

// EngineConfig controls the crawl engine's frontier/scheduler.
type EngineConfig struct {
	Concurrency        int           `mapstructure:"concurrency"`
	PerHostConcurrency int           `mapstructure:"per_host_concurrency"`
	PerHostMinDelay    time.Duration `mapstructure:"per_host_min_delay"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	RendererTimeout    time.Duration `mapstructure:"renderer_timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
}

// FetcherConfig controls the HTTP/renderer fetchers.
type FetcherConfig struct {
	UserAgent       string `mapstructure:"user_agent"`
	FollowRedirects bool   `mapstructure:"follow_redirects"`
	MaxRedirects    int    `mapstructure:"max_redirects"`
	MaxBodySize     int64  `mapstructure:"max_body_size"`
	ScreenshotDir   string `mapstructure:"screenshot_dir"`
}

// SitemapConfig bounds sitemap ingestion (spec §4.2, §3 invariants).
type SitemapConfig struct {
	MaxRecursionDepth int   `mapstructure:"max_recursion_depth"`
	MaxURLs           int   `mapstructure:"max_urls"`
	MaxGzipBytes      int64 `mapstructure:"max_gzip_bytes"`
	FetchTimeout      time.Duration `mapstructure:"fetch_timeout"`
}

// ShipperConfig controls result batching/transmission.
type ShipperConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SupervisorConfig is the root configuration for siteprobe-supervisor.
type SupervisorConfig struct {
	Port         int    `mapstructure:"port"`
	APIURL       string `mapstructure:"api_url"`
	SupabaseURL  string `mapstructure:"supabase_url"`
	SupabaseKey  string `mapstructure:"supabase_key"`
	APIKey       string `mapstructure:"api_key"`
	NoWatcher    bool   `mapstructure:"no_watcher"`
	NoRetry      bool   `mapstructure:"no_retry"`
	MaxRetries   int    `mapstructure:"max_retries"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	WorkerBinary string `mapstructure:"worker_binary"`
	Logging      LoggingConfig `mapstructure:"logging"`
}

// DefaultWorkerConfig returns a WorkerConfig with sensible defaults.
func DefaultWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		Scope:    "domain",
		JSMode:   "off",
		MaxPages: 500,
		MaxDepth: 10,
		Engine: EngineConfig{
			Concurrency:        8,
			PerHostConcurrency: 4,
			PerHostMinDelay:    0,
			RequestTimeout:     30 * time.Second,
			RendererTimeout:    30 * time.Second,
			MaxRetries:         2,
		},
		Fetcher: FetcherConfig{
			UserAgent:       "Mozilla/5.0 (compatible; SiteProbeBot/1.0; +https://siteprobe.example/bot)",
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024,
			ScreenshotDir:   "screenshots",
		},
		Sitemap: SitemapConfig{
			MaxRecursionDepth: 5,
			MaxURLs:           100000,
			MaxGzipBytes:      10 * 1024 * 1024,
			FetchTimeout:      30 * time.Second,
		},
		Shipper: ShipperConfig{
			BatchSize: 50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultSupervisorConfig returns a SupervisorConfig with sensible defaults.
func DefaultSupervisorConfig() *SupervisorConfig {
	return &SupervisorConfig{
		Port:          8080,
		MaxRetries:    3,
		PollInterval:  5 * time.Second,
		RetryInterval: 30 * time.Second,
		WorkerBinary:  "siteprobe-worker",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

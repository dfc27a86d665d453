package config

import (
	"fmt"
	"net/url"
)

// ValidateWorker checks a worker configuration for invalid values before
// any component is constructed from it.
func ValidateWorker(cfg *WorkerConfig) error {
	if cfg.JobID == "" {
		return fmt.Errorf("job_id is required")
	}
	if cfg.APIURL == "" {
		return fmt.Errorf("api_url is required")
	}
	if err := ValidateURL(cfg.APIURL); err != nil {
		return fmt.Errorf("invalid api_url: %w", err)
	}
	if cfg.Engine.Concurrency < 1 {
		return fmt.Errorf("engine.concurrency must be >= 1, got %d", cfg.Engine.Concurrency)
	}
	if cfg.Engine.RequestTimeout <= 0 {
		return fmt.Errorf("engine.request_timeout must be > 0")
	}
	if cfg.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be >= 0, got %d", cfg.MaxDepth)
	}
	if cfg.MaxPages < 0 {
		return fmt.Errorf("max_pages must be >= 0, got %d", cfg.MaxPages)
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	switch cfg.Scope {
	case "subdomain", "domain", "subfolder", "subdomain+subfolder":
	default:
		return fmt.Errorf("scope must be one of subdomain/domain/subfolder/subdomain+subfolder, got %q", cfg.Scope)
	}
	switch cfg.JSMode {
	case "off", "auto", "full":
	default:
		return fmt.Errorf("js_mode must be off/auto/full, got %q", cfg.JSMode)
	}
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	return nil
}

// ValidateSupervisor checks a supervisor configuration.
func ValidateSupervisor(cfg *SupervisorConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", cfg.Port)
	}
	if cfg.APIURL == "" {
		return fmt.Errorf("api_url is required")
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", cfg.MaxRetries)
	}
	return nil
}

// ValidateURL checks if a URL string is valid for crawling.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

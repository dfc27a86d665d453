package config

import "testing"

func TestValidateURL(t *testing.T) {
	if err := ValidateURL("https://example.com"); err != nil {
		t.Errorf("expected a valid https URL to pass, got %v", err)
	}
	if err := ValidateURL("ftp://example.com"); err == nil {
		t.Error("expected a non-http(s) scheme to be rejected")
	}
	if err := ValidateURL("not a url with spaces and :://"); err == nil {
		t.Error("expected a malformed URL to be rejected")
	}
	if err := ValidateURL("https://"); err == nil {
		t.Error("expected a URL without a host to be rejected")
	}
}

func TestValidateWorkerRequiresJobIDAndAPIURL(t *testing.T) {
	cfg := DefaultWorkerConfig()
	if err := ValidateWorker(cfg); err == nil {
		t.Error("expected validation to fail without job_id/api_url")
	}

	cfg.JobID = "job-1"
	cfg.APIURL = "https://api.example.com"
	if err := ValidateWorker(cfg); err != nil {
		t.Errorf("expected a fully-populated default config to validate, got %v", err)
	}
}

func TestValidateWorkerRejectsBadScope(t *testing.T) {
	cfg := DefaultWorkerConfig()
	cfg.JobID = "job-1"
	cfg.APIURL = "https://api.example.com"
	cfg.Scope = "planet"
	if err := ValidateWorker(cfg); err == nil {
		t.Error("expected an unrecognized scope value to fail validation")
	}
}

func TestValidateWorkerRejectsZeroConcurrency(t *testing.T) {
	cfg := DefaultWorkerConfig()
	cfg.JobID = "job-1"
	cfg.APIURL = "https://api.example.com"
	cfg.Engine.Concurrency = 0
	if err := ValidateWorker(cfg); err == nil {
		t.Error("expected concurrency < 1 to fail validation")
	}
}

func TestValidateSupervisorRequiresAPIURL(t *testing.T) {
	cfg := DefaultSupervisorConfig()
	if err := ValidateSupervisor(cfg); err == nil {
		t.Error("expected validation to fail without api_url")
	}
	cfg.APIURL = "https://api.example.com"
	if err := ValidateSupervisor(cfg); err != nil {
		t.Errorf("expected a fully-populated default config to validate, got %v", err)
	}
}

func TestValidateSupervisorRejectsBadPort(t *testing.T) {
	cfg := DefaultSupervisorConfig()
	cfg.APIURL = "https://api.example.com"
	cfg.Port = 0
	if err := ValidateSupervisor(cfg); err == nil {
		t.Error("expected port 0 to fail validation")
	}
	cfg.Port = 70000
	if err := ValidateSupervisor(cfg); err == nil {
		t.Error("expected port > 65535 to fail validation")
	}
}

func TestLoadWorkerAppliesDefaults(t *testing.T) {
	cfg, err := LoadWorker("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scope != "domain" {
		t.Errorf("expected default scope=domain, got %q", cfg.Scope)
	}
	if cfg.Engine.Concurrency != 8 {
		t.Errorf("expected default concurrency=8, got %d", cfg.Engine.Concurrency)
	}
}

func TestLoadSupervisorAppliesDefaults(t *testing.T) {
	cfg, err := LoadSupervisor("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected default port=8080, got %d", cfg.Port)
	}
	if cfg.WorkerBinary != "siteprobe-worker" {
		t.Errorf("expected default worker_binary=siteprobe-worker, got %q", cfg.WorkerBinary)
	}
}

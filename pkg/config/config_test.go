package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Estimator.ProjectionYears != 10 {
		t.Errorf("expected 10 projection years, got %d", cfg.Estimator.ProjectionYears)
	}
	if cfg.Dataset.Source != SourceCSV {
		t.Errorf("expected csv source, got %q", cfg.Dataset.Source)
	}
	if cfg.Gateway.EstimatorURL != "http://localhost:8080" {
		t.Errorf("expected local estimator url, got %q", cfg.Gateway.EstimatorURL)
	}
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	yml := `
server:
  port: 9000
  readTimeout: 5s
dataset:
  source: csv
  path: /data/survey.csv
  maxSalary: 250000
estimator:
  projectionYears: 10
  baseYear: 2024
redis:
  enabled: true
  cacheTTL: 30s
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SI_SERVER_PORT", "9100")
	t.Setenv("SI_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("env override not applied, port=%d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("readTimeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.Dataset.MaxSalary != 250000 {
		t.Errorf("maxSalary = %v", cfg.Dataset.MaxSalary)
	}
	if cfg.Estimator.BaseYear != 2024 {
		t.Errorf("baseYear = %d", cfg.Estimator.BaseYear)
	}
	if !cfg.Redis.Enabled || cfg.Redis.CacheTTL != 30*time.Second {
		t.Errorf("redis config = %+v", cfg.Redis)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %q", cfg.Logging.Level)
	}
	// Defaults survive for keys the file does not set.
	if cfg.Server.WriteTimeout != 30*time.Second {
		t.Errorf("writeTimeout default lost: %v", cfg.Server.WriteTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown source", func(c *Config) { c.Dataset.Source = "parquet" }, true},
		{"csv without path", func(c *Config) { c.Dataset.Path = "" }, true},
		{"postgres source disabled", func(c *Config) { c.Dataset.Source = SourcePostgres }, true},
		{"postgres source enabled", func(c *Config) {
			c.Dataset.Source = SourcePostgres
			c.Postgres.Enabled = true
		}, false},
		{"bad rate limit", func(c *Config) {
			c.RateLimit.Enabled = true
			c.RateLimit.Requests = 0
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

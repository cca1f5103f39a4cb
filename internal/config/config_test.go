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
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected default address: %s", cfg.Server.Address)
	}
	if cfg.Storage.Backend != "memory" {
		t.Fatalf("unexpected default storage backend: %s", cfg.Storage.Backend)
	}
	if cfg.Retrieval.Mode != "keyword" || cfg.Retrieval.TopK != 3 {
		t.Fatalf("unexpected retrieval defaults: %+v", cfg.Retrieval)
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`server:
  address: ":9000"
retrieval:
  mode: vector
  topK: 5
enhance:
  enabled: true
  timeout: 3s
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TRIAGE_SERVER_ADDRESS", ":9100")
	t.Setenv("TRIAGE_RETRIEVAL_MIN_SCORE", "0.5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":9100" {
		t.Fatalf("env override lost: %s", cfg.Server.Address)
	}
	if cfg.Retrieval.Mode != "vector" || cfg.Retrieval.TopK != 5 {
		t.Fatalf("yaml values lost: %+v", cfg.Retrieval)
	}
	if cfg.Retrieval.MinScore != 0.5 {
		t.Fatalf("min score override lost: %f", cfg.Retrieval.MinScore)
	}
	if !cfg.Enhance.Enabled || cfg.Enhance.Timeout != 3*time.Second {
		t.Fatalf("enhance config lost: %+v", cfg.Enhance)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("does-not-exist.yaml"); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

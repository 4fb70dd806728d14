package config

import (
	"os"
	"path/filepath"
	"testing"
)

// ── Load / Defaults ──

func TestLoadReturnsDefaults(t *testing.T) {
	// Unset any env vars that would interfere
	envVars := []string{
		"PHOSDASH_API_PORT", "PHOSDASH_API_HOST",
		"PHOSDASH_HTTP_TIMEOUT_SEC", "PHOSDASH_CACHE_TTL_HOURS",
		"PHOSDASH_LOGGING_LEVEL", "PHOSDASH_BULLETINS_ENABLED",
	}
	for _, e := range envVars {
		os.Unsetenv(e)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Sources defaults: empty means the provider built-ins
	if len(cfg.Sources.PriceURLs) != 0 {
		t.Errorf("Sources.PriceURLs: got %v, want empty", cfg.Sources.PriceURLs)
	}
	if cfg.Sources.ProductionURL != "" {
		t.Errorf("Sources.ProductionURL: got %q, want empty", cfg.Sources.ProductionURL)
	}
	if cfg.Sources.DiscoverMirrors {
		t.Error("Sources.DiscoverMirrors should default to false")
	}

	// HTTP defaults
	if cfg.HTTP.TimeoutSec != 60 {
		t.Errorf("HTTP.TimeoutSec: got %d, want 60", cfg.HTTP.TimeoutSec)
	}

	// Cache defaults
	if cfg.Cache.TTLHours != 24 {
		t.Errorf("Cache.TTLHours: got %d, want 24", cfg.Cache.TTLHours)
	}

	// Bulletins defaults
	if !cfg.Bulletins.Enabled {
		t.Error("Bulletins.Enabled should be true by default")
	}
	if cfg.Bulletins.Limit != 10 {
		t.Errorf("Bulletins.Limit: got %d, want 10", cfg.Bulletins.Limit)
	}
	if len(cfg.Bulletins.Feeds) != 0 {
		t.Errorf("Bulletins.Feeds: got %v, want empty (built-in feeds)", cfg.Bulletins.Feeds)
	}

	// API defaults
	if cfg.API.Host != "0.0.0.0" {
		t.Errorf("API.Host: got %q, want %q", cfg.API.Host, "0.0.0.0")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port: got %d, want 8080", cfg.API.Port)
	}
	if len(cfg.API.CORSOrigins) != 1 || cfg.API.CORSOrigins[0] != "http://localhost:3000" {
		t.Errorf("API.CORSOrigins: got %v", cfg.API.CORSOrigins)
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format: got %q, want %q", cfg.Logging.Format, "text")
	}
}

// ── LoadFromFile ──

func TestLoadFromFile(t *testing.T) {
	// Create a temp config file
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "test_phosdash.yaml")
	content := []byte(`
sources:
  price_urls:
    - "https://mirror.example.org/CMO-Historical-Data-Monthly.xlsx"
  production_url: "https://mirror.example.org/MCS2025_World_Data.csv"
  discover_mirrors: true
http:
  timeout_sec: 30
cache:
  ttl_hours: 6
bulletins:
  enabled: false
  limit: 5
  feeds:
    - source: "Example"
      url: "https://example.org/feed"
api:
  port: 9090
logging:
  level: "debug"
  format: "json"
`)
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if len(cfg.Sources.PriceURLs) != 1 ||
		cfg.Sources.PriceURLs[0] != "https://mirror.example.org/CMO-Historical-Data-Monthly.xlsx" {
		t.Errorf("Sources.PriceURLs: got %v", cfg.Sources.PriceURLs)
	}
	if cfg.Sources.ProductionURL != "https://mirror.example.org/MCS2025_World_Data.csv" {
		t.Errorf("Sources.ProductionURL: got %q", cfg.Sources.ProductionURL)
	}
	if !cfg.Sources.DiscoverMirrors {
		t.Error("Sources.DiscoverMirrors should be true from file")
	}
	if cfg.HTTP.TimeoutSec != 30 {
		t.Errorf("HTTP.TimeoutSec: got %d, want 30", cfg.HTTP.TimeoutSec)
	}
	if cfg.Cache.TTLHours != 6 {
		t.Errorf("Cache.TTLHours: got %d, want 6", cfg.Cache.TTLHours)
	}
	if cfg.Bulletins.Enabled {
		t.Error("Bulletins.Enabled should be false from file")
	}
	if cfg.Bulletins.Limit != 5 {
		t.Errorf("Bulletins.Limit: got %d, want 5", cfg.Bulletins.Limit)
	}
	if len(cfg.Bulletins.Feeds) != 1 || cfg.Bulletins.Feeds[0].Source != "Example" {
		t.Errorf("Bulletins.Feeds: got %v", cfg.Bulletins.Feeds)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port: got %d, want 9090", cfg.API.Port)
	}
	if cfg.API.Host != "0.0.0.0" {
		t.Errorf("API.Host should keep its default, got %q", cfg.API.Host)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format: got %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/phosdash.yaml")
	if err == nil {
		t.Error("LoadFromFile() with nonexistent path should return error")
	}
}

// ── Environment overrides ──

func TestEnvOverridesDefault(t *testing.T) {
	os.Setenv("PHOSDASH_API_PORT", "9999")
	defer os.Unsetenv("PHOSDASH_API_PORT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.API.Port != 9999 {
		t.Errorf("API.Port: got %d, want env override 9999", cfg.API.Port)
	}
}

// ── homeDir ──

func TestHomeDirReturnsNonEmpty(t *testing.T) {
	h := homeDir()
	if h == "" {
		t.Error("homeDir() should not return empty string")
	}
}

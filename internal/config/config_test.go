package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DATABASE_URL", "SUMMARY_MODE", "RATE_RPS", "GEOCODE_CACHE_TTL", "OPENAI_MODEL"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "8080" || cfg.Summary.Mode != "template" || cfg.Summary.Model != "gpt-4o-mini" {
		t.Fatalf("defaults: %+v", cfg)
	}
	if cfg.Geocode.CacheTTL != 30*24*time.Hour || cfg.Geocode.Enabled() {
		t.Fatalf("geocode defaults: %+v", cfg.Geocode)
	}
}

func TestLoadRejectsOpenAIWithoutKey(t *testing.T) {
	t.Setenv("SUMMARY_MODE", "openai")
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error")
	}
	t.Setenv("SUMMARY_MODE", "poetry")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestLoadEngineConfigOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatch.yaml")
	body := "autoDispatchThreshold: 80\nworkdayEnd: 1080\nfallbackOrigin:\n  lat: 40.7\n  lng: -74.0\nteamJobTypes: [crew]\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadEngineConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AutoDispatchThreshold != 80 || cfg.WorkdayEnd != 1080 || cfg.FallbackOrigin.Lat != 40.7 {
		t.Fatalf("overlay not applied: %+v", cfg)
	}
	if len(cfg.TeamJobTypes) != 1 || cfg.TeamJobTypes[0] != "crew" {
		t.Fatalf("team job types: %v", cfg.TeamJobTypes)
	}
	if cfg.Weights.Skill != 0.40 || cfg.BatchSize != 15 {
		t.Fatalf("untouched keys must keep defaults: %+v", cfg)
	}
}

func TestLoadEngineConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatch.yaml")
	if err := os.WriteFile(path, []byte("weights:\n  skill: 0.9\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadEngineConfig(path); err == nil {
		t.Fatalf("weights no longer sum to 1; expected error")
	}
	if _, err := LoadEngineConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestApplyOverrides(t *testing.T) {
	base, _ := LoadEngineConfig("")
	out, err := ApplyOverrides(base, map[string]any{"batchSize": 5, "relatedTerms": []string{"hinge"}})
	if err != nil {
		t.Fatal(err)
	}
	if out.BatchSize != 5 || len(out.RelatedTerms) != 1 {
		t.Fatalf("overrides: %+v", out)
	}
	if len(base.RelatedTerms) != 8 || base.BatchSize != 15 {
		t.Fatalf("base must stay untouched: %+v", base)
	}
	if _, err := ApplyOverrides(base, map[string]any{"speedKmh": 0}); err == nil {
		t.Fatalf("invalid override must be rejected")
	}
}

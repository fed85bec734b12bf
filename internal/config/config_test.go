package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsWhenMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.toml")

	cfg, resolved, exists, err := Load(missing)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for absent file")
	}
	if resolved == "" {
		t.Fatal("expected resolved path even when file is absent")
	}
	if cfg.Ingestion.BatchSize != defaultBatchSize {
		t.Errorf("batch size = %d, want %d", cfg.Ingestion.BatchSize, defaultBatchSize)
	}
	if cfg.Matching.AutoLinkThreshold != defaultAutoThreshold {
		t.Errorf("auto threshold = %v, want %v", cfg.Matching.AutoLinkThreshold, defaultAutoThreshold)
	}
	if len(cfg.Selection) != 1 || cfg.Selection[0].Name != "default" {
		t.Errorf("unexpected default selection policies: %+v", cfg.Selection)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	path := writeConfig(t, `
[library]
roots = ["~/roms", "  "]
destination_dir = "~/curated"

[ingestion]
batch_size = 50
hash_chunk_mib = 8

[matching]
auto_link_threshold = 0.9
review_threshold = 0.4

[[selection]]
name = "usa-first"
region_order = ["USA"]
`)

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if len(cfg.Library.Roots) != 1 {
		t.Fatalf("roots = %v, want one expanded root", cfg.Library.Roots)
	}
	if !filepath.IsAbs(cfg.Library.Roots[0]) {
		t.Errorf("root not expanded: %q", cfg.Library.Roots[0])
	}
	if strings.HasPrefix(cfg.Library.DestinationDir, "~") {
		t.Errorf("destination not expanded: %q", cfg.Library.DestinationDir)
	}
	if cfg.Ingestion.BatchSize != 50 {
		t.Errorf("batch size = %d, want 50", cfg.Ingestion.BatchSize)
	}
	if got := cfg.HashChunkBytes(); got != 8<<20 {
		t.Errorf("HashChunkBytes = %d, want %d", got, 8<<20)
	}
}

func TestLoadRejectsInvertedThresholds(t *testing.T) {
	path := writeConfig(t, `
[matching]
auto_link_threshold = 0.6
review_threshold = 0.7
`)
	_, _, _, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error for review >= auto threshold")
	}
	if !strings.Contains(err.Error(), "review_threshold") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadRejectsDuplicatePolicyNames(t *testing.T) {
	path := writeConfig(t, `
[[selection]]
name = "main"

[[selection]]
name = "Main"
`)
	_, _, _, err := Load(path)
	if err == nil {
		t.Fatal("expected duplicate policy error")
	}
	if !strings.Contains(err.Error(), "more than once") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadRejectsUnknownLogFormat(t *testing.T) {
	path := writeConfig(t, `
[logging]
format = "xml"
`)
	_, _, _, err := Load(path)
	if err == nil {
		t.Fatal("expected logging format error")
	}
}

func TestPolicyLookup(t *testing.T) {
	cfg := Default()
	cfg.Selection = append(cfg.Selection, SelectionPolicy{Name: "japan-first", RegionOrder: []string{"Japan"}})

	if got, err := cfg.Policy(""); err != nil || got.Name != "default" {
		t.Errorf("Policy(\"\") = %+v, %v", got, err)
	}
	if got, err := cfg.Policy("JAPAN-FIRST"); err != nil || got.Name != "japan-first" {
		t.Errorf("case-insensitive lookup failed: %+v, %v", got, err)
	}
	if _, err := cfg.Policy("missing"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("sample not found after CreateSample")
	}
	if cfg.Matching.AutoLinkThreshold != 0.95 {
		t.Errorf("sample auto threshold = %v", cfg.Matching.AutoLinkThreshold)
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, _, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Policy.AutoApproveThreshold != 0.8 {
		t.Fatalf("expected default threshold 0.8, got %v", cfg.Policy.AutoApproveThreshold)
	}
	if cfg.Sweep.IntervalMinutes != 30 {
		t.Fatalf("expected default sweep interval 30, got %d", cfg.Sweep.IntervalMinutes)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := strings.Join([]string{
		"[policy]",
		"auto_approve_threshold = 0.9",
		"[approvals]",
		`reviewers = ["alice", "bob", "alice", " "]`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if resolved != path {
		t.Fatalf("expected resolved path %s, got %s", path, resolved)
	}
	if cfg.Policy.AutoApproveThreshold != 0.9 {
		t.Fatalf("expected threshold 0.9, got %v", cfg.Policy.AutoApproveThreshold)
	}
	if len(cfg.Approvals.Reviewers) != 2 {
		t.Fatalf("expected deduplicated reviewers, got %v", cfg.Approvals.Reviewers)
	}
}

func TestLoadRejectsOutOfRangeThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[policy]\nauto_approve_threshold = 0.3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := Load(path); err == nil {
		t.Fatal("expected validation error for threshold below 0.5")
	}
}

func TestLoadRequiresStorefrontKeyWhenEnabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[storefront]\nenabled = true\nbase_url = \"https://api.example.com\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := Load(path); err == nil {
		t.Fatal("expected validation error for missing storefront api key")
	}
}

func TestEnvOverridesSecrets(t *testing.T) {
	t.Setenv("PATCHWATCH_STOREFRONT_API_KEY", "from-env")
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[storefront]\nenabled = true\nbase_url = \"https://api.example.com\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storefront.APIKey != "from-env" {
		t.Fatalf("expected env override, got %q", cfg.Storefront.APIKey)
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	if err := WriteSample(path); err == nil {
		t.Fatal("expected error overwriting existing config")
	}
}

func TestSampleConfigParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	if _, _, err := Load(path); err != nil {
		t.Fatalf("sample config should load cleanly: %v", err)
	}
}

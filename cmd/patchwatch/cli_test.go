package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCLIConfig(t *testing.T) string {
	t.Helper()

	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	body := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
`, filepath.Join(base, "data"), filepath.Join(base, "logs"))
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, target, "config", "init")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, target, "config", "init"); err == nil {
		t.Fatal("expected second init to fail")
	}
}

func TestConfigValidate(t *testing.T) {
	configPath := writeCLIConfig(t)

	out, err := runCLI(t, configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "is valid")
}

func TestTitlesRoundTrip(t *testing.T) {
	configPath := writeCLIConfig(t)

	out, err := runCLI(t, configPath, "titles", "add", "Dusk Chronicles", "--version", "1.0")
	if err != nil {
		t.Fatalf("titles add: %v", err)
	}
	requireContains(t, out, `Tracking "Dusk Chronicles" as #1`)

	out, err = runCLI(t, configPath, "titles", "list")
	if err != nil {
		t.Fatalf("titles list: %v", err)
	}
	requireContains(t, out, "Dusk Chronicles")
	requireContains(t, out, "1.0")

	out, err = runCLI(t, configPath, "titles", "pause", "1")
	if err != nil {
		t.Fatalf("titles pause: %v", err)
	}
	requireContains(t, out, "Paused #1")

	out, err = runCLI(t, configPath, "titles", "show", "1")
	if err != nil {
		t.Fatalf("titles show: %v", err)
	}
	requireContains(t, out, "Status:        paused")
	requireContains(t, out, "No update history")
}

func TestStatusEmpty(t *testing.T) {
	configPath := writeCLIConfig(t)

	out, err := runCLI(t, configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Tracked titles: 0 (0 active)")
	requireContains(t, out, "Open approvals: 0")
}

func TestApprovalsListEmpty(t *testing.T) {
	configPath := writeCLIConfig(t)

	out, err := runCLI(t, configPath, "approvals", "list")
	if err != nil {
		t.Fatalf("approvals list: %v", err)
	}
	requireContains(t, out, "No approvals match")
}

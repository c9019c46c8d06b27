// Package testsupport provides shared fixtures for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"patchwatch/internal/config"
	"patchwatch/internal/store"
)

// NewConfig returns a validated configuration rooted in a per-test temp
// directory. Mutators run before validation so tests can toggle sections.
func NewConfig(t *testing.T, mutators ...func(*config.Config)) *config.Config {
	t.Helper()
	base := t.TempDir()

	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	for _, mutate := range mutators {
		if mutate != nil {
			mutate(&cfg)
		}
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("testsupport: ensure directories: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("testsupport: invalid config: %v", err)
	}
	return &cfg
}

// OpenStore opens a sqlite store under a per-test temp directory and closes
// it when the test finishes.
func OpenStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.OpenPath(filepath.Join(t.TempDir(), "patchwatch.db"))
	if err != nil {
		t.Fatalf("testsupport: open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("testsupport: close store: %v", err)
		}
	})
	return st
}

package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"patchwatch/internal/titles"
)

type stubProvider struct {
	name     string
	calls    int
	failures int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Search(ctx context.Context, title string) ([]Candidate, error) {
	s.calls++
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("upstream 429")
	}
	return []Candidate{{ID: "1", Title: title}}, nil
}

func (s *stubProvider) LatestVersion(ctx context.Context, id string) (*titles.Version, error) {
	s.calls++
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("upstream 429")
	}
	return titles.ParseVersion("1.0"), nil
}

func newTestGate(p Provider, cfg GateConfig, now *time.Time) *Gate {
	return NewGate(p, cfg, nil,
		WithClock(func() time.Time { return *now }),
		WithSleeper(func(ctx context.Context, d time.Duration) error {
			*now = now.Add(d)
			return nil
		}),
	)
}

func TestGateCooldownFailsFast(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	provider := &stubProvider{name: "stub", failures: 10}
	gate := newTestGate(provider, GateConfig{
		MinInterval: time.Millisecond,
		MaxFailures: 3,
		Cooldown:    10 * time.Minute,
	}, &now)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := gate.Search(ctx, "Elden Circle"); err == nil {
			t.Fatal("expected failure")
		}
	}
	if provider.calls != 3 {
		t.Fatalf("expected 3 upstream calls before cooldown, got %d", provider.calls)
	}

	// Within the cooldown window, calls fail fast with the typed error and
	// never reach the provider.
	_, err := gate.Search(ctx, "Elden Circle")
	if !errors.Is(err, ErrCooldown) {
		t.Fatalf("expected ErrCooldown, got %v", err)
	}
	if provider.calls != 3 {
		t.Fatalf("cooldown call must not reach provider, calls=%d", provider.calls)
	}
}

func TestGateRecoversAfterCooldown(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	provider := &stubProvider{name: "stub", failures: 3}
	gate := newTestGate(provider, GateConfig{
		MinInterval: time.Millisecond,
		MaxFailures: 3,
		Cooldown:    10 * time.Minute,
	}, &now)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := gate.Search(ctx, "Elden Circle"); err == nil {
			t.Fatal("expected failure")
		}
	}
	if _, err := gate.Search(ctx, "Elden Circle"); !errors.Is(err, ErrCooldown) {
		t.Fatalf("expected ErrCooldown, got %v", err)
	}

	now = now.Add(11 * time.Minute)
	results, err := gate.Search(ctx, "Elden Circle")
	if err != nil {
		t.Fatalf("expected recovery after cooldown, got %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one candidate, got %d", len(results))
	}
}

func TestGateSuccessResetsFailureCount(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	provider := &stubProvider{name: "stub", failures: 2}
	gate := newTestGate(provider, GateConfig{
		MinInterval: time.Millisecond,
		MaxFailures: 3,
		Cooldown:    10 * time.Minute,
	}, &now)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := gate.Search(ctx, "Elden Circle"); err == nil {
			t.Fatal("expected failure")
		}
	}
	if _, err := gate.Search(ctx, "Elden Circle"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	// Two more failures must not trip the cooldown: the counter reset.
	provider.failures = 2
	for i := 0; i < 2; i++ {
		if _, err := gate.Search(ctx, "Elden Circle"); err == nil {
			t.Fatal("expected failure")
		}
	}
	if _, err := gate.Search(ctx, "Elden Circle"); errors.Is(err, ErrCooldown) {
		t.Fatal("cooldown should not trip after an intervening success")
	}
}

func TestBestMatch(t *testing.T) {
	candidates := []Candidate{
		{ID: "1", Title: "Farm Tycoon"},
		{ID: "2", Title: "Elden Circle"},
		{ID: "3", Title: "Elden Circle Chronicles"},
	}
	best := BestMatch("Elden Circle", candidates, 0.6)
	if best == nil || best.ID != "2" {
		t.Fatalf("expected exact title to win, got %+v", best)
	}
	if got := BestMatch("Completely Different", candidates, 0.6); got != nil {
		t.Fatalf("expected nil below floor, got %+v", got)
	}
}

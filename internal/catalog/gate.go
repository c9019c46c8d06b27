package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"patchwatch/internal/logging"
	"patchwatch/internal/services"
	"patchwatch/internal/titles"
)

// ErrCooldown reports that the adapter is in its cooldown window. It wraps
// services.ErrUnavailable so callers can classify it without importing this
// package's sentinel.
var ErrCooldown = fmt.Errorf("%w: adapter cooling down", services.ErrUnavailable)

// GateConfig describes the pacing and failure-isolation policy for one
// adapter.
type GateConfig struct {
	MinInterval time.Duration
	Timeout     time.Duration
	MaxFailures int
	Cooldown    time.Duration
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

func (c GateConfig) withDefaults() GateConfig {
	if c.MinInterval <= 0 {
		c.MinInterval = time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 3
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 10 * time.Minute
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 30 * time.Second
	}
	return c
}

// Gate wraps a Provider with serialized access, a minimum inter-request
// delay, exponential backoff, and a cooldown window after consecutive
// failures. During cooldown, calls fail fast without touching the network.
//
// The mutex is held across the upstream call on purpose: serialization with
// enforced spacing is a hard guarantee for scrape-prone sources, not a
// throughput optimization.
type Gate struct {
	provider Provider
	cfg      GateConfig
	logger   *slog.Logger
	limiter  *rate.Limiter

	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	mu            sync.Mutex
	failures      int
	nextAttempt   time.Time
	cooldownUntil time.Time
}

// GateOption customizes a Gate, mainly for tests.
type GateOption func(*Gate)

// WithClock overrides the time source.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// WithSleeper overrides how backoff waits are performed.
func WithSleeper(sleep func(context.Context, time.Duration) error) GateOption {
	return func(g *Gate) {
		if sleep != nil {
			g.sleep = sleep
		}
	}
}

// NewGate wraps the provider with the supplied policy.
func NewGate(provider Provider, cfg GateConfig, logger *slog.Logger, opts ...GateOption) *Gate {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}
	g := &Gate{
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the wrapped provider's name.
func (g *Gate) Name() string {
	return g.provider.Name()
}

// Search resolves candidates through the gate.
func (g *Gate) Search(ctx context.Context, title string) ([]Candidate, error) {
	var results []Candidate
	err := g.call(ctx, "search", func(callCtx context.Context) error {
		var callErr error
		results, callErr = g.provider.Search(callCtx, title)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// LatestVersion resolves the current version through the gate.
func (g *Gate) LatestVersion(ctx context.Context, canonicalID string) (*titles.Version, error) {
	var version *titles.Version
	err := g.call(ctx, "latest_version", func(callCtx context.Context) error {
		var callErr error
		version, callErr = g.provider.LatestVersion(callCtx, canonicalID)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

var _ Provider = (*Gate)(nil)

func (g *Gate) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now.Before(g.cooldownUntil) {
		return fmt.Errorf("%w: retry after %s", ErrCooldown, g.cooldownUntil.Sub(now).Round(time.Second))
	}
	if wait := g.nextAttempt.Sub(now); wait > 0 {
		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
	}
	if err := g.waitMinInterval(ctx); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	callCtx = services.WithAdapter(callCtx, g.provider.Name())
	callCtx = services.WithRequestID(callCtx, uuid.NewString())
	log := logging.WithContext(callCtx, g.logger)

	err := fn(callCtx)
	if err == nil {
		g.failures = 0
		g.nextAttempt = time.Time{}
		return nil
	}

	// A timeout counts as a failure toward the cooldown, same as any
	// transport error.
	if errors.Is(err, context.DeadlineExceeded) {
		err = services.Wrap(services.ErrTimeout, g.provider.Name(), operation, "request timed out", err)
	}

	g.failures++
	g.nextAttempt = g.now().Add(g.backoff())
	if g.failures >= g.cfg.MaxFailures {
		g.cooldownUntil = g.now().Add(g.cfg.Cooldown)
		g.failures = 0
		g.nextAttempt = time.Time{}
		log.Warn("adapter entering cooldown",
			logging.String("operation", operation),
			logging.Duration("cooldown", g.cfg.Cooldown),
			logging.Error(err))
	} else {
		log.Warn("adapter call failed",
			logging.String("operation", operation),
			logging.Int("consecutive_failures", g.failures),
			logging.Error(err))
	}
	return err
}

func (g *Gate) waitMinInterval(ctx context.Context) error {
	reservation := g.limiter.Reserve()
	if !reservation.OK() {
		return services.Wrap(services.ErrUnavailable, g.provider.Name(), "rate limit", "reservation rejected", nil)
	}
	delay := reservation.Delay()
	if delay <= 0 {
		return nil
	}
	if err := g.sleep(ctx, delay); err != nil {
		reservation.Cancel()
		return err
	}
	return nil
}

func (g *Gate) backoff() time.Duration {
	delay := g.cfg.BackoffBase
	for i := 1; i < g.failures; i++ {
		delay *= 2
		if delay >= g.cfg.BackoffMax {
			return g.cfg.BackoffMax
		}
	}
	if delay > g.cfg.BackoffMax {
		return g.cfg.BackoffMax
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

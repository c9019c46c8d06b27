package sweep

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"patchwatch/internal/approval"
	"patchwatch/internal/catalog"
	"patchwatch/internal/detect"
	"patchwatch/internal/logging"
	"patchwatch/internal/notifications"
	"patchwatch/internal/services"
	"patchwatch/internal/store"
	"patchwatch/internal/tracked"
)

// Options tune the sweep loop.
type Options struct {
	Interval        time.Duration
	StaleAfter      time.Duration
	Concurrency     int
	CacheTTL        time.Duration
	PerCheckTimeout time.Duration
	ApprovalTTL     time.Duration
	Policy          detect.Policy
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = 30 * time.Minute
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 6 * time.Hour
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 15 * time.Minute
	}
	if o.PerCheckTimeout <= 0 {
		o.PerCheckTimeout = 2 * time.Minute
	}
	if o.ApprovalTTL <= 0 {
		o.ApprovalTTL = 72 * time.Hour
	}
	return o
}

// Summary reports one sweep's outcome.
type Summary struct {
	SweepID  string
	Checked  int
	Updates  int
	Pending  int
	Failures int
	Skipped  int
	Duration time.Duration
}

// Manager owns the sweep loop and the per-sweep fan-out.
type Manager struct {
	store     *store.Store
	engine    *detect.Engine
	workflow  *approval.Workflow
	providers []catalog.Provider
	notifier  notifications.Service
	logger    *slog.Logger
	opts      Options

	snapshots *gocache.Cache
	now       func() time.Time

	mu      sync.Mutex
	running bool
}

// ManagerOption customizes the manager.
type ManagerOption func(*Manager)

// WithClock overrides the time source (useful for tests).
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager wires the sweep loop. Providers should already be wrapped in
// rate-limiting gates; the manager serializes nothing itself.
func NewManager(st *store.Store, engine *detect.Engine, wf *approval.Workflow, providers []catalog.Provider, notifier notifications.Service, logger *slog.Logger, opts Options, mopts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	opts = opts.withDefaults()
	m := &Manager{
		store:     st,
		engine:    engine,
		workflow:  wf,
		providers: providers,
		notifier:  notifier,
		logger:    logger.With(logging.String(logging.FieldComponent, "sweep")),
		opts:      opts,
		snapshots: gocache.New(opts.CacheTTL, 2*opts.CacheTTL),
		now:       time.Now,
	}
	for _, opt := range mopts {
		opt(m)
	}
	return m
}

// Run sweeps immediately, then on every interval tick until the context ends.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	m.sweepAndReport(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepAndReport(ctx)
		}
	}
}

func (m *Manager) sweepAndReport(ctx context.Context) {
	summary, err := m.SweepOnce(ctx)
	if err != nil {
		m.logger.Error("sweep failed", logging.Error(err))
		if nerr := m.notifier.NotifyError(ctx, err, "sweep"); nerr != nil {
			m.logger.Warn("error notification failed", logging.Error(nerr))
		}
		return
	}
	if summary.Checked == 0 {
		return
	}
	if err := m.notifier.NotifySweepCompleted(ctx, summary.Checked, summary.Updates, summary.Pending, summary.Duration); err != nil {
		m.logger.Warn("sweep notification failed", logging.Error(err))
	}
}

// SweepOnce checks every stale entity now. Overlapping sweeps are rejected;
// entities that fail keep their last-checked timestamp so the next interval
// retries them.
func (m *Manager) SweepOnce(ctx context.Context) (Summary, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return Summary{}, services.Wrap(services.ErrValidation, "sweep", "run", "sweep already in progress", nil)
	}
	m.running = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	start := m.now()
	sweepID := uuid.NewString()
	ctx = services.WithSweepID(ctx, sweepID)
	log := m.logger.With(logging.String(logging.FieldSweepID, sweepID))

	candidates, err := m.store.ListEntities(ctx, store.EntityFilter{ActiveOnly: true})
	if err != nil {
		return Summary{}, services.Wrap(services.ErrTransient, "sweep", "run", "list entities", err)
	}
	// Entity.Stale owns the staleness rules: paused entities never qualify
	// and a per-entity check frequency overrides the global cutoff.
	entities := make([]tracked.Entity, 0, len(candidates))
	for _, e := range candidates {
		if e.Stale(start, m.opts.StaleAfter) {
			entities = append(entities, e)
		}
	}
	if len(entities) == 0 {
		return Summary{SweepID: sweepID, Duration: m.now().Sub(start)}, nil
	}
	log.Info("sweep started", logging.Int("entities", len(entities)))

	var (
		wg      sync.WaitGroup
		sem     = make(chan struct{}, m.opts.Concurrency)
		results = make([]checkResult, len(entities))
	)
	for i := range entities {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = m.checkEntity(ctx, entities[i])
		}(i)
	}
	wg.Wait()

	summary := Summary{SweepID: sweepID}
	for _, r := range results {
		switch {
		case r.err != nil:
			summary.Failures++
		case r.skipped:
			summary.Checked++
			summary.Skipped++
		default:
			summary.Checked++
			if r.committed {
				summary.Updates++
			}
			if r.pending {
				summary.Pending++
			}
		}
	}
	summary.Duration = m.now().Sub(start)
	log.Info("sweep finished",
		logging.Int("checked", summary.Checked),
		logging.Int("updates", summary.Updates),
		logging.Int("pending", summary.Pending),
		logging.Int("failures", summary.Failures),
		logging.Duration("duration", summary.Duration))
	return summary, nil
}

type checkResult struct {
	committed bool
	pending   bool
	skipped   bool
	err       error
}

func (m *Manager) checkEntity(ctx context.Context, entity tracked.Entity) checkResult {
	ctx = services.WithEntityID(ctx, entity.ID)
	log := m.logger.With(logging.Int64(logging.FieldEntityID, entity.ID))

	ctx, cancel := context.WithTimeout(ctx, m.opts.PerCheckTimeout)
	defer cancel()

	listings, fetchErrs := m.fetchListings(ctx, entity)
	if len(listings) == 0 && len(fetchErrs) > 0 {
		// Every adapter failed; leave lastChecked alone so the next
		// interval retries.
		log.Warn("all adapters failed", logging.Error(fetchErrs[0]))
		return checkResult{err: fetchErrs[0]}
	}

	fingerprint := listingFingerprint(listings)
	cacheKey := fmt.Sprintf("entity/%d", entity.ID)
	if prev, ok := m.snapshots.Get(cacheKey); ok && prev.(string) == fingerprint {
		log.Debug("candidate pool unchanged, skipping rescore")
		if err := m.store.MarkChecked(ctx, entity.ID, m.now().UTC()); err != nil {
			return checkResult{err: err}
		}
		return checkResult{skipped: true}
	}

	result := m.engine.Decide(ctx, entity, listings, m.opts.Policy)
	out := checkResult{}

	switch result.Outcome {
	case detect.OutcomeAutoApprove:
		if err := m.commit(ctx, entity, result); err != nil {
			log.Error("commit failed", logging.Error(err))
			return checkResult{err: err}
		}
		out.committed = true
	case detect.OutcomeNeedsApproval:
		m.attachVerification(ctx, &result)
		if _, err := m.workflow.Open(ctx, entity, result, m.opts.ApprovalTTL); err != nil {
			log.Error("opening approval failed", logging.Error(err))
			return checkResult{err: err}
		}
		out.pending = true
	default:
		if entity.Status == tracked.StatusActive {
			if err := m.store.MarkStatus(ctx, entity.ID, tracked.StatusUpToDate); err != nil {
				return checkResult{err: err}
			}
		}
	}

	m.snapshots.Set(cacheKey, fingerprint, gocache.DefaultExpiration)
	if err := m.store.MarkChecked(ctx, entity.ID, m.now().UTC()); err != nil {
		return checkResult{err: err}
	}
	return out
}

// fetchListings queries every adapter, tolerating individual failures. One
// adapter in cooldown or erroring never fails the entity check while any
// other adapter produced candidates.
func (m *Manager) fetchListings(ctx context.Context, entity tracked.Entity) ([]tracked.Listing, []error) {
	var listings []tracked.Listing
	var errs []error
	for _, provider := range m.providers {
		candidates, err := provider.Search(ctx, entity.Title)
		if err != nil {
			m.logger.Debug("adapter search failed",
				logging.String(logging.FieldAdapter, provider.Name()),
				logging.Int64(logging.FieldEntityID, entity.ID),
				logging.Error(err))
			errs = append(errs, err)
			continue
		}
		for _, c := range candidates {
			listings = append(listings, toListing(provider.Name(), c))
		}
	}
	return listings, errs
}

func (m *Manager) commit(ctx context.Context, entity tracked.Entity, result detect.Result) error {
	record := tracked.UpdateRecord{
		Version:    result.NewVersion,
		DetectedAt: m.now().UTC(),
		Changelog:  result.Reason,
		Source:     candidateSource(result),
	}
	if record.Version == "" && result.Candidate != nil {
		// Versionless commits carry the listing identity, not the scraped
		// title, so the version field stays a version-shaped value.
		record.Version = result.Candidate.ID
		if record.Version == "" {
			record.Version = result.Candidate.Title
		}
	}
	if err := m.store.CommitUpdate(ctx, entity.ID, record); err != nil {
		return services.Wrap(services.ErrTransient, "sweep", "commit", "commit update", err)
	}
	if err := m.notifier.NotifyUpdateCommitted(ctx, entity.Title, record.Version, string(result.Method)); err != nil {
		m.logger.Warn("update notification failed", logging.Error(err))
	}
	return nil
}

// attachVerification asks the candidate's own adapter for its current
// version so reviewers see an identity snapshot next to the pending entry.
// Verification is best effort; a cooled-down adapter just leaves it empty.
func (m *Manager) attachVerification(ctx context.Context, result *detect.Result) {
	if result.Candidate == nil || result.Candidate.SourceID == "" {
		return
	}
	for _, provider := range m.providers {
		if provider.Name() != result.Candidate.Source {
			continue
		}
		latest, err := provider.LatestVersion(ctx, result.Candidate.SourceID)
		if err != nil {
			m.logger.Debug("verification lookup failed",
				logging.String(logging.FieldAdapter, provider.Name()),
				logging.Error(err))
			return
		}
		result.Verification = &detect.Verification{
			Adapter:       provider.Name(),
			CanonicalID:   result.Candidate.SourceID,
			LatestVersion: latest,
			CheckedAt:     m.now().UTC(),
		}
		return
	}
}

func toListing(source string, c catalog.Candidate) tracked.Listing {
	listing := tracked.Listing{
		ID:        source + "/" + c.ID,
		Title:     c.Title,
		Excerpt:   c.Summary,
		Published: c.Released,
		Source:    source,
		SourceID:  c.ID,
	}
	return listing
}

// listingFingerprint hashes the candidate pool so an unchanged pool within
// the cache TTL is not rescored.
func listingFingerprint(listings []tracked.Listing) string {
	keys := make([]string, 0, len(listings))
	for _, l := range listings {
		keys = append(keys, l.ID+"\x00"+l.Title+"\x00"+l.Published.UTC().Format(time.RFC3339))
	}
	sort.Strings(keys)
	sum := sha256.Sum256([]byte(strings.Join(keys, "\n")))
	return hex.EncodeToString(sum[:])
}

func candidateSource(result detect.Result) string {
	if result.Candidate == nil {
		return ""
	}
	return result.Candidate.Source
}

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Logging controls log verbosity and output format.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Sweep controls the background scheduler.
type Sweep struct {
	IntervalMinutes    int `toml:"interval_minutes"`
	StaleAfterMinutes  int `toml:"stale_after_minutes"`
	EntityConcurrency  int `toml:"entity_concurrency"`
	CacheTTLMinutes    int `toml:"cache_ttl_minutes"`
	PerCheckTimeoutSec int `toml:"per_check_timeout_seconds"`
}

// Policy holds the decision engine tunables. The weights and thresholds are
// operational defaults, not correctness constants.
type Policy struct {
	AutoApproveThreshold float64 `toml:"auto_approve_threshold"`
	CandidateFloor       float64 `toml:"candidate_floor"`
	SimilarityWeight     float64 `toml:"similarity_weight"`
	AIWeight             float64 `toml:"ai_weight"`
}

// Storefront configures the search-plus-detail catalog adapter.
type Storefront struct {
	Enabled               bool   `toml:"enabled"`
	BaseURL               string `toml:"base_url"`
	APIKey                string `toml:"api_key"`
	MinRequestIntervalMS  int    `toml:"min_request_interval_ms"`
	CooldownFailures      int    `toml:"cooldown_failures"`
	CooldownMinutes       int    `toml:"cooldown_minutes"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// BuildFeed configures the scraped build-history feed adapter.
type BuildFeed struct {
	Enabled               bool   `toml:"enabled"`
	FeedURL               string `toml:"feed_url"`
	MinRequestIntervalMS  int    `toml:"min_request_interval_ms"`
	CooldownFailures      int    `toml:"cooldown_failures"`
	CooldownMinutes       int    `toml:"cooldown_minutes"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Scorer configures the optional AI-assisted scorer. When disabled or
// unreachable the engine degrades to regex-only detection silently.
type Scorer struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Approvals configures the consensus workflow.
type Approvals struct {
	TTLHours                int      `toml:"ttl_hours"`
	ResolverIntervalMinutes int      `toml:"resolver_interval_minutes"`
	Reviewers               []string `toml:"reviewers"`
	RetentionDays           int      `toml:"retention_days"`
}

// Notifications configures ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Updates        bool   `toml:"updates"`
	Pending        bool   `toml:"pending"`
	Resolved       bool   `toml:"resolved"`
	SweepSummary   bool   `toml:"sweep_summary"`
	Errors         bool   `toml:"errors"`
}

// Config is the root patchwatch configuration.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
	Sweep         Sweep         `toml:"sweep"`
	Policy        Policy        `toml:"policy"`
	Storefront    Storefront    `toml:"storefront"`
	BuildFeed     BuildFeed     `toml:"buildfeed"`
	Scorer        Scorer        `toml:"scorer"`
	Approvals     Approvals     `toml:"approvals"`
	Notifications Notifications `toml:"notifications"`
}

// Load reads configuration from the supplied path, $PATCHWATCH_CONFIG, or
// the default location, merging file values over defaults and environment
// secrets over file values. The resolved path is returned alongside.
func Load(path string) (*Config, string, error) {
	resolved := resolvePath(path)
	cfg := Default()

	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, resolved, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// defaults apply
	default:
		return nil, resolved, fmt.Errorf("read config %s: %w", resolved, err)
	}

	applyEnvOverrides(&cfg)
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, resolved, err
	}
	return &cfg, resolved, nil
}

// WriteSample writes the embedded sample configuration to the given path,
// refusing to overwrite an existing file.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ResolvePath reports where configuration would be read from for the given
// explicit path, without touching the filesystem.
func ResolvePath(path string) string {
	return resolvePath(path)
}

func resolvePath(path string) string {
	if path = strings.TrimSpace(path); path != "" {
		return expandHome(path)
	}
	if env := strings.TrimSpace(os.Getenv("PATCHWATCH_CONFIG")); env != "" {
		return expandHome(env)
	}
	return expandHome("~/.config/patchwatch/config.toml")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PATCHWATCH_STOREFRONT_API_KEY"); v != "" {
		cfg.Storefront.APIKey = v
	}
	if v := os.Getenv("PATCHWATCH_SCORER_API_KEY"); v != "" {
		cfg.Scorer.APIKey = v
	}
	if v := os.Getenv("PATCHWATCH_NTFY_TOPIC"); v != "" {
		cfg.Notifications.NtfyTopic = v
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func (c *Config) normalize() {
	c.Paths.DataDir = expandHome(strings.TrimSpace(c.Paths.DataDir))
	c.Paths.LogDir = expandHome(strings.TrimSpace(c.Paths.LogDir))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Storefront.BaseURL = strings.TrimRight(strings.TrimSpace(c.Storefront.BaseURL), "/")
	c.BuildFeed.FeedURL = strings.TrimSpace(c.BuildFeed.FeedURL)
	c.Scorer.BaseURL = strings.TrimSpace(c.Scorer.BaseURL)

	reviewers := make([]string, 0, len(c.Approvals.Reviewers))
	seen := make(map[string]struct{}, len(c.Approvals.Reviewers))
	for _, r := range c.Approvals.Reviewers {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		reviewers = append(reviewers, r)
	}
	c.Approvals.Reviewers = reviewers
}

package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for values the engine cannot run with.
// Error messages name the offending TOML key.
func (c *Config) Validate() error {
	var problems []string

	if c.Paths.DataDir == "" {
		problems = append(problems, "paths.data_dir must be set")
	}
	if c.Sweep.IntervalMinutes <= 0 {
		problems = append(problems, "sweep.interval_minutes must be positive")
	}
	if c.Sweep.EntityConcurrency <= 0 {
		problems = append(problems, "sweep.entity_concurrency must be positive")
	}
	if c.Policy.AutoApproveThreshold < 0.5 || c.Policy.AutoApproveThreshold > 1.0 {
		problems = append(problems, "policy.auto_approve_threshold must be within [0.5, 1.0]")
	}
	if c.Policy.CandidateFloor < 0 || c.Policy.CandidateFloor >= 1.0 {
		problems = append(problems, "policy.candidate_floor must be within [0, 1)")
	}
	if c.Policy.SimilarityWeight <= 0 || c.Policy.AIWeight < 0 {
		problems = append(problems, "policy weights must be non-negative with similarity_weight positive")
	}
	if sum := c.Policy.SimilarityWeight + c.Policy.AIWeight; sum < 0.999 || sum > 1.001 {
		problems = append(problems, "policy.similarity_weight and policy.ai_weight must sum to 1.0")
	}
	if c.Storefront.Enabled {
		if c.Storefront.BaseURL == "" {
			problems = append(problems, "storefront.base_url required when storefront.enabled")
		}
		if strings.TrimSpace(c.Storefront.APIKey) == "" {
			problems = append(problems, "storefront.api_key required when storefront.enabled")
		}
	}
	if c.BuildFeed.Enabled && c.BuildFeed.FeedURL == "" {
		problems = append(problems, "buildfeed.feed_url required when buildfeed.enabled")
	}
	if c.Scorer.Enabled && strings.TrimSpace(c.Scorer.APIKey) == "" {
		problems = append(problems, "scorer.api_key required when scorer.enabled")
	}
	if c.Approvals.TTLHours <= 0 {
		problems = append(problems, "approvals.ttl_hours must be positive")
	}

	if len(problems) == 0 {
		return nil
	}
	if len(problems) == 1 {
		return errors.New(problems[0])
	}
	return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
}

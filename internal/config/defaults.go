package config

const (
	defaultDataDir = "~/.local/share/patchwatch"
	defaultLogDir  = "~/.local/share/patchwatch/logs"

	defaultLogLevel  = "info"
	defaultLogFormat = "console"

	defaultSweepIntervalMinutes = 30
	defaultStaleAfterMinutes    = 360
	defaultEntityConcurrency    = 4
	defaultCacheTTLMinutes      = 15
	defaultPerCheckTimeoutSec   = 60

	defaultAutoApproveThreshold = 0.8
	defaultCandidateFloor       = 0.6
	defaultSimilarityWeight     = 0.7
	defaultAIWeight             = 0.3

	defaultMinRequestIntervalMS  = 1500
	defaultCooldownFailures      = 3
	defaultCooldownMinutes       = 10
	defaultRequestTimeoutSeconds = 10

	defaultScorerBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultScorerModel          = "google/gemini-3-flash-preview"
	defaultScorerTimeoutSeconds = 20

	defaultApprovalTTLHours           = 72
	defaultResolverIntervalMinutes    = 10
	defaultApprovalRetentionDays      = 30
	defaultNotifyRequestTimeoutSecond = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Sweep: Sweep{
			IntervalMinutes:    defaultSweepIntervalMinutes,
			StaleAfterMinutes:  defaultStaleAfterMinutes,
			EntityConcurrency:  defaultEntityConcurrency,
			CacheTTLMinutes:    defaultCacheTTLMinutes,
			PerCheckTimeoutSec: defaultPerCheckTimeoutSec,
		},
		Policy: Policy{
			AutoApproveThreshold: defaultAutoApproveThreshold,
			CandidateFloor:       defaultCandidateFloor,
			SimilarityWeight:     defaultSimilarityWeight,
			AIWeight:             defaultAIWeight,
		},
		Storefront: Storefront{
			MinRequestIntervalMS:  defaultMinRequestIntervalMS,
			CooldownFailures:      defaultCooldownFailures,
			CooldownMinutes:       defaultCooldownMinutes,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
		},
		BuildFeed: BuildFeed{
			MinRequestIntervalMS:  defaultMinRequestIntervalMS,
			CooldownFailures:      defaultCooldownFailures,
			CooldownMinutes:       defaultCooldownMinutes,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
		},
		Scorer: Scorer{
			BaseURL:        defaultScorerBaseURL,
			Model:          defaultScorerModel,
			TimeoutSeconds: defaultScorerTimeoutSeconds,
		},
		Approvals: Approvals{
			TTLHours:                defaultApprovalTTLHours,
			ResolverIntervalMinutes: defaultResolverIntervalMinutes,
			RetentionDays:           defaultApprovalRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeoutSecond,
			Updates:        true,
			Pending:        true,
			Resolved:       true,
			SweepSummary:   false,
			Errors:         true,
		},
	}
}

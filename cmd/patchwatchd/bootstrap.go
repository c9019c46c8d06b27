package main

import (
	"log/slog"
	"time"

	"patchwatch/internal/approval"
	"patchwatch/internal/catalog"
	"patchwatch/internal/catalog/buildfeed"
	"patchwatch/internal/catalog/storefront"
	"patchwatch/internal/config"
	"patchwatch/internal/detect"
	"patchwatch/internal/logging"
	"patchwatch/internal/notifications"
	"patchwatch/internal/reviewers"
	"patchwatch/internal/scorer"
	"patchwatch/internal/store"
	"patchwatch/internal/sweep"
)

type components struct {
	manager          *sweep.Manager
	workflow         *approval.Workflow
	resolverInterval time.Duration
	retention        time.Duration
}

func buildComponents(cfg *config.Config, st *store.Store, logger *slog.Logger) (*components, error) {
	notifier := notifications.NewService(cfg)

	providers, err := buildProviders(cfg, logger)
	if err != nil {
		return nil, err
	}
	if len(providers) == 0 {
		logger.Warn("no catalog adapters enabled, sweeps will find nothing")
	}

	engine := detect.NewEngine(buildScorer(cfg, logger), logger)
	roster := reviewers.NewStatic(cfg.Approvals.Reviewers)
	workflow := approval.NewWorkflow(st, roster, notifier, logger)

	manager := sweep.NewManager(st, engine, workflow, providers, notifier, logger, sweep.Options{
		Interval:        time.Duration(cfg.Sweep.IntervalMinutes) * time.Minute,
		StaleAfter:      time.Duration(cfg.Sweep.StaleAfterMinutes) * time.Minute,
		Concurrency:     cfg.Sweep.EntityConcurrency,
		CacheTTL:        time.Duration(cfg.Sweep.CacheTTLMinutes) * time.Minute,
		PerCheckTimeout: time.Duration(cfg.Sweep.PerCheckTimeoutSec) * time.Second,
		ApprovalTTL:     time.Duration(cfg.Approvals.TTLHours) * time.Hour,
		Policy: detect.Policy{
			AutoApproveThreshold: cfg.Policy.AutoApproveThreshold,
			CandidateFloor:       cfg.Policy.CandidateFloor,
			SimilarityWeight:     cfg.Policy.SimilarityWeight,
			AIWeight:             cfg.Policy.AIWeight,
		},
	})

	return &components{
		manager:          manager,
		workflow:         workflow,
		resolverInterval: time.Duration(cfg.Approvals.ResolverIntervalMinutes) * time.Minute,
		retention:        time.Duration(cfg.Approvals.RetentionDays) * 24 * time.Hour,
	}, nil
}

// buildProviders wraps every enabled adapter in a serializing gate so no
// upstream source sees bursty access.
func buildProviders(cfg *config.Config, logger *slog.Logger) ([]catalog.Provider, error) {
	var providers []catalog.Provider

	if cfg.Storefront.Enabled {
		client, err := storefront.New(cfg.Storefront.APIKey, cfg.Storefront.BaseURL)
		if err != nil {
			return nil, err
		}
		providers = append(providers, catalog.NewGate(client, catalog.GateConfig{
			MinInterval: time.Duration(cfg.Storefront.MinRequestIntervalMS) * time.Millisecond,
			Timeout:     time.Duration(cfg.Storefront.RequestTimeoutSeconds) * time.Second,
			MaxFailures: cfg.Storefront.CooldownFailures,
			Cooldown:    time.Duration(cfg.Storefront.CooldownMinutes) * time.Minute,
		}, logger))
	}

	if cfg.BuildFeed.Enabled {
		feed, err := buildfeed.New(cfg.BuildFeed.FeedURL)
		if err != nil {
			return nil, err
		}
		providers = append(providers, catalog.NewGate(feed, catalog.GateConfig{
			MinInterval: time.Duration(cfg.BuildFeed.MinRequestIntervalMS) * time.Millisecond,
			Timeout:     time.Duration(cfg.BuildFeed.RequestTimeoutSeconds) * time.Second,
			MaxFailures: cfg.BuildFeed.CooldownFailures,
			Cooldown:    time.Duration(cfg.BuildFeed.CooldownMinutes) * time.Minute,
		}, logger))
	}

	return providers, nil
}

func buildScorer(cfg *config.Config, logger *slog.Logger) scorer.Scorer {
	if !cfg.Scorer.Enabled {
		return scorer.Noop{}
	}
	llm, err := scorer.NewLLM(scorer.Config{
		APIKey:         cfg.Scorer.APIKey,
		BaseURL:        cfg.Scorer.BaseURL,
		Model:          cfg.Scorer.Model,
		TimeoutSeconds: cfg.Scorer.TimeoutSeconds,
	})
	if err != nil {
		logger.Warn("scorer disabled", logging.Error(err))
		return scorer.Noop{}
	}
	return llm
}

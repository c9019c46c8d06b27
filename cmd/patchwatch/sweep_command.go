package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

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

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run a single sweep across all stale titles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				manager, err := buildSweepManager(cfg, st)
				if err != nil {
					return err
				}
				summary, err := manager.SweepOnce(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Sweep %s finished in %s\n", summary.SweepID, summary.Duration.Round(time.Millisecond))
				fmt.Fprintf(out, "Checked:  %d\n", summary.Checked)
				fmt.Fprintf(out, "Updates:  %d\n", summary.Updates)
				fmt.Fprintf(out, "Pending:  %d\n", summary.Pending)
				fmt.Fprintf(out, "Skipped:  %d\n", summary.Skipped)
				fmt.Fprintf(out, "Failures: %d\n", summary.Failures)
				return nil
			})
		},
	}
}

// buildSweepManager mirrors the daemon wiring for one-shot use. Logs go to
// stderr so the summary on stdout stays parseable.
func buildSweepManager(cfg *config.Config, st *store.Store) (*sweep.Manager, error) {
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return nil, err
	}

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
	if len(providers) == 0 {
		return nil, fmt.Errorf("no catalog adapters enabled, nothing to sweep")
	}

	var sc scorer.Scorer = scorer.Noop{}
	if cfg.Scorer.Enabled {
		llm, err := scorer.NewLLM(scorer.Config{
			APIKey:         cfg.Scorer.APIKey,
			BaseURL:        cfg.Scorer.BaseURL,
			Model:          cfg.Scorer.Model,
			TimeoutSeconds: cfg.Scorer.TimeoutSeconds,
		})
		if err != nil {
			logger.Warn("scorer disabled", logging.Error(err))
		} else {
			sc = llm
		}
	}

	notifier := notifications.NewService(cfg)
	engine := detect.NewEngine(sc, logger)
	roster := reviewers.NewStatic(cfg.Approvals.Reviewers)
	workflow := approval.NewWorkflow(st, roster, notifier, logger)

	return sweep.NewManager(st, engine, workflow, providers, notifier, logger, sweep.Options{
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
	}), nil
}

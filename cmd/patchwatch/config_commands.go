package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"patchwatch/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	configCmd.AddCommand(newConfigInitCommand(ctx))
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigValidateCommand(ctx))

	return configCmd
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "init",
		Short:       "Write a commented sample configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var flagPath string
			if ctx.configFlag != nil {
				flagPath = *ctx.configFlag
			}
			path := config.ResolvePath(flagPath)
			if err := config.WriteSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", path)
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config file:  %s\n", ctx.configPath)
			fmt.Fprintf(out, "Data dir:     %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(out, "Log dir:      %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "Sweep every:  %dm (stale after %dm)\n", cfg.Sweep.IntervalMinutes, cfg.Sweep.StaleAfterMinutes)
			fmt.Fprintf(out, "Auto-approve: %.2f (floor %.2f)\n", cfg.Policy.AutoApproveThreshold, cfg.Policy.CandidateFloor)
			fmt.Fprintf(out, "Storefront:   %s\n", enabledWithSecret(cfg.Storefront.Enabled, cfg.Storefront.APIKey))
			fmt.Fprintf(out, "Build feed:   %s\n", yesNo(cfg.BuildFeed.Enabled))
			fmt.Fprintf(out, "AI scorer:    %s\n", enabledWithSecret(cfg.Scorer.Enabled, cfg.Scorer.APIKey))
			fmt.Fprintf(out, "Reviewers:    %s\n", orDash(strings.Join(cfg.Approvals.Reviewers, ", ")))
			fmt.Fprintf(out, "Ntfy topic:   %s\n", orDash(cfg.Notifications.NtfyTopic))
			return nil
		},
	}
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration at %s is valid\n", ctx.configPath)
			return nil
		},
	}
}

func enabledWithSecret(enabled bool, secret string) string {
	if !enabled {
		return "disabled"
	}
	if strings.TrimSpace(secret) == "" {
		return "enabled (no api key)"
	}
	return "enabled"
}

package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"patchwatch/internal/store"
	"patchwatch/internal/tracked"
)

func newTitlesCommand(ctx *commandContext) *cobra.Command {
	titlesCmd := &cobra.Command{
		Use:   "titles",
		Short: "Manage tracked titles",
	}

	titlesCmd.AddCommand(newTitlesAddCommand(ctx))
	titlesCmd.AddCommand(newTitlesListCommand(ctx))
	titlesCmd.AddCommand(newTitlesShowCommand(ctx))
	titlesCmd.AddCommand(newTitlesPauseCommand(ctx))
	titlesCmd.AddCommand(newTitlesResumeCommand(ctx))

	return titlesCmd
}

func newTitlesAddCommand(ctx *commandContext) *cobra.Command {
	var owner string
	var version string
	var frequencyHours int

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Start tracking a title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(args[0]) == "" {
				return fmt.Errorf("title must not be empty")
			}
			title := tracked.DisplayTitle(args[0])
			return ctx.withStore(func(st *store.Store) error {
				entity, err := st.CreateEntity(cmd.Context(), tracked.Entity{
					OwnerID:        strings.TrimSpace(owner),
					Title:          title,
					CurrentVersion: strings.TrimSpace(version),
					Active:         true,
					CheckFrequency: time.Duration(frequencyHours) * time.Hour,
					Status:         tracked.StatusActive,
				})
				if err != nil {
					return fmt.Errorf("create tracked title: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Tracking %q as #%d\n", entity.Title, entity.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owning user id")
	cmd.Flags().StringVar(&version, "version", "", "Currently installed version, if known")
	cmd.Flags().IntVar(&frequencyHours, "frequency", 0, "Check frequency in hours (0 uses the sweep default)")
	return cmd
}

func newTitlesListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked titles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				filter := store.EntityFilter{OwnerID: strings.TrimSpace(owner)}
				if s := strings.TrimSpace(statusFilter); s != "" {
					filter.Status = tracked.ParseStatus(s)
				}
				entities, err := st.ListEntities(cmd.Context(), filter)
				if err != nil {
					return fmt.Errorf("list titles: %w", err)
				}
				if len(entities) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tracked titles")
					return nil
				}

				rows := make([][]string, 0, len(entities))
				for _, e := range entities {
					rows = append(rows, []string{
						strconv.FormatInt(e.ID, 10),
						e.Title,
						orDash(e.CurrentVersion),
						string(e.Status),
						yesNo(e.Active),
						formatWhen(e.LastChecked),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Title", "Version", "Status", "Active", "Last Checked"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status")
	cmd.Flags().StringVar(&owner, "owner", "", "Filter by owning user id")
	return cmd
}

func newTitlesShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a tracked title and its update history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntityID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				entity, err := st.GetEntity(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("load title: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "#%d %s\n", entity.ID, entity.Title)
				fmt.Fprintf(out, "Status:        %s\n", entity.Status)
				fmt.Fprintf(out, "Version:       %s\n", orDash(entity.CurrentVersion))
				fmt.Fprintf(out, "Previous:      %s\n", orDash(entity.LastKnownVersion))
				fmt.Fprintf(out, "Active:        %s\n", yesNo(entity.Active))
				fmt.Fprintf(out, "Last checked:  %s\n", formatWhen(entity.LastChecked))

				if len(entity.History) == 0 {
					fmt.Fprintln(out, "No update history")
					return nil
				}
				rows := make([][]string, 0, len(entity.History))
				for _, h := range entity.History {
					rows = append(rows, []string{
						h.Version,
						formatWhen(h.DetectedAt),
						orDash(h.Source),
						orDash(h.Changelog),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Version", "Detected", "Source", "Notes"},
					rows,
					nil,
				))
				return nil
			})
		},
	}
}

func newTitlesPauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <id>",
		Short: "Pause sweeps for a title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setTitleStatus(ctx, cmd, args[0], tracked.StatusPaused, "Paused")
		},
	}
}

func newTitlesResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <id>",
		Short: "Resume sweeps for a paused title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setTitleStatus(ctx, cmd, args[0], tracked.StatusActive, "Resumed")
		},
	}
}

func setTitleStatus(ctx *commandContext, cmd *cobra.Command, rawID string, status tracked.Status, verb string) error {
	id, err := parseEntityID(rawID)
	if err != nil {
		return err
	}
	return ctx.withStore(func(st *store.Store) error {
		entity, err := st.GetEntity(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("load title: %w", err)
		}
		if err := st.UpdateEntityFlags(cmd.Context(), id, entity.Active, entity.CheckFrequency, status); err != nil {
			return fmt.Errorf("update title: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s #%d %s\n", verb, entity.ID, entity.Title)
		return nil
	})
}

func parseEntityID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid title id %q", raw)
	}
	return id, nil
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatWhen(when time.Time) string {
	if when.IsZero() {
		return "never"
	}
	return when.Local().Format("2006-01-02 15:04")
}

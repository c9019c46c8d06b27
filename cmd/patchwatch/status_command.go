package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"patchwatch/internal/store"
	"patchwatch/internal/tracked"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show tracked title counts and open approvals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				entities, err := st.ListEntities(cmd.Context(), store.EntityFilter{})
				if err != nil {
					return fmt.Errorf("list titles: %w", err)
				}
				open, err := st.ListApprovals(cmd.Context(), store.ApprovalFilter{State: tracked.ApprovalOpen})
				if err != nil {
					return fmt.Errorf("list approvals: %w", err)
				}

				byStatus := map[tracked.Status]int{}
				active := 0
				for _, e := range entities {
					byStatus[e.Status]++
					if e.Active {
						active++
					}
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Tracked titles: %d (%d active)\n", len(entities), active)
				statuses := []tracked.Status{
					tracked.StatusActive,
					tracked.StatusUpToDate,
					tracked.StatusUpdateAvailable,
					tracked.StatusPaused,
					tracked.StatusError,
				}
				rows := make([][]string, 0, len(statuses))
				for _, s := range statuses {
					rows = append(rows, []string{string(s), strconv.Itoa(byStatus[s])})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Status", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				fmt.Fprintf(out, "Open approvals: %d\n", len(open))
				return nil
			})
		},
	}
}

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"patchwatch/internal/approval"
	"patchwatch/internal/store"
	"patchwatch/internal/tracked"
)

func newApprovalsCommand(ctx *commandContext) *cobra.Command {
	approvalsCmd := &cobra.Command{
		Use:   "approvals",
		Short: "Review pending update approvals",
	}

	approvalsCmd.AddCommand(newApprovalsListCommand(ctx))
	approvalsCmd.AddCommand(newApprovalsShowCommand(ctx))
	approvalsCmd.AddCommand(newApprovalsVoteCommand(ctx, "approve", true))
	approvalsCmd.AddCommand(newApprovalsVoteCommand(ctx, "deny", false))

	return approvalsCmd
}

func newApprovalsListCommand(ctx *commandContext) *cobra.Command {
	var stateFilter string
	var entityID int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending approvals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				filter := store.ApprovalFilter{EntityID: entityID}
				if s := strings.ToLower(strings.TrimSpace(stateFilter)); s != "" {
					filter.State = tracked.ApprovalState(s)
				} else {
					filter.State = tracked.ApprovalOpen
				}
				approvals, err := st.ListApprovals(cmd.Context(), filter)
				if err != nil {
					return fmt.Errorf("list approvals: %w", err)
				}
				if len(approvals) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No approvals match")
					return nil
				}

				rows := make([][]string, 0, len(approvals))
				for _, p := range approvals {
					rows = append(rows, []string{
						p.ID,
						strconv.FormatInt(p.EntityID, 10),
						p.Candidate.Title,
						orDash(p.NewVersion),
						fmt.Sprintf("%.2f", p.Confidence),
						fmt.Sprintf("%d/%d", p.Approvals(), len(p.Votes)),
						formatWhen(p.ExpiresAt),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Title", "Candidate", "Version", "Confidence", "Votes", "Expires"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&stateFilter, "state", "", "Filter by state (open, approved, denied, expired)")
	cmd.Flags().Int64Var(&entityID, "title", 0, "Filter by tracked title id")
	return cmd
}

func newApprovalsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <approval-id>",
		Short: "Show one approval with its votes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				p, err := st.GetApproval(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return fmt.Errorf("load approval: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Approval %s (%s)\n", p.ID, p.State)
				fmt.Fprintf(out, "Title:       #%d\n", p.EntityID)
				fmt.Fprintf(out, "Candidate:   %s\n", p.Candidate.Title)
				fmt.Fprintf(out, "Version:     %s\n", orDash(p.NewVersion))
				fmt.Fprintf(out, "Confidence:  %.2f (%s)\n", p.Confidence, p.Method)
				fmt.Fprintf(out, "Reason:      %s\n", p.Reason)
				fmt.Fprintf(out, "Expires:     %s\n", formatWhen(p.ExpiresAt))

				if len(p.Votes) == 0 {
					fmt.Fprintln(out, "No votes cast yet")
					return nil
				}
				rows := make([][]string, 0, len(p.Votes))
				for _, v := range p.Votes {
					verdict := "deny"
					if v.Approve {
						verdict = "approve"
					}
					rows = append(rows, []string{v.ReviewerID, verdict, formatWhen(v.CastAt)})
				}
				fmt.Fprintln(out, renderTable([]string{"Reviewer", "Verdict", "Cast"}, rows, nil))
				return nil
			})
		},
	}
}

func newApprovalsVoteCommand(ctx *commandContext, verb string, approve bool) *cobra.Command {
	var reviewer string

	cmd := &cobra.Command{
		Use:   verb + " <approval-id>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a pending update",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reviewer = strings.TrimSpace(reviewer)
			if reviewer == "" {
				return fmt.Errorf("--as reviewer id is required")
			}
			return ctx.withWorkflow(func(st *store.Store, wf *approval.Workflow) error {
				p, err := wf.Vote(cmd.Context(), strings.TrimSpace(args[0]), reviewer, approve)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch p.State {
				case tracked.ApprovalOpen:
					fmt.Fprintf(out, "Vote recorded, approval still open (%d approvals)\n", p.Approvals())
				case tracked.ApprovalApproved:
					fmt.Fprintf(out, "Approved: %s committed as %s\n", p.Candidate.Title, orDash(p.NewVersion))
				case tracked.ApprovalDenied:
					fmt.Fprintln(out, "Denied: quorum can no longer be reached")
				case tracked.ApprovalExpired:
					fmt.Fprintln(out, "Approval expired before the vote landed")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reviewer, "as", "", "Reviewer id casting the vote")
	return cmd
}

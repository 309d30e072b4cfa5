package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ehscore/internal/core"
)

type permitTransition func(*core.Service, context.Context, string, string) (core.WorkPermit, core.Result, error)

func permitCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permit",
		Short: "Work permit lifecycle",
	}
	transitions := []struct {
		use, short string
		apply      permitTransition
	}{
		{"approve", "Approve a requested permit", (*core.Service).ApprovePermit},
		{"reject", "Reject a requested permit", (*core.Service).RejectPermit},
		{"start", "Mark an approved permit as in progress", (*core.Service).StartPermit},
		{"close", "Close an approved or in-progress permit", (*core.Service).ClosePermit},
	}
	for _, tr := range transitions {
		apply := tr.apply
		cmd.AddCommand(&cobra.Command{
			Use:   tr.use + " <permit-id>",
			Short: tr.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withService(cmd, opts, func(ctx context.Context, svc *core.Service) error {
					p, _, err := apply(svc, ctx, opts.actor, args[0])
					if err != nil {
						return err
					}
					printOK(cmd.OutOrStdout(), "%s %s", p.Folio, statusLabel(string(p.Status)))
					return nil
				})
			},
		})
	}
	return cmd
}

func findingCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finding",
		Short: "Audit findings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "close <audit-id> <finding-id>",
		Short: "Close an open finding",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *core.Service) error {
				f, _, err := svc.CloseFinding(ctx, opts.actor, args[0], args[1])
				if err != nil {
					return err
				}
				printOK(cmd.OutOrStdout(), "finding %s %s", f.ID, statusLabel(string(f.Status)))
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "corrective-action <audit-id> <finding-id>",
		Short: "Create a corrective action activity from a non-conformity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *core.Service) error {
				a, _, err := svc.CreateCorrectiveAction(ctx, opts.actor, args[0], args[1])
				if err != nil {
					return err
				}
				printOK(cmd.OutOrStdout(), "activity %s: %s", a.ID, a.Description)
				return nil
			})
		},
	})
	return cmd
}

func wasteCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "waste",
		Short: "Waste catalogue",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <waste-id>",
		Short: "Delete a waste type that no log references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *core.Service) error {
				if _, err := svc.DeleteWaste(ctx, opts.actor, args[0]); err != nil {
					return err
				}
				printOK(cmd.OutOrStdout(), "waste %s deleted", args[0])
				return nil
			})
		},
	})
	return cmd
}

func equipmentCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "equipment",
		Short: "Safety equipment inspections",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the inspection standing of every piece of equipment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *core.Service) error {
				standings, err := svc.EquipmentStatuses(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tLAST\tNEXT\tDAYS\tSTATUS")
				for _, st := range standings {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", st.Equipment.ID, st.Equipment.Name,
						st.Equipment.LastInspectionDate, st.NextDue, st.DaysUntilNext, statusLabel(string(st.Status)))
				}
				return w.Flush()
			})
		},
	})
	return cmd
}

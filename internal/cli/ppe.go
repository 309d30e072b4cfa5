package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"ehscore/internal/core"
	"ehscore/pkg/domain"
)

func ppeCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ppe",
		Short: "PPE catalogue and stock",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List PPE items with their stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *core.Service) error {
				items, err := svc.ListPpeItems(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tTYPE\tSIZE\tSTOCK")
				for _, item := range items {
					stock := item.Stock.String()
					if item.Stock.IsZero() {
						stock = badColor.Sprint(stock)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", item.ID, item.Name, item.Type, item.Size, stock)
				}
				return w.Flush()
			})
		},
	})
	cmd.AddCommand(stockMoveCmd(opts, "receive", "Add received units to an item", false))
	cmd.AddCommand(stockMoveCmd(opts, "withdraw", "Remove units from an item", true))
	return cmd
}

func stockMoveCmd(opts *globalOptions, use, short string, withdraw bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <ppe-id> <quantity>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("quantity %q: %w", args[1], err)
			}
			return withService(cmd, opts, func(ctx context.Context, svc *core.Service) error {
				move := svc.ReceiveStock
				if withdraw {
					move = svc.WithdrawStock
				}
				item, mv, err := move(ctx, opts.actor, args[0], qty)
				if err != nil {
					return err
				}
				printOK(cmd.OutOrStdout(), "%s: %s -> %s", item.Name, mv.StockBefore, mv.StockAfter)
				return nil
			})
		},
	}
}

func deliveryCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delivery",
		Short: "PPE delivery requests",
	}

	var (
		employee string
		ppe      string
		quantity int
		kind     string
		date     string
	)
	request := &cobra.Command{
		Use:   "request",
		Short: "Request a PPE delivery for an employee",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *core.Service) error {
				d, _, err := svc.RequestDelivery(ctx, opts.actor, core.PpeDelivery{
					EmployeeID:   employee,
					PpeID:        ppe,
					Quantity:     quantity,
					DeliveryType: domain.DeliveryType(kind),
					Date:         domain.Date(date),
				})
				if err != nil {
					return err
				}
				printOK(cmd.OutOrStdout(), "%s requested (%s)", d.Folio, statusLabel(string(d.Status)))
				return nil
			})
		},
	}
	request.Flags().StringVar(&employee, "employee", "", "Employee id")
	request.Flags().StringVar(&ppe, "ppe", "", "PPE item id")
	request.Flags().IntVar(&quantity, "quantity", 1, "Units to deliver")
	request.Flags().StringVar(&kind, "type", string(domain.DeliveryIngreso), "Delivery type")
	request.Flags().StringVar(&date, "date", "", "Delivery date (YYYY-MM-DD, default today)")
	_ = request.MarkFlagRequired("employee")
	_ = request.MarkFlagRequired("ppe")
	cmd.AddCommand(request)

	cmd.AddCommand(&cobra.Command{
		Use:   "approve <delivery-id>",
		Short: "Approve a pending delivery and deduct its stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *core.Service) error {
				d, _, err := svc.ApproveDelivery(ctx, opts.actor, args[0])
				if err != nil {
					return err
				}
				printOK(cmd.OutOrStdout(), "%s %s", d.Folio, statusLabel(string(d.Status)))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List deliveries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *core.Service) error {
				details, err := svc.ListDeliveryDetails(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "FOLIO\tDATE\tEMPLOYEE\tPPE\tQTY\tSTATUS")
				for _, dd := range details {
					d := dd.Delivery
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", d.Folio, d.Date,
						core.EmployeeLabel(dd.Employee), core.PpeLabel(dd.Ppe),
						d.Quantity, statusLabel(string(d.Status)))
				}
				return w.Flush()
			})
		},
	})
	return cmd
}

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ehscore/internal/core"
	"ehscore/pkg/domain"
)

func bootstrapCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Open the store and show the default administrator if this run created it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(_ context.Context, a *app) error {
				out := cmd.OutOrStdout()
				if !a.startup.AdminCreated {
					fmt.Fprintln(out, dimColor.Sprint("users already present, nothing to do"))
					return nil
				}
				user := a.startup.Admin
				printOK(out, "created %s (login %q, password %q); change the password now",
					user.ID, user.EmployeeNumber, domain.DefaultAdminPassword)
				return nil
			})
		},
	}
}

func folioCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folio",
		Short: "Inspect folio sequences",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "next <family>",
		Short: "Show the folio the next record of a family would receive",
		Long:  "Families: " + familyNames() + ". Prefixes (I, F, AUD, PT, RD) are accepted too.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			family, ok := core.LookupFolioFamily(args[0])
			if !ok {
				return fmt.Errorf("unknown folio family %q (want one of %s)", args[0], familyNames())
			}
			return withService(cmd, opts, func(ctx context.Context, svc *core.Service) error {
				next, err := svc.PeekFolio(ctx, family)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), next)
				return nil
			})
		},
	})
	return cmd
}

func schemaCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect or upgrade the stored schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the stored schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *core.Service) error {
				v, err := svc.SchemaVersion(ctx)
				if err != nil {
					return err
				}
				label := okColor.Sprint("current")
				if v < core.CurrentSchemaVersion {
					label = warnColor.Sprint("needs migrate")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema %d of %d (%s)\n", v, core.CurrentSchemaVersion, label)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Upgrade stored collections to the current schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *core.Service) error {
				v, err := svc.Migrate(ctx)
				if err != nil {
					return err
				}
				printOK(cmd.OutOrStdout(), "schema at version %d", v)
				return nil
			})
		},
	})
	return cmd
}

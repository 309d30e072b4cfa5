package cli

import (
	"github.com/spf13/cobra"

	"ehscore/pkg/domain"
)

// RootCmd builds the ehsctl command tree.
func RootCmd(version string) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:     "ehsctl",
		Short:   "Operate an EHS record store",
		Version: version,
		Long: `ehsctl runs the EHS workflows (PPE stock and deliveries, work permits,
audit findings, waste and equipment) against the configured store.

Settings come from .env, EHS_CONFIG_FILE and EHS_* variables; the flags
below override the storage selection for one invocation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.actor, "actor", domain.DefaultAdminID, "User id the command acts as")
	root.PersistentFlags().StringVar(&opts.storage, "storage", "", "Storage driver (memory, sqlite, postgres)")
	root.PersistentFlags().StringVar(&opts.sqlitePath, "sqlite-path", "", "SQLite database file")

	root.AddCommand(bootstrapCmd(opts))
	root.AddCommand(folioCmd(opts))
	root.AddCommand(schemaCmd(opts))
	root.AddCommand(ppeCmd(opts))
	root.AddCommand(deliveryCmd(opts))
	root.AddCommand(permitCmd(opts))
	root.AddCommand(findingCmd(opts))
	root.AddCommand(wasteCmd(opts))
	root.AddCommand(equipmentCmd(opts))
	return root
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/salesops/salesops/pkg/stores"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the store schema migrations",
		Long: `Apply the embedded schema migrations for the audit log and dead-letter
tables. Safe to run repeatedly; an up-to-date schema is not an error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := stores.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
	return cmd
}

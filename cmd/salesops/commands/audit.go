package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/salesops/salesops/pkg/orchestrator"
	"github.com/salesops/salesops/pkg/stores"
)

func newAuditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit log",
	}
	cmd.AddCommand(newAuditTailCommand())
	return cmd
}

func newAuditTailCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the most recent audit records",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			audit := stores.NewAuditLogStore(stores.AuditLogConfig{DB: db})
			records, err := audit.Tail(ctx, limit)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd, records)
			}

			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Audit log is empty")
				return nil
			}
			for _, record := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "%d  %s  %s\n", record.ID,
					orchestrator.FormatTimestamp(record.CreatedAt), record.TriggerSource)
				fmt.Fprintf(cmd.OutOrStdout(), "    input:  %s\n", record.InputJSON)
				fmt.Fprintf(cmd.OutOrStdout(), "    output: %s\n", record.OutputResult)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of records to show")
	return cmd
}

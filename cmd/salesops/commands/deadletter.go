package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/salesops/salesops/pkg/orchestrator"
	"github.com/salesops/salesops/pkg/stores"
)

func newDeadLetterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deadletter",
		Aliases: []string{"dlq"},
		Short:   "Inspect the dead-letter store",
	}
	cmd.AddCommand(newDeadLetterListCommand())
	return cmd
}

func newDeadLetterListCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List quarantined tasks, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			deadletters := stores.NewDeadLetterStore(stores.DeadLetterConfig{DB: db})
			items, err := deadletters.List(ctx, limit)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd, items)
			}

			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Dead-letter store is empty")
				return nil
			}
			for _, item := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "%d  %s  %s\n", item.ID,
					orchestrator.FormatTimestamp(item.DeadletteredAt), item.Reason)
				fmt.Fprintf(cmd.OutOrStdout(), "    task %s (%s) intent %s retries %d\n",
					item.Task.TaskID, item.Task.TaskType, item.Task.IntentID, item.Task.RetryCount)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of items to show")
	return cmd
}

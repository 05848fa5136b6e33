package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/salesops/salesops/pkg/orchestrator"
	"github.com/salesops/salesops/pkg/stores"
)

func newPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <intent-file>",
		Short: "Compile an intent document into a task plan",
		Long: `Validate an intent document, compile it into an ordered task plan and
journal the plan in the audit log. Each planned task is printed together
with the symbolic worker id that will execute it.

Reads the document from the given file, or from stdin when the file is "-".`,
		Args: cobra.ExactArgs(1),
		RunE: runPlan,
	}
	return cmd
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	data, err := readDocument(args[0])
	if err != nil {
		return err
	}

	validator, err := orchestrator.NewIntentValidator()
	if err != nil {
		return err
	}
	intent, err := validator.ValidateJSON(data)
	if err != nil {
		if verr, ok := orchestrator.IsValidationError(err); ok {
			return printValidationError(cmd, verr)
		}
		return err
	}

	db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	audit := stores.NewAuditLogStore(stores.AuditLogConfig{DB: db})
	planner := orchestrator.NewTaskPlanner(orchestrator.PlannerConfig{Audit: audit})
	orch := orchestrator.New(orchestrator.Config{Planner: planner, Audit: audit})

	tasks, err := orch.PlanTasksForIntent(ctx, intent)
	if err != nil {
		return fmt.Errorf("failed to plan tasks: %w", err)
	}
	refs := orchestrator.MapTasksToWorkers(tasks)

	if jsonOutput {
		return printJSON(cmd, map[string]any{
			"intent_id": intent.IntentID,
			"tasks":     tasks,
			"workers":   refs,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Planned %d task(s) for intent %s:\n", len(tasks), intent.IntentID)
	for i, task := range tasks {
		fmt.Fprintf(cmd.OutOrStdout(), "  %d. %s [%s] -> %s\n", i+1, task.TaskType, task.TaskID, refs[i].Worker)
	}
	return nil
}

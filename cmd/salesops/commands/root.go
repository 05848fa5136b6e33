// Package commands implements the salesops CLI: intent validation, task
// planning, and operator inspection of the audit log and dead-letter store.
package commands

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/salesops/salesops/pkg/config"
	"github.com/salesops/salesops/pkg/stores"
)

var (
	// Global flags
	dbPath     string
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "salesops",
		Short: "SalesOps - Sales Operations Task Orchestrator",
		Long: `SalesOps compiles natural-language sales operations intents into
deterministic task plans and drives them through an idempotent,
audited task lifecycle.

Features:
  - Closed-schema intent validation
  - Deterministic intent -> task plan compilation
  - Guarded task lifecycle with bounded retries
  - Dead-letter capture of exhausted tasks
  - Append-only audit journal of every state change`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides SALESOPS_DB_PATH)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newAuditCommand())
	rootCmd.AddCommand(newDeadLetterCommand())
	rootCmd.AddCommand(newMigrateCommand())

	return rootCmd
}

// openDatabase opens the configured store database, honoring the --db flag.
func openDatabase(ctx context.Context) (*sql.DB, error) {
	path := dbPath
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		path = cfg.DatabasePath
	}
	return stores.Open(ctx, path)
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RSBalchII/anchor/internal/config"
	"github.com/RSBalchII/anchor/internal/infrastructure/database/postgres"
)

const defaultMigrationPath = "file://migrations"

func migrationSource(cfg *config.Config) (dsn, path string) {
	path = cfg.Store.MigrationPath
	if path == "" {
		path = defaultMigrationPath
	}
	return cfg.Store.DSN(), path
}

var (
	migrateRollbackSteps int
	migrateForceVersion  int
)

// NewMigrateCmd builds `anchor migrate`: drives the Store's schema lifecycle
// (up, status, rollback, force) via golang-migrate, per §6.5.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the Store's schema migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			dsn, path := migrationSource(cliCtx.Config)
			if err := postgres.RunMigrations(dsn, path); err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			PrintSuccess(cmd, "migrations applied")
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Report the current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			dsn, path := migrationSource(cliCtx.Config)
			version, dirty, err := postgres.MigrationStatus(dsn, path)
			if err != nil {
				return fmt.Errorf("migrate status: %w", err)
			}
			return PrintResult(cmd, map[string]interface{}{
				"version": version,
				"dirty":   dirty,
			})
		},
	}

	rollback := &cobra.Command{
		Use:   "rollback",
		Short: "Roll back N migration steps",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			dsn, path := migrationSource(cliCtx.Config)
			if err := postgres.RollbackMigration(dsn, path, migrateRollbackSteps); err != nil {
				return fmt.Errorf("migrate rollback: %w", err)
			}
			PrintSuccess(cmd, fmt.Sprintf("rolled back %d step(s)", migrateRollbackSteps))
			return nil
		},
	}
	rollback.Flags().IntVar(&migrateRollbackSteps, "steps", 1, "number of migration steps to roll back")

	force := &cobra.Command{
		Use:   "force",
		Short: "Forcibly set the migration version without running migrations (dirty-state recovery)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			dsn, path := migrationSource(cliCtx.Config)
			if err := postgres.ForceMigrationVersion(dsn, path, migrateForceVersion); err != nil {
				return fmt.Errorf("migrate force: %w", err)
			}
			PrintSuccess(cmd, fmt.Sprintf("forced version %d", migrateForceVersion))
			return nil
		},
	}
	force.Flags().IntVar(&migrateForceVersion, "version", -1, "version to force (-1 marks as no version)")

	cmd.AddCommand(up, status, rollback, force)
	return cmd
}

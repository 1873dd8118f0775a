package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RSBalchII/anchor/internal/infrastructure/database/postgres"
)

var resetConfirmed bool

// NewResetCmd builds `anchor reset`: the Tabula Rasa schema reset (§4.1,
// §9) — drop every table and re-apply migrations from scratch. Destructive,
// so it refuses to run without --yes.
func NewResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-create the Store's schema (Tabula Rasa)",
		Long:  "Rolls back every applied migration and re-applies them from scratch,\nper the Tabula Rasa boot policy. This destroys all stored compounds,\nmolecules, atoms, edges and engrams. Requires --yes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !resetConfirmed {
				return fmt.Errorf("reset: this drops all tables; re-run with --yes to confirm")
			}
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			dsn, path := migrationSource(cliCtx.Config)
			if err := postgres.TabulaRasa(dsn, path); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			PrintSuccess(cmd, "schema reset complete")
			return nil
		},
	}
	cmd.Flags().BoolVar(&resetConfirmed, "yes", false, "confirm the destructive reset")
	return cmd
}

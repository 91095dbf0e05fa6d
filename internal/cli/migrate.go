package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/services"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and seed the first reviewer",
	RunE: withEnv(func(cmd *cobra.Command, e *env) error {
		seeded, err := services.NewAuthService(e.db, e.cfg).
			SeedReviewer(cmd.Context(), e.cfg.Seed.ReviewerEmail, e.cfg.Seed.ReviewerPassword)
		if err != nil {
			return fmt.Errorf("seed reviewer: %w", err)
		}

		slog.Info("migration finished", "driver", e.cfg.DB.Driver, "reviewer_seeded", seeded)
		_, err = fmt.Fprintln(cmd.OutOrStdout(), "database schema is up to date")
		return err
	}),
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

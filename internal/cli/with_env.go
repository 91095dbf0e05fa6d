package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/config"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/database"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/logging"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/storage"
)

// env is what every command needs: settings, the calendar and a migrated database.
type env struct {
	cfg *config.Config
	loc *time.Location
	db  *gorm.DB
}

// withEnv loads config, connects and migrates the database, runs fn and
// closes the database afterwards.
func withEnv(fn func(cmd *cobra.Command, e *env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		logging.Setup(cfg.App.Env)

		if err := cfg.Validate(); err != nil {
			return err
		}
		loc, err := cfg.Location()
		if err != nil {
			return err
		}

		if err := database.Connect(cfg); err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer database.Close(database.DB)

		if err := database.Migrate(database.DB); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		return fn(cmd, &env{cfg: cfg, loc: loc, db: database.DB})
	}
}

func openBlobs(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	blobs, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("blob store init failed: %w", err)
	}
	return blobs, nil
}

// Package cli holds the cobra commands of the server binary.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/errs"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "server",
	Short:        "Nutrition program report workflow service",
	Long:         "Report requests, submissions, review and notifications for the nutrition program office.",
	SilenceUsage: true,
}

// Execute runs the root command. It is called by main.main().
func Execute(ctx context.Context) error {
	rootCmd.SetContext(ctx)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command execution failed", "error", errs.Loggable(err))
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", os.Getenv("CONFIG_FILE"), "Optional YAML config file")
}

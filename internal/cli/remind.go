package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/server"
)

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Send due-soon and overdue reminders once and exit",
	RunE: withEnv(func(cmd *cobra.Command, e *env) error {
		publisher, closePublisher, err := connectPublisher(e.cfg)
		if err != nil {
			return err
		}
		defer closePublisher()

		svc := server.NewServices(e.cfg, server.Deps{DB: e.db, Publisher: publisher, Location: e.loc})
		res, err := svc.Reminders.Run(cmd.Context())
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "reports=%d due_soon=%d overdue=%d skipped=%d\n",
			res.Reports, res.DueSoon, res.Overdue, res.Skipped)
		return err
	}),
}

func init() {
	rootCmd.AddCommand(remindCmd)
}

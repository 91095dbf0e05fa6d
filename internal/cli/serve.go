package cli

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/config"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/logging"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/messaging"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/scheduler"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/server"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/services"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/storage"
)

const jobTimeout = 10 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the scheduled jobs",
	RunE: withEnv(func(cmd *cobra.Command, e *env) error {
		cfg := e.cfg

		// Database log handler (ERROR+ async batch)
		if cfg.Log.PersistErrors {
			dbLogHandler := logging.NewDBHandler(e.db, 5*time.Second)
			defer dbLogHandler.Stop()
			logging.Setup(cfg.App.Env, dbLogHandler)
		}

		// Sentry error tracking
		if cfg.SentryDSN != "" {
			if err := sentry.Init(sentry.ClientOptions{
				Dsn:              cfg.SentryDSN,
				EnableTracing:    true,
				TracesSampleRate: 0.2,
				Environment:      cfg.App.Env,
			}); err != nil {
				slog.Error("sentry init failed", "error", err.Error())
			} else {
				defer sentry.Flush(2 * time.Second)
			}
		}

		blobs, err := openBlobs(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer storage.Close(blobs)

		publisher, closePublisher, err := connectPublisher(cfg)
		if err != nil {
			return err
		}
		defer closePublisher()

		deps := server.Deps{DB: e.db, Blobs: blobs, Publisher: publisher, Location: e.loc}
		svc := server.NewServices(cfg, deps)

		if _, err := svc.Auth.SeedReviewer(cmd.Context(), cfg.Seed.ReviewerEmail, cfg.Seed.ReviewerPassword); err != nil {
			slog.Error("reviewer seed failed", "error", err.Error())
		}

		jobs := scheduler.New(e.loc, jobTimeout)
		if err := registerJobs(jobs, cfg, e, svc); err != nil {
			return err
		}
		jobs.Start()

		app := server.New(cfg, deps, svc)

		// Graceful shutdown
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		listenErr := make(chan error, 1)
		go func() {
			slog.Info("server starting", "port", cfg.Port)
			listenErr <- app.Listen(":" + cfg.Port)
		}()

		select {
		case <-ctx.Done():
			slog.Info("shutting down server...")
		case err := <-listenErr:
			slog.Error("server failed to start", "error", err.Error())
			jobs.Stop()
			return err
		}

		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			slog.Error("server shutdown error", "error", err.Error())
		}
		jobs.Stop()

		slog.Info("server stopped")
		return nil
	}),
}

func registerJobs(jobs *scheduler.Scheduler, cfg *config.Config, e *env, svc *server.Services) error {
	if err := jobs.Add(scheduler.Job{
		Name:     "due_reminders",
		Schedule: cfg.Reminder.Schedule,
		Run: func(ctx context.Context) error {
			res, err := svc.Reminders.Run(ctx)
			if err != nil {
				return err
			}
			slog.Info("reminders sent", "due_soon", res.DueSoon, "overdue", res.Overdue, "skipped", res.Skipped)
			return nil
		},
	}); err != nil {
		return err
	}

	return jobs.Add(scheduler.Job{
		Name:     "purge_system_logs",
		Schedule: cfg.Log.PurgeSchedule,
		Run: func(ctx context.Context) error {
			_, err := logging.PurgeLogs(ctx, e.db, cfg.Log.Retention)
			return err
		},
	})
}

// connectPublisher returns the NATS publisher when NATS_URL is set, and the
// in-process no-op otherwise.
func connectPublisher(cfg *config.Config) (services.Publisher, func(), error) {
	if cfg.NATS.URL == "" {
		return nil, func() {}, nil
	}
	nc, err := messaging.Connect(cfg.NATS.URL)
	if err != nil {
		return nil, nil, err
	}
	pub := messaging.NewPublisher(nc, cfg.NATS.SubjectPrefix)
	slog.Info("notification publisher connected", "url", cfg.NATS.URL)
	return pub, func() {
		if err := pub.Close(); err != nil {
			slog.Warn("nats drain failed", "error", err.Error())
		}
	}, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

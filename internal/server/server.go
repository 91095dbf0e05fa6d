// Package server assembles the fiber application: middleware stack,
// services, handlers and routes.
package server

import (
	"errors"
	"log/slog"
	"time"

	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/config"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/dto"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/routes"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/services"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/storage"
)

// Deps are the collaborators the HTTP surface is built on.
type Deps struct {
	DB        *gorm.DB
	Blobs     storage.BlobStore
	Publisher services.Publisher
	Location  *time.Location
}

// Services are the domain services shared by the HTTP surface and the jobs.
type Services struct {
	Auth         *services.AuthService
	Users        *services.UserService
	Ledger       *services.Ledger
	Notifier     *services.Notifier
	Reports      *services.ReportService
	Workflow     *services.WorkflowService
	Feedback     *services.FeedbackService
	Notification *services.NotificationService
	Reminders    *services.ReminderService
}

func NewServices(cfg *config.Config, d Deps) *Services {
	ledger := services.NewLedger(d.DB)
	notifier := services.NewNotifier(d.DB, d.Publisher)
	return &Services{
		Auth:         services.NewAuthService(d.DB, cfg),
		Users:        services.NewUserService(d.DB),
		Ledger:       ledger,
		Notifier:     notifier,
		Reports:      services.NewReportService(d.DB, ledger, notifier, d.Blobs, d.Location),
		Workflow:     services.NewWorkflowService(d.DB, ledger, notifier, d.Blobs),
		Feedback:     services.NewFeedbackService(d.DB, ledger, notifier),
		Notification: services.NewNotificationService(d.DB),
		Reminders:    services.NewReminderService(d.DB, ledger, notifier, d.Location, cfg.Reminder.LeadTime),
	}
}

// New builds the fiber app with the global middleware and every route.
func New(cfg *config.Config, d Deps, svc *Services) *fiber.App {
	bodyLimit := cfg.Server.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = 4 * 1024 * 1024
	}
	app := fiber.New(fiber.Config{
		BodyLimit:    bodyLimit,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${locals:requestid}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.SecurityHeaders())

	routes.Setup(app, cfg, routes.Handlers{
		Auth:         handlers.NewAuthHandler(svc.Auth),
		Health:       handlers.NewHealthHandler(d.DB),
		User:         handlers.NewUserHandler(svc.Users),
		Report:       handlers.NewReportHandler(svc.Reports, d.Location),
		Submission:   handlers.NewSubmissionHandler(svc.Workflow),
		Feedback:     handlers.NewFeedbackHandler(svc.Feedback),
		Notification: handlers.NewNotificationHandler(svc.Notification),
		Dashboard:    handlers.NewDashboardHandler(svc.Ledger),
	})

	return app
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(dto.ErrorResponse{
		Error:   true,
		Message: message,
	})
}

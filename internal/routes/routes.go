package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/config"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/models"
)

type Handlers struct {
	Auth         *handlers.AuthHandler
	Health       *handlers.HealthHandler
	User         *handlers.UserHandler
	Report       *handlers.ReportHandler
	Submission   *handlers.SubmissionHandler
	Feedback     *handlers.FeedbackHandler
	Notification *handlers.NotificationHandler
	Dashboard    *handlers.DashboardHandler
}

func Setup(app *fiber.App, cfg *config.Config, h Handlers) {
	api := app.Group("/api")

	// General API rate limiter: cfg.Server.RateLimit req/min per IP
	if cfg.Server.RateLimit > 0 {
		api.Use(rateLimit(cfg.Server.RateLimit))
	}

	api.Get("/health", h.Health.Check)

	// Auth-specific rate limit: a sixth of the general budget, at least 5/min
	auth := api.Group("/auth")
	if cfg.Server.RateLimit > 0 {
		auth.Use(rateLimit(max(cfg.Server.RateLimit/6, 5)))
	}
	auth.Post("/register", h.Auth.Register)
	auth.Post("/login", h.Auth.Login)
	auth.Post("/refresh", h.Auth.Refresh)

	jwt := middleware.JWTProtected(cfg)
	reviewer := middleware.RoleRequired(models.RoleReviewer)

	api.Post("/auth/logout", jwt, h.Auth.Logout)
	api.Get("/auth/me", jwt, h.Auth.Me)

	users := api.Group("/users", jwt, reviewer)
	users.Get("/", h.User.List)
	users.Post("/", h.User.Create)

	api.Get("/me/reports", jwt, h.Report.ListMine)

	reports := api.Group("/reports", jwt)
	reports.Get("/", h.Report.List)
	reports.Post("/", reviewer, h.Report.Create)
	reports.Get("/:id", h.Report.Get)
	reports.Put("/:id", reviewer, h.Report.Update)
	reports.Delete("/:id", reviewer, h.Report.Delete)
	reports.Post("/:id/archive", reviewer, h.Report.Archive)
	reports.Post("/:id/restore", reviewer, h.Report.Restore)

	reports.Post("/:id/submissions", h.Submission.Create)
	reports.Get("/:id/submissions", reviewer, h.Submission.ListLatest)
	reports.Get("/:id/submissions/mine", h.Submission.History)
	reports.Put("/:id/users/:userId/status", reviewer, h.Submission.UpdateUserStatus)

	reports.Get("/:id/feedback", h.Feedback.List)
	reports.Post("/:id/feedback", h.Feedback.Post)

	submissions := api.Group("/submissions", jwt)
	submissions.Get("/:id", h.Submission.Get)
	submissions.Post("/:id/attachments", h.Submission.AddAttachments)
	submissions.Put("/:id/status", reviewer, h.Submission.UpdateStatus)

	api.Get("/attachments/:id/download", jwt, h.Submission.Download)

	notifications := api.Group("/notifications", jwt)
	notifications.Get("/", h.Notification.List)
	notifications.Get("/unread-count", h.Notification.UnreadCount)
	notifications.Put("/read-all", h.Notification.MarkAllRead)
	notifications.Put("/:id/read", h.Notification.MarkRead)
	notifications.Delete("/", h.Notification.Clear)

	api.Get("/dashboard/status-counts", jwt, reviewer, h.Dashboard.StatusCounts)
}

func rateLimit(perMinute int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               perMinute,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	})
}

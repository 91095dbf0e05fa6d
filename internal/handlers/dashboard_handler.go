package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/errs"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/models"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/services"
)

type DashboardHandler struct {
	ledger *services.Ledger
}

func NewDashboardHandler(ledger *services.Ledger) *DashboardHandler {
	return &DashboardHandler{ledger: ledger}
}

// StatusCounts buckets the latest attempt of every (report, submitter) pair.
// Filters: report_id, type, month, year, include_archived.
func (h *DashboardHandler) StatusCounts(c *fiber.Ctx) error {
	filter := services.CountFilter{
		Type:            models.ReportType(c.Query("type")),
		Month:           c.QueryInt("month"),
		Year:            c.QueryInt("year"),
		IncludeArchived: c.QueryBool("include_archived", false),
	}
	if raw := c.Query("report_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return respondError(c, errs.New(errs.ErrValidation, "Invalid report_id"))
		}
		filter.ReportID = &id
	}

	counts, err := h.ledger.CountByStatus(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(counts)
}

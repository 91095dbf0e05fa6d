package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/dto"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/errs"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/models"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/services"
)

type ReportHandler struct {
	reportService *services.ReportService
	loc           *time.Location
}

func NewReportHandler(reportService *services.ReportService, loc *time.Location) *ReportHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportHandler{reportService: reportService, loc: loc}
}

func (h *ReportHandler) List(c *fiber.Ctx) error {
	filter, err := reportFilter(c)
	if err != nil {
		return respondError(c, err)
	}

	reports, err := h.reportService.List(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.ListResponse{Data: reports, Total: int64(len(reports))})
}

// ListMine returns the caller's view of each report: latest attempt, status
// and due status.
func (h *ReportHandler) ListMine(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	filter, err := reportFilter(c)
	if err != nil {
		return respondError(c, err)
	}

	views, err := h.reportService.ListForUser(c.UserContext(), actor, filter)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.ListResponse{Data: views, Total: int64(len(views))})
}

func (h *ReportHandler) Create(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	in, err := h.reportInput(c)
	if err != nil {
		return respondError(c, err)
	}

	report, err := h.reportService.Create(c.UserContext(), actor, in)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(report)
}

func (h *ReportHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	report, err := h.reportService.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(report)
}

func (h *ReportHandler) Update(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	in, err := h.reportInput(c)
	if err != nil {
		return respondError(c, err)
	}

	report, err := h.reportService.Update(c.UserContext(), actor, id, in)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(report)
}

func (h *ReportHandler) Archive(c *fiber.Ctx) error {
	return h.setArchived(c, true)
}

func (h *ReportHandler) Restore(c *fiber.Ctx) error {
	return h.setArchived(c, false)
}

func (h *ReportHandler) setArchived(c *fiber.Ctx, archived bool) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var report *models.ReportDefinition
	if archived {
		report, err = h.reportService.Archive(c.UserContext(), actor, id)
	} else {
		report, err = h.reportService.Restore(c.UserContext(), actor, id)
	}
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(report)
}

func (h *ReportHandler) Delete(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.reportService.Delete(c.UserContext(), actor, id); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ReportHandler) reportInput(c *fiber.Ctx) (services.ReportInput, error) {
	var req dto.ReportRequest
	if err := parseBody(c, &req); err != nil {
		return services.ReportInput{}, err
	}
	due, err := parseDueDate(req.DueDate, h.loc)
	if err != nil {
		return services.ReportInput{}, err
	}
	return services.ReportInput{
		Type:         models.ReportType(req.Type),
		PeriodMonth:  req.PeriodMonth,
		PeriodYear:   req.PeriodYear,
		DueDate:      due,
		Instructions: req.Instructions,
	}, nil
}

// parseDueDate accepts RFC 3339, or a plain date meaning the last second of
// that day in loc.
func parseDueDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, errs.New(errs.ErrValidation, "due_date must be RFC 3339 or YYYY-MM-DD")
	}
	return d.Add(24*time.Hour - time.Second), nil
}

func reportFilter(c *fiber.Ctx) (services.ReportFilter, error) {
	f := services.ReportFilter{
		Type:  models.ReportType(c.Query("type")),
		Month: c.QueryInt("month"),
		Year:  c.QueryInt("year"),
	}
	if f.Type != "" && !f.Type.Valid() {
		return f, errs.New(errs.ErrValidation, "Invalid type")
	}
	if raw := c.Query("archived"); raw != "" {
		archived, err := strconv.ParseBool(raw)
		if err != nil {
			return f, errs.New(errs.ErrValidation, "archived must be true or false")
		}
		f.Archived = &archived
	}
	return f, nil
}

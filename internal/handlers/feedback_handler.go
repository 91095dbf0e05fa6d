package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/dto"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/errs"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/services"
)

type FeedbackHandler struct {
	feedbackService *services.FeedbackService
}

func NewFeedbackHandler(feedbackService *services.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService}
}

// List returns the report's thread, optionally narrowed by ?submission_id=.
func (h *FeedbackHandler) List(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	reportID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var submissionID *uuid.UUID
	if raw := c.Query("submission_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return respondError(c, errs.New(errs.ErrValidation, "Invalid submission_id"))
		}
		submissionID = &id
	}

	entries, err := h.feedbackService.Thread(c.UserContext(), actor, reportID, submissionID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.ListResponse{Data: entries, Total: int64(len(entries))})
}

func (h *FeedbackHandler) Post(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	reportID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req dto.FeedbackRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	entry, err := h.feedbackService.Post(c.UserContext(), actor, reportID, req.SubmissionID, req.Content)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(entry)
}

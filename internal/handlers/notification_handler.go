package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/dto"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/services"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// List supports ?unread=true, ?limit= and ?offset=.
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	filter := services.InboxFilter{
		UnreadOnly: c.QueryBool("unread", false),
		Limit:      c.QueryInt("limit", 0),
		Offset:     c.QueryInt("offset", 0),
	}
	items, total, err := h.notificationService.List(c.UserContext(), actor.ID, filter)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.ListResponse{Data: items, Total: total, Limit: filter.Limit, Offset: filter.Offset})
}

func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	count, err := h.notificationService.UnreadCount(c.UserContext(), actor.ID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"count": count})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.notificationService.MarkRead(c.UserContext(), actor.ID, id); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Notification marked as read"})
}

func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	n, err := h.notificationService.MarkAllRead(c.UserContext(), actor.ID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"updated": n})
}

func (h *NotificationHandler) Clear(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	n, err := h.notificationService.Clear(c.UserContext(), actor.ID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"deleted": n})
}

package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/pampermomma/backend/internal/services"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	resp, err := h.notificationService.List(userID, c.QueryInt("page", 1), c.QueryInt("page_size", 0))
	if err != nil {
		return internalError(c)
	}
	return c.JSON(resp)
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return fail(c, fiber.StatusNotFound, "Notification not found")
	}

	n, err := h.notificationService.MarkRead(userID, id)
	if err != nil {
		if errors.Is(err, services.ErrNotificationNotFound) {
			return fail(c, fiber.StatusNotFound, "Notification not found")
		}
		return internalError(c)
	}
	return c.JSON(n)
}

package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/pampermomma/backend/internal/dto"
	"github.com/pampermomma/backend/internal/services"
)

type SharingHandler struct {
	sharingService *services.SharingService
}

func NewSharingHandler(sharingService *services.SharingService) *SharingHandler {
	return &SharingHandler{sharingService: sharingService}
}

func (h *SharingHandler) List(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	shares, err := h.sharingService.List(userID)
	if err != nil {
		return internalError(c)
	}
	return c.JSON(shares)
}

func (h *SharingHandler) Share(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	var req dto.ShareRegistryRequest
	if resp := parseBody(c, &req); resp != nil {
		return badRequest(c, resp)
	}

	share, err := h.sharingService.Share(userID, req.RegistryShareableID)
	if err != nil {
		if errors.Is(err, services.ErrInvalidShareableID) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Validation failed",
				Fields:  map[string]string{"registry_shareable_id": "Registry with this shareable ID does not exist."},
			})
		}
		return internalError(c)
	}
	return c.Status(fiber.StatusCreated).JSON(share)
}

func (h *SharingHandler) Get(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return fail(c, fiber.StatusNotFound, "Registry not found")
	}

	share, err := h.sharingService.Get(userID, id)
	if err != nil {
		return registryError(c, err)
	}
	return c.JSON(share)
}

func (h *SharingHandler) GetService(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return fail(c, fiber.StatusNotFound, "Registry not found")
	}
	serviceID, ok := paramUUID(c, "service_id")
	if !ok {
		return fail(c, fiber.StatusNotFound, "Service not found")
	}

	svc, err := h.sharingService.GetService(userID, id, serviceID)
	if err != nil {
		return registryError(c, err)
	}
	return c.JSON(svc)
}

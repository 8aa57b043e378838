package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/pampermomma/backend/internal/dto"
	"github.com/pampermomma/backend/internal/services"
)

type RegistryHandler struct {
	registryService *services.RegistryService
}

func NewRegistryHandler(registryService *services.RegistryService) *RegistryHandler {
	return &RegistryHandler{registryService: registryService}
}

func (h *RegistryHandler) List(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	registries, err := h.registryService.List(userID)
	if err != nil {
		return internalError(c)
	}
	return c.JSON(registries)
}

func (h *RegistryHandler) Create(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	var req dto.CreateRegistryRequest
	if resp := parseBody(c, &req); resp != nil {
		return badRequest(c, resp)
	}

	registry, err := h.registryService.Create(userID, &req)
	if err != nil {
		return registryError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(registry)
}

func (h *RegistryHandler) Get(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return fail(c, fiber.StatusNotFound, "Registry not found")
	}

	registry, err := h.registryService.Get(c.UserContext(), userID, id)
	if err != nil {
		return registryError(c, err)
	}
	return c.JSON(registry)
}

func (h *RegistryHandler) Update(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return fail(c, fiber.StatusNotFound, "Registry not found")
	}
	var req dto.UpdateRegistryRequest
	if resp := parseBody(c, &req); resp != nil {
		return badRequest(c, resp)
	}

	registry, err := h.registryService.Update(userID, id, &req)
	if err != nil {
		return registryError(c, err)
	}
	return c.JSON(registry)
}

func (h *RegistryHandler) Delete(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return fail(c, fiber.StatusNotFound, "Registry not found")
	}

	if err := h.registryService.Delete(userID, id); err != nil {
		return registryError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Public serves the read-only view behind a shareable link.
func (h *RegistryHandler) Public(c *fiber.Ctx) error {
	registry, err := h.registryService.GetPublic(c.Params("shareable_id"))
	if err != nil {
		return registryError(c, err)
	}
	return c.JSON(registry)
}

func (h *RegistryHandler) Defaults(c *fiber.Ctx) error {
	defaults, err := h.registryService.ListDefaults()
	if err != nil {
		return internalError(c)
	}
	return c.JSON(defaults)
}

func (h *RegistryHandler) DefaultServices(c *fiber.Ctx) error {
	defaults, err := h.registryService.ListDefaultServices()
	if err != nil {
		return internalError(c)
	}
	return c.JSON(defaults)
}

func registryError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrRegistryNotFound):
		return fail(c, fiber.StatusNotFound, "Registry not found")
	case errors.Is(err, services.ErrNotOwner):
		return fail(c, fiber.StatusForbidden, "You do not have permission to perform this action.")
	case errors.Is(err, services.ErrInvalidDate):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "Validation failed",
			Fields:  map[string]string{"arrival_date": "Date has wrong format. Use YYYY-MM-DD."},
		})
	case errors.Is(err, services.ErrServiceNotFound):
		return fail(c, fiber.StatusNotFound, "Service not found")
	default:
		return internalError(c)
	}
}

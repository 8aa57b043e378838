package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pampermomma/backend/internal/dto"
	"github.com/pampermomma/backend/internal/services"
)

// CatalogHandler serves the services listed in registries.
type CatalogHandler struct {
	catalogService *services.CatalogService
}

func NewCatalogHandler(catalogService *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

func (h *CatalogHandler) List(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	var registryID *uuid.UUID
	if raw := c.Query("registry"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid registry id")
		}
		registryID = &id
	}

	list, err := h.catalogService.List(userID, registryID)
	if err != nil {
		return internalError(c)
	}
	return c.JSON(list)
}

// Create accepts a single service object, or a JSON array of services
// together with ?registry=<id>.
func (h *CatalogHandler) Create(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	if bytes.HasPrefix(bytes.TrimSpace(c.Body()), []byte("[")) {
		return h.bulkCreate(c, userID)
	}

	var req dto.CreateServiceRequest
	if resp := parseBody(c, &req); resp != nil {
		return badRequest(c, resp)
	}
	svc, err := h.catalogService.Create(userID, &req)
	if err != nil {
		return catalogError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(svc)
}

func (h *CatalogHandler) bulkCreate(c *fiber.Ctx, userID uuid.UUID) error {
	registryID, err := uuid.Parse(c.Query("registry"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "A registry id is required for bulk creation.")
	}

	var inputs []dto.ServiceInput
	if err := json.Unmarshal(c.Body(), &inputs); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	for i := range inputs {
		if resp := validateStruct(&inputs[i]); resp != nil {
			fields := make(map[string]string, len(resp.Fields))
			for k, v := range resp.Fields {
				fields[fmt.Sprintf("[%d].%s", i, k)] = v
			}
			resp.Fields = fields
			return badRequest(c, resp)
		}
	}

	created, err := h.catalogService.BulkCreate(userID, registryID, inputs)
	if err != nil {
		if errors.Is(err, services.ErrRegistryNotFound) {
			return fail(c, fiber.StatusNotFound, "Registry not found or you do not have permission.")
		}
		return internalError(c)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *CatalogHandler) Get(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return fail(c, fiber.StatusNotFound, "Service not found")
	}

	svc, err := h.catalogService.Get(userID, id)
	if err != nil {
		return catalogError(c, err)
	}
	return c.JSON(svc)
}

func (h *CatalogHandler) Update(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return fail(c, fiber.StatusNotFound, "Service not found")
	}
	var req dto.UpdateServiceRequest
	if resp := parseBody(c, &req); resp != nil {
		return badRequest(c, resp)
	}

	svc, err := h.catalogService.Update(userID, id, &req)
	if err != nil {
		return catalogError(c, err)
	}
	return c.JSON(svc)
}

func (h *CatalogHandler) Delete(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return fail(c, fiber.StatusNotFound, "Service not found")
	}

	if err := h.catalogService.Delete(userID, id); err != nil {
		return catalogError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *CatalogHandler) Contributions(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return fail(c, fiber.StatusNotFound, "Service not found")
	}

	contribs, err := h.catalogService.Contributions(userID, id)
	if err != nil {
		return catalogError(c, err)
	}
	return c.JSON(contribs)
}

// OwnerContributions lists contributions to every service the caller owns.
func (h *CatalogHandler) OwnerContributions(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	contribs, err := h.catalogService.OwnerContributions(userID)
	if err != nil {
		return internalError(c)
	}
	return c.JSON(contribs)
}

func catalogError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrServiceNotFound):
		return fail(c, fiber.StatusNotFound, "Service not found")
	case errors.Is(err, services.ErrRegistryNotFound):
		return fail(c, fiber.StatusNotFound, "Registry not found or you do not have permission.")
	case errors.Is(err, services.ErrNotOwner):
		return fail(c, fiber.StatusForbidden, "You do not have permission to perform this action.")
	case errors.Is(err, services.ErrServiceHasContributions):
		return fail(c, fiber.StatusBadRequest, "Cannot delete a service that has contributions.")
	default:
		return internalError(c)
	}
}

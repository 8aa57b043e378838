package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/pampermomma/backend/internal/dto"
	"github.com/pampermomma/backend/internal/services"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if resp := parseBody(c, &req); resp != nil {
		return badRequest(c, resp)
	}

	resp, err := h.authService.Login(&req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			return fail(c, fiber.StatusUnauthorized, "No active account found with the given credentials")
		}
		return internalError(c)
	}

	return c.JSON(resp)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if resp := parseBody(c, &req); resp != nil {
		return badRequest(c, resp)
	}

	resp, err := h.authService.Refresh(&req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidToken) {
			return fail(c, fiber.StatusUnauthorized, "Token is invalid or expired")
		}
		return internalError(c)
	}

	return c.JSON(resp)
}

// Verify reports whether an access token is still valid.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	var req dto.VerifyTokenRequest
	if resp := parseBody(c, &req); resp != nil {
		return badRequest(c, resp)
	}

	if _, err := h.authService.ParseAccessToken(req.Token); err != nil {
		return fail(c, fiber.StatusUnauthorized, "Token is invalid or expired")
	}
	return c.JSON(fiber.Map{})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req dto.LogoutRequest
	if resp := parseBody(c, &req); resp != nil {
		return badRequest(c, resp)
	}

	if err := h.authService.Logout(&req); err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to logout")
	}

	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

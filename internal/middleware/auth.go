package middleware

import (
	"errors"
	"log/slog"
	"strings"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pampermomma/backend/internal/access"
	"github.com/pampermomma/backend/internal/config"
	"github.com/pampermomma/backend/internal/dto"
	"github.com/pampermomma/backend/internal/services"
)

const tokenLocal = "jwt"

// Authenticated accepts a locally issued access token and, when an identity
// provider is configured, falls back to verifying the bearer as a federated
// ID token. Either way the user id ends up in the request locals.
func Authenticated(cfg *config.Config, authService *services.AuthService) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: []byte(cfg.JWTSecret)},
		ContextKey: tokenLocal,
		SuccessHandler: func(c *fiber.Ctx) error {
			token, ok := c.Locals(tokenLocal).(*jwt.Token)
			if !ok {
				return unauthorized(c)
			}
			userID, err := services.SubjectFromClaims(token)
			if err != nil {
				return unauthorized(c)
			}
			access.SetUserID(c, userID)
			return c.Next()
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) || !authService.FederatedEnabled() {
				return unauthorized(c)
			}

			user, ferr := authService.AuthenticateFederated(c.UserContext(), bearerToken(c))
			if ferr != nil {
				slog.Debug("federated token rejected", "error", ferr.Error())
				return unauthorized(c)
			}
			access.SetUserID(c, user.ID)
			return c.Next()
		},
	})
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error:   true,
		Message: "Unauthorized: invalid or expired token",
	})
}

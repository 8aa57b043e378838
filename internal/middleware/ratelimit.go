package middleware

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/pampermomma/backend/internal/dto"
	"github.com/pampermomma/backend/internal/models"
)

// PerIP limits requests per client address.
func PerIP(max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               max,
		Expiration:        window,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
		LimitReached:      tooManyRequests,
	})
}

// PerEmail limits requests per email address in the JSON body, so OTP
// endpoints cannot be used to flood one inbox or guess one code. Requests
// without an email fall back to the client address.
func PerEmail(max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               max,
		Expiration:        window,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      emailKey,
		LimitReached:      tooManyRequests,
	})
}

func emailKey(c *fiber.Ctx) string {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(c.Body(), &body); err == nil && body.Email != "" {
		return c.Route().Path + "|" + models.NormalizeEmail(body.Email)
	}
	return c.Route().Path + "|ip:" + c.IP()
}

func tooManyRequests(c *fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{
		Error:   true,
		Message: "Request was throttled. Please try again later.",
	})
}

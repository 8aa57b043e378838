package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/pampermomma/backend/internal/dto"
	"github.com/pampermomma/backend/internal/payments"
	"github.com/pampermomma/backend/internal/services"
)

const signatureHeader = "Stripe-Signature"

type PaymentHandler struct {
	paymentService *services.PaymentService
}

func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// CreateIntent starts a contribution. It is open to anonymous contributors.
func (h *PaymentHandler) CreateIntent(c *fiber.Ctx) error {
	var req dto.CreatePaymentIntentRequest
	if resp := parseBody(c, &req); resp != nil {
		return badRequest(c, resp)
	}

	secret, err := h.paymentService.CreateIntent(c.UserContext(), &req)
	if err != nil {
		var exceeds *services.AmountExceedsRemainingError
		switch {
		case errors.As(err, &exceeds):
			return fail(c, fiber.StatusBadRequest, exceeds.Error())
		case errors.Is(err, services.ErrAmountTooSmall):
			return fail(c, fiber.StatusBadRequest, "Contribution amount must be at least $0.50.")
		case errors.Is(err, services.ErrServiceNotFound):
			return fail(c, fiber.StatusNotFound, "Service not found.")
		case errors.Is(err, services.ErrServiceUnavailable):
			return fail(c, fiber.StatusBadRequest, "This service is no longer available for contributions.")
		default:
			return fail(c, fiber.StatusInternalServerError, "An unexpected error occurred while creating the payment.")
		}
	}

	return c.JSON(dto.PaymentIntentResponse{ClientSecret: secret})
}

// Webhook verifies the processor signature against the raw body. A non-2xx
// response makes the processor retry the delivery.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	err := h.paymentService.HandleWebhook(c.UserContext(), c.Body(), c.Get(signatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrInvalidSignature):
			slog.Warn("webhook signature rejected", "ip", c.IP())
			return fail(c, fiber.StatusBadRequest, "Invalid signature")
		case errors.Is(err, services.ErrServiceNotFound):
			return fail(c, fiber.StatusNotFound, "Service not found")
		default:
			slog.Error("webhook processing failed", "action", "stripe_webhook", "error", err.Error())
			return fail(c, fiber.StatusInternalServerError, "Failed to process webhook event")
		}
	}

	return c.JSON(fiber.Map{"received": true})
}

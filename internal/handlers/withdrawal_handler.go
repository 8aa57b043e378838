package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/pampermomma/backend/internal/dto"
	"github.com/pampermomma/backend/internal/services"
)

type WithdrawalHandler struct {
	withdrawalService *services.WithdrawalService
}

func NewWithdrawalHandler(withdrawalService *services.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalService: withdrawalService}
}

func (h *WithdrawalHandler) Initiate(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	registryID, ok := paramUUID(c, "id")
	if !ok {
		return fail(c, fiber.StatusNotFound, "Registry not found")
	}
	var req dto.InitiateWithdrawalRequest
	if resp := parseBody(c, &req); resp != nil {
		return badRequest(c, resp)
	}

	device, err := h.withdrawalService.Initiate(c.UserContext(), userID, registryID, &req)
	if err != nil {
		return withdrawalError(c, err)
	}
	return c.JSON(dto.InitiateWithdrawalResponse{Detail: "Verification code sent.", DeviceIdentity: device})
}

func (h *WithdrawalHandler) Withdraw(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	registryID, ok := paramUUID(c, "id")
	if !ok {
		return fail(c, fiber.StatusNotFound, "Registry not found")
	}
	var req dto.WithdrawRequest
	if resp := parseBody(c, &req); resp != nil {
		return badRequest(c, resp)
	}

	transferID, err := h.withdrawalService.Finalize(c.UserContext(), userID, registryID, &req)
	if err != nil {
		return withdrawalError(c, err)
	}
	return c.JSON(dto.WithdrawResponse{
		Status:     "success",
		Message:    "Withdrawal initiated successfully. It may take a few business days to appear in your account.",
		TransferID: transferID,
	})
}

// ConnectAccount returns an onboarding or dashboard link for the caller's
// payout account.
func (h *WithdrawalHandler) ConnectAccount(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	url, err := h.withdrawalService.CreateConnectAccount(c.UserContext(), userID)
	if err != nil {
		return withdrawalError(c, err)
	}
	return c.JSON(dto.ConnectAccountResponse{URL: url})
}

func withdrawalError(c *fiber.Ctx, err error) error {
	var insufficient *services.InsufficientBalanceError
	switch {
	case errors.As(err, &insufficient):
		return fail(c, fiber.StatusBadRequest, insufficient.Error())
	case errors.Is(err, services.ErrRegistryNotFound):
		return fail(c, fiber.StatusNotFound, "Registry not found")
	case errors.Is(err, services.ErrNotOwner):
		return fail(c, fiber.StatusForbidden, "You do not have permission to withdraw from this registry.")
	case errors.Is(err, services.ErrInvalidAmount):
		return fail(c, fiber.StatusBadRequest, "Withdrawal amount must be greater than zero.")
	case errors.Is(err, services.ErrNoPayoutAccount):
		return fail(c, fiber.StatusBadRequest, "No Stripe account is connected. Please set up payouts first.")
	case errors.Is(err, services.ErrInvalidWithdrawalCode):
		return fail(c, fiber.StatusBadRequest, "Invalid or expired verification code.")
	case errors.Is(err, services.ErrPayoutAccountNotReady):
		return fail(c, fiber.StatusBadRequest, "Your payout account is not yet ready to receive funds. Please complete your Stripe onboarding or check your account status.")
	case errors.Is(err, services.ErrEmailDelivery):
		return fail(c, fiber.StatusInternalServerError, "Failed to send verification code. Please try again later.")
	case errors.Is(err, services.ErrProcessor):
		return fail(c, fiber.StatusInternalServerError, "An error occurred with our payment processor. Please try again later.")
	default:
		return internalError(c)
	}
}

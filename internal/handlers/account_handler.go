package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/pampermomma/backend/internal/dto"
	"github.com/pampermomma/backend/internal/otp"
	"github.com/pampermomma/backend/internal/services"
)

const otpSentMessage = "OTP sent successfully"

type AccountHandler struct {
	accountService *services.AccountService
}

func NewAccountHandler(accountService *services.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

func (h *AccountHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if resp := parseBody(c, &req); resp != nil {
		return badRequest(c, resp)
	}

	user, err := h.accountService.Signup(&req)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Validation failed",
				Fields:  map[string]string{"email": "A user with that email already exists."},
			})
		}
		return internalError(c)
	}

	return c.Status(fiber.StatusCreated).JSON(services.ToUserResponse(user))
}

func (h *AccountHandler) Profile(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	user, err := h.accountService.Profile(userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return fail(c, fiber.StatusNotFound, "User not found")
		}
		return internalError(c)
	}
	return c.JSON(services.ToProfileResponse(user))
}

func (h *AccountHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	var req dto.UpdateProfileRequest
	if resp := parseBody(c, &req); resp != nil {
		return badRequest(c, resp)
	}

	user, err := h.accountService.UpdateProfile(userID, &req)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return fail(c, fiber.StatusNotFound, "User not found")
		}
		return internalError(c)
	}
	return c.JSON(services.ToProfileResponse(user))
}

func (h *AccountHandler) ChangePassword(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	var req dto.ChangePasswordRequest
	if resp := parseBody(c, &req); resp != nil {
		return badRequest(c, resp)
	}

	if err := h.accountService.ChangePassword(userID, &req); err != nil {
		if errors.Is(err, services.ErrWrongPassword) {
			return fail(c, fiber.StatusNotAcceptable, "The old password is not correct.")
		}
		return internalError(c)
	}
	return c.JSON(fiber.Map{"message": "Password updated successfully"})
}

func (h *AccountHandler) AddPhoneNumber(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	var req dto.AddPhoneNumberRequest
	if resp := parseBody(c, &req); resp != nil {
		return badRequest(c, resp)
	}

	phone, err := h.accountService.AddPhoneNumber(userID, &req)
	if err != nil {
		if errors.Is(err, services.ErrPhoneTaken) {
			return fail(c, fiber.StatusBadRequest, "This phone number is already in use.")
		}
		return internalError(c)
	}
	return c.JSON(dto.PhoneNumberResponse{Mobile: phone.Mobile, IsVerified: phone.IsVerified})
}

func (h *AccountHandler) SendPasswordResetOTP(c *fiber.Ctx) error {
	var req dto.SendOTPRequest
	if resp := parseBody(c, &req); resp != nil {
		return badRequest(c, resp)
	}
	device, err := h.accountService.SendPasswordResetOTP(c.UserContext(), req.Email)
	return h.otpSent(c, device, err)
}

func (h *AccountHandler) VerifyPasswordResetOTP(c *fiber.Ctx) error {
	var req dto.VerifyOTPRequest
	if resp := parseBody(c, &req); resp != nil {
		return badRequest(c, resp)
	}
	if err := h.accountService.VerifyPasswordResetOTP(&req); err != nil {
		return otpError(c, err)
	}
	return c.JSON(fiber.Map{"message": "OTP verified successfully"})
}

func (h *AccountHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if resp := parseBody(c, &req); resp != nil {
		return badRequest(c, resp)
	}
	if err := h.accountService.ResetPassword(&req); err != nil {
		return otpError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Password reset successfully"})
}

func (h *AccountHandler) ResetPasswordWithToken(c *fiber.Ctx) error {
	var req dto.ResetPasswordWithTokenRequest
	if resp := parseBody(c, &req); resp != nil {
		return badRequest(c, resp)
	}
	if err := h.accountService.ResetPasswordWithToken(&req); err != nil {
		return otpError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Password reset successfully"})
}

func (h *AccountHandler) SendEmailVerificationOTP(c *fiber.Ctx) error {
	var req dto.SendOTPRequest
	if resp := parseBody(c, &req); resp != nil {
		return badRequest(c, resp)
	}
	device, err := h.accountService.SendEmailVerificationOTP(c.UserContext(), req.Email)
	return h.otpSent(c, device, err)
}

func (h *AccountHandler) VerifyEmailVerificationOTP(c *fiber.Ctx) error {
	var req dto.VerifyOTPRequest
	if resp := parseBody(c, &req); resp != nil {
		return badRequest(c, resp)
	}
	if err := h.accountService.VerifyEmailVerificationOTP(&req); err != nil {
		return otpError(c, err)
	}
	return c.JSON(fiber.Map{"message": "OTP verified successfully"})
}

func (h *AccountHandler) VerifyEmail(c *fiber.Ctx) error {
	var req dto.VerifyEmailRequest
	if resp := parseBody(c, &req); resp != nil {
		return badRequest(c, resp)
	}
	if err := h.accountService.VerifyEmail(&req); err != nil {
		return otpError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Email verified successfully"})
}

func (h *AccountHandler) VerifyEmailWithToken(c *fiber.Ctx) error {
	var req dto.VerifyEmailWithTokenRequest
	if resp := parseBody(c, &req); resp != nil {
		return badRequest(c, resp)
	}
	if err := h.accountService.VerifyEmailWithToken(&req); err != nil {
		return otpError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Email verified successfully"})
}

func (h *AccountHandler) otpSent(c *fiber.Ctx, device string, err error) error {
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			return fail(c, fiber.StatusNotFound, "User with this email does not exist.")
		case errors.Is(err, services.ErrEmailDelivery):
			return fail(c, fiber.StatusInternalServerError, "Failed to send OTP. Please try again later.")
		default:
			return internalError(c)
		}
	}
	return c.JSON(dto.OTPSentResponse{Message: otpSentMessage, DeviceIdentity: device})
}

func otpError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidOTP), errors.Is(err, otp.ErrInvalidLink):
		return fail(c, fiber.StatusBadRequest, "Invalid or expired OTP")
	case errors.Is(err, services.ErrOTPNotVerified):
		return fail(c, fiber.StatusBadRequest, "OTP not verified or has expired")
	case errors.Is(err, services.ErrUserNotFound):
		return fail(c, fiber.StatusNotFound, "User with this email does not exist.")
	case errors.Is(err, services.ErrPasswordNotAllowed):
		return fail(c, fiber.StatusBadRequest, err.Error())
	default:
		return internalError(c)
	}
}

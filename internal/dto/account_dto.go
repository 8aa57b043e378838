package dto

import (
	"time"

	"github.com/google/uuid"
)

type SignupRequest struct {
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
}

type UpdateProfileRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
}

type AddPhoneNumberRequest struct {
	Mobile string `json:"mobile" validate:"required,e164"`
}

type PhoneNumberResponse struct {
	Mobile     string `json:"mobile"`
	IsVerified bool   `json:"is_verified"`
}

// ProfileResponse is the caller's own account view.
type ProfileResponse struct {
	ID            uuid.UUID            `json:"id"`
	Email         string               `json:"email"`
	FirstName     string               `json:"first_name"`
	LastName      string               `json:"last_name"`
	EmailVerified bool                 `json:"email_verified"`
	IsActive      bool                 `json:"is_active"`
	DateJoined    time.Time            `json:"date_joined"`
	LastLogin     *time.Time           `json:"last_login"`
	PhoneNumber   *PhoneNumberResponse `json:"phone_number"`
}

type SendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyOTPRequest struct {
	Email          string `json:"email" validate:"required,email"`
	OTP            string `json:"otp" validate:"required,len=6,numeric"`
	DeviceIdentity string `json:"device_identity" validate:"required,max=255"`
}

type ResetPasswordRequest struct {
	Email          string `json:"email" validate:"required,email"`
	NewPassword    string `json:"new_password" validate:"required,min=8,max=128"`
	DeviceIdentity string `json:"device_identity" validate:"required,max=255"`
}

type ResetPasswordWithTokenRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
}

type VerifyEmailRequest struct {
	Email          string `json:"email" validate:"required,email"`
	DeviceIdentity string `json:"device_identity" validate:"required,max=255"`
}

type VerifyEmailWithTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type OTPSentResponse struct {
	Message        string `json:"message"`
	DeviceIdentity string `json:"device_identity"`
}

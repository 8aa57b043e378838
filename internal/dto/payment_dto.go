package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreatePaymentIntentRequest struct {
	ServiceID uuid.UUID       `json:"service_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

type PaymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

type InitiateWithdrawalRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type InitiateWithdrawalResponse struct {
	Detail         string `json:"detail"`
	DeviceIdentity string `json:"device_identity"`
}

type WithdrawRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	OTP            string          `json:"otp" validate:"required,len=6,numeric"`
	DeviceIdentity string          `json:"device_identity" validate:"required,max=255"`
}

type WithdrawResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	TransferID string `json:"transfer_id"`
}

type ConnectAccountResponse struct {
	URL string `json:"url"`
}

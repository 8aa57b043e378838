package services

import (
	"context"

	"github.com/shopspring/decimal"
)

// EmailSender is implemented by mailer.Dispatcher.
type EmailSender interface {
	PasswordResetOTP(ctx context.Context, email, code, link string) error
	EmailVerificationOTP(ctx context.Context, email, code, link string) error
	WithdrawalOTP(ctx context.Context, email, code string, amount decimal.Decimal, registryName string) error
	ContributionReceived(ctx context.Context, email, registryName, serviceName, contributor string, amount decimal.Decimal) error
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pampermomma/backend/internal/config"
	"github.com/pampermomma/backend/internal/dto"
	"github.com/pampermomma/backend/internal/models"
	"github.com/pampermomma/backend/internal/otp"
	"github.com/pampermomma/backend/internal/payments"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidAmount         = errors.New("amount must be greater than zero")
	ErrNoPayoutAccount       = errors.New("no payout account is connected")
	ErrPayoutAccountNotReady = errors.New("payout account is not ready to receive transfers")
	ErrInvalidWithdrawalCode = errors.New("invalid or expired verification code")
)

// InsufficientBalanceError reports a withdrawal above the available balance.
type InsufficientBalanceError struct {
	Amount    decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("Withdrawal amount of $%s exceeds available balance of $%s.",
		e.Amount.StringFixed(2), e.Available.StringFixed(2))
}

// WithdrawalService moves available registry funds to the owner's connected
// payout account. A withdrawal is confirmed with an emailed code.
type WithdrawalService struct {
	db      *gorm.DB
	cfg     *config.Config
	otps    *OTPService
	gateway payments.Gateway
	email   EmailSender
	now     func() time.Time
}

func NewWithdrawalService(db *gorm.DB, cfg *config.Config, otps *OTPService, gateway payments.Gateway, email EmailSender) *WithdrawalService {
	return &WithdrawalService{
		db:      db,
		cfg:     cfg,
		otps:    otps,
		gateway: gateway,
		email:   email,
		now:     time.Now,
	}
}

// Initiate checks the amount against the current balance and emails a
// verification code. It returns the device token the client must send back.
func (s *WithdrawalService) Initiate(ctx context.Context, userID, registryID uuid.UUID, req *dto.InitiateWithdrawalRequest) (string, error) {
	user, registry, err := s.ownerAndRegistry(userID, registryID)
	if err != nil {
		return "", err
	}
	if !req.Amount.IsPositive() {
		return "", ErrInvalidAmount
	}

	contribs, err := registryContributions(s.db, registry.ID)
	if err != nil {
		return "", err
	}
	if err := enrichContributions(ctx, s.db, s.gateway, contribs); err != nil {
		return "", err
	}
	balance, err := registryBalance(s.db, registry.ID, s.now())
	if err != nil {
		return "", err
	}
	if req.Amount.GreaterThan(balance.Available) {
		return "", &InsufficientBalanceError{Amount: req.Amount, Available: balance.Available}
	}

	code, device, err := s.otps.Issue(otp.WithdrawalRef(registry.ID, user.ID))
	if err != nil {
		return "", err
	}
	if err := s.email.WithdrawalOTP(ctx, user.Email, code, req.Amount, registry.Name); err != nil {
		slog.Error("failed to send withdrawal code",
			"action", "initiate_withdrawal",
			"user_id", user.ID.String(),
			"registry_id", registry.ID.String(),
			"error", err.Error())
		return "", ErrEmailDelivery
	}
	return device, nil
}

// Finalize checks the code, re-checks the balance while holding the registry
// row, and transfers the amount. It returns the processor transfer id.
func (s *WithdrawalService) Finalize(ctx context.Context, userID, registryID uuid.UUID, req *dto.WithdrawRequest) (string, error) {
	user, registry, err := s.ownerAndRegistry(userID, registryID)
	if err != nil {
		return "", err
	}
	if user.StripeAccountID == nil || *user.StripeAccountID == "" {
		return "", ErrNoPayoutAccount
	}
	if !req.Amount.IsPositive() {
		return "", ErrInvalidAmount
	}

	ref := otp.WithdrawalRef(registry.ID, user.ID)
	code, err := s.otps.CheckCode(ref, req.OTP, req.DeviceIdentity)
	if err != nil {
		if errors.Is(err, ErrInvalidOTP) {
			return "", ErrInvalidWithdrawalCode
		}
		return "", err
	}

	var transferID string
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockRegistry(tx, registry.ID); err != nil {
			return err
		}

		balance, err := registryBalance(tx, registry.ID, s.now())
		if err != nil {
			return err
		}
		if req.Amount.GreaterThan(balance.Available) {
			return &InsufficientBalanceError{Amount: req.Amount, Available: balance.Available}
		}

		account, err := s.gateway.PayoutAccount(ctx, *user.StripeAccountID)
		if err != nil {
			slog.Error("failed to load payout account",
				"action", "withdraw",
				"user_id", user.ID.String(),
				"error", err.Error())
			return ErrProcessor
		}
		if !account.Ready() {
			return ErrPayoutAccountNotReady
		}

		withdrawal := models.Withdrawal{
			RegistryID: registry.ID,
			Amount:     req.Amount,
			Status:     models.WithdrawalPending,
		}
		// Keyed on the code record, which is only purged once the withdrawal
		// row commits, so a retry after a failed write replays the same
		// transfer instead of sending a second one.
		transferID, err = s.gateway.CreateTransfer(ctx, payments.TransferParams{
			Amount:         req.Amount,
			Destination:    *user.StripeAccountID,
			RegistryID:     registry.ID,
			IdempotencyKey: transferKey(code),
		})
		if err != nil {
			slog.Error("failed to create transfer",
				"action", "withdraw",
				"user_id", user.ID.String(),
				"registry_id", registry.ID.String(),
				"error", err.Error())
			return ErrProcessor
		}

		withdrawal.StripeTransferID = transferID
		if err := tx.Create(&withdrawal).Error; err != nil {
			return fmt.Errorf("failed to record withdrawal: %w", err)
		}
		return s.otps.Purge(tx, ref)
	})
	if err != nil {
		return "", err
	}

	slog.Info("withdrawal created",
		"action", "withdraw",
		"user_id", user.ID.String(),
		"registry_id", registry.ID.String(),
		"transfer_id", transferID,
		"amount", req.Amount.StringFixed(2))
	return transferID, nil
}

// CreateConnectAccount returns a link for the user's payout account: a login
// link once onboarding is complete, otherwise an onboarding link. The account
// is created on first use.
func (s *WithdrawalService) CreateConnectAccount(ctx context.Context, userID uuid.UUID) (string, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}

	accountID := ""
	if user.StripeAccountID != nil {
		accountID = *user.StripeAccountID
	}

	if accountID != "" {
		account, err := s.gateway.PayoutAccount(ctx, accountID)
		if err != nil {
			return "", s.processorError("load payout account", user.ID, err)
		}
		if account.DetailsSubmitted {
			link, err := s.gateway.LoginLink(ctx, accountID)
			if err != nil {
				return "", s.processorError("create login link", user.ID, err)
			}
			return link, nil
		}
	} else {
		id, err := s.gateway.CreateExpressAccount(ctx, user.Email)
		if err != nil {
			return "", s.processorError("create payout account", user.ID, err)
		}
		if err := s.db.Model(&user).Update("stripe_account_id", id).Error; err != nil {
			return "", fmt.Errorf("failed to save payout account: %w", err)
		}
		accountID = id
	}

	base := strings.TrimRight(s.cfg.FrontendURL, "/")
	link, err := s.gateway.OnboardingLink(ctx, accountID,
		base+"/mom/registries?onboarding_return=refresh",
		base+"/mom/registries?onboarding_return=success")
	if err != nil {
		return "", s.processorError("create onboarding link", user.ID, err)
	}
	return link, nil
}

func (s *WithdrawalService) processorError(step string, userID uuid.UUID, err error) error {
	slog.Error("payment processor error",
		"action", "connect_account",
		"step", step,
		"user_id", userID.String(),
		"error", err.Error())
	return ErrProcessor
}

func transferKey(code *models.OTPRequest) string {
	return "withdrawal-" + code.ID.String()
}

// ownerAndRegistry loads the registry and requires userID to own it.
func (s *WithdrawalService) ownerAndRegistry(userID, registryID uuid.UUID) (*models.User, *models.Registry, error) {
	var registry models.Registry
	if err := s.db.First(&registry, "id = ?", registryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrRegistryNotFound
		}
		return nil, nil, err
	}
	if !registry.IsOwnedBy(userID) {
		return nil, nil, ErrNotOwner
	}

	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, err
	}
	return &user, &registry, nil
}

// lockRegistry takes a row lock on the registry for the rest of tx. SQLite
// serialises writers already and has no FOR UPDATE.
func lockRegistry(tx *gorm.DB, registryID uuid.UUID) error {
	q := tx.Select("id").Where("id = ?", registryID)
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var locked models.Registry
	if err := q.Take(&locked).Error; err != nil {
		return fmt.Errorf("failed to lock registry: %w", err)
	}
	return nil
}

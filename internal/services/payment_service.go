package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pampermomma/backend/internal/dto"
	"github.com/pampermomma/backend/internal/ledger"
	"github.com/pampermomma/backend/internal/models"
	"github.com/pampermomma/backend/internal/payments"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAmountTooSmall     = errors.New("contribution amount must be at least $0.50")
	ErrServiceUnavailable = errors.New("this service is no longer available for contributions")
	ErrProcessor          = errors.New("payment processor error")
)

// AmountExceedsRemainingError reports a contribution larger than what the
// service still needs.
type AmountExceedsRemainingError struct {
	Amount    decimal.Decimal
	Remaining decimal.Decimal
}

func (e *AmountExceedsRemainingError) Error() string {
	return fmt.Sprintf("Contribution amount of $%s exceeds the remaining amount of $%s.",
		e.Amount.StringFixed(2), e.Remaining.StringFixed(2))
}

var minContribution = decimal.RequireFromString("0.50")

const contributionTitle = "New contribution"

// PaymentService creates payment intents for contributors and records
// contributions from verified processor webhooks.
type PaymentService struct {
	db            *gorm.DB
	gateway       payments.Gateway
	notifications *NotificationService
	email         EmailSender
}

func NewPaymentService(db *gorm.DB, gateway payments.Gateway, notifications *NotificationService, email EmailSender) *PaymentService {
	return &PaymentService{
		db:            db,
		gateway:       gateway,
		notifications: notifications,
		email:         email,
	}
}

// CreateIntent checks the amount against the service's remaining cost and
// returns the client secret of a new payment intent.
func (s *PaymentService) CreateIntent(ctx context.Context, req *dto.CreatePaymentIntentRequest) (string, error) {
	if req.Amount.LessThan(minContribution) {
		return "", ErrAmountTooSmall
	}

	var svc models.Service
	if err := s.db.First(&svc, "id = ?", req.ServiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrServiceNotFound
		}
		return "", err
	}

	var contribs []models.Contribution
	if err := s.db.Where("service_id = ?", svc.ID).Find(&contribs).Error; err != nil {
		return "", fmt.Errorf("failed to load contributions: %w", err)
	}
	state := ledger.StateOf(&svc, contribs)
	if !state.IsAvailable {
		return "", ErrServiceUnavailable
	}
	if req.Amount.GreaterThan(state.Remaining) {
		return "", &AmountExceedsRemainingError{Amount: req.Amount, Remaining: state.Remaining}
	}

	secret, err := s.gateway.CreatePaymentIntent(ctx, payments.IntentParams{
		Amount:     req.Amount,
		ServiceID:  svc.ID,
		RegistryID: svc.RegistryID,
	})
	if err != nil {
		slog.Error("failed to create payment intent",
			"action", "create_payment_intent",
			"registry_id", svc.RegistryID.String(),
			"error", err.Error())
		return "", ErrProcessor
	}
	return secret, nil
}

// HandleWebhook verifies and applies a processor event. Unknown event types
// are accepted and ignored.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}

	switch event.Type {
	case payments.EventPaymentIntentSucceeded:
		if event.PaymentIntent == nil {
			return nil
		}
		return s.recordContribution(ctx, event.PaymentIntent)
	case payments.EventTransferCreated, payments.EventTransferReversed:
		if event.Transfer == nil {
			return nil
		}
		return s.updateWithdrawal(event.Type, event.Transfer.ID)
	default:
		return nil
	}
}

// recordContribution upserts the contribution for a succeeded payment
// intent. Only the first delivery notifies the registry owner.
func (s *PaymentService) recordContribution(ctx context.Context, intent *payments.PaymentIntent) error {
	serviceID, ok := intent.ServiceID()
	if !ok {
		slog.Warn("payment intent without a valid service_id",
			"action", "stripe_webhook",
			"payment_intent", intent.ID)
		return nil
	}

	var svc models.Service
	if err := s.db.Preload("Registry.CreatedBy").First(&svc, "id = ?", serviceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			slog.Error("service not found for payment intent",
				"action", "stripe_webhook",
				"payment_intent", intent.ID,
				"service_id", serviceID.String())
			return ErrServiceNotFound
		}
		return err
	}

	var created *models.Notification
	err := s.db.Transaction(func(tx *gorm.DB) error {
		contribution := models.Contribution{
			ServiceID:             &svc.ID,
			Amount:                intent.AmountReceived,
			ContributorName:       intent.ContributorName,
			ContributorEmail:      intent.ContributorEmail,
			StripePaymentIntentID: intent.ID,
			Status:                models.ContributionSucceeded,
		}
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_payment_intent_id"}},
			DoNothing: true,
		}).Create(&contribution)
		if result.Error != nil {
			return fmt.Errorf("failed to insert contribution: %w", result.Error)
		}

		if result.RowsAffected == 0 {
			err := tx.Model(&models.Contribution{}).
				Where("stripe_payment_intent_id = ?", intent.ID).
				Updates(map[string]interface{}{
					"service_id":        svc.ID,
					"amount":            intent.AmountReceived,
					"contributor_name":  intent.ContributorName,
					"contributor_email": intent.ContributorEmail,
					"status":            models.ContributionSucceeded,
				}).Error
			if err != nil {
				return fmt.Errorf("failed to update contribution: %w", err)
			}
			return nil
		}

		n, err := s.notifications.CreateForUser(tx, svc.Registry.CreatedByID,
			models.NotificationContribution, contributionTitle,
			contributionMessage(intent.ContributorName, intent.AmountReceived, svc.Name))
		if err != nil {
			return err
		}
		created = n
		return nil
	})
	if err != nil {
		slog.Error("failed to record contribution",
			"action", "stripe_webhook",
			"payment_intent", intent.ID,
			"registry_id", svc.RegistryID.String(),
			"error", err.Error())
		return err
	}

	if created != nil {
		s.notifications.Publish(ctx, created)
		owner := svc.Registry.CreatedBy
		if err := s.email.ContributionReceived(ctx, owner.Email, svc.Registry.Name, svc.Name,
			contributorLabel(intent.ContributorName), intent.AmountReceived); err != nil {
			slog.Warn("failed to send contribution email",
				"action", "stripe_webhook",
				"user_id", owner.ID.String(),
				"error", err.Error())
		}
	}
	return nil
}

// updateWithdrawal moves the withdrawal behind a transfer to its final state.
func (s *PaymentService) updateWithdrawal(eventType, transferID string) error {
	q := s.db.Model(&models.Withdrawal{}).Where("stripe_transfer_id = ?", transferID)

	var err error
	switch eventType {
	case payments.EventTransferCreated:
		err = q.Where("status = ?", models.WithdrawalPending).Update("status", models.WithdrawalSucceeded).Error
	case payments.EventTransferReversed:
		err = q.Update("status", models.WithdrawalFailed).Error
	}
	if err != nil {
		return fmt.Errorf("failed to update withdrawal: %w", err)
	}
	return nil
}

func contributorLabel(name string) string {
	if name == "" {
		return "An anonymous contributor"
	}
	return name
}

func contributionMessage(name string, amount decimal.Decimal, serviceName string) string {
	return fmt.Sprintf("%s just contributed $%s to your '%s' service!",
		contributorLabel(name), amount.StringFixed(2), serviceName)
}

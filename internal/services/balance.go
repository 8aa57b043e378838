package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pampermomma/backend/internal/ledger"
	"github.com/pampermomma/backend/internal/models"
	"github.com/pampermomma/backend/internal/payments"
	"gorm.io/gorm"
)

// registryContributions returns every contribution to the registry's
// services, oldest first.
func registryContributions(db *gorm.DB, registryID uuid.UUID) ([]models.Contribution, error) {
	var contribs []models.Contribution
	err := db.Where("service_id IN (?)",
		db.Model(&models.Service{}).Select("id").Where("registry_id = ?", registryID)).
		Order("created_at ASC").
		Find(&contribs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load contributions: %w", err)
	}
	return contribs, nil
}

// enrichContributions fills Fee and AvailableOn from the processor for
// succeeded contributions that lack them, then saves the changed rows in one
// transaction. Lookups that fail are logged and left for the next read.
func enrichContributions(ctx context.Context, db *gorm.DB, gateway payments.Gateway, contribs []models.Contribution) error {
	var changed []*models.Contribution
	for i := range contribs {
		c := &contribs[i]
		if !ledger.NeedsEnrichment(c) {
			continue
		}
		settlement, err := gateway.Settlement(ctx, c.StripePaymentIntentID)
		if err != nil {
			if !errors.Is(err, payments.ErrNotSettled) {
				slog.Warn("settlement lookup failed",
					"action", "enrich_contribution",
					"payment_intent", c.StripePaymentIntentID,
					"error", err.Error())
			}
			continue
		}
		fee := settlement.Fee
		availableOn := settlement.AvailableOn
		c.Fee = &fee
		c.AvailableOn = &availableOn
		changed = append(changed, c)
	}
	if len(changed) == 0 {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for _, c := range changed {
			err := tx.Model(&models.Contribution{}).Where("id = ?", c.ID).Updates(map[string]interface{}{
				"fee":          *c.Fee,
				"available_on": *c.AvailableOn,
			}).Error
			if err != nil {
				return fmt.Errorf("failed to save settlement: %w", err)
			}
		}
		return nil
	})
}

// registryBalance loads the registry's ledger rows through db and computes
// its balance at now.
func registryBalance(db *gorm.DB, registryID uuid.UUID, now time.Time) (ledger.Balance, error) {
	contribs, err := registryContributions(db, registryID)
	if err != nil {
		return ledger.Balance{}, err
	}
	var withdrawals []models.Withdrawal
	if err := db.Where("registry_id = ?", registryID).Find(&withdrawals).Error; err != nil {
		return ledger.Balance{}, fmt.Errorf("failed to load withdrawals: %w", err)
	}
	return ledger.ComputeBalance(contribs, withdrawals, now), nil
}

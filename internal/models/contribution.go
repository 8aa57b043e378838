package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	ContributionSucceeded = "succeeded"
)

// Contribution is a payment toward a service, written only from verified
// processor webhooks. Fee and AvailableOn are filled lazily from the
// processor's balance transaction.
type Contribution struct {
	ID                    uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	ServiceID             *uuid.UUID       `gorm:"type:uuid;index" json:"service"`
	Service               *Service         `gorm:"foreignKey:ServiceID;constraint:OnDelete:SET NULL" json:"-"`
	Amount                decimal.Decimal  `gorm:"type:numeric(10,2);not null;default:0" json:"amount"`
	ContributorName       string           `gorm:"size:100" json:"contributor_name"`
	ContributorEmail      string           `gorm:"size:254" json:"contributor_email"`
	StripePaymentIntentID string           `gorm:"size:255;not null;uniqueIndex" json:"stripe_payment_intent_id"`
	Status                string           `gorm:"size:50;not null;default:'succeeded'" json:"status"`
	Fee                   *decimal.Decimal `gorm:"type:numeric(10,2)" json:"fee"`
	AvailableOn           *time.Time       `gorm:"index" json:"available_on"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

func (c *Contribution) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

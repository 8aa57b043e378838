package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	WithdrawalPending   = "pending"
	WithdrawalSucceeded = "succeeded"
	WithdrawalFailed    = "failed"
)

type Withdrawal struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	RegistryID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"registry"`
	Registry         *Registry       `gorm:"foreignKey:RegistryID;constraint:OnDelete:CASCADE" json:"-"`
	Amount           decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	Status           string          `gorm:"size:20;not null;default:'pending';index" json:"status"`
	StripeTransferID string          `gorm:"size:255;index" json:"stripe_transfer_id"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (w *Withdrawal) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

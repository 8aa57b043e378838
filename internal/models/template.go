package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DefaultService is a suggested service shown during registry creation.
type DefaultService struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"-"`
	Name        string          `gorm:"size:255;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Hours       int             `gorm:"default:1" json:"hours"`
	CostPerHour decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"cost_per_hour"`
	CreatedAt   time.Time       `json:"-"`
	UpdatedAt   time.Time       `json:"-"`
}

func (d *DefaultService) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// DefaultRegistry is a named bundle of default services.
type DefaultRegistry struct {
	ID         uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string           `gorm:"size:255;not null" json:"name"`
	CoverImage string           `gorm:"size:500" json:"cover_image"`
	Services   []DefaultService `gorm:"many2many:default_registry_services" json:"services"`
	CreatedAt  time.Time        `json:"-"`
	UpdatedAt  time.Time        `json:"-"`
}

func (d *DefaultRegistry) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

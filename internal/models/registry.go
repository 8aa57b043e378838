package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Registry is a new mother's list of requested services.
type Registry struct {
	ID              uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Name            string       `gorm:"size:255;not null" json:"name"`
	IsFirstTime     bool         `gorm:"default:false" json:"is_first_time"`
	BabiesCount     int          `gorm:"default:1" json:"babies_count"`
	ShareableID     string       `gorm:"size:255;not null;uniqueIndex" json:"shareable_id"`
	ArrivalDate     *time.Time   `gorm:"type:date" json:"arrival_date"`
	WelcomeMessage  string       `gorm:"type:text" json:"welcome_message"`
	ThankYouMessage string       `gorm:"type:text" json:"thank_you_message"`
	CreatedByID     uuid.UUID    `gorm:"type:uuid;not null;index" json:"created_by"`
	CreatedBy       User         `gorm:"foreignKey:CreatedByID;constraint:OnDelete:CASCADE" json:"-"`
	Services        []Service    `gorm:"foreignKey:RegistryID" json:"services"`
	Withdrawals     []Withdrawal `gorm:"foreignKey:RegistryID" json:"-"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// BeforeCreate assigns the id and the shareable token; the token is never
// changed afterwards.
func (r *Registry) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.ShareableID == "" {
		r.ShareableID = uuid.NewString()
	}
	return nil
}

func (r *Registry) IsOwnedBy(userID uuid.UUID) bool {
	return r.CreatedByID == userID
}

// Service is a paid service requested in a registry.
type Service struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	RegistryID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"registry"`
	Registry       *Registry       `gorm:"foreignKey:RegistryID;constraint:OnDelete:CASCADE" json:"-"`
	Name           string          `gorm:"size:255;not null" json:"name"`
	Description    string          `gorm:"type:text" json:"description"`
	Hours          int             `gorm:"default:1" json:"hours"`
	CostPerHour    decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"cost_per_hour"`
	IsActive       bool            `gorm:"not null" json:"is_active"`
	TotalWithdrawn decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"total_withdrawn"`
	Contributions  []Contribution  `gorm:"foreignKey:ServiceID" json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (s *Service) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SharedRegistry grants another user read-only access to a registry.
type SharedRegistry struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RegistryID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_shared_registry_user,priority:1" json:"-"`
	Registry     Registry  `gorm:"foreignKey:RegistryID;constraint:OnDelete:CASCADE" json:"registry"`
	SharedWithID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_shared_registry_user,priority:2;index" json:"-"`
	SharedWith   User      `gorm:"foreignKey:SharedWithID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *SharedRegistry) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (SharedRegistry) TableName() string {
	return "shared_registries"
}

package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/pampermomma/backend/internal/ledger"
	"github.com/pampermomma/backend/internal/models"
	"github.com/shopspring/decimal"
)

type ServiceInput struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description"`
	Hours       int             `json:"hours" validate:"gte=1"`
	CostPerHour decimal.Decimal `json:"cost_per_hour"`
	IsActive    *bool           `json:"is_active"`
}

type CreateServiceRequest struct {
	Registry uuid.UUID `json:"registry" validate:"required"`
	ServiceInput
}

type UpdateServiceRequest struct {
	Name        *string          `json:"name" validate:"omitempty,max=255"`
	Description *string          `json:"description"`
	Hours       *int             `json:"hours" validate:"omitempty,gte=1"`
	CostPerHour *decimal.Decimal `json:"cost_per_hour"`
	IsActive    *bool            `json:"is_active"`
}

type CreateRegistryRequest struct {
	Name            string         `json:"name" validate:"required,max=255"`
	IsFirstTime     bool           `json:"is_first_time"`
	BabiesCount     int            `json:"babies_count" validate:"omitempty,gte=1,lte=20"`
	ArrivalDate     string         `json:"arrival_date" validate:"omitempty,datetime=2006-01-02"`
	WelcomeMessage  string         `json:"welcome_message"`
	ThankYouMessage string         `json:"thank_you_message"`
	Services        []ServiceInput `json:"services" validate:"dive"`
}

type UpdateRegistryRequest struct {
	Name            *string `json:"name" validate:"omitempty,max=255"`
	IsFirstTime     *bool   `json:"is_first_time"`
	BabiesCount     *int    `json:"babies_count" validate:"omitempty,gte=1,lte=20"`
	ArrivalDate     *string `json:"arrival_date" validate:"omitempty,datetime=2006-01-02"`
	WelcomeMessage  *string `json:"welcome_message"`
	ThankYouMessage *string `json:"thank_you_message"`
}

type ServiceResponse struct {
	ID             uuid.UUID             `json:"id"`
	Registry       uuid.UUID             `json:"registry"`
	Name           string                `json:"name"`
	Description    string                `json:"description"`
	Hours          int                   `json:"hours"`
	CostPerHour    decimal.Decimal       `json:"cost_per_hour"`
	IsActive       bool                  `json:"is_active"`
	TotalWithdrawn *decimal.Decimal      `json:"total_withdrawn,omitempty"`
	IsOwnedByUser  bool                  `json:"is_owned_by_user"`
	Contributions  []models.Contribution `json:"contributions,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	ledger.ServiceState
}

type RegistryResponse struct {
	ID              uuid.UUID         `json:"id"`
	Name            string            `json:"name"`
	IsFirstTime     bool              `json:"is_first_time"`
	BabiesCount     int               `json:"babies_count"`
	ShareableID     string            `json:"shareable_id"`
	ArrivalDate     *string           `json:"arrival_date"`
	WelcomeMessage  string            `json:"welcome_message"`
	ThankYouMessage string            `json:"thank_you_message"`
	CreatedBy       uuid.UUID         `json:"created_by"`
	Services        []ServiceResponse `json:"services"`
	Balance         *ledger.Balance   `json:"balance,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

type ShareRegistryRequest struct {
	RegistryShareableID string `json:"registry_shareable_id" validate:"required"`
}

type SharedRegistryResponse struct {
	ID        uuid.UUID        `json:"id"`
	Registry  RegistryResponse `json:"registry"`
	CreatedAt time.Time        `json:"created_at"`
}

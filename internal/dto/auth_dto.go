package dto

import (
	"time"

	"github.com/google/uuid"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

type VerifyTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type LogoutRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

type AuthResponse struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    UserResponse `json:"user"`
}

type UserResponse struct {
	ID                  uuid.UUID  `json:"id"`
	FullName            string     `json:"full_name"`
	Email               string     `json:"email"`
	IsActive            bool       `json:"is_active"`
	DateJoined          time.Time  `json:"date_joined"`
	LastLogin           *time.Time `json:"last_login"`
	HasFederatedAccount bool       `json:"has_federated_account"`
	HasPhoneNumber      bool       `json:"has_phone_number"`
	PhoneNumber         *string    `json:"phone_number"`
}

type ErrorResponse struct {
	Error   bool              `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
}

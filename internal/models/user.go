package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the local account. Password-based and federated logins resolve to
// the same row; federated-only users have an empty Password.
type User struct {
	ID              uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Email           string       `gorm:"not null;size:255;uniqueIndex" json:"email"`
	Password        string       `gorm:"not null;default:''" json:"-"`
	FirstName       string       `gorm:"size:150" json:"first_name"`
	LastName        string       `gorm:"size:150" json:"last_name"`
	EmailVerified   bool         `gorm:"default:false" json:"email_verified"`
	FederatedUID    *string      `gorm:"size:255;uniqueIndex" json:"-"`
	StripeAccountID *string      `gorm:"size:255" json:"-"`
	IsActive        bool         `gorm:"not null" json:"is_active"`
	LastLogin       *time.Time   `json:"last_login"`
	PhoneNumber     *PhoneNumber `gorm:"foreignKey:UserID" json:"phone_number,omitempty"`
	CreatedAt       time.Time    `json:"date_joined"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Email = NormalizeEmail(u.Email)
	return nil
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) HasFederatedAccount() bool {
	return u.FederatedUID != nil
}

// HasPhoneNumber reports whether the user has a verified phone number.
func (u *User) HasPhoneNumber() bool {
	return u.PhoneNumber != nil && u.PhoneNumber.IsVerified
}

// PhoneNumber is the optional one-to-one mobile number of a user.
type PhoneNumber struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"-"`
	Mobile     string    `gorm:"size:16;not null;uniqueIndex" json:"mobile"`
	IsVerified bool      `gorm:"default:false" json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (p *PhoneNumber) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// NormalizeEmail trims and lowercases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

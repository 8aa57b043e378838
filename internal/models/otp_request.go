package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OTPRequest binds a one-time code to a purpose reference and a hashed device
// token. Rows are deleted once the guarded action succeeds.
type OTPRequest struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Ref            string    `gorm:"type:text;not null;index" json:"-"`
	DeviceIdentity string    `gorm:"size:255;not null" json:"-"`
	OTP            string    `gorm:"size:6;not null" json:"-"`
	IsVerified     bool      `gorm:"default:false" json:"is_verified"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (o *OTPRequest) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (OTPRequest) TableName() string {
	return "otp_requests"
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	NotificationGeneral      = "general"
	NotificationUser         = "user"
	NotificationContribution = "contribution"
)

// Notification is either addressed to one user (UserID set) or a general
// announcement shown to everyone while IsActive.
type Notification struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Type      string     `gorm:"size:50;not null;index" json:"notification_type"`
	Title     string     `gorm:"size:255;not null" json:"title"`
	Message   string     `gorm:"type:text;not null" json:"message"`
	UserID    *uuid.UUID `gorm:"type:uuid;index" json:"-"`
	IsRead    bool       `gorm:"default:false" json:"is_read"`
	IsActive  bool       `gorm:"not null" json:"is_active"`
	Tag       string     `gorm:"size:50" json:"tag,omitempty"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

package access

import (
	"github.com/google/uuid"
	"github.com/pampermomma/backend/internal/models"
	"gorm.io/gorm"
)

// OwnedRegistries filters registries created by userID.
func OwnedRegistries(userID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("created_by_id = ?", userID)
	}
}

// VisibleServices filters services in registries the user owns or that were
// shared with them.
func VisibleServices(db *gorm.DB, userID uuid.UUID) func(*gorm.DB) *gorm.DB {
	owned := db.Model(&models.Registry{}).Select("id").Where("created_by_id = ?", userID)
	shared := db.Model(&models.SharedRegistry{}).Select("registry_id").Where("shared_with_id = ?", userID)
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("registry_id IN (?) OR registry_id IN (?)", owned, shared)
	}
}

// OwnedServices filters services in registries created by userID.
func OwnedServices(db *gorm.DB, userID uuid.UUID) func(*gorm.DB) *gorm.DB {
	owned := db.Model(&models.Registry{}).Select("id").Where("created_by_id = ?", userID)
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("registry_id IN (?)", owned)
	}
}

// SharedWith filters shared_registries rows for userID.
func SharedWith(userID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("shared_with_id = ?", userID)
	}
}

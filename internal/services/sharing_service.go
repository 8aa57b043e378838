package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pampermomma/backend/internal/access"
	"github.com/pampermomma/backend/internal/dto"
	"github.com/pampermomma/backend/internal/models"
	"gorm.io/gorm"
)

var (
	ErrInvalidShareableID = errors.New("registry with this shareable ID does not exist")
	ErrServiceNotFound    = errors.New("service not found")
)

// SharingService manages the read-only access other users get to a registry
// by redeeming its shareable id.
type SharingService struct {
	db *gorm.DB
}

func NewSharingService(db *gorm.DB) *SharingService {
	return &SharingService{db: db}
}

// Share grants userID access to the registry behind shareableID. Sharing the
// same registry twice returns the existing grant.
func (s *SharingService) Share(userID uuid.UUID, shareableID string) (*dto.SharedRegistryResponse, error) {
	var registry models.Registry
	if err := s.db.Where("shareable_id = ?", shareableID).First(&registry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidShareableID
		}
		return nil, err
	}

	share := models.SharedRegistry{RegistryID: registry.ID, SharedWithID: userID}
	err := s.db.Where(models.SharedRegistry{RegistryID: registry.ID, SharedWithID: userID}).
		FirstOrCreate(&share).Error
	if err != nil {
		return nil, fmt.Errorf("failed to share registry: %w", err)
	}
	return s.Get(userID, share.ID)
}

func (s *SharingService) List(userID uuid.UUID) ([]dto.SharedRegistryResponse, error) {
	var shares []models.SharedRegistry
	err := s.db.Scopes(access.SharedWith(userID)).
		Preload("Registry.Services", orderByCreated).
		Order("created_at DESC").
		Find(&shares).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list shared registries: %w", err)
	}

	out := make([]dto.SharedRegistryResponse, 0, len(shares))
	for i := range shares {
		resp, err := s.render(&shares[i], userID)
		if err != nil {
			return nil, err
		}
		out = append(out, *resp)
	}
	return out, nil
}

func (s *SharingService) Get(userID, shareID uuid.UUID) (*dto.SharedRegistryResponse, error) {
	share, err := s.find(userID, shareID)
	if err != nil {
		return nil, err
	}
	return s.render(share, userID)
}

// GetService returns one service of a registry shared with userID, with its
// contributions.
func (s *SharingService) GetService(userID, shareID, serviceID uuid.UUID) (*dto.ServiceResponse, error) {
	share, err := s.find(userID, shareID)
	if err != nil {
		return nil, err
	}

	var svc models.Service
	err = s.db.Where("registry_id = ?", share.RegistryID).First(&svc, "id = ?", serviceID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}

	contribs, err := contributionsByService(s.db, []models.Service{svc})
	if err != nil {
		return nil, err
	}
	resp := toServiceResponse(&svc, share.Registry.IsOwnedBy(userID), contribs[svc.ID], true)
	return &resp, nil
}

func (s *SharingService) find(userID, shareID uuid.UUID) (*models.SharedRegistry, error) {
	var share models.SharedRegistry
	err := s.db.Scopes(access.SharedWith(userID)).
		Preload("Registry.Services", orderByCreated).
		First(&share, "id = ?", shareID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegistryNotFound
		}
		return nil, err
	}
	return &share, nil
}

func (s *SharingService) render(share *models.SharedRegistry, userID uuid.UUID) (*dto.SharedRegistryResponse, error) {
	contribs, err := contributionsByService(s.db, share.Registry.Services)
	if err != nil {
		return nil, err
	}
	return &dto.SharedRegistryResponse{
		ID:        share.ID,
		Registry:  toRegistryResponse(&share.Registry, userID, contribs),
		CreatedAt: share.CreatedAt,
	}, nil
}

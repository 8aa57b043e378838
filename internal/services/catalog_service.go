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

var ErrServiceHasContributions = errors.New("cannot delete a service that has contributions")

// CatalogService manages the services listed in registries.
type CatalogService struct {
	db *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

// List returns services the user owns or that were shared with them,
// optionally narrowed to one registry.
func (s *CatalogService) List(userID uuid.UUID, registryID *uuid.UUID) ([]dto.ServiceResponse, error) {
	q := s.db.Scopes(access.VisibleServices(s.db, userID)).Preload("Registry")
	if registryID != nil {
		q = q.Where("registry_id = ?", *registryID)
	}

	var services []models.Service
	if err := q.Order("created_at ASC").Find(&services).Error; err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}

	contribs, err := contributionsByService(s.db, services)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ServiceResponse, 0, len(services))
	for i := range services {
		svc := &services[i]
		out = append(out, toServiceResponse(svc, isOwner(svc, userID), contribs[svc.ID], false))
	}
	return out, nil
}

func (s *CatalogService) Get(userID, id uuid.UUID) (*dto.ServiceResponse, error) {
	svc, err := s.visible(userID, id)
	if err != nil {
		return nil, err
	}
	contribs, err := contributionsByService(s.db, []models.Service{*svc})
	if err != nil {
		return nil, err
	}
	resp := toServiceResponse(svc, isOwner(svc, userID), contribs[svc.ID], true)
	return &resp, nil
}

// Create adds a service to a registry the user owns.
func (s *CatalogService) Create(userID uuid.UUID, req *dto.CreateServiceRequest) (*dto.ServiceResponse, error) {
	out, err := s.BulkCreate(userID, req.Registry, []dto.ServiceInput{req.ServiceInput})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// BulkCreate adds every input to the registry in one transaction.
func (s *CatalogService) BulkCreate(userID, registryID uuid.UUID, inputs []dto.ServiceInput) ([]dto.ServiceResponse, error) {
	var registry models.Registry
	err := s.db.Scopes(access.OwnedRegistries(userID)).First(&registry, "id = ?", registryID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegistryNotFound
		}
		return nil, err
	}

	created := make([]models.Service, 0, len(inputs))
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, in := range inputs {
			svc := newService(registry.ID, in)
			if err := tx.Create(&svc).Error; err != nil {
				return err
			}
			created = append(created, svc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create services: %w", err)
	}

	out := make([]dto.ServiceResponse, 0, len(created))
	for i := range created {
		out = append(out, toServiceResponse(&created[i], true, nil, false))
	}
	return out, nil
}

func (s *CatalogService) Update(userID, id uuid.UUID, req *dto.UpdateServiceRequest) (*dto.ServiceResponse, error) {
	svc, err := s.ownedForWrite(userID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Hours != nil {
		updates["hours"] = *req.Hours
	}
	if req.CostPerHour != nil {
		updates["cost_per_hour"] = *req.CostPerHour
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) > 0 {
		if err := s.db.Model(svc).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update service: %w", err)
		}
	}
	return s.Get(userID, id)
}

// Delete removes an owned service that has not received contributions.
func (s *CatalogService) Delete(userID, id uuid.UUID) error {
	svc, err := s.ownedForWrite(userID, id)
	if err != nil {
		return err
	}

	var count int64
	if err := s.db.Model(&models.Contribution{}).Where("service_id = ?", svc.ID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count contributions: %w", err)
	}
	if count > 0 {
		return ErrServiceHasContributions
	}
	if err := s.db.Delete(svc).Error; err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}
	return nil
}

// Contributions lists the contributions of a service visible to the user.
func (s *CatalogService) Contributions(userID, id uuid.UUID) ([]models.Contribution, error) {
	svc, err := s.visible(userID, id)
	if err != nil {
		return nil, err
	}
	var contribs []models.Contribution
	if err := s.db.Where("service_id = ?", svc.ID).Order("created_at DESC").Find(&contribs).Error; err != nil {
		return nil, fmt.Errorf("failed to list contributions: %w", err)
	}
	return contribs, nil
}

// OwnerContributions lists contributions to every service the user owns.
func (s *CatalogService) OwnerContributions(userID uuid.UUID) ([]models.Contribution, error) {
	var serviceIDs []uuid.UUID
	if err := s.db.Model(&models.Service{}).Scopes(access.OwnedServices(s.db, userID)).
		Pluck("id", &serviceIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}

	contribs := []models.Contribution{}
	if len(serviceIDs) == 0 {
		return contribs, nil
	}
	if err := s.db.Where("service_id IN ?", serviceIDs).Order("created_at DESC").Find(&contribs).Error; err != nil {
		return nil, fmt.Errorf("failed to list contributions: %w", err)
	}
	return contribs, nil
}

func (s *CatalogService) visible(userID, id uuid.UUID) (*models.Service, error) {
	var svc models.Service
	err := s.db.Scopes(access.VisibleServices(s.db, userID)).
		Preload("Registry").
		First(&svc, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return &svc, nil
}

// ownedForWrite distinguishes a service the user cannot see (not found) from
// one they can see but do not own (forbidden).
func (s *CatalogService) ownedForWrite(userID, id uuid.UUID) (*models.Service, error) {
	svc, err := s.visible(userID, id)
	if err != nil {
		return nil, err
	}
	if !isOwner(svc, userID) {
		return nil, ErrNotOwner
	}
	return svc, nil
}

func isOwner(svc *models.Service, userID uuid.UUID) bool {
	return svc.Registry != nil && svc.Registry.IsOwnedBy(userID)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pampermomma/backend/internal/access"
	"github.com/pampermomma/backend/internal/dto"
	"github.com/pampermomma/backend/internal/ledger"
	"github.com/pampermomma/backend/internal/models"
	"github.com/pampermomma/backend/internal/payments"
	"gorm.io/gorm"
)

var (
	ErrRegistryNotFound = errors.New("registry not found")
	ErrNotOwner         = errors.New("you do not have permission to perform this action")
	ErrInvalidDate      = errors.New("arrival_date must be formatted as YYYY-MM-DD")
)

const dateLayout = "2006-01-02"

type RegistryService struct {
	db      *gorm.DB
	gateway payments.Gateway
	now     func() time.Time
}

func NewRegistryService(db *gorm.DB, gateway payments.Gateway) *RegistryService {
	return &RegistryService{db: db, gateway: gateway, now: time.Now}
}

// List returns the caller's registries with their services.
func (s *RegistryService) List(userID uuid.UUID) ([]dto.RegistryResponse, error) {
	var registries []models.Registry
	err := s.db.Scopes(access.OwnedRegistries(userID)).
		Preload("Services", orderByCreated).
		Order("created_at DESC").
		Find(&registries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list registries: %w", err)
	}

	out := make([]dto.RegistryResponse, 0, len(registries))
	for i := range registries {
		resp, err := s.render(&registries[i], userID)
		if err != nil {
			return nil, err
		}
		out = append(out, *resp)
	}
	return out, nil
}

// Create stores a registry and its nested services in one transaction.
func (s *RegistryService) Create(userID uuid.UUID, req *dto.CreateRegistryRequest) (*dto.RegistryResponse, error) {
	arrival, err := parseDate(req.ArrivalDate)
	if err != nil {
		return nil, err
	}

	registry := models.Registry{
		Name:            req.Name,
		IsFirstTime:     req.IsFirstTime,
		BabiesCount:     req.BabiesCount,
		ArrivalDate:     arrival,
		WelcomeMessage:  req.WelcomeMessage,
		ThankYouMessage: req.ThankYouMessage,
		CreatedByID:     userID,
	}
	if registry.BabiesCount == 0 {
		registry.BabiesCount = 1
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Services").Create(&registry).Error; err != nil {
			return err
		}
		for _, in := range req.Services {
			svc := newService(registry.ID, in)
			if err := tx.Create(&svc).Error; err != nil {
				return err
			}
			registry.Services = append(registry.Services, svc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}
	return s.render(&registry, userID)
}

// Get returns an owned registry with its balance. Contributions still missing
// settlement data are enriched from the processor first.
func (s *RegistryService) Get(ctx context.Context, userID, id uuid.UUID) (*dto.RegistryResponse, error) {
	registry, err := s.owned(userID, id)
	if err != nil {
		return nil, err
	}

	contribs, err := registryContributions(s.db, registry.ID)
	if err != nil {
		return nil, err
	}
	if err := enrichContributions(ctx, s.db, s.gateway, contribs); err != nil {
		return nil, err
	}

	resp, err := s.render(registry, userID)
	if err != nil {
		return nil, err
	}
	balance, err := registryBalance(s.db, registry.ID, s.now())
	if err != nil {
		return nil, err
	}
	resp.Balance = &balance
	return resp, nil
}

func (s *RegistryService) Update(userID, id uuid.UUID, req *dto.UpdateRegistryRequest) (*dto.RegistryResponse, error) {
	registry, err := s.owned(userID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.IsFirstTime != nil {
		updates["is_first_time"] = *req.IsFirstTime
	}
	if req.BabiesCount != nil {
		updates["babies_count"] = *req.BabiesCount
	}
	if req.ArrivalDate != nil {
		arrival, err := parseDate(*req.ArrivalDate)
		if err != nil {
			return nil, err
		}
		updates["arrival_date"] = arrival
	}
	if req.WelcomeMessage != nil {
		updates["welcome_message"] = *req.WelcomeMessage
	}
	if req.ThankYouMessage != nil {
		updates["thank_you_message"] = *req.ThankYouMessage
	}

	if len(updates) > 0 {
		if err := s.db.Model(registry).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update registry: %w", err)
		}
	}

	registry, err = s.owned(userID, id)
	if err != nil {
		return nil, err
	}
	return s.render(registry, userID)
}

// Delete removes an owned registry. Services and their shares go with it;
// contributions keep their rows with the service detached.
func (s *RegistryService) Delete(userID, id uuid.UUID) error {
	registry, err := s.owned(userID, id)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		serviceIDs := tx.Model(&models.Service{}).Select("id").Where("registry_id = ?", registry.ID)
		if err := tx.Model(&models.Contribution{}).Where("service_id IN (?)", serviceIDs).
			Update("service_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach contributions: %w", err)
		}
		for _, model := range []interface{}{&models.Service{}, &models.SharedRegistry{}, &models.Withdrawal{}} {
			if err := tx.Where("registry_id = ?", registry.ID).Delete(model).Error; err != nil {
				return fmt.Errorf("failed to delete registry rows: %w", err)
			}
		}
		if err := tx.Delete(registry).Error; err != nil {
			return fmt.Errorf("failed to delete registry: %w", err)
		}
		return nil
	})
}

// GetPublic returns the read-only view behind a shareable link.
func (s *RegistryService) GetPublic(shareableID string) (*dto.RegistryResponse, error) {
	var registry models.Registry
	err := s.db.Preload("Services", orderByCreated).
		Where("shareable_id = ?", shareableID).
		First(&registry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegistryNotFound
		}
		return nil, err
	}
	return s.render(&registry, uuid.Nil)
}

func (s *RegistryService) ListDefaults() ([]models.DefaultRegistry, error) {
	var defaults []models.DefaultRegistry
	if err := s.db.Preload("Services").Order("name ASC").Find(&defaults).Error; err != nil {
		return nil, fmt.Errorf("failed to list default registries: %w", err)
	}
	return defaults, nil
}

func (s *RegistryService) ListDefaultServices() ([]models.DefaultService, error) {
	var defaults []models.DefaultService
	if err := s.db.Order("name ASC").Find(&defaults).Error; err != nil {
		return nil, fmt.Errorf("failed to list default services: %w", err)
	}
	return defaults, nil
}

func (s *RegistryService) owned(userID, id uuid.UUID) (*models.Registry, error) {
	var registry models.Registry
	err := s.db.Scopes(access.OwnedRegistries(userID)).
		Preload("Services", orderByCreated).
		First(&registry, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegistryNotFound
		}
		return nil, err
	}
	return &registry, nil
}

// render builds the response for viewer. uuid.Nil renders the anonymous view.
func (s *RegistryService) render(registry *models.Registry, viewer uuid.UUID) (*dto.RegistryResponse, error) {
	contribs, err := contributionsByService(s.db, registry.Services)
	if err != nil {
		return nil, err
	}
	resp := toRegistryResponse(registry, viewer, contribs)
	return &resp, nil
}

func orderByCreated(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, ErrInvalidDate
	}
	return &t, nil
}

func newService(registryID uuid.UUID, in dto.ServiceInput) models.Service {
	svc := models.Service{
		RegistryID:  registryID,
		Name:        in.Name,
		Description: in.Description,
		Hours:       in.Hours,
		CostPerHour: in.CostPerHour,
		IsActive:    true,
	}
	if svc.Hours == 0 {
		svc.Hours = 1
	}
	if in.IsActive != nil {
		svc.IsActive = *in.IsActive
	}
	return svc
}

// contributionsByService loads the contributions of services keyed by
// service id.
func contributionsByService(db *gorm.DB, services []models.Service) (map[uuid.UUID][]models.Contribution, error) {
	out := make(map[uuid.UUID][]models.Contribution, len(services))
	if len(services) == 0 {
		return out, nil
	}
	ids := make([]uuid.UUID, 0, len(services))
	for _, svc := range services {
		ids = append(ids, svc.ID)
	}

	var contribs []models.Contribution
	if err := db.Where("service_id IN ?", ids).Order("created_at ASC").Find(&contribs).Error; err != nil {
		return nil, fmt.Errorf("failed to load contributions: %w", err)
	}
	for _, c := range contribs {
		if c.ServiceID != nil {
			out[*c.ServiceID] = append(out[*c.ServiceID], c)
		}
	}
	return out, nil
}

func toRegistryResponse(registry *models.Registry, viewer uuid.UUID, contribs map[uuid.UUID][]models.Contribution) dto.RegistryResponse {
	owner := viewer != uuid.Nil && registry.IsOwnedBy(viewer)

	resp := dto.RegistryResponse{
		ID:              registry.ID,
		Name:            registry.Name,
		IsFirstTime:     registry.IsFirstTime,
		BabiesCount:     registry.BabiesCount,
		ShareableID:     registry.ShareableID,
		WelcomeMessage:  registry.WelcomeMessage,
		ThankYouMessage: registry.ThankYouMessage,
		CreatedBy:       registry.CreatedByID,
		Services:        make([]dto.ServiceResponse, 0, len(registry.Services)),
		CreatedAt:       registry.CreatedAt,
		UpdatedAt:       registry.UpdatedAt,
	}
	if registry.ArrivalDate != nil {
		date := registry.ArrivalDate.Format(dateLayout)
		resp.ArrivalDate = &date
	}
	for i := range registry.Services {
		svc := &registry.Services[i]
		resp.Services = append(resp.Services, toServiceResponse(svc, owner, contribs[svc.ID], false))
	}
	return resp
}

// toServiceResponse renders a service. Owners also see what has been
// withdrawn; withContributions adds the contribution rows.
func toServiceResponse(svc *models.Service, owner bool, contribs []models.Contribution, withContributions bool) dto.ServiceResponse {
	resp := dto.ServiceResponse{
		ID:            svc.ID,
		Registry:      svc.RegistryID,
		Name:          svc.Name,
		Description:   svc.Description,
		Hours:         svc.Hours,
		CostPerHour:   svc.CostPerHour,
		IsActive:      svc.IsActive,
		IsOwnedByUser: owner,
		CreatedAt:     svc.CreatedAt,
		UpdatedAt:     svc.UpdatedAt,
		ServiceState:  ledger.StateOf(svc, contribs),
	}
	if owner {
		withdrawn := svc.TotalWithdrawn
		resp.TotalWithdrawn = &withdrawn
	}
	if withContributions {
		resp.Contributions = contribs
		if resp.Contributions == nil {
			resp.Contributions = []models.Contribution{}
		}
	}
	return resp
}

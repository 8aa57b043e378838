package services

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/pampermomma/backend/internal/dto"
	"github.com/pampermomma/backend/internal/models"
	"github.com/shopspring/decimal"
)

func TestCatalogService_ListVisible(t *testing.T) {
	db := newTestDB(t)
	catalog := NewCatalogService(db)
	sharing := NewSharingService(db)

	mom := createUser(t, db, "mom@example.com")
	friend := createUser(t, db, "friend@example.com")
	stranger := createUser(t, db, "stranger@example.com")
	registry := createRegistry(t, db, mom, mealPrep())

	if _, err := sharing.Share(friend.ID, registry.ShareableID); err != nil {
		t.Fatalf("Share: %v", err)
	}

	testCases := []struct {
		name      string
		userID    uuid.UUID
		wantCount int
		wantOwner bool
	}{
		{"owner", mom.ID, 1, true},
		{"shared with", friend.ID, 1, false},
		{"stranger", stranger.ID, 0, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			list, err := catalog.List(tc.userID, nil)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(list) != tc.wantCount {
				t.Fatalf("count = %d, want %d", len(list), tc.wantCount)
			}
			if tc.wantCount > 0 && list[0].IsOwnedByUser != tc.wantOwner {
				t.Errorf("is_owned_by_user = %v, want %v", list[0].IsOwnedByUser, tc.wantOwner)
			}
		})
	}

	other := uuid.New()
	list, err := catalog.List(mom.ID, &other)
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("filter by unknown registry returned %d services", len(list))
	}
}

func TestCatalogService_BulkCreate(t *testing.T) {
	db := newTestDB(t)
	catalog := NewCatalogService(db)
	mom := createUser(t, db, "mom@example.com")
	other := createUser(t, db, "other@example.com")
	registry := createRegistry(t, db, mom)

	inputs := []dto.ServiceInput{
		{Name: "Laundry", Hours: 2, CostPerHour: decimal.RequireFromString("20")},
		{Name: "Dog walking", Hours: 5, CostPerHour: decimal.RequireFromString("15")},
	}

	if _, err := catalog.BulkCreate(other.ID, registry.ID, inputs); !errors.Is(err, ErrRegistryNotFound) {
		t.Fatalf("non-owner: err = %v, want ErrRegistryNotFound", err)
	}

	created, err := catalog.BulkCreate(mom.ID, registry.ID, inputs)
	if err != nil {
		t.Fatalf("BulkCreate: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created = %d, want 2", len(created))
	}
	for _, svc := range created {
		if !svc.IsActive {
			t.Errorf("%s should default to active", svc.Name)
		}
	}

	single, err := catalog.Create(mom.ID, &dto.CreateServiceRequest{
		Registry:     registry.ID,
		ServiceInput: dto.ServiceInput{Name: "Cleaning", Hours: 3, CostPerHour: decimal.RequireFromString("30")},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !single.TotalCost.Equal(decimal.RequireFromString("90")) {
		t.Errorf("total_cost = %s, want 90", single.TotalCost)
	}
}

func TestCatalogService_UpdateAndDelete(t *testing.T) {
	db := newTestDB(t)
	catalog := NewCatalogService(db)
	sharing := NewSharingService(db)

	mom := createUser(t, db, "mom@example.com")
	friend := createUser(t, db, "friend@example.com")
	registry := createRegistry(t, db, mom, mealPrep(), mealPrep())
	if _, err := sharing.Share(friend.ID, registry.ShareableID); err != nil {
		t.Fatalf("Share: %v", err)
	}
	funded := registry.Services[0].ID
	empty := registry.Services[1].ID
	addContribution(t, db, funded, "10.00", "", nil)

	if _, err := catalog.Update(friend.ID, funded, &dto.UpdateServiceRequest{Name: ptrString("x")}); !errors.Is(err, ErrNotOwner) {
		t.Errorf("shared user update: err = %v, want ErrNotOwner", err)
	}
	if err := catalog.Delete(friend.ID, empty); !errors.Is(err, ErrNotOwner) {
		t.Errorf("shared user delete: err = %v, want ErrNotOwner", err)
	}
	if err := catalog.Delete(mom.ID, funded); !errors.Is(err, ErrServiceHasContributions) {
		t.Errorf("delete funded: err = %v, want ErrServiceHasContributions", err)
	}
	if err := catalog.Delete(mom.ID, uuid.New()); !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("delete unknown: err = %v, want ErrServiceNotFound", err)
	}

	off := false
	updated, err := catalog.Update(mom.ID, funded, &dto.UpdateServiceRequest{IsActive: &off})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.IsActive || updated.IsAvailable {
		t.Error("deactivated service should be unavailable")
	}

	if err := catalog.Delete(mom.ID, empty); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	var count int64
	db.Model(&models.Service{}).Where("id = ?", empty).Count(&count)
	if count != 0 {
		t.Error("service was not deleted")
	}
}

func TestCatalogService_Contributions(t *testing.T) {
	db := newTestDB(t)
	catalog := NewCatalogService(db)
	mom := createUser(t, db, "mom@example.com")
	stranger := createUser(t, db, "stranger@example.com")
	registry := createRegistry(t, db, mom, mealPrep())
	serviceID := registry.Services[0].ID
	addContribution(t, db, serviceID, "10.00", "", nil)
	addContribution(t, db, serviceID, "15.00", "", nil)

	contribs, err := catalog.Contributions(mom.ID, serviceID)
	if err != nil {
		t.Fatalf("Contributions: %v", err)
	}
	if len(contribs) != 2 {
		t.Errorf("contributions = %d, want 2", len(contribs))
	}
	if _, err := catalog.Contributions(stranger.ID, serviceID); !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("stranger: err = %v, want ErrServiceNotFound", err)
	}

	all, err := catalog.OwnerContributions(mom.ID)
	if err != nil {
		t.Fatalf("OwnerContributions: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("owner contributions = %d, want 2", len(all))
	}
	none, err := catalog.OwnerContributions(stranger.ID)
	if err != nil {
		t.Fatalf("OwnerContributions: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("stranger contributions = %d, want 0", len(none))
	}
}

package service

import (
	"context"
	"errors"
	"fmt"

	"ampa/internal/models"
	"ampa/internal/repository"
	"ampa/internal/validation"
)

// FamilyService owns the family/member aggregate
type FamilyService struct {
	familyRepo *repository.FamilyRepository
}

// NewFamilyService creates a new family service
func NewFamilyService(familyRepo *repository.FamilyRepository) *FamilyService {
	return &FamilyService{familyRepo: familyRepo}
}

// List returns every family with its members, ordered by id
func (s *FamilyService) List(ctx context.Context, actor *models.User) ([]models.Family, error) {
	if _, err := RequireAuthenticated(actor); err != nil {
		return nil, err
	}

	families, err := s.familyRepo.ListFamilies(ctx)
	if err != nil {
		return nil, storageFault("list families", err)
	}
	return families, nil
}

// Get returns one family with its members
func (s *FamilyService) Get(ctx context.Context, actor *models.User, id int64) (*models.Family, error) {
	if _, err := RequireAuthenticated(actor); err != nil {
		return nil, err
	}

	family, err := s.familyRepo.GetFamilyByID(ctx, id)
	if err != nil {
		return nil, storageFault("get family", err)
	}
	if family == nil {
		return nil, ErrNotFound
	}
	return family, nil
}

// Create stores a new family. The id and membership number are assigned by
// the store; whatever the input carries for them is ignored.
func (s *FamilyService) Create(ctx context.Context, actor *models.User, input models.Family) (*models.Family, error) {
	if _, err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validation.ValidateFamily(&input); err != nil {
		return nil, err
	}

	input.ID = 0
	input.MembershipNumber = ""
	input.CreatedBy = actor.Username

	family, err := s.familyRepo.CreateFamily(ctx, &input)
	if err != nil {
		return nil, storageFault("create family", err)
	}
	return family, nil
}

// Update replaces a family's fields and its entire member list
func (s *FamilyService) Update(ctx context.Context, actor *models.User, id int64, input models.Family) (*models.Family, error) {
	if _, err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validation.ValidateFamily(&input); err != nil {
		return nil, err
	}

	family, err := s.familyRepo.UpdateFamily(ctx, id, &input)
	if err != nil {
		return nil, storageFault("update family", err)
	}
	if family == nil {
		return nil, ErrNotFound
	}
	return family, nil
}

// Delete removes a family together with its members
func (s *FamilyService) Delete(ctx context.Context, actor *models.User, id int64) error {
	if _, err := RequireAdmin(actor); err != nil {
		return err
	}

	deleted, err := s.familyRepo.DeleteFamily(ctx, id)
	if err != nil {
		return storageFault("delete family", err)
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// isDuplicate reports a unique-constraint failure surfaced by the repository
func isDuplicate(err error) bool {
	return errors.Is(err, repository.ErrDuplicate)
}

func conflict(what string) error {
	return fmt.Errorf("%w: %s", ErrConflict, what)
}

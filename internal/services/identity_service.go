package services

import (
	"context"
	"errors"

	"safehaven-service/internal/domain/identity"
	"safehaven-service/internal/repository"
	safehaven_errors "safehaven-service/pkg/errors"
	"safehaven-service/pkg/logger"

	"github.com/google/uuid"
)

// IdentityService maintains the SafeHaven user → internal user mapping table.
type IdentityService struct {
	repo repository.IdentityMappingRepository
	log  *logger.Logger
}

func NewIdentityService(repo repository.IdentityMappingRepository, log *logger.Logger) *IdentityService {
	if log == nil {
		log = logger.NewNop()
	}
	return &IdentityService{repo: repo, log: log}
}

// ResolveMappingID returns the mapping id for a SafeHaven user id, or nil
// when no mapping exists. Callers treat absence as normal: ingestion never
// blocks on an unresolved identity.
func (s *IdentityService) ResolveMappingID(ctx context.Context, safehavenUserID string) *uuid.UUID {
	if safehavenUserID == "" {
		return nil
	}
	m, err := s.repo.GetBySafehavenUserID(ctx, safehavenUserID)
	if err != nil {
		if !errors.Is(err, safehaven_errors.ErrNotFound) {
			s.log.Errorf("identity lookup failed for %s: %v", safehavenUserID, err)
		}
		return nil
	}
	id := m.ID
	return &id
}

// Upsert creates or refreshes the mapping for a SafeHaven user.
func (s *IdentityService) Upsert(ctx context.Context, safehavenUserID, internalUserID, email string) (identity.Mapping, error) {
	existing, err := s.repo.GetBySafehavenUserID(ctx, safehavenUserID)
	if err == nil {
		if email != "" {
			existing.Email = email
		}
		if internalUserID != "" {
			existing.InternalUserID = internalUserID
		}
		existing.Status = identity.MappingActive
		existing.LastVerifiedAt = safehaven_errors.NowPtr()
		if updErr := s.repo.Update(ctx, &existing); updErr != nil {
			return identity.Mapping{}, updErr
		}
		return existing, nil
	}
	if !errors.Is(err, safehaven_errors.ErrNotFound) {
		return identity.Mapping{}, err
	}

	m := identity.Mapping{
		ID:              uuid.New(),
		SafehavenUserID: safehavenUserID,
		InternalUserID:  internalUserID,
		Email:           email,
		Status:          identity.MappingActive,
		LastVerifiedAt:  safehaven_errors.NowPtr(),
	}
	if createErr := s.repo.Create(ctx, &m); createErr != nil {
		if errors.Is(createErr, safehaven_errors.ErrAlreadyExists) {
			// Concurrent upsert won; fetch the winner.
			return s.repo.GetBySafehavenUserID(ctx, safehavenUserID)
		}
		return identity.Mapping{}, createErr
	}
	return m, nil
}

// MarkDeleted flags the mapping without removing the row (audit retention).
func (s *IdentityService) MarkDeleted(ctx context.Context, safehavenUserID string) error {
	m, err := s.repo.GetBySafehavenUserID(ctx, safehavenUserID)
	if err != nil {
		return err
	}
	return s.repo.UpdateStatus(ctx, m.ID, identity.MappingDeleted)
}

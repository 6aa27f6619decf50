package services

import (
	"context"
	"fmt"

	"safehaven-service/internal/domain/account"
	"safehaven-service/internal/repository"
	safehaven_errors "safehaven-service/pkg/errors"
	"safehaven-service/pkg/logger"

	"github.com/google/uuid"
)

// AccountService manages safe haven account records: the REST CRUD surface
// plus the mutations driven by payment and account webhooks.
type AccountService struct {
	repo repository.SafeHavenRepository
	log  *logger.Logger
}

func NewAccountService(repo repository.SafeHavenRepository, log *logger.Logger) *AccountService {
	if log == nil {
		log = logger.NewNop()
	}
	return &AccountService{repo: repo, log: log}
}

func (s *AccountService) Create(ctx context.Context, reference, ownerName, ownerEmail string) (account.SafeHaven, error) {
	if reference == "" || ownerName == "" || ownerEmail == "" {
		return account.SafeHaven{}, fmt.Errorf("%w: reference, owner name and owner email are required", safehaven_errors.ErrInvalidInput)
	}
	sh := account.SafeHaven{
		ID:         uuid.New(),
		Reference:  reference,
		OwnerName:  ownerName,
		OwnerEmail: ownerEmail,
		Status:     account.StatusActive,
	}
	if err := s.repo.Create(ctx, &sh); err != nil {
		return account.SafeHaven{}, err
	}
	return sh, nil
}

func (s *AccountService) GetByID(ctx context.Context, id uuid.UUID) (account.SafeHaven, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *AccountService) GetByReference(ctx context.Context, reference string) (account.SafeHaven, error) {
	return s.repo.GetByReference(ctx, reference)
}

func (s *AccountService) List(ctx context.Context, page, limit int) ([]account.SafeHaven, int64, error) {
	return s.repo.List(ctx, page, limit)
}

func (s *AccountService) Update(ctx context.Context, id uuid.UUID, ownerName, ownerEmail string) (account.SafeHaven, error) {
	sh, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return account.SafeHaven{}, err
	}
	if ownerName != "" {
		sh.OwnerName = ownerName
	}
	if ownerEmail != "" {
		sh.OwnerEmail = ownerEmail
	}
	if err := s.repo.Update(ctx, &sh); err != nil {
		return account.SafeHaven{}, err
	}
	return sh, nil
}

func (s *AccountService) Suspend(ctx context.Context, reference string) error {
	return s.repo.UpdateStatus(ctx, reference, account.StatusSuspended)
}

func (s *AccountService) Activate(ctx context.Context, reference string) error {
	return s.repo.UpdateStatus(ctx, reference, account.StatusActive)
}

// Credit adds amount (minor units) to the account balance.
func (s *AccountService) Credit(ctx context.Context, reference string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: credit amount must be positive", safehaven_errors.ErrInvalidInput)
	}
	return s.repo.CreditBalance(ctx, reference, amount)
}

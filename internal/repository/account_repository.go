package repository

import (
	"context"
	"errors"

	"safehaven-service/internal/domain/account"
	safehaven_errors "safehaven-service/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresSafeHavenRepository struct {
	db *gorm.DB
}

func NewSafeHavenRepository(db *gorm.DB) SafeHavenRepository {
	return &PostgresSafeHavenRepository{db: db}
}

func (r *PostgresSafeHavenRepository) Create(ctx context.Context, s *account.SafeHaven) error {
	res := r.db.WithContext(ctx).Create(s)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return safehaven_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresSafeHavenRepository) GetByID(ctx context.Context, id uuid.UUID) (account.SafeHaven, error) {
	var s account.SafeHaven
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return account.SafeHaven{}, safehaven_errors.ErrNotFound
		}
		return account.SafeHaven{}, err
	}
	return s, nil
}

func (r *PostgresSafeHavenRepository) GetByReference(ctx context.Context, reference string) (account.SafeHaven, error) {
	var s account.SafeHaven
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return account.SafeHaven{}, safehaven_errors.ErrNotFound
		}
		return account.SafeHaven{}, err
	}
	return s, nil
}

func (r *PostgresSafeHavenRepository) List(ctx context.Context, page, limit int) ([]account.SafeHaven, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&account.SafeHaven{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []account.SafeHaven
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *PostgresSafeHavenRepository) Update(ctx context.Context, s *account.SafeHaven) error {
	res := r.db.WithContext(ctx).Save(s)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return safehaven_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresSafeHavenRepository) UpdateStatus(ctx context.Context, reference string, status account.Status) error {
	res := r.db.WithContext(ctx).
		Model(&account.SafeHaven{}).
		Where("reference = ?", reference).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return safehaven_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresSafeHavenRepository) CreditBalance(ctx context.Context, reference string, amount int64) error {
	res := r.db.WithContext(ctx).
		Model(&account.SafeHaven{}).
		Where("reference = ?", reference).
		Update("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return safehaven_errors.ErrNotFound
	}
	return nil
}

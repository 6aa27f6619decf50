package repository

import (
	"context"
	"errors"

	"safehaven-service/internal/domain/identity"
	safehaven_errors "safehaven-service/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresIdentityMappingRepository struct {
	db *gorm.DB
}

func NewIdentityMappingRepository(db *gorm.DB) IdentityMappingRepository {
	return &PostgresIdentityMappingRepository{db: db}
}

func (r *PostgresIdentityMappingRepository) Create(ctx context.Context, m *identity.Mapping) error {
	res := r.db.WithContext(ctx).Create(m)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return safehaven_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresIdentityMappingRepository) GetBySafehavenUserID(ctx context.Context, safehavenUserID string) (identity.Mapping, error) {
	var m identity.Mapping
	err := r.db.WithContext(ctx).Where("safehaven_user_id = ?", safehavenUserID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return identity.Mapping{}, safehaven_errors.ErrNotFound
		}
		return identity.Mapping{}, err
	}
	return m, nil
}

func (r *PostgresIdentityMappingRepository) Update(ctx context.Context, m *identity.Mapping) error {
	res := r.db.WithContext(ctx).Save(m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return safehaven_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresIdentityMappingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status identity.MappingStatus) error {
	res := r.db.WithContext(ctx).
		Model(&identity.Mapping{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return safehaven_errors.ErrNotFound
	}
	return nil
}

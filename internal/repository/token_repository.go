package repository

import (
	"context"
	"errors"
	"time"

	"safehaven-service/internal/domain/token"
	safehaven_errors "safehaven-service/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresTokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &PostgresTokenRepository{db: db}
}

func (r *PostgresTokenRepository) CreateAccessToken(ctx context.Context, t *token.AccessToken) error {
	res := r.db.WithContext(ctx).Create(t)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return safehaven_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresTokenRepository) CreateRefreshToken(ctx context.Context, t *token.RefreshToken) error {
	res := r.db.WithContext(ctx).Create(t)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return safehaven_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresTokenRepository) UpdateAccessTokenStatusByValue(ctx context.Context, tokenValue string, status token.Status) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&token.AccessToken{}).
		Where("token_value = ?", tokenValue).
		Update("status", status)
	return res.RowsAffected, res.Error
}

// UpdateStatusByMapping flips every access and refresh token tied to an
// identity mapping. Used by token.revoked and account.suspended handlers.
func (r *PostgresTokenRepository) UpdateStatusByMapping(ctx context.Context, identityMappingID uuid.UUID, status token.Status) (int64, error) {
	var total int64
	res := r.db.WithContext(ctx).
		Model(&token.AccessToken{}).
		Where("identity_mapping_id = ? AND status = ?", identityMappingID, token.StatusActive).
		Update("status", status)
	if res.Error != nil {
		return 0, res.Error
	}
	total += res.RowsAffected

	res = r.db.WithContext(ctx).
		Model(&token.RefreshToken{}).
		Where("identity_mapping_id = ? AND status = ?", identityMappingID, token.StatusActive).
		Update("status", status)
	if res.Error != nil {
		return total, res.Error
	}
	total += res.RowsAffected
	return total, nil
}

func (r *PostgresTokenRepository) ExpireAccessTokensBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&token.AccessToken{}).
		Where("status = ? AND expires_at <= ?", token.StatusActive, cutoff).
		Update("status", token.StatusExpired)
	return res.RowsAffected, res.Error
}

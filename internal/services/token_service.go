package services

import (
	"context"
	"time"

	"safehaven-service/internal/domain/token"
	"safehaven-service/internal/repository"
	"safehaven-service/pkg/logger"

	"github.com/google/uuid"
)

// TokenService applies SafeHaven token lifecycle events to stored OAuth
// token rows.
type TokenService struct {
	repo repository.TokenRepository
	log  *logger.Logger
}

func NewTokenService(repo repository.TokenRepository, log *logger.Logger) *TokenService {
	if log == nil {
		log = logger.NewNop()
	}
	return &TokenService{repo: repo, log: log}
}

// RevokeByValue revokes a single access token by its value.
func (s *TokenService) RevokeByValue(ctx context.Context, tokenValue string) (int64, error) {
	n, err := s.repo.UpdateAccessTokenStatusByValue(ctx, tokenValue, token.StatusRevoked)
	if err != nil {
		return 0, err
	}
	s.log.Infof("revoked %d access token(s) by value", n)
	return n, nil
}

// RevokeByMapping revokes every active token tied to an identity mapping.
func (s *TokenService) RevokeByMapping(ctx context.Context, identityMappingID uuid.UUID) (int64, error) {
	n, err := s.repo.UpdateStatusByMapping(ctx, identityMappingID, token.StatusRevoked)
	if err != nil {
		return 0, err
	}
	s.log.Infof("revoked %d token(s) for mapping %s", n, identityMappingID)
	return n, nil
}

// ExpireByValue marks one access token expired.
func (s *TokenService) ExpireByValue(ctx context.Context, tokenValue string) (int64, error) {
	return s.repo.UpdateAccessTokenStatusByValue(ctx, tokenValue, token.StatusExpired)
}

// ExpireBefore sweeps every active access token past its expiry.
func (s *TokenService) ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repo.ExpireAccessTokensBefore(ctx, cutoff)
}

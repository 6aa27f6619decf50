package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"safehaven-service/internal/domain/account"
	"safehaven-service/internal/domain/identity"
	"safehaven-service/internal/domain/token"
	"safehaven-service/internal/domain/webhook"
)

type WebhookEventRepository interface {
	// Create inserts a new event log row. Returns ErrAlreadyExists when the
	// unique constraint on event_id rejects the insert.
	Create(ctx context.Context, e *webhook.EventLog) error
	GetByEventID(ctx context.Context, eventID string) (webhook.EventLog, error)
	Update(ctx context.Context, e *webhook.EventLog) error

	CountByProcessingStatus(ctx context.Context, status webhook.ProcessingStatus) (int64, error)
	FindFailedReadyForRetry(ctx context.Context, maxAttempts int, failedBefore time.Time, limit int) ([]webhook.EventLog, error)
	FindStaleProcessing(ctx context.Context, startedBefore time.Time, limit int) ([]webhook.EventLog, error)
	FindByTimeRange(ctx context.Context, start, end time.Time, limit int) ([]webhook.EventLog, error)
}

type IdentityMappingRepository interface {
	Create(ctx context.Context, m *identity.Mapping) error
	GetBySafehavenUserID(ctx context.Context, safehavenUserID string) (identity.Mapping, error)
	Update(ctx context.Context, m *identity.Mapping) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status identity.MappingStatus) error
}

type TokenRepository interface {
	CreateAccessToken(ctx context.Context, t *token.AccessToken) error
	CreateRefreshToken(ctx context.Context, t *token.RefreshToken) error
	UpdateAccessTokenStatusByValue(ctx context.Context, tokenValue string, status token.Status) (int64, error)
	UpdateStatusByMapping(ctx context.Context, identityMappingID uuid.UUID, status token.Status) (int64, error)
	ExpireAccessTokensBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type SafeHavenRepository interface {
	Create(ctx context.Context, s *account.SafeHaven) error
	GetByID(ctx context.Context, id uuid.UUID) (account.SafeHaven, error)
	GetByReference(ctx context.Context, reference string) (account.SafeHaven, error)
	List(ctx context.Context, page, limit int) ([]account.SafeHaven, int64, error)
	Update(ctx context.Context, s *account.SafeHaven) error
	UpdateStatus(ctx context.Context, reference string, status account.Status) error
	CreditBalance(ctx context.Context, reference string, amount int64) error
}

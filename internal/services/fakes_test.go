package services

import (
	"context"
	"sync"
	"time"

	"safehaven-service/internal/domain/account"
	"safehaven-service/internal/domain/identity"
	"safehaven-service/internal/domain/token"
	"safehaven-service/internal/domain/webhook"
	safehaven_errors "safehaven-service/pkg/errors"

	"github.com/google/uuid"
)

// fakeWebhookRepo is an in-memory WebhookEventRepository. It enforces
// event_id uniqueness under a mutex the same way the unique index does, so
// race tests against it are honest.
type fakeWebhookRepo struct {
	mu     sync.Mutex
	events map[string]webhook.EventLog
}

func newFakeWebhookRepo() *fakeWebhookRepo {
	return &fakeWebhookRepo{events: make(map[string]webhook.EventLog)}
}

func (f *fakeWebhookRepo) Create(ctx context.Context, e *webhook.EventLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.events[e.EventID]; exists {
		return safehaven_errors.ErrAlreadyExists
	}
	e.CreatedAt = time.Now()
	f.events[e.EventID] = *e
	return nil
}

func (f *fakeWebhookRepo) GetByEventID(ctx context.Context, eventID string) (webhook.EventLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[eventID]
	if !ok {
		return webhook.EventLog{}, safehaven_errors.ErrNotFound
	}
	return e, nil
}

func (f *fakeWebhookRepo) Update(ctx context.Context, e *webhook.EventLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[e.EventID]; !ok {
		return safehaven_errors.ErrNotFound
	}
	f.events[e.EventID] = *e
	return nil
}

func (f *fakeWebhookRepo) CountByProcessingStatus(ctx context.Context, status webhook.ProcessingStatus) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, e := range f.events {
		if e.ProcessingStatus == status {
			count++
		}
	}
	return count, nil
}

func (f *fakeWebhookRepo) FindFailedReadyForRetry(ctx context.Context, maxAttempts int, failedBefore time.Time, limit int) ([]webhook.EventLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []webhook.EventLog
	for _, e := range f.events {
		if e.ProcessingStatus == webhook.ProcessingFailed &&
			e.AttemptCount < maxAttempts &&
			e.ProcessedAt != nil && !e.ProcessedAt.After(failedBefore) {
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeWebhookRepo) FindStaleProcessing(ctx context.Context, startedBefore time.Time, limit int) ([]webhook.EventLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []webhook.EventLog
	for _, e := range f.events {
		if e.ProcessingStatus == webhook.ProcessingInProgress &&
			e.ProcessingStartedAt != nil && !e.ProcessingStartedAt.After(startedBefore) {
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeWebhookRepo) FindByTimeRange(ctx context.Context, start, end time.Time, limit int) ([]webhook.EventLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []webhook.EventLog
	for _, e := range f.events {
		if !e.CreatedAt.Before(start) && !e.CreatedAt.After(end) {
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// fakeIdentityRepo is an in-memory IdentityMappingRepository.
type fakeIdentityRepo struct {
	mu       sync.Mutex
	mappings map[string]identity.Mapping
}

func newFakeIdentityRepo() *fakeIdentityRepo {
	return &fakeIdentityRepo{mappings: make(map[string]identity.Mapping)}
}

func (f *fakeIdentityRepo) Create(ctx context.Context, m *identity.Mapping) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.mappings[m.SafehavenUserID]; exists {
		return safehaven_errors.ErrAlreadyExists
	}
	f.mappings[m.SafehavenUserID] = *m
	return nil
}

func (f *fakeIdentityRepo) GetBySafehavenUserID(ctx context.Context, safehavenUserID string) (identity.Mapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.mappings[safehavenUserID]
	if !ok {
		return identity.Mapping{}, safehaven_errors.ErrNotFound
	}
	return m, nil
}

func (f *fakeIdentityRepo) Update(ctx context.Context, m *identity.Mapping) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.mappings[m.SafehavenUserID]; !ok {
		return safehaven_errors.ErrNotFound
	}
	f.mappings[m.SafehavenUserID] = *m
	return nil
}

func (f *fakeIdentityRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status identity.MappingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, m := range f.mappings {
		if m.ID == id {
			m.Status = status
			f.mappings[key] = m
			return nil
		}
	}
	return safehaven_errors.ErrNotFound
}

// fakeTokenRepo records status flips without real rows.
type fakeTokenRepo struct {
	mu               sync.Mutex
	revokedValues    []string
	revokedMappings  []uuid.UUID
	expiredValues    []string
	lastStatusChange token.Status
}

func (f *fakeTokenRepo) CreateAccessToken(ctx context.Context, t *token.AccessToken) error { return nil }
func (f *fakeTokenRepo) CreateRefreshToken(ctx context.Context, t *token.RefreshToken) error {
	return nil
}

func (f *fakeTokenRepo) UpdateAccessTokenStatusByValue(ctx context.Context, tokenValue string, status token.Status) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastStatusChange = status
	if status == token.StatusExpired {
		f.expiredValues = append(f.expiredValues, tokenValue)
	} else {
		f.revokedValues = append(f.revokedValues, tokenValue)
	}
	return 1, nil
}

func (f *fakeTokenRepo) UpdateStatusByMapping(ctx context.Context, identityMappingID uuid.UUID, status token.Status) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokedMappings = append(f.revokedMappings, identityMappingID)
	return 2, nil
}

func (f *fakeTokenRepo) ExpireAccessTokensBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

// fakeAccountRepo is an in-memory SafeHavenRepository keyed by reference.
type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]account.SafeHaven
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[string]account.SafeHaven)}
}

func (f *fakeAccountRepo) Create(ctx context.Context, s *account.SafeHaven) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.accounts[s.Reference]; exists {
		return safehaven_errors.ErrAlreadyExists
	}
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	f.accounts[s.Reference] = *s
	return nil
}

func (f *fakeAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (account.SafeHaven, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.accounts {
		if s.ID == id {
			return s, nil
		}
	}
	return account.SafeHaven{}, safehaven_errors.ErrNotFound
}

func (f *fakeAccountRepo) GetByReference(ctx context.Context, reference string) (account.SafeHaven, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.accounts[reference]
	if !ok {
		return account.SafeHaven{}, safehaven_errors.ErrNotFound
	}
	return s, nil
}

func (f *fakeAccountRepo) List(ctx context.Context, page, limit int) ([]account.SafeHaven, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]account.SafeHaven, 0, len(f.accounts))
	for _, s := range f.accounts {
		out = append(out, s)
	}
	return out, int64(len(out)), nil
}

func (f *fakeAccountRepo) Update(ctx context.Context, s *account.SafeHaven) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[s.Reference]; !ok {
		return safehaven_errors.ErrNotFound
	}
	f.accounts[s.Reference] = *s
	return nil
}

func (f *fakeAccountRepo) UpdateStatus(ctx context.Context, reference string, status account.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.accounts[reference]
	if !ok {
		return safehaven_errors.ErrNotFound
	}
	s.Status = status
	f.accounts[reference] = s
	return nil
}

func (f *fakeAccountRepo) CreditBalance(ctx context.Context, reference string, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.accounts[reference]
	if !ok {
		return safehaven_errors.ErrNotFound
	}
	s.Balance += amount
	f.accounts[reference] = s
	return nil
}

// inlineExecutor runs submitted tasks synchronously so tests are
// deterministic.
type inlineExecutor struct{}

func (inlineExecutor) Submit(task func()) error {
	task()
	return nil
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"safehaven-service/internal/config"
	"safehaven-service/internal/domain/identity"
	"safehaven-service/internal/domain/webhook"
	"safehaven-service/internal/services"
	safehaven_errors "safehaven-service/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret    = "whsec_handler_test"
	eventIDHeader = "X-SafeHaven-Event-Id"
	sigHeader     = "X-SafeHaven-Signature"
)

type memoryWebhookRepo struct {
	mu     sync.Mutex
	events map[string]webhook.EventLog
}

func newMemoryWebhookRepo() *memoryWebhookRepo {
	return &memoryWebhookRepo{events: make(map[string]webhook.EventLog)}
}

func (m *memoryWebhookRepo) Create(ctx context.Context, e *webhook.EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.events[e.EventID]; exists {
		return safehaven_errors.ErrAlreadyExists
	}
	e.CreatedAt = time.Now()
	m.events[e.EventID] = *e
	return nil
}

func (m *memoryWebhookRepo) GetByEventID(ctx context.Context, eventID string) (webhook.EventLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok {
		return webhook.EventLog{}, safehaven_errors.ErrNotFound
	}
	return e, nil
}

func (m *memoryWebhookRepo) Update(ctx context.Context, e *webhook.EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[e.EventID]; !ok {
		return safehaven_errors.ErrNotFound
	}
	m.events[e.EventID] = *e
	return nil
}

func (m *memoryWebhookRepo) CountByProcessingStatus(ctx context.Context, status webhook.ProcessingStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.events {
		if e.ProcessingStatus == status {
			n++
		}
	}
	return n, nil
}

func (m *memoryWebhookRepo) FindFailedReadyForRetry(ctx context.Context, maxAttempts int, failedBefore time.Time, limit int) ([]webhook.EventLog, error) {
	return nil, nil
}

func (m *memoryWebhookRepo) FindStaleProcessing(ctx context.Context, startedBefore time.Time, limit int) ([]webhook.EventLog, error) {
	return nil, nil
}

func (m *memoryWebhookRepo) FindByTimeRange(ctx context.Context, start, end time.Time, limit int) ([]webhook.EventLog, error) {
	return nil, nil
}

func (m *memoryWebhookRepo) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

type memoryIdentityRepo struct {
	mu       sync.Mutex
	mappings map[string]identity.Mapping
}

func newMemoryIdentityRepo() *memoryIdentityRepo {
	return &memoryIdentityRepo{mappings: make(map[string]identity.Mapping)}
}

func (m *memoryIdentityRepo) Create(ctx context.Context, mp *identity.Mapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.mappings[mp.SafehavenUserID]; exists {
		return safehaven_errors.ErrAlreadyExists
	}
	m.mappings[mp.SafehavenUserID] = *mp
	return nil
}

func (m *memoryIdentityRepo) GetBySafehavenUserID(ctx context.Context, safehavenUserID string) (identity.Mapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mp, ok := m.mappings[safehavenUserID]
	if !ok {
		return identity.Mapping{}, safehaven_errors.ErrNotFound
	}
	return mp, nil
}

func (m *memoryIdentityRepo) Update(ctx context.Context, mp *identity.Mapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mappings[mp.SafehavenUserID] = *mp
	return nil
}

func (m *memoryIdentityRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status identity.MappingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, mp := range m.mappings {
		if mp.ID == id {
			mp.Status = status
			m.mappings[key] = mp
			return nil
		}
	}
	return safehaven_errors.ErrNotFound
}

// inlineExecutor processes each submitted event before the HTTP response is
// written, which keeps assertions about terminal state deterministic.
type inlineExecutor struct{}

func (inlineExecutor) Submit(task func()) error {
	task()
	return nil
}

// asyncExecutor parks tasks instead of running them, for tests that assert
// on the pre-processing state of a row.
type asyncExecutor struct {
	mu    sync.Mutex
	tasks []func()
}

func (a *asyncExecutor) Submit(task func()) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tasks = append(a.tasks, task)
	return nil
}

func (a *asyncExecutor) runAll() {
	a.mu.Lock()
	tasks := a.tasks
	a.tasks = nil
	a.mu.Unlock()
	for _, task := range tasks {
		task()
	}
}

type fixture struct {
	router    *gin.Engine
	repo      *memoryWebhookRepo
	validator *services.SignatureValidator
	exec      services.Executor
}

func newFixture(t *testing.T, exec services.Executor) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newMemoryWebhookRepo()
	validator := services.NewSignatureValidator(testSecret, nil)
	idempotency := services.NewIdempotencyService(repo, nil)
	identitySvc := services.NewIdentityService(newMemoryIdentityRepo(), nil)

	registry := services.NewHandlerRegistry(nil)
	registry.Register("payment.failed", func(ctx context.Context, payload map[string]interface{}, eventLog *webhook.EventLog) error {
		return safehaven_errors.ErrConflict
	})
	eventRouter := services.NewEventRouter(registry, nil)
	processing := services.NewProcessingService(repo, eventRouter, exec, nil, nil)

	cfg := config.WebhookConfig{
		Secret:          testSecret,
		EventIDHeader:   eventIDHeader,
		SignatureHeader: sigHeader,
	}
	h := NewWebhookHandler(validator, idempotency, processing, identitySvc, cfg, nil)

	r := gin.New()
	r.POST("/api/v1/safehaven/webhooks", h.Receive)
	r.GET("/api/v1/safehaven/webhooks/health", h.Health)

	return &fixture{router: r, repo: repo, validator: validator, exec: exec}
}

func (f *fixture) post(eventID, payload string, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/safehaven/webhooks", bytes.NewBufferString(payload))
	if eventID != "" {
		req.Header.Set(eventIDHeader, eventID)
	}
	if signature != "" {
		req.Header.Set(sigHeader, signature)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) postSigned(eventID, payload string) *httptest.ResponseRecorder {
	return f.post(eventID, payload, f.validator.Sign([]byte(payload)))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWebhookReceive_AcceptsAndProcesses(t *testing.T) {
	f := newFixture(t, inlineExecutor{})
	payload := `{"type":"identity.created","user_id":"sh-user-1"}`

	rec := f.postSigned("evt-1", payload)
	require.Equal(t, http.StatusAccepted, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "accepted", body["status"])
	assert.Equal(t, "evt-1", body["eventId"])

	stored, err := f.repo.GetByEventID(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.Equal(t, webhook.ProcessingSuccess, stored.ProcessingStatus)
	assert.Equal(t, webhook.SignatureValid, stored.SignatureStatus)
	assert.Equal(t, "identity.created", stored.EventType)
	assert.Equal(t, 1, stored.AttemptCount)
}

// Redelivery of a processed event is acknowledged with 200 and the original
// processing timestamp, and does not run handlers again.
func TestWebhookReceive_SuccessReplay(t *testing.T) {
	f := newFixture(t, inlineExecutor{})
	payload := `{"type":"identity.created","user_id":"sh-user-1"}`

	require.Equal(t, http.StatusAccepted, f.postSigned("evt-1", payload).Code)

	rec := f.postSigned("evt-1", payload)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Event already processed", body["message"])
	assert.Equal(t, "evt-1", body["eventId"])
	assert.NotEmpty(t, body["processedAt"])

	stored, err := f.repo.GetByEventID(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.AttemptCount, "replay must not reprocess")
}

func TestWebhookReceive_MissingHeaders(t *testing.T) {
	f := newFixture(t, inlineExecutor{})
	payload := `{"type":"identity.created"}`

	rec := f.post("", payload, f.validator.Sign([]byte(payload)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_EVENT_ID", decode(t, rec)["code"])

	rec = f.post("evt-1", payload, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_SIGNATURE", decode(t, rec)["code"])

	assert.Zero(t, f.repo.size(), "rejected deliveries must leave no rows")
}

// An invalid signature leaves no residue, so a later correctly signed
// delivery of the same event id is accepted and processed.
func TestWebhookReceive_InvalidSignatureLeavesNoResidue(t *testing.T) {
	f := newFixture(t, inlineExecutor{})
	payload := `{"type":"payment.completed","user_id":"sh-user-2"}`

	rec := f.post("evt-2", payload, "deadbeef")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_SIGNATURE", decode(t, rec)["code"])
	assert.Zero(t, f.repo.size())

	rec = f.postSigned("evt-2", payload)
	require.Equal(t, http.StatusAccepted, rec.Code)

	stored, err := f.repo.GetByEventID(context.Background(), "evt-2")
	require.NoError(t, err)
	assert.Equal(t, webhook.ProcessingSuccess, stored.ProcessingStatus)
}

// Two deliveries racing on the same event id: one is accepted, the other is
// told 409, and exactly one processing attempt happens.
func TestWebhookReceive_ConcurrentDuplicateDeliveries(t *testing.T) {
	exec := &asyncExecutor{}
	f := newFixture(t, exec)
	payload := `{"type":"payment.completed","user_id":"sh-user-3"}`
	signature := f.validator.Sign([]byte(payload))

	const n = 8
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = f.post("evt-race", payload, signature).Code
		}(i)
	}
	wg.Wait()

	accepted, conflicted := 0, 0
	for _, code := range codes {
		switch code {
		case http.StatusAccepted:
			accepted++
		case http.StatusConflict:
			conflicted++
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, n-1, conflicted)

	exec.runAll()
	stored, err := f.repo.GetByEventID(context.Background(), "evt-race")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.AttemptCount)
	assert.Equal(t, webhook.ProcessingSuccess, stored.ProcessingStatus)
}

// While a row is still PENDING or PROCESSING, a redelivery gets 409.
func TestWebhookReceive_DuplicateWhileInFlight(t *testing.T) {
	exec := &asyncExecutor{}
	f := newFixture(t, exec)
	payload := `{"type":"payment.completed"}`

	require.Equal(t, http.StatusAccepted, f.postSigned("evt-3", payload).Code)

	rec := f.postSigned("evt-3", payload)
	require.Equal(t, http.StatusConflict, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "duplicate", body["status"])
	assert.Equal(t, "evt-3", body["eventId"])
}

// Unknown event types are accepted and reach SUCCESS through the default
// handler.
func TestWebhookReceive_UnknownEventType(t *testing.T) {
	f := newFixture(t, inlineExecutor{})
	payload := `{"type":"totally.unknown.event","data":{}}`

	require.Equal(t, http.StatusAccepted, f.postSigned("evt-4", payload).Code)

	stored, err := f.repo.GetByEventID(context.Background(), "evt-4")
	require.NoError(t, err)
	assert.Equal(t, "totally.unknown.event", stored.EventType)
	assert.Equal(t, webhook.ProcessingSuccess, stored.ProcessingStatus)
}

func TestWebhookReceive_PayloadWithoutType(t *testing.T) {
	f := newFixture(t, inlineExecutor{})
	payload := `{"data":{"reference":"SH-1"}}`

	require.Equal(t, http.StatusAccepted, f.postSigned("evt-5", payload).Code)

	stored, err := f.repo.GetByEventID(context.Background(), "evt-5")
	require.NoError(t, err)
	assert.Equal(t, "unknown", stored.EventType)
}

func TestWebhookReceive_HandlerFailureStillAccepted(t *testing.T) {
	f := newFixture(t, inlineExecutor{})
	payload := `{"type":"payment.failed","reference":"SH-2"}`

	// The ingress contract is acceptance, not processing success.
	require.Equal(t, http.StatusAccepted, f.postSigned("evt-6", payload).Code)

	stored, err := f.repo.GetByEventID(context.Background(), "evt-6")
	require.NoError(t, err)
	assert.Equal(t, webhook.ProcessingFailed, stored.ProcessingStatus)
	assert.NotEmpty(t, stored.ErrorMessage)
}

func TestWebhookHealth(t *testing.T) {
	f := newFixture(t, inlineExecutor{})
	require.Equal(t, http.StatusAccepted, f.postSigned("evt-7", `{"type":"identity.created"}`).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/safehaven/webhooks/health", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["signatureValidatorConfigured"])

	stats, ok := body["statistics"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), stats["SUCCESS"])
}

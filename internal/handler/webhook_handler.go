package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"safehaven-service/internal/config"
	"safehaven-service/internal/domain/webhook"
	"safehaven-service/internal/services"
	"safehaven-service/internal/transport/httpdto"
	"safehaven-service/pkg/logger"

	"github.com/gin-gonic/gin"
)

// WebhookHandler is the ingress boundary for SafeHaven webhook deliveries.
//
// Per-request sequence: extract headers, read raw body, idempotency
// pre-check, signature validation, durable create (the storage-level unique
// constraint is what makes dedup race-safe), then async submit. The response
// never waits for processing.
type WebhookHandler struct {
	validator   *services.SignatureValidator
	idempotency *services.IdempotencyService
	processing  *services.ProcessingService
	identity    *services.IdentityService
	cfg         config.WebhookConfig
	log         *logger.Logger
}

func NewWebhookHandler(validator *services.SignatureValidator, idempotency *services.IdempotencyService, processing *services.ProcessingService, identity *services.IdentityService, cfg config.WebhookConfig, log *logger.Logger) *WebhookHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &WebhookHandler{
		validator:   validator,
		idempotency: idempotency,
		processing:  processing,
		identity:    identity,
		cfg:         cfg,
		log:         log,
	}
}

func (h *WebhookHandler) Receive(c *gin.Context) {
	ctx := c.Request.Context()

	eventID := c.GetHeader(h.cfg.EventIDHeader)
	if eventID == "" {
		h.log.Warnf("webhook received without event id header %s", h.cfg.EventIDHeader)
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("missing event ID header", "MISSING_EVENT_ID"))
		return
	}

	signature := c.GetHeader(h.cfg.SignatureHeader)
	if signature == "" {
		h.log.Warnf("webhook received without signature header %s for event %s", h.cfg.SignatureHeader, eventID)
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("missing signature header", "MISSING_SIGNATURE"))
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Errorf("error reading webhook payload for event %s: %v", eventID, err)
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("failed to read request body", "UNREADABLE_BODY"))
		return
	}

	// Fast-path check before signature work. Correctness does not depend on
	// this being race-free; the durable create below is the authority.
	existing, found, err := h.idempotency.CheckIdempotency(ctx, eventID)
	if err != nil {
		h.log.Errorf("idempotency check failed for event %s: %v", eventID, err)
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal server error", "INTERNAL"))
		return
	}
	if found {
		switch existing.ProcessingStatus {
		case webhook.ProcessingSuccess:
			c.JSON(http.StatusOK, alreadyProcessed(existing))
			return
		case webhook.ProcessingDuplicate:
			c.JSON(http.StatusConflict, duplicate(eventID))
			return
		}
		// PENDING, PROCESSING or FAILED rows fall through; the create step
		// below resolves the collision.
	}

	// Rejected payloads never reach the event log.
	if !h.validator.Validate(body, signature) {
		h.log.Warnf("invalid signature for event %s", eventID)
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("invalid signature", "INVALID_SIGNATURE"))
		return
	}

	eventType := extractEventType(body)
	mappingID := h.identity.ResolveMappingID(ctx, extractUserID(body))
	headersJSON := marshalHeaders(c.Request.Header)

	eventLog, created, err := h.idempotency.CreateEventLog(ctx, eventID, eventType, string(body), signature, headersJSON, mappingID)
	if err != nil {
		h.log.Errorf("failed to create event log for event %s: %v", eventID, err)
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal server error", "INTERNAL"))
		return
	}
	if !created {
		if eventLog.ProcessingStatus == webhook.ProcessingSuccess {
			c.JSON(http.StatusOK, alreadyProcessed(eventLog))
			return
		}
		c.JSON(http.StatusConflict, duplicate(eventID))
		return
	}

	eventLog, err = h.idempotency.RecordSignatureValidation(ctx, eventLog, true)
	if err != nil {
		h.log.Errorf("failed to record signature validation for event %s: %v", eventID, err)
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal server error", "INTERNAL"))
		return
	}

	if err := h.processing.Submit(eventLog); err != nil {
		h.log.Errorf("failed to submit event %s for processing: %v", eventID, err)
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal server error", "INTERNAL"))
		return
	}

	h.log.Infof("webhook event accepted: eventId=%s type=%s", eventID, eventType)
	c.JSON(http.StatusAccepted, httpdto.WebhookAccepted{
		Status:  "accepted",
		Message: "Event queued for processing",
		EventID: eventID,
	})
}

// Health reports processing statistics and validator configuration.
func (h *WebhookHandler) Health(c *gin.Context) {
	stats, err := h.processing.Statistics(c.Request.Context())
	if err != nil {
		h.log.Errorf("error retrieving webhook statistics: %v", err)
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("unhealthy", "INTERNAL"))
		return
	}

	out := make(map[string]int64, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	c.JSON(http.StatusOK, httpdto.WebhookHealth{
		Status:                       "healthy",
		Statistics:                   out,
		SignatureValidatorConfigured: h.validator.IsConfigured(),
	})
}

func alreadyProcessed(e webhook.EventLog) httpdto.WebhookAlreadyProcessed {
	processedAt := "unknown"
	if e.ProcessedAt != nil {
		processedAt = e.ProcessedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return httpdto.WebhookAlreadyProcessed{
		Status:      "success",
		Message:     "Event already processed",
		EventID:     e.EventID,
		ProcessedAt: processedAt,
	}
}

func duplicate(eventID string) httpdto.WebhookDuplicate {
	return httpdto.WebhookDuplicate{
		Status:  "duplicate",
		Message: "Event ID already exists",
		EventID: eventID,
	}
}

// extractEventType pulls the type field from the raw payload, best effort.
func extractEventType(body []byte) string {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "unknown"
	}
	for _, key := range []string{"type", "event_type", "eventType"} {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	return "unknown"
}

// extractUserID pulls the SafeHaven user id if the event is user-scoped.
func extractUserID(body []byte) string {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if v, ok := payload["user_id"].(string); ok {
		return v
	}
	return ""
}

func marshalHeaders(headers http.Header) string {
	data, err := json.Marshal(headers)
	if err != nil {
		return "{}"
	}
	return string(data)
}

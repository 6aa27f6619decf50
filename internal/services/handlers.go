package services

import (
	"context"
	"fmt"

	"safehaven-service/internal/domain/webhook"
	"safehaven-service/pkg/logger"
)

// RegisterWebhookHandlers populates the registry with the fixed table of
// SafeHaven event bindings. Called once at startup.
func RegisterWebhookHandlers(registry *HandlerRegistry, identitySvc *IdentityService, tokenSvc *TokenService, accountSvc *AccountService, log *logger.Logger) {
	if log == nil {
		log = logger.NewNop()
	}
	h := &webhookHandlers{
		identity: identitySvc,
		tokens:   tokenSvc,
		accounts: accountSvc,
		log:      log,
	}

	registry.Register("identity.created", h.identityCreated)
	registry.Register("identity.updated", h.identityUpdated)
	registry.Register("identity.deleted", h.identityDeleted)

	registry.Register("token.revoked", h.tokenRevoked)
	registry.Register("token.expired", h.tokenExpired)

	registry.Register("payment.completed", h.paymentCompleted)
	registry.Register("payment.failed", h.paymentFailed)

	registry.Register("account.suspended", h.accountSuspended)
	registry.Register("account.activated", h.accountActivated)

	// Catch-all for identity events SafeHaven adds later; upserts keep the
	// mapping fresh even for subtypes we do not know yet.
	registry.Register("identity.*", h.identityUpdated)

	log.Infof("registered %d webhook event handlers", registry.Size())
}

type webhookHandlers struct {
	identity *IdentityService
	tokens   *TokenService
	accounts *AccountService
	log      *logger.Logger
}

func (h *webhookHandlers) identityCreated(ctx context.Context, payload map[string]interface{}, eventLog *webhook.EventLog) error {
	userID := stringField(payload, "user_id")
	if userID == "" {
		return fmt.Errorf("missing user_id in identity.created event")
	}
	_, err := h.identity.Upsert(ctx, userID, stringField(payload, "internal_user_id"), stringField(payload, "email"))
	if err != nil {
		return err
	}
	h.log.Infof("identity mapping upserted for SafeHaven user %s (eventId=%s)", userID, eventLog.EventID)
	return nil
}

func (h *webhookHandlers) identityUpdated(ctx context.Context, payload map[string]interface{}, eventLog *webhook.EventLog) error {
	userID := stringField(payload, "user_id")
	if userID == "" {
		return fmt.Errorf("missing user_id in %s event", eventLog.EventType)
	}
	_, err := h.identity.Upsert(ctx, userID, stringField(payload, "internal_user_id"), stringField(payload, "email"))
	return err
}

func (h *webhookHandlers) identityDeleted(ctx context.Context, payload map[string]interface{}, eventLog *webhook.EventLog) error {
	userID := stringField(payload, "user_id")
	if userID == "" {
		return fmt.Errorf("missing user_id in identity.deleted event")
	}
	return h.identity.MarkDeleted(ctx, userID)
}

func (h *webhookHandlers) tokenRevoked(ctx context.Context, payload map[string]interface{}, eventLog *webhook.EventLog) error {
	if tokenValue := stringField(payload, "token"); tokenValue != "" {
		_, err := h.tokens.RevokeByValue(ctx, tokenValue)
		return err
	}
	if eventLog.IdentityMappingID != nil {
		_, err := h.tokens.RevokeByMapping(ctx, *eventLog.IdentityMappingID)
		return err
	}
	return fmt.Errorf("token.revoked event carries neither token nor resolvable user")
}

func (h *webhookHandlers) tokenExpired(ctx context.Context, payload map[string]interface{}, eventLog *webhook.EventLog) error {
	if tokenValue := stringField(payload, "token"); tokenValue != "" {
		_, err := h.tokens.ExpireByValue(ctx, tokenValue)
		return err
	}
	return fmt.Errorf("missing token in token.expired event")
}

func (h *webhookHandlers) paymentCompleted(ctx context.Context, payload map[string]interface{}, eventLog *webhook.EventLog) error {
	reference := stringField(payload, "reference")
	if reference == "" {
		return fmt.Errorf("missing reference in payment.completed event")
	}
	amount := int64Field(payload, "amount")
	if amount <= 0 {
		return fmt.Errorf("missing or invalid amount in payment.completed event")
	}
	if err := h.accounts.Credit(ctx, reference, amount); err != nil {
		return err
	}
	h.log.Infof("credited %d to account %s (eventId=%s)", amount, reference, eventLog.EventID)
	return nil
}

func (h *webhookHandlers) paymentFailed(ctx context.Context, payload map[string]interface{}, eventLog *webhook.EventLog) error {
	// No state change on our side; the failure is recorded for audit via the
	// event log row itself.
	h.log.Warnf("payment failed for account %s: %s (eventId=%s)",
		stringField(payload, "reference"), stringField(payload, "reason"), eventLog.EventID)
	return nil
}

func (h *webhookHandlers) accountSuspended(ctx context.Context, payload map[string]interface{}, eventLog *webhook.EventLog) error {
	reference := stringField(payload, "reference")
	if reference == "" {
		return fmt.Errorf("missing reference in account.suspended event")
	}
	if err := h.accounts.Suspend(ctx, reference); err != nil {
		return err
	}
	// A suspended account keeps no live credentials.
	if eventLog.IdentityMappingID != nil {
		if _, err := h.tokens.RevokeByMapping(ctx, *eventLog.IdentityMappingID); err != nil {
			return err
		}
	}
	return nil
}

func (h *webhookHandlers) accountActivated(ctx context.Context, payload map[string]interface{}, eventLog *webhook.EventLog) error {
	reference := stringField(payload, "reference")
	if reference == "" {
		return fmt.Errorf("missing reference in account.activated event")
	}
	return h.accounts.Activate(ctx, reference)
}

func stringField(payload map[string]interface{}, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func int64Field(payload map[string]interface{}, key string) int64 {
	switch v := payload[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

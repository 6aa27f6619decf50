package services

import (
	"context"
	"errors"
	"fmt"

	"safehaven-service/internal/domain/webhook"
	"safehaven-service/internal/repository"
	safehaven_errors "safehaven-service/pkg/errors"
	"safehaven-service/pkg/logger"

	"github.com/google/uuid"
)

// IdempotencyService is the single authority on whether a SafeHaven event has
// been seen before. Duplicate detection rests on the unique constraint over
// event_id: the pre-check is only a fast path, the insert is the truth.
type IdempotencyService struct {
	repo repository.WebhookEventRepository
	log  *logger.Logger
}

func NewIdempotencyService(repo repository.WebhookEventRepository, log *logger.Logger) *IdempotencyService {
	if log == nil {
		log = logger.NewNop()
	}
	return &IdempotencyService{repo: repo, log: log}
}

// CheckIdempotency looks up an existing event log row without mutating state.
// Returns (record, true) when the event id has been seen before.
func (s *IdempotencyService) CheckIdempotency(ctx context.Context, eventID string) (webhook.EventLog, bool, error) {
	if eventID == "" {
		return webhook.EventLog{}, false, fmt.Errorf("%w: empty event id", safehaven_errors.ErrInvalidInput)
	}

	existing, err := s.repo.GetByEventID(ctx, eventID)
	if err != nil {
		if errors.Is(err, safehaven_errors.ErrNotFound) {
			return webhook.EventLog{}, false, nil
		}
		return webhook.EventLog{}, false, err
	}

	s.log.Infof("event %s already exists with status %s", eventID, existing.ProcessingStatus)
	return existing, true, nil
}

// CreateEventLog inserts the durable row for a first-seen event. The returned
// created flag distinguishes the two expected outcomes:
//
//	created == true  — this caller owns the event and must process it
//	created == false — another delivery won the insert race; the returned
//	                   record is the existing row, already advanced to
//	                   DUPLICATE if it was not terminal yet
func (s *IdempotencyService) CreateEventLog(ctx context.Context, eventID, eventType, payload, signature, headers string, identityMappingID *uuid.UUID) (webhook.EventLog, bool, error) {
	if eventID == "" || eventType == "" {
		return webhook.EventLog{}, false, fmt.Errorf("%w: event id and type are required", safehaven_errors.ErrInvalidInput)
	}

	eventLog := webhook.EventLog{
		ID:                uuid.New(),
		EventID:           eventID,
		EventType:         eventType,
		IdentityMappingID: identityMappingID,
		Signature:         signature,
		SignatureStatus:   webhook.SignaturePending,
		ProcessingStatus:  webhook.ProcessingPending,
		Payload:           payload,
		Headers:           headers,
	}

	err := s.repo.Create(ctx, &eventLog)
	if err == nil {
		s.log.Infof("created webhook event log: eventId=%s type=%s", eventID, eventType)
		return eventLog, true, nil
	}
	if !errors.Is(err, safehaven_errors.ErrAlreadyExists) {
		return webhook.EventLog{}, false, err
	}

	// Lost the insert race. Fetch the winner's row and mark the collision.
	existing, getErr := s.repo.GetByEventID(ctx, eventID)
	if getErr != nil {
		return webhook.EventLog{}, false, fmt.Errorf("event %s exists but cannot be retrieved: %w", eventID, getErr)
	}

	if !existing.ProcessingStatus.Terminal() {
		existing.MarkDuplicate()
		if updErr := s.repo.Update(ctx, &existing); updErr != nil {
			s.log.Errorf("failed to mark event %s as duplicate: %v", eventID, updErr)
		}
	}

	s.log.Warnf("duplicate webhook event detected on create: eventId=%s", eventID)
	return existing, false, nil
}

// RecordSignatureValidation persists the signature verification outcome.
func (s *IdempotencyService) RecordSignatureValidation(ctx context.Context, eventLog webhook.EventLog, isValid bool) (webhook.EventLog, error) {
	if isValid {
		eventLog.SignatureStatus = webhook.SignatureValid
	} else {
		eventLog.SignatureStatus = webhook.SignatureInvalid
		s.log.Warnf("invalid signature recorded for event %s", eventLog.EventID)
	}
	if err := s.repo.Update(ctx, &eventLog); err != nil {
		return eventLog, err
	}
	return eventLog, nil
}

// GetEventLog fetches a row by SafeHaven event id.
func (s *IdempotencyService) GetEventLog(ctx context.Context, eventID string) (webhook.EventLog, error) {
	return s.repo.GetByEventID(ctx, eventID)
}

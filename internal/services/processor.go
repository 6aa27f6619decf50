package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"safehaven-service/internal/domain/webhook"
	"safehaven-service/internal/repository"
	"safehaven-service/pkg/events"
	"safehaven-service/pkg/logger"
)

// ProcessedChannel carries an envelope for every webhook that reaches
// SUCCESS, so downstream consumers can react without polling the log.
const ProcessedChannel = "safehaven:webhooks:processed"

// Executor decouples webhook acceptance from processing. The pool in
// internal/dispatch is the production implementation; tests use an inline
// one.
type Executor interface {
	Submit(task func()) error
}

// ProcessingService runs the async half of the pipeline. Every state
// transition is persisted immediately so a crash mid-pipeline leaves an
// inspectable, resumable row.
type ProcessingService struct {
	repo      repository.WebhookEventRepository
	router    *EventRouter
	exec      Executor
	publisher events.Publisher
	log       *logger.Logger
}

func NewProcessingService(repo repository.WebhookEventRepository, router *EventRouter, exec Executor, publisher events.Publisher, log *logger.Logger) *ProcessingService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ProcessingService{
		repo:      repo,
		router:    router,
		exec:      exec,
		publisher: publisher,
		log:       log,
	}
}

// Submit enqueues an event for async processing and returns immediately.
func (s *ProcessingService) Submit(eventLog webhook.EventLog) error {
	return s.exec.Submit(func() {
		s.Process(context.Background(), eventLog)
	})
}

// Process executes the processing pipeline for one event log row:
// mark PROCESSING, gate on signature status, parse, route, then record the
// terminal outcome.
func (s *ProcessingService) Process(ctx context.Context, eventLog webhook.EventLog) {
	s.log.Infof("processing webhook event: eventId=%s type=%s attempt=%d",
		eventLog.EventID, eventLog.EventType, eventLog.AttemptCount+1)

	eventLog.MarkProcessingStarted()
	if err := s.repo.Update(ctx, &eventLog); err != nil {
		s.log.Errorf("failed to mark event %s as processing: %v", eventLog.EventID, err)
		return
	}

	// Never run handlers for a row whose signature was not confirmed valid.
	if eventLog.SignatureStatus != webhook.SignatureValid {
		s.fail(ctx, &eventLog, fmt.Sprintf("invalid signature status: %s", eventLog.SignatureStatus))
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(eventLog.Payload), &payload); err != nil {
		s.fail(ctx, &eventLog, "failed to parse webhook payload: "+err.Error())
		return
	}

	if err := s.router.RouteEvent(ctx, eventLog.EventType, payload, &eventLog); err != nil {
		s.fail(ctx, &eventLog, "error processing event: "+err.Error())
		return
	}

	eventLog.MarkSuccess()
	if err := s.repo.Update(ctx, &eventLog); err != nil {
		s.log.Errorf("failed to persist success for event %s: %v", eventLog.EventID, err)
		return
	}
	s.log.Infof("successfully processed webhook event: eventId=%s", eventLog.EventID)

	s.publishProcessed(ctx, eventLog)
}

// Statistics returns per-status row counts for the health endpoint.
func (s *ProcessingService) Statistics(ctx context.Context) (map[webhook.ProcessingStatus]int64, error) {
	stats := make(map[webhook.ProcessingStatus]int64, 5)
	for _, status := range []webhook.ProcessingStatus{
		webhook.ProcessingPending,
		webhook.ProcessingInProgress,
		webhook.ProcessingSuccess,
		webhook.ProcessingFailed,
		webhook.ProcessingDuplicate,
	} {
		count, err := s.repo.CountByProcessingStatus(ctx, status)
		if err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, nil
}

func (s *ProcessingService) fail(ctx context.Context, eventLog *webhook.EventLog, message string) {
	s.log.Errorf("webhook event %s failed: %s", eventLog.EventID, message)
	eventLog.MarkFailed(message)
	if err := s.repo.Update(ctx, eventLog); err != nil {
		// Second-order failure: the terminal status could not be persisted.
		s.log.Errorf("failed to persist failure for event %s: %v", eventLog.EventID, err)
	}
}

func (s *ProcessingService) publishProcessed(ctx context.Context, eventLog webhook.EventLog) {
	if s.publisher == nil {
		return
	}
	occurredAt := time.Now()
	if eventLog.ProcessedAt != nil {
		occurredAt = *eventLog.ProcessedAt
	}
	env := events.Envelope{
		EventType:  eventLog.EventType,
		EventID:    eventLog.EventID,
		OccurredAt: occurredAt.UTC(),
		Payload:    json.RawMessage(eventLog.Payload),
	}
	if err := s.publisher.Publish(ctx, ProcessedChannel, env); err != nil {
		s.log.Errorf("failed to publish processed event %s: %v", eventLog.EventID, err)
	}
}

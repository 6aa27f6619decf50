package services

import (
	"context"
	"fmt"

	"safehaven-service/internal/domain/webhook"
	"safehaven-service/pkg/logger"
)

// ProcessingError wraps any handler failure so the processing service only
// has to deal with one error shape regardless of which handler broke.
type ProcessingError struct {
	EventType string
	Err       error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("handler execution failed for event type %s: %v", e.EventType, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// EventRouter resolves the handler for an event type and invokes it. A bug in
// one handler is contained: panics are recovered and surfaced as a
// ProcessingError, and registry state is never mutated during routing.
type EventRouter struct {
	registry *HandlerRegistry
	log      *logger.Logger
}

func NewEventRouter(registry *HandlerRegistry, log *logger.Logger) *EventRouter {
	if log == nil {
		log = logger.NewNop()
	}
	return &EventRouter{registry: registry, log: log}
}

func (r *EventRouter) RouteEvent(ctx context.Context, eventType string, payload map[string]interface{}, eventLog *webhook.EventLog) error {
	handler, ok := r.registry.Handler(eventType)
	if !ok {
		r.log.Warnf("no handler found for event type %s, using default handler", eventType)
		handler = r.registry.DefaultHandler()
	}

	if err := invoke(ctx, handler, payload, eventLog); err != nil {
		r.log.Errorf("error in handler for event type %s: %v", eventType, err)
		return &ProcessingError{EventType: eventType, Err: err}
	}
	return nil
}

// invoke runs a handler with panic containment.
func invoke(ctx context.Context, handler HandlerFunc, payload map[string]interface{}, eventLog *webhook.EventLog) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return handler(ctx, payload, eventLog)
}

package services

import (
	"context"
	"strings"

	"safehaven-service/internal/domain/webhook"
	"safehaven-service/pkg/logger"
)

// HandlerFunc processes one parsed webhook payload. The event log row is
// passed for context (event id, mapping reference), not for mutation; status
// transitions belong to the processing service.
type HandlerFunc func(ctx context.Context, payload map[string]interface{}, eventLog *webhook.EventLog) error

type wildcardEntry struct {
	prefix  string // "identity" for the pattern "identity.*"
	handler HandlerFunc
}

// HandlerRegistry maps SafeHaven event types to handlers. Exact types are
// checked first, then wildcard patterns of the form "prefix.*" in
// registration order. Unknown types fall through to a logging no-op so an
// unrecognized event never fails the pipeline.
//
// The registry is populated once at startup and treated as immutable after.
type HandlerRegistry struct {
	exact     map[string]HandlerFunc
	wildcards []wildcardEntry
	log       *logger.Logger
}

func NewHandlerRegistry(log *logger.Logger) *HandlerRegistry {
	if log == nil {
		log = logger.NewNop()
	}
	return &HandlerRegistry{
		exact: make(map[string]HandlerFunc),
		log:   log,
	}
}

// Register binds an event type, or a "prefix.*" pattern, to a handler.
func (r *HandlerRegistry) Register(eventType string, handler HandlerFunc) {
	if strings.HasSuffix(eventType, ".*") {
		r.wildcards = append(r.wildcards, wildcardEntry{
			prefix:  strings.TrimSuffix(eventType, ".*"),
			handler: handler,
		})
		return
	}
	r.exact[eventType] = handler
}

// Handler resolves the handler for an event type. The second return value is
// false when neither an exact nor a wildcard binding matches.
func (r *HandlerRegistry) Handler(eventType string) (HandlerFunc, bool) {
	if h, ok := r.exact[eventType]; ok {
		return h, true
	}
	for _, w := range r.wildcards {
		if strings.HasPrefix(eventType, w.prefix+".") {
			return w.handler, true
		}
	}
	return nil, false
}

// DefaultHandler acknowledges event types nothing is registered for.
func (r *HandlerRegistry) DefaultHandler() HandlerFunc {
	return func(ctx context.Context, payload map[string]interface{}, eventLog *webhook.EventLog) error {
		r.log.Infof("no handler for event type %s (eventId=%s), acknowledging with default handler",
			eventLog.EventType, eventLog.EventID)
		return nil
	}
}

// Size returns the number of registered bindings.
func (r *HandlerRegistry) Size() int {
	return len(r.exact) + len(r.wildcards)
}

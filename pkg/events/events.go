package events

import (
	"context"
	"encoding/json"
	"time"
)

// Envelope is the shape published for every successfully processed webhook.
type Envelope struct {
	EventType  string          `json:"event_type"`
	EventID    string          `json:"event_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type Handler func(ctx context.Context, env Envelope) error

type Publisher interface {
	Publish(ctx context.Context, channel string, env Envelope) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler Handler) error
}

type Broker interface {
	Publisher
	Subscriber
}

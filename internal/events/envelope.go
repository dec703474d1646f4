// Package events publishes domain events to a message bus. Every transport
// carries the same JSON envelope.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"template-engine/internal/domain"
)

// Envelope wraps an event payload with its routing fields.
type Envelope struct {
	Type        domain.EventType `json:"type"`
	AggregateID string           `json:"aggregateId"`
	OccurredAt  time.Time        `json:"occurredAt"`
	Payload     json.RawMessage  `json:"payload"`
}

func Encode(e domain.Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", e.Type(), err)
	}
	return json.Marshal(Envelope{
		Type:        e.Type(),
		AggregateID: e.AggregateID(),
		OccurredAt:  e.OccurredAt(),
		Payload:     payload,
	})
}

// Decode reverses Encode. Unknown event types are an error.
func Decode(data []byte) (domain.Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var (
		event domain.Event
		err   error
	)
	switch env.Type {
	case domain.EventTemplateCreated:
		var e domain.TemplateCreated
		err = json.Unmarshal(env.Payload, &e)
		event = e
	case domain.EventTemplateVersionPublished:
		var e domain.TemplateVersionPublished
		err = json.Unmarshal(env.Payload, &e)
		event = e
	case domain.EventTemplateArchived:
		var e domain.TemplateArchived
		err = json.Unmarshal(env.Payload, &e)
		event = e
	case domain.EventNotificationDispatched:
		var e domain.NotificationDispatched
		err = json.Unmarshal(env.Payload, &e)
		event = e
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return event, nil
}

// Topic is the destination name for an event type under a prefix.
func Topic(prefix string, t domain.EventType) string {
	return prefix + string(t)
}

// Noop drops every event. It backs the "none" events driver.
type Noop struct{}

func (Noop) Publish(_ context.Context, _ domain.Event) error { return nil }

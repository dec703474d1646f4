package domain

import "time"

// EventType names a domain event kind; it doubles as the message topic suffix.
type EventType string

const (
	EventTemplateCreated          EventType = "template-created"
	EventTemplateVersionPublished EventType = "template-published"
	EventTemplateArchived         EventType = "template-archived"
	EventNotificationDispatched   EventType = "notification-dispatched"
)

// Event is sealed: only the four kinds below implement it.
type Event interface {
	AggregateID() string
	OccurredAt() time.Time
	Type() EventType
	sealed()
}

type TemplateCreated struct {
	TemplateID string    `json:"aggregateId"`
	At         time.Time `json:"occurredAt"`
	Name       string    `json:"name"`
	OrgID      string    `json:"orgId"`
	Channel    Channel   `json:"channel"`
}

type TemplateVersionPublished struct {
	TemplateID string    `json:"aggregateId"`
	At         time.Time `json:"occurredAt"`
	VersionID  string    `json:"versionId"`
	Version    string    `json:"version"`
}

type TemplateArchived struct {
	TemplateID string    `json:"aggregateId"`
	At         time.Time `json:"occurredAt"`
}

type NotificationDispatched struct {
	TemplateID  string          `json:"aggregateId"`
	At          time.Time       `json:"occurredAt"`
	ExecutionID string          `json:"executionId"`
	VersionID   string          `json:"versionId"`
	Status      ExecutionStatus `json:"status"`
}

func (e TemplateCreated) AggregateID() string   { return e.TemplateID }
func (e TemplateCreated) OccurredAt() time.Time { return e.At }
func (e TemplateCreated) Type() EventType       { return EventTemplateCreated }
func (TemplateCreated) sealed()                 {}

func (e TemplateVersionPublished) AggregateID() string   { return e.TemplateID }
func (e TemplateVersionPublished) OccurredAt() time.Time { return e.At }
func (e TemplateVersionPublished) Type() EventType       { return EventTemplateVersionPublished }
func (TemplateVersionPublished) sealed()                 {}

func (e TemplateArchived) AggregateID() string   { return e.TemplateID }
func (e TemplateArchived) OccurredAt() time.Time { return e.At }
func (e TemplateArchived) Type() EventType       { return EventTemplateArchived }
func (TemplateArchived) sealed()                 {}

func (e NotificationDispatched) AggregateID() string   { return e.TemplateID }
func (e NotificationDispatched) OccurredAt() time.Time { return e.At }
func (e NotificationDispatched) Type() EventType       { return EventNotificationDispatched }
func (NotificationDispatched) sealed()                 {}

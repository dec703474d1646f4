package service

import (
	"context"
	"time"

	"template-engine/internal/domain"
)

// TemplateStore persists whole aggregates. Save is a compare-and-swap on the
// aggregate's revision: it fails with CONCURRENCY_CONFLICT when the stored
// revision moved since the aggregate was loaded, and on success calls
// MarkPersisted with the new revision.
type TemplateStore interface {
	Save(ctx context.Context, t *domain.NotificationTemplate) error
	FindByID(ctx context.Context, id string) (*domain.NotificationTemplate, error)
	FindAll(ctx context.Context, q domain.TemplateQuery) (*domain.TemplatePage, error)
}

// ExecutionLog is append-only.
type ExecutionLog interface {
	Save(ctx context.Context, e *domain.NotificationExecution) error
}

// EventPublisher must keep submission order for events with the same aggregate id.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

type Dimensions struct {
	Channel domain.Channel
	Status  string
	OrgID   string
}

type MetricsRecorder interface {
	Increment(ctx context.Context, name string, dims Dimensions)
}

// Cache is advisory. Get returns (nil, nil) on a miss. Put must not replace
// an entry holding a higher revision.
type Cache interface {
	Get(ctx context.Context, id string) (*domain.NotificationTemplate, error)
	Put(ctx context.Context, t *domain.NotificationTemplate, ttl time.Duration) error
	Evict(ctx context.Context, id string) error
}

// StatsReader returns domain.EmptyStats for ids with no recorded activity.
type StatsReader interface {
	GetStats(ctx context.Context, templateID string) (*domain.TemplateStats, error)
}

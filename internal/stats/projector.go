// Package stats projects dispatch events into per-template counters held in
// Redis and serves them back as domain.TemplateStats.
package stats

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"template-engine/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "stats:"
	seenPrefix = "stats:seen:"

	fieldName     = "name"
	fieldTotal    = "total"
	fieldSuccess  = "success"
	fieldError    = "error"
	fieldLastExec = "last_executed_at"

	// SeenTTL bounds how long a processed execution id is remembered for
	// redelivery suppression.
	SeenTTL = 24 * time.Hour
)

// Projector folds domain events into Redis hashes keyed by template id.
type Projector struct {
	client redis.Cmdable
}

func NewProjector(client redis.Cmdable) *Projector {
	return &Projector{client: client}
}

func Key(templateID string) string {
	return keyPrefix + templateID
}

// Apply updates the projection for one event. Dispatches are counted at most
// once per execution id; events that carry nothing for the projection are
// ignored.
func (p *Projector) Apply(ctx context.Context, event domain.Event) error {
	switch e := event.(type) {
	case domain.TemplateCreated:
		if err := p.client.HSet(ctx, Key(e.TemplateID), fieldName, e.Name).Err(); err != nil {
			return fmt.Errorf("stats name %s: %w", e.TemplateID, err)
		}
	case domain.NotificationDispatched:
		return p.countDispatch(ctx, e)
	}
	return nil
}

func (p *Projector) countDispatch(ctx context.Context, e domain.NotificationDispatched) error {
	first, err := p.client.SetNX(ctx, seenPrefix+e.ExecutionID, e.TemplateID, SeenTTL).Result()
	if err != nil {
		return fmt.Errorf("stats dedupe %s: %w", e.ExecutionID, err)
	}
	if !first {
		return nil
	}

	outcome := fieldError
	if e.Status == domain.ExecutionStatusSuccess {
		outcome = fieldSuccess
	}

	key := Key(e.TemplateID)
	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, fieldTotal, 1)
		pipe.HIncrBy(ctx, key, outcome, 1)
		return nil
	})
	if err != nil {
		// Release the marker so a redelivery can count the dispatch.
		if derr := p.client.Del(context.WithoutCancel(ctx), seenPrefix+e.ExecutionID).Err(); derr != nil {
			err = errors.Join(err, derr)
		}
		return fmt.Errorf("stats count %s: %w", e.TemplateID, err)
	}
	return p.advanceLastExecuted(ctx, key, e.At)
}

// advanceLastExecuted only moves the timestamp forward, so a late redelivery
// from another partition cannot rewind it.
func (p *Projector) advanceLastExecuted(ctx context.Context, key string, at time.Time) error {
	current, err := p.client.HGet(ctx, key, fieldLastExec).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("stats last executed %s: %w", key, err)
	}
	if current != "" {
		if prev, perr := time.Parse(time.RFC3339Nano, current); perr == nil && !at.After(prev) {
			return nil
		}
	}
	if err := p.client.HSet(ctx, key, fieldLastExec, at.UTC().Format(time.RFC3339Nano)).Err(); err != nil {
		return fmt.Errorf("stats last executed %s: %w", key, err)
	}
	return nil
}

// GetStats reads the projection. A template that has no entry yet gets
// zeroed counters.
func (p *Projector) GetStats(ctx context.Context, templateID string) (*domain.TemplateStats, error) {
	fields, err := p.client.HGetAll(ctx, Key(templateID)).Result()
	if err != nil {
		return nil, fmt.Errorf("stats read %s: %w", templateID, err)
	}

	stats := domain.EmptyStats(templateID)
	if len(fields) == 0 {
		return stats, nil
	}
	stats.TemplateName = fields[fieldName]
	stats.TotalSent = parseCount(fields[fieldTotal])
	stats.SuccessCount = parseCount(fields[fieldSuccess])
	stats.ErrorCount = parseCount(fields[fieldError])
	if raw := fields[fieldLastExec]; raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			stats.LastExecutedAt = &ts
		}
	}
	return stats, nil
}

func parseCount(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

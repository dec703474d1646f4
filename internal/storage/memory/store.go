// Package memory holds in-process implementations of the template store and
// execution log. They back the "memory" storage driver and service tests.
package memory

import (
	"context"
	"sort"
	"sync"

	apperrors "template-engine/internal/common/errors"
	"template-engine/internal/domain"
)

// TemplateStore keeps aggregate snapshots keyed by id. Callers never share
// memory with stored state: Save copies in, FindByID copies out.
type TemplateStore struct {
	mu        sync.RWMutex
	templates map[string]domain.TemplateSnapshot
}

func NewTemplateStore() *TemplateStore {
	return &TemplateStore{templates: make(map[string]domain.TemplateSnapshot)}
}

func (s *TemplateStore) Save(_ context.Context, t *domain.NotificationTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.templates[t.ID()]
	switch {
	case !exists && t.Revision() != 0:
		return apperrors.NewConcurrencyConflictError(t.ID(), t.Revision())
	case exists && stored.Revision != t.Revision():
		return apperrors.NewConcurrencyConflictError(t.ID(), t.Revision())
	}

	t.MarkPersisted(t.Revision() + 1)
	s.templates[t.ID()] = t.Snapshot()
	return nil
}

func (s *TemplateStore) FindByID(_ context.Context, id string) (*domain.NotificationTemplate, error) {
	s.mu.RLock()
	snap, ok := s.templates[id]
	s.mu.RUnlock()

	if !ok {
		return nil, apperrors.NewTemplateNotFoundError(id)
	}
	return domain.RestoreTemplate(snap)
}

func (s *TemplateStore) FindAll(_ context.Context, q domain.TemplateQuery) (*domain.TemplatePage, error) {
	q = q.Normalized()

	s.mu.RLock()
	matched := make([]*domain.NotificationTemplate, 0)
	for _, snap := range s.templates {
		t, err := domain.RestoreTemplate(snap)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		if q.Matches(t) {
			matched = append(matched, t)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.UpdatedAt().Equal(b.UpdatedAt()) {
			return a.UpdatedAt().After(b.UpdatedAt())
		}
		return a.ID() < b.ID()
	})

	page := &domain.TemplatePage{
		Items: []*domain.NotificationTemplate{},
		Total: int64(len(matched)),
		Page:  q.Page,
		Size:  q.Size,
	}
	start := q.Offset()
	if start >= len(matched) {
		return page, nil
	}
	end := start + q.Size
	if end > len(matched) {
		end = len(matched)
	}
	page.Items = matched[start:end]
	return page, nil
}

// ExecutionLog appends executions in arrival order.
type ExecutionLog struct {
	mu         sync.RWMutex
	executions []domain.NotificationExecution
}

func NewExecutionLog() *ExecutionLog {
	return &ExecutionLog{}
}

func (l *ExecutionLog) Save(_ context.Context, e *domain.NotificationExecution) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.executions = append(l.executions, copyExecution(e))
	return nil
}

// ByTemplate returns the executions recorded for one template, oldest first.
func (l *ExecutionLog) ByTemplate(templateID string) []domain.NotificationExecution {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.NotificationExecution
	for _, e := range l.executions {
		if e.TemplateID == templateID {
			out = append(out, copyExecution(&e))
		}
	}
	return out
}

func (l *ExecutionLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.executions)
}

func copyExecution(e *domain.NotificationExecution) domain.NotificationExecution {
	c := *e
	c.Recipients = append([]string(nil), e.Recipients...)
	c.Variables = domain.SnapshotVariables(e.Variables)
	return c
}

// Package service orchestrates the template lifecycle and the render pipeline
// over the domain aggregate and its ports.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "template-engine/internal/common/errors"
	"template-engine/internal/common/logger"
	"template-engine/internal/domain"
	"template-engine/internal/render"
	"template-engine/internal/schema"

	"github.com/google/uuid"
)

const (
	MetricExecution = "notifications_execution"

	OutcomeSuccess         = "SUCCESS"
	OutcomeValidationError = "VALIDATION_ERROR"
	OutcomeArchivedError   = "ARCHIVED_ERROR"
	OutcomeDraftError      = "DRAFT_ERROR"

	DefaultCacheTTL = 10 * time.Minute
)

type Dependencies struct {
	Store      TemplateStore
	Executions ExecutionLog
	Events     EventPublisher
	Metrics    MetricsRecorder
	Cache      Cache       // optional
	Stats      StatsReader // optional
	Logger     logger.Logger
	CacheTTL   time.Duration
	Clock      func() time.Time
	NewID      func() string
}

type TemplateService struct {
	store      TemplateStore
	executions ExecutionLog
	events     EventPublisher
	metrics    MetricsRecorder
	cache      Cache
	stats      StatsReader
	logger     logger.Logger
	cacheTTL   time.Duration
	now        func() time.Time
	newID      func() string
	engine     *render.Engine
	validator  *schema.Validator
}

func NewTemplateService(deps Dependencies) *TemplateService {
	s := &TemplateService{
		store:      deps.Store,
		executions: deps.Executions,
		events:     deps.Events,
		metrics:    deps.Metrics,
		cache:      deps.Cache,
		stats:      deps.Stats,
		logger:     deps.Logger,
		cacheTTL:   deps.CacheTTL,
		now:        deps.Clock,
		newID:      deps.NewID,
		engine:     render.NewEngine(),
		validator:  schema.NewValidator(),
	}
	if s.logger == nil {
		s.logger = logger.NewNoOpLogger()
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = DefaultCacheTTL
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.New().String() }
	}
	return s
}

type CreateTemplateCommand struct {
	Name        string
	Description string
	Channel     domain.Channel
	OrgID       string
	WorkspaceID string
	// Initial draft content. When Body is empty the default draft is seeded.
	Subject     string
	Body        string
	InputSchema domain.InputSchema
	Changelog   string
}

type SaveVersionCommand struct {
	TemplateID  string
	Subject     string
	Body        string
	InputSchema domain.InputSchema
	Changelog   string
}

type ExecuteCommand struct {
	TemplateID string
	VersionID  string // empty selects the latest published version
	Recipients []string
	Variables  map[string]interface{}
}

// CreateTemplate builds an ACTIVE template seeded with one 1.0.0 draft.
func (s *TemplateService) CreateTemplate(ctx context.Context, cmd CreateTemplateCommand) (*domain.NotificationTemplate, error) {
	content := initialContent(cmd)
	if err := checkContent(content); err != nil {
		return nil, err
	}

	now := s.now()
	initial := domain.NewDraftVersion(s.newID(), domain.InitialVersion(), content, now)
	tpl, err := domain.NewNotificationTemplate(s.newID(), domain.TemplateDetails{
		Name:        cmd.Name,
		Description: cmd.Description,
		Channel:     cmd.Channel,
		OrgID:       cmd.OrgID,
		WorkspaceID: cmd.WorkspaceID,
	}, initial, now)
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, tpl); err != nil {
		return nil, err
	}

	s.publish(ctx, domain.TemplateCreated{
		TemplateID: tpl.ID(),
		At:         now,
		Name:       tpl.Name(),
		OrgID:      tpl.OrgID(),
		Channel:    tpl.Channel(),
	})

	s.logger.Info("template created", map[string]interface{}{
		"templateId": tpl.ID(),
		"versionId":  initial.ID(),
		"channel":    string(tpl.Channel()),
		"orgId":      tpl.OrgID(),
	})
	s.warnUndeclared(tpl.ID(), initial.ID(), content)
	return tpl, nil
}

// SaveVersion edits the latest draft in place, or appends a new draft after a
// published latest version. The new number is a minor bump when the input
// schema changed and a patch bump otherwise.
func (s *TemplateService) SaveVersion(ctx context.Context, cmd SaveVersionCommand) (*domain.TemplateVersion, error) {
	content := domain.VersionContent{
		Subject:     cmd.Subject,
		Body:        cmd.Body,
		InputSchema: cmd.InputSchema,
		Changelog:   cmd.Changelog,
	}
	if err := checkContent(content); err != nil {
		return nil, err
	}

	tpl, err := s.store.FindByID(ctx, cmd.TemplateID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	latest := tpl.LatestVersion()
	versionID := latest.ID()

	if latest.IsPublished() {
		next := latest.Version().NextPatch()
		if !latest.InputSchema().Equal(content.InputSchema) {
			next = latest.Version().NextMinor()
		}
		draft := domain.NewDraftVersion(s.newID(), next, content, now)
		if err := tpl.AddVersion(draft, now); err != nil {
			return nil, err
		}
		versionID = draft.ID()
	} else if err := tpl.UpdateVersionContent(versionID, content, now); err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, tpl); err != nil {
		return nil, err
	}
	s.refreshCache(ctx, tpl)

	saved, err := tpl.GetVersion(versionID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("template version saved", map[string]interface{}{
		"templateId": tpl.ID(),
		"versionId":  saved.ID(),
		"version":    saved.Version().String(),
		"appended":   latest.IsPublished(),
	})
	s.warnUndeclared(tpl.ID(), saved.ID(), content)
	return saved, nil
}

func (s *TemplateService) PublishVersion(ctx context.Context, templateID, versionID string) (*domain.TemplateVersion, error) {
	tpl, err := s.store.FindByID(ctx, templateID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := tpl.PublishVersion(versionID, now); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, tpl); err != nil {
		return nil, err
	}
	s.refreshCache(ctx, tpl)

	published, err := tpl.GetVersion(versionID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.TemplateVersionPublished{
		TemplateID: tpl.ID(),
		At:         now,
		VersionID:  published.ID(),
		Version:    published.Version().String(),
	})

	s.logger.Info("template version published", map[string]interface{}{
		"templateId": tpl.ID(),
		"versionId":  published.ID(),
		"version":    published.Version().String(),
	})
	return published, nil
}

// ArchiveTemplate soft-deletes a template. Archiving an already archived
// template is a no-op: nothing is saved and no event is emitted.
func (s *TemplateService) ArchiveTemplate(ctx context.Context, templateID string) (*domain.NotificationTemplate, error) {
	tpl, err := s.store.FindByID(ctx, templateID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !tpl.Archive(now) {
		s.logger.Debug("template already archived", map[string]interface{}{
			"templateId": tpl.ID(),
		})
		return tpl, nil
	}

	if err := s.store.Save(ctx, tpl); err != nil {
		return nil, err
	}
	s.refreshCache(ctx, tpl)

	s.publish(ctx, domain.TemplateArchived{TemplateID: tpl.ID(), At: now})

	s.logger.Info("template archived", map[string]interface{}{
		"templateId": tpl.ID(),
		"status":     string(tpl.Status()),
	})
	return tpl, nil
}

// ExecuteTemplate renders a published version and records the attempt.
// Variable validation and render failures do not fail the call: they produce
// a persisted execution with status VALIDATION_ERROR.
func (s *TemplateService) ExecuteTemplate(ctx context.Context, cmd ExecuteCommand) (*domain.NotificationExecution, error) {
	// Always the store: a cached copy may predate an archive or publish.
	tpl, err := s.store.FindByID(ctx, cmd.TemplateID)
	if err != nil {
		return nil, err
	}

	if tpl.IsArchived() {
		s.recordOutcome(ctx, tpl, OutcomeArchivedError)
		return nil, apperrors.NewTemplateArchivedError(tpl.ID())
	}

	version, err := resolveVersion(tpl, cmd.VersionID)
	if err != nil {
		return nil, err
	}
	if !version.IsPublished() {
		s.recordOutcome(ctx, tpl, OutcomeDraftError)
		return nil, apperrors.NewVersionNotPublishedError(version.ID())
	}

	exec := &domain.NotificationExecution{
		ID:          s.newID(),
		TemplateID:  tpl.ID(),
		VersionID:   version.ID(),
		Version:     version.Version().String(),
		OrgID:       tpl.OrgID(),
		WorkspaceID: tpl.WorkspaceID(),
		Channel:     tpl.Channel(),
		Recipients:  append([]string(nil), cmd.Recipients...),
		Variables:   domain.SnapshotVariables(cmd.Variables),
		ExecutedOn:  s.now(),
	}

	subject, body, renderErr := s.renderVersion(tpl, version, cmd.Variables)
	if renderErr != nil {
		exec.Status = domain.ExecutionStatusValidationError
		exec.ErrorCode = string(apperrors.CodeOf(renderErr))
		exec.RenderedContent = "template validation failed: " + apperrors.Normalize(renderErr).Message
	} else {
		exec.Status = domain.ExecutionStatusSuccess
		exec.RenderedSubject = subject
		exec.RenderedContent = body
	}

	if err := s.executions.Save(ctx, exec); err != nil {
		return nil, err
	}

	s.publish(ctx, domain.NotificationDispatched{
		TemplateID:  tpl.ID(),
		At:          exec.ExecutedOn,
		ExecutionID: exec.ID,
		VersionID:   exec.VersionID,
		Status:      exec.Status,
	})
	s.recordOutcome(ctx, tpl, string(exec.Status))

	s.logger.Info("template executed", map[string]interface{}{
		"templateId":  tpl.ID(),
		"versionId":   version.ID(),
		"executionId": exec.ID,
		"status":      string(exec.Status),
	})
	return exec, nil
}

func (s *TemplateService) renderVersion(tpl *domain.NotificationTemplate, v *domain.TemplateVersion, vars map[string]interface{}) (string, string, error) {
	if err := s.validator.Validate(v.InputSchema(), vars); err != nil {
		return "", "", err
	}
	escape := tpl.Channel().EscapesHTML()
	subject, err := s.engine.Render(v.Subject(), vars, escape)
	if err != nil {
		return "", "", err
	}
	body, err := s.engine.Render(v.Body(), vars, escape)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

func resolveVersion(tpl *domain.NotificationTemplate, versionID string) (*domain.TemplateVersion, error) {
	if versionID != "" {
		return tpl.GetVersion(versionID)
	}
	return tpl.GetLatestPublishedVersion()
}

// GetTemplate is cache-first; a miss loads from the store and fills the cache.
func (s *TemplateService) GetTemplate(ctx context.Context, templateID string) (*domain.NotificationTemplate, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, templateID)
		if err != nil {
			s.logger.Warn("template cache read failed", map[string]interface{}{
				"templateId": templateID,
				"error":      err.Error(),
			})
		} else if cached != nil {
			return cached, nil
		}
	}

	tpl, err := s.store.FindByID(ctx, templateID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, tpl, s.cacheTTL); err != nil {
			s.logger.Warn("template cache write failed", map[string]interface{}{
				"templateId": templateID,
				"error":      err.Error(),
			})
		}
	}
	return tpl, nil
}

func (s *TemplateService) ListTemplates(ctx context.Context, q domain.TemplateQuery) (*domain.TemplatePage, error) {
	if strings.TrimSpace(q.OrgID) == "" || strings.TrimSpace(q.WorkspaceID) == "" {
		return nil, apperrors.NewInvalidInputError("orgId and workspaceId are required")
	}
	return s.store.FindAll(ctx, q.Normalized())
}

// GetStats returns the dispatch counters for an existing template.
func (s *TemplateService) GetStats(ctx context.Context, templateID string) (*domain.TemplateStats, error) {
	tpl, err := s.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	stats := domain.EmptyStats(tpl.ID())
	if s.stats != nil {
		stats, err = s.stats.GetStats(ctx, tpl.ID())
		if err != nil {
			return nil, err
		}
	}
	if stats.TemplateName == "" {
		stats.TemplateName = tpl.Name()
	}
	return stats, nil
}

// refreshCache evicts a saved aggregate and writes the new revision back.
// The cache refuses older revisions, so a concurrent read that loaded the
// aggregate before this save cannot put the stale copy back.
func (s *TemplateService) refreshCache(ctx context.Context, tpl *domain.NotificationTemplate) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Evict(ctx, tpl.ID()); err != nil {
		s.logger.Warn("template cache eviction failed", map[string]interface{}{
			"templateId": tpl.ID(),
			"error":      err.Error(),
		})
	}
	if err := s.cache.Put(ctx, tpl, s.cacheTTL); err != nil {
		s.logger.Warn("template cache write failed", map[string]interface{}{
			"templateId": tpl.ID(),
			"error":      err.Error(),
		})
	}
}

func (s *TemplateService) publish(ctx context.Context, event domain.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", map[string]interface{}{
			"templateId": event.AggregateID(),
			"eventType":  string(event.Type()),
			"error":      err.Error(),
		})
	}
}

func (s *TemplateService) recordOutcome(ctx context.Context, tpl *domain.NotificationTemplate, status string) {
	if s.metrics == nil {
		return
	}
	s.metrics.Increment(ctx, MetricExecution, Dimensions{
		Channel: tpl.Channel(),
		Status:  status,
		OrgID:   tpl.OrgID(),
	})
}

func initialContent(cmd CreateTemplateCommand) domain.VersionContent {
	if cmd.Body != "" {
		return domain.VersionContent{
			Subject:     cmd.Subject,
			Body:        cmd.Body,
			InputSchema: cmd.InputSchema,
			Changelog:   cmd.Changelog,
		}
	}
	return domain.VersionContent{
		Subject: fmt.Sprintf("New template: %s", cmd.Name),
		Body:    "Hello {{name}}",
		InputSchema: domain.InputSchema{
			{Name: "name", Type: domain.VariableTypeString, Required: true},
		},
		Changelog: "Initial draft",
	}
}

// undeclaredPlaceholders lists the keys the subject or body references that
// the input schema does not declare. Such a version still saves, but every
// execution must supply the key or it fails with MISSING_REQUIRED_VARIABLE.
func undeclaredPlaceholders(c domain.VersionContent) []string {
	declared := make(map[string]struct{}, len(c.InputSchema))
	for _, v := range c.InputSchema {
		declared[v.Name] = struct{}{}
	}
	var missing []string
	for _, key := range render.Placeholders(c.Subject + "\n" + c.Body) {
		if _, ok := declared[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

func (s *TemplateService) warnUndeclared(templateID, versionID string, c domain.VersionContent) {
	if keys := undeclaredPlaceholders(c); len(keys) > 0 {
		s.logger.Warn("placeholders missing from input schema", map[string]interface{}{
			"templateId":   templateID,
			"versionId":    versionID,
			"placeholders": keys,
		})
	}
}

func checkContent(c domain.VersionContent) error {
	if err := c.InputSchema.Validate(); err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}
	for _, text := range []string{c.Subject, c.Body} {
		if n := utf8.RuneCountInString(text); n > render.MaxContentLength {
			return apperrors.NewTemplateTooLargeError(n, render.MaxContentLength)
		}
	}
	return nil
}

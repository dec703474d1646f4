package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tplcache "template-engine/internal/cache"
	apperrors "template-engine/internal/common/errors"
	"template-engine/internal/common/logger"
	"template-engine/internal/domain"
	"template-engine/internal/storage/memory"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mocks
// ==========================

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event domain.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) Increment(ctx context.Context, name string, dims Dimensions) {
	m.Called(ctx, name, dims)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, id string) (*domain.NotificationTemplate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NotificationTemplate), args.Error(1)
}

func (m *MockCache) Put(ctx context.Context, t *domain.NotificationTemplate, ttl time.Duration) error {
	args := m.Called(ctx, t, ttl)
	return args.Error(0)
}

func (m *MockCache) Evict(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockStats struct {
	mock.Mock
}

func (m *MockStats) GetStats(ctx context.Context, templateID string) (*domain.TemplateStats, error) {
	args := m.Called(ctx, templateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TemplateStats), args.Error(1)
}

// ==========================
// Fixture
// ==========================

var fixedNow = time.Date(2026, 2, 20, 19, 40, 0, 0, time.UTC)

type fixture struct {
	svc        *TemplateService
	store      *memory.TemplateStore
	executions *memory.ExecutionLog
	events     *MockPublisher
	metrics    *MockMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:      memory.NewTemplateStore(),
		executions: memory.NewExecutionLog(),
		events:     &MockPublisher{},
		metrics:    &MockMetrics{},
	}
	f.events.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.metrics.On("Increment", mock.Anything, mock.Anything, mock.Anything).Maybe()

	var seq int64
	f.svc = NewTemplateService(Dependencies{
		Store:      f.store,
		Executions: f.executions,
		Events:     f.events,
		Metrics:    f.metrics,
		Logger:     logger.NewTestLogger(t),
		Clock:      func() time.Time { return fixedNow },
		NewID:      func() string { return fmt.Sprintf("id-%d", atomic.AddInt64(&seq, 1)) },
	})
	return f
}

func (f *fixture) createEmailTemplate(t *testing.T) *domain.NotificationTemplate {
	t.Helper()
	tpl, err := f.svc.CreateTemplate(context.Background(), CreateTemplateCommand{
		Name:        "welcome",
		Channel:     domain.ChannelEmail,
		OrgID:       "org-1",
		WorkspaceID: "ws-1",
		Subject:     "Hi {{name}}",
		Body:        "<p>Hello {{name}}, you owe {{amount}}</p>",
		InputSchema: domain.InputSchema{
			{Name: "name", Type: domain.VariableTypeString, Required: true},
			{Name: "amount", Type: domain.VariableTypeNumber, Required: true},
		},
		Changelog: "first",
	})
	require.NoError(t, err)
	return tpl
}

func (f *fixture) createPublished(t *testing.T) *domain.NotificationTemplate {
	t.Helper()
	tpl := f.createEmailTemplate(t)
	_, err := f.svc.PublishVersion(context.Background(), tpl.ID(), tpl.LatestVersion().ID())
	require.NoError(t, err)
	return tpl
}

// ==========================
// Lifecycle
// ==========================

func TestCreateTemplate(t *testing.T) {
	f := newFixture(t)
	tpl := f.createEmailTemplate(t)

	assert.Equal(t, domain.TemplateStatusActive, tpl.Status())
	require.Equal(t, 1, tpl.VersionCount())
	v := tpl.LatestVersion()
	assert.Equal(t, "1.0.0", v.Version().String())
	assert.Equal(t, domain.VersionStateDraft, v.State())

	stored, err := f.store.FindByID(context.Background(), tpl.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Revision())

	f.events.AssertCalled(t, "Publish", mock.Anything, mock.AnythingOfType("domain.TemplateCreated"))
}

func TestCreateTemplate_DefaultDraft(t *testing.T) {
	f := newFixture(t)

	tpl, err := f.svc.CreateTemplate(context.Background(), CreateTemplateCommand{
		Name: "reminder", Channel: domain.ChannelSMS, OrgID: "o", WorkspaceID: "w",
	})
	require.NoError(t, err)

	v := tpl.LatestVersion()
	assert.Equal(t, "New template: reminder", v.Subject())
	assert.Equal(t, "Hello {{name}}", v.Body())
	assert.Equal(t, domain.InputSchema{{Name: "name", Type: domain.VariableTypeString, Required: true}}, v.InputSchema())
}

func TestCreateTemplate_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  CreateTemplateCommand
		code apperrors.ErrorCode
	}{
		{"unknown channel", CreateTemplateCommand{Name: "x", Channel: "FAX"}, apperrors.ErrCodeInvalidInput},
		{"duplicate variable", CreateTemplateCommand{
			Name: "x", Channel: domain.ChannelSMS, Body: "b",
			InputSchema: domain.InputSchema{{Name: "a", Type: domain.VariableTypeString}, {Name: "a", Type: domain.VariableTypeString}},
		}, apperrors.ErrCodeInvalidInput},
		{"oversized body", CreateTemplateCommand{
			Name: "x", Channel: domain.ChannelSMS, Body: strings.Repeat("a", 50001),
		}, apperrors.ErrCodeTemplateTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateTemplate(ctx, tt.cmd)
			assert.Equal(t, tt.code, apperrors.CodeOf(err))
		})
	}
	f.events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestSaveVersion_DraftIsEditedInPlace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tpl := f.createEmailTemplate(t)

	v, err := f.svc.SaveVersion(ctx, SaveVersionCommand{
		TemplateID: tpl.ID(),
		Subject:    "Changed",
		Body:       "New body",
		Changelog:  "edit",
	})
	require.NoError(t, err)
	assert.Equal(t, tpl.LatestVersion().ID(), v.ID())
	assert.Equal(t, "1.0.0", v.Version().String())
	assert.Equal(t, "New body", v.Body())

	stored, err := f.store.FindByID(ctx, tpl.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.VersionCount())
}

func TestSaveVersion_AfterPublishBumps(t *testing.T) {
	tests := []struct {
		name    string
		schema  domain.InputSchema
		version string
	}{
		{
			name: "same schema is a patch",
			schema: domain.InputSchema{
				{Name: "name", Type: domain.VariableTypeString, Required: true},
				{Name: "amount", Type: domain.VariableTypeNumber, Required: true},
			},
			version: "1.0.1",
		},
		{
			name: "added variable is a minor",
			schema: domain.InputSchema{
				{Name: "name", Type: domain.VariableTypeString, Required: true},
				{Name: "amount", Type: domain.VariableTypeNumber, Required: true},
				{Name: "due", Type: domain.VariableTypeDate, Required: false},
			},
			version: "1.1.0",
		},
		{
			name: "required flag changed is a minor",
			schema: domain.InputSchema{
				{Name: "name", Type: domain.VariableTypeString, Required: true},
				{Name: "amount", Type: domain.VariableTypeNumber, Required: false},
			},
			version: "1.1.0",
		},
		{
			name:    "removed variables is a minor",
			schema:  nil,
			version: "1.1.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			tpl := f.createPublished(t)

			v, err := f.svc.SaveVersion(ctx, SaveVersionCommand{
				TemplateID:  tpl.ID(),
				Body:        "revised",
				InputSchema: tt.schema,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.version, v.Version().String())
			assert.Equal(t, domain.VersionStateDraft, v.State())

			stored, err := f.store.FindByID(ctx, tpl.ID())
			require.NoError(t, err)
			assert.Equal(t, 2, stored.VersionCount())
		})
	}
}

func TestSaveVersion_ArchivedTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tpl := f.createPublished(t)
	_, err := f.svc.ArchiveTemplate(ctx, tpl.ID())
	require.NoError(t, err)

	_, err = f.svc.SaveVersion(ctx, SaveVersionCommand{TemplateID: tpl.ID(), Body: "x"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTemplateArchived))
}

func TestSaveVersion_UnknownTemplate(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SaveVersion(context.Background(), SaveVersionCommand{TemplateID: "nope", Body: "x"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTemplateNotFound))
}

func TestPublishVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tpl := f.createEmailTemplate(t)
	versionID := tpl.LatestVersion().ID()

	v, err := f.svc.PublishVersion(ctx, tpl.ID(), versionID)
	require.NoError(t, err)
	assert.True(t, v.IsPublished())
	require.NotNil(t, v.PublishedAt())
	assert.Equal(t, fixedNow, *v.PublishedAt())
	f.events.AssertCalled(t, "Publish", mock.Anything, domain.TemplateVersionPublished{
		TemplateID: tpl.ID(),
		At:         fixedNow,
		VersionID:  versionID,
		Version:    "1.0.0",
	})

	_, err = f.svc.PublishVersion(ctx, tpl.ID(), versionID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeVersionAlreadyPublished))

	_, err = f.svc.PublishVersion(ctx, tpl.ID(), "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeVersionNotFound))
}

func TestPublishedVersionIsImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tpl := f.createPublished(t)

	stored, err := f.store.FindByID(ctx, tpl.ID())
	require.NoError(t, err)
	err = stored.UpdateVersionContent(tpl.LatestVersion().ID(), domain.VersionContent{Body: "x"}, fixedNow)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeVersionImmutable))
}

func TestArchiveTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tpl := f.createPublished(t)

	archived, err := f.svc.ArchiveTemplate(ctx, tpl.ID())
	require.NoError(t, err)
	assert.True(t, archived.IsArchived())
	require.NotNil(t, archived.DeletedAt())
	assert.Equal(t, int64(3), archived.Revision())

	t.Run("second archive is a silent no-op", func(t *testing.T) {
		again, err := f.svc.ArchiveTemplate(ctx, tpl.ID())
		require.NoError(t, err)
		assert.True(t, again.IsArchived())
		assert.Equal(t, int64(3), again.Revision(), "nothing saved")

		calls := 0
		for _, c := range f.events.Calls {
			if _, ok := c.Arguments.Get(1).(domain.TemplateArchived); ok {
				calls++
			}
		}
		assert.Equal(t, 1, calls)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := f.svc.ArchiveTemplate(ctx, "missing")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTemplateNotFound))
	})
}

// ==========================
// Execute
// ==========================

func TestExecuteTemplate_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tpl := f.createPublished(t)

	vars := map[string]interface{}{"name": "<Ann>", "amount": 12.5}
	exec, err := f.svc.ExecuteTemplate(ctx, ExecuteCommand{
		TemplateID: tpl.ID(),
		Recipients: []string{"ann@example.com"},
		Variables:  vars,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ExecutionStatusSuccess, exec.Status)
	assert.Equal(t, "Hi &lt;Ann&gt;", exec.RenderedSubject)
	assert.Equal(t, "<p>Hello &lt;Ann&gt;, you owe 12.5</p>", exec.RenderedContent)
	assert.NotContains(t, exec.RenderedContent, "<Ann>")
	assert.Equal(t, "1.0.0", exec.Version)
	assert.Equal(t, fixedNow, exec.ExecutedOn)

	vars["name"] = "mutated"
	logged := f.executions.ByTemplate(tpl.ID())
	require.Len(t, logged, 1)
	assert.Equal(t, "<Ann>", logged[0].Variables["name"])

	f.events.AssertCalled(t, "Publish", mock.Anything, domain.NotificationDispatched{
		TemplateID:  tpl.ID(),
		At:          fixedNow,
		ExecutionID: exec.ID,
		VersionID:   exec.VersionID,
		Status:      domain.ExecutionStatusSuccess,
	})
	f.metrics.AssertCalled(t, "Increment", mock.Anything, MetricExecution, Dimensions{
		Channel: domain.ChannelEmail, Status: OutcomeSuccess, OrgID: "org-1",
	})
}

func TestExecuteTemplate_NonEmailIsNotEscaped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tpl, err := f.svc.CreateTemplate(ctx, CreateTemplateCommand{
		Name: "sms", Channel: domain.ChannelSMS, OrgID: "o", WorkspaceID: "w",
	})
	require.NoError(t, err)
	_, err = f.svc.PublishVersion(ctx, tpl.ID(), tpl.LatestVersion().ID())
	require.NoError(t, err)

	exec, err := f.svc.ExecuteTemplate(ctx, ExecuteCommand{
		TemplateID: tpl.ID(),
		Variables:  map[string]interface{}{"name": "<b>"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello <b>", exec.RenderedContent)
}

func TestExecuteTemplate_ValidationIsSoftFailure(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]interface{}
		code apperrors.ErrorCode
	}{
		{"missing required", map[string]interface{}{"name": "Ann"}, apperrors.ErrCodeMissingRequiredVariable},
		{"wrong type", map[string]interface{}{"name": "Ann", "amount": "lots"}, apperrors.ErrCodeInvalidVariableType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			tpl := f.createPublished(t)

			exec, err := f.svc.ExecuteTemplate(ctx, ExecuteCommand{TemplateID: tpl.ID(), Variables: tt.vars})
			require.NoError(t, err)

			assert.Equal(t, domain.ExecutionStatusValidationError, exec.Status)
			assert.Equal(t, string(tt.code), exec.ErrorCode)
			assert.True(t, strings.HasPrefix(exec.RenderedContent, "template validation failed: "))
			assert.Empty(t, exec.RenderedSubject)
			assert.Len(t, f.executions.ByTemplate(tpl.ID()), 1, "attempt is still recorded")

			f.metrics.AssertCalled(t, "Increment", mock.Anything, MetricExecution, Dimensions{
				Channel: domain.ChannelEmail, Status: OutcomeValidationError, OrgID: "org-1",
			})
		})
	}
}

func TestExecuteTemplate_PlaceholderOutsideSchemaIsSoftFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tpl := f.createPublished(t)

	_, err := f.svc.SaveVersion(ctx, SaveVersionCommand{
		TemplateID:  tpl.ID(),
		Body:        "{{name}} {{undeclared}}",
		InputSchema: domain.InputSchema{{Name: "name", Type: domain.VariableTypeString, Required: true}},
	})
	require.NoError(t, err)
	stored, err := f.store.FindByID(ctx, tpl.ID())
	require.NoError(t, err)
	_, err = f.svc.PublishVersion(ctx, tpl.ID(), stored.LatestVersion().ID())
	require.NoError(t, err)

	exec, err := f.svc.ExecuteTemplate(ctx, ExecuteCommand{
		TemplateID: tpl.ID(),
		Variables:  map[string]interface{}{"name": "Ann"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionStatusValidationError, exec.Status)
	assert.Equal(t, string(apperrors.ErrCodeMissingRequiredVariable), exec.ErrorCode)
}

func TestExecuteTemplate_HardFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown template", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ExecuteTemplate(ctx, ExecuteCommand{TemplateID: "missing"})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTemplateNotFound))
	})

	t.Run("archived", func(t *testing.T) {
		f := newFixture(t)
		tpl := f.createPublished(t)
		_, err := f.svc.ArchiveTemplate(ctx, tpl.ID())
		require.NoError(t, err)

		_, err = f.svc.ExecuteTemplate(ctx, ExecuteCommand{TemplateID: tpl.ID()})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTemplateArchived))
		assert.Zero(t, f.executions.Len())
		f.metrics.AssertCalled(t, "Increment", mock.Anything, MetricExecution, Dimensions{
			Channel: domain.ChannelEmail, Status: OutcomeArchivedError, OrgID: "org-1",
		})
	})

	t.Run("draft only without explicit version", func(t *testing.T) {
		f := newFixture(t)
		tpl := f.createEmailTemplate(t)

		_, err := f.svc.ExecuteTemplate(ctx, ExecuteCommand{TemplateID: tpl.ID()})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNoPublishedVersion))
	})

	t.Run("explicit draft version", func(t *testing.T) {
		f := newFixture(t)
		tpl := f.createEmailTemplate(t)

		_, err := f.svc.ExecuteTemplate(ctx, ExecuteCommand{
			TemplateID: tpl.ID(),
			VersionID:  tpl.LatestVersion().ID(),
			Variables:  map[string]interface{}{"name": "Ann", "amount": 1},
		})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeVersionNotPublished))
		assert.Zero(t, f.executions.Len())
		f.metrics.AssertCalled(t, "Increment", mock.Anything, MetricExecution, Dimensions{
			Channel: domain.ChannelEmail, Status: OutcomeDraftError, OrgID: "org-1",
		})
	})

	t.Run("unknown explicit version", func(t *testing.T) {
		f := newFixture(t)
		tpl := f.createPublished(t)

		_, err := f.svc.ExecuteTemplate(ctx, ExecuteCommand{TemplateID: tpl.ID(), VersionID: "nope"})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeVersionNotFound))
	})
}

func TestExecuteTemplate_LatestPublishedWinsOverNewerDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tpl := f.createPublished(t)

	_, err := f.svc.SaveVersion(ctx, SaveVersionCommand{TemplateID: tpl.ID(), Subject: "s", Body: "draft body"})
	require.NoError(t, err)

	exec, err := f.svc.ExecuteTemplate(ctx, ExecuteCommand{
		TemplateID: tpl.ID(),
		Variables:  map[string]interface{}{"name": "Ann", "amount": 3},
	})
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", exec.Version)
	assert.NotContains(t, exec.RenderedContent, "draft body")
}

func TestExecuteTemplate_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tpl := f.createPublished(t)

	f.events.ExpectedCalls = nil
	f.events.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	exec, err := f.svc.ExecuteTemplate(ctx, ExecuteCommand{
		TemplateID: tpl.ID(),
		Variables:  map[string]interface{}{"name": "Ann", "amount": 3},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionStatusSuccess, exec.Status)
}

// ==========================
// Concurrency
// ==========================

// staleStore hands out one aggregate loaded before a competing write.
type staleStore struct {
	*memory.TemplateStore
	stale *domain.NotificationTemplate
}

func (s *staleStore) FindByID(ctx context.Context, id string) (*domain.NotificationTemplate, error) {
	if s.stale != nil && s.stale.ID() == id {
		t := s.stale
		s.stale = nil
		return t, nil
	}
	return s.TemplateStore.FindByID(ctx, id)
}

func TestConcurrentWritesConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tpl := f.createEmailTemplate(t)

	stale, err := f.store.FindByID(ctx, tpl.ID())
	require.NoError(t, err)

	// the competing writer wins
	_, err = f.svc.PublishVersion(ctx, tpl.ID(), tpl.LatestVersion().ID())
	require.NoError(t, err)

	f.svc.store = &staleStore{TemplateStore: f.store, stale: stale}
	_, err = f.svc.ArchiveTemplate(ctx, tpl.ID())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConcurrencyConflict))
	assert.True(t, apperrors.Normalize(err).Retryable)

	current, err := f.store.FindByID(ctx, tpl.ID())
	require.NoError(t, err)
	assert.False(t, current.IsArchived())
}

// ==========================
// Cache
// ==========================

func TestMutationsRefreshCache(t *testing.T) {
	ctx := context.Background()
	cache := &MockCache{}
	f := newFixture(t)
	f.svc.cache = cache

	tpl := f.createEmailTemplate(t)

	cache.On("Evict", mock.Anything, tpl.ID()).Return(nil)
	cache.On("Put", mock.Anything, mock.Anything, DefaultCacheTTL).Return(nil)

	_, err := f.svc.SaveVersion(ctx, SaveVersionCommand{TemplateID: tpl.ID(), Body: "b"})
	require.NoError(t, err)
	_, err = f.svc.PublishVersion(ctx, tpl.ID(), tpl.LatestVersion().ID())
	require.NoError(t, err)
	archived, err := f.svc.ArchiveTemplate(ctx, tpl.ID())
	require.NoError(t, err)

	cache.AssertNumberOfCalls(t, "Evict", 3)
	cache.AssertNumberOfCalls(t, "Put", 3)
	last := cache.Calls[len(cache.Calls)-1].Arguments.Get(1).(*domain.NotificationTemplate)
	assert.True(t, last.IsArchived())
	assert.Equal(t, archived.Revision(), last.Revision())
}

func TestMutationsSurviveCacheFailures(t *testing.T) {
	ctx := context.Background()
	cache := &MockCache{}
	f := newFixture(t)
	f.svc.cache = cache

	tpl := f.createEmailTemplate(t)

	cache.On("Evict", mock.Anything, tpl.ID()).Return(errors.New("redis down"))
	cache.On("Put", mock.Anything, mock.Anything, DefaultCacheTTL).Return(errors.New("redis down"))

	archived, err := f.svc.ArchiveTemplate(ctx, tpl.ID())
	require.NoError(t, err)
	assert.True(t, archived.IsArchived())
	cache.AssertNumberOfCalls(t, "Evict", 1)
	cache.AssertNumberOfCalls(t, "Put", 1)
}

// archiveOnRead archives the template right after the first read returns,
// standing in for a concurrent ArchiveTemplate call.
type archiveOnRead struct {
	*memory.TemplateStore
	archive func()
}

func (s *archiveOnRead) FindByID(ctx context.Context, id string) (*domain.NotificationTemplate, error) {
	t, err := s.TemplateStore.FindByID(ctx, id)
	if fn := s.archive; fn != nil {
		s.archive = nil
		fn()
	}
	return t, err
}

func TestArchiveRacingCacheFill(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	f.svc.cache = tplcache.NewRedisCache(client)

	tpl := f.createEmailTemplate(t)
	_, err := f.svc.PublishVersion(ctx, tpl.ID(), tpl.LatestVersion().ID())
	require.NoError(t, err)
	mr.Del(tplcache.Key(tpl.ID()))

	racing := &archiveOnRead{TemplateStore: f.store}
	racing.archive = func() {
		_, err := f.svc.ArchiveTemplate(ctx, tpl.ID())
		require.NoError(t, err)
	}
	f.svc.store = racing

	// the read loaded the ACTIVE aggregate before the archive committed
	got, err := f.svc.GetTemplate(ctx, tpl.ID())
	require.NoError(t, err)
	assert.False(t, got.IsArchived())

	again, err := f.svc.GetTemplate(ctx, tpl.ID())
	require.NoError(t, err)
	assert.True(t, again.IsArchived())

	_, err = f.svc.ExecuteTemplate(ctx, ExecuteCommand{
		TemplateID: tpl.ID(),
		Recipients: []string{"a@example.com"},
		Variables:  map[string]interface{}{"name": "Ada"},
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTemplateArchived))
	assert.Equal(t, 0, f.executions.Len())
}

func TestExecuteIgnoresStaleCacheEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tpl := f.createEmailTemplate(t)
	_, err := f.svc.PublishVersion(ctx, tpl.ID(), tpl.LatestVersion().ID())
	require.NoError(t, err)
	active, err := f.store.FindByID(ctx, tpl.ID())
	require.NoError(t, err)

	_, err = f.svc.ArchiveTemplate(ctx, tpl.ID())
	require.NoError(t, err)

	stale := &MockCache{}
	stale.On("Get", mock.Anything, tpl.ID()).Return(active, nil).Maybe()
	f.svc.cache = stale

	_, err = f.svc.ExecuteTemplate(ctx, ExecuteCommand{TemplateID: tpl.ID(), Recipients: []string{"a@example.com"}})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTemplateArchived))
	stale.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestGetTemplate_CacheFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tpl := f.createEmailTemplate(t)

	t.Run("hit skips the store", func(t *testing.T) {
		cache := &MockCache{}
		f.svc.cache = cache
		cached, err := domain.RestoreTemplate(tpl.Snapshot())
		require.NoError(t, err)
		cache.On("Get", mock.Anything, "only-in-cache").Return(cached, nil)

		got, err := f.svc.GetTemplate(ctx, "only-in-cache")
		require.NoError(t, err)
		assert.Equal(t, tpl.ID(), got.ID())
		cache.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("miss fills the cache", func(t *testing.T) {
		cache := &MockCache{}
		f.svc.cache = cache
		cache.On("Get", mock.Anything, tpl.ID()).Return(nil, nil)
		cache.On("Put", mock.Anything, mock.Anything, DefaultCacheTTL).Return(nil)

		got, err := f.svc.GetTemplate(ctx, tpl.ID())
		require.NoError(t, err)
		assert.Equal(t, tpl.ID(), got.ID())
		cache.AssertCalled(t, "Put", mock.Anything, mock.Anything, DefaultCacheTTL)
	})

	t.Run("cache errors fall through to the store", func(t *testing.T) {
		cache := &MockCache{}
		f.svc.cache = cache
		cache.On("Get", mock.Anything, tpl.ID()).Return(nil, errors.New("redis down"))
		cache.On("Put", mock.Anything, mock.Anything, DefaultCacheTTL).Return(errors.New("redis down"))

		got, err := f.svc.GetTemplate(ctx, tpl.ID())
		require.NoError(t, err)
		assert.Equal(t, tpl.ID(), got.ID())
	})
}

func TestUndeclaredPlaceholders(t *testing.T) {
	schema := domain.InputSchema{{Name: "name", Type: domain.VariableTypeString, Required: true}}
	tests := []struct {
		name    string
		content domain.VersionContent
		want    []string
	}{
		{
			name:    "all declared",
			content: domain.VersionContent{Subject: "Hi {{name}}", Body: "Hello {{ name }}", InputSchema: schema},
		},
		{
			name:    "subject and body",
			content: domain.VersionContent{Subject: "{{orderId}} shipped", Body: "Hello {{name}}, {{carrier}} has {{orderId}}", InputSchema: schema},
			want:    []string{"orderId", "carrier"},
		},
		{
			name:    "no schema",
			content: domain.VersionContent{Body: "{{a}} {{b}}"},
			want:    []string{"a", "b"},
		},
		{
			name:    "unused schema entries are fine",
			content: domain.VersionContent{Body: "static text", InputSchema: schema},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, undeclaredPlaceholders(tt.content))
		})
	}
}

// ==========================
// Queries
// ==========================

func TestListTemplates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createEmailTemplate(t)
	f.createEmailTemplate(t)

	page, err := f.svc.ListTemplates(ctx, domain.TemplateQuery{OrgID: "org-1", WorkspaceID: "ws-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, domain.DefaultPageSize, page.Size)

	_, err = f.svc.ListTemplates(ctx, domain.TemplateQuery{OrgID: "org-1"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))
}

func TestGetStats(t *testing.T) {
	ctx := context.Background()

	t.Run("without a reader returns a zero view", func(t *testing.T) {
		f := newFixture(t)
		tpl := f.createEmailTemplate(t)

		stats, err := f.svc.GetStats(ctx, tpl.ID())
		require.NoError(t, err)
		assert.Equal(t, tpl.ID(), stats.TemplateID)
		assert.Equal(t, "welcome", stats.TemplateName)
		assert.Zero(t, stats.TotalSent)
		assert.Nil(t, stats.LastExecutedAt)
	})

	t.Run("reads the projection", func(t *testing.T) {
		f := newFixture(t)
		tpl := f.createEmailTemplate(t)
		reader := &MockStats{}
		f.svc.stats = reader
		reader.On("GetStats", mock.Anything, tpl.ID()).Return(&domain.TemplateStats{
			TemplateID: tpl.ID(), TemplateName: "welcome", TotalSent: 4, SuccessCount: 3, ErrorCount: 1,
		}, nil)

		stats, err := f.svc.GetStats(ctx, tpl.ID())
		require.NoError(t, err)
		assert.Equal(t, int64(4), stats.TotalSent)
		reader.AssertExpectations(t)
	})

	t.Run("unknown template", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.GetStats(ctx, "missing")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTemplateNotFound))
	})
}

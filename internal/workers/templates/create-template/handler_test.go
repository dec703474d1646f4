package createtemplate

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"template-engine/internal/common/config"
	"template-engine/internal/common/errors"
	"template-engine/internal/common/logger"
	"template-engine/internal/domain"
	"template-engine/internal/service"
	"template-engine/internal/storage/memory"
	"template-engine/internal/workers/templates"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCreator struct {
	mock.Mock
}

func (m *MockCreator) CreateTemplate(ctx context.Context, cmd service.CreateTemplateCommand) (*domain.NotificationTemplate, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NotificationTemplate), args.Error(1)
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "template-lifecycle",
		ElementId:          "Activity_CreateTemplate",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func newService() *service.TemplateService {
	n := 0
	return service.NewTemplateService(service.Dependencies{
		Store:      memory.NewTemplateStore(),
		Executions: memory.NewExecutionLog(),
		Clock:      func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) },
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})
}

func createTestHandler(t *testing.T, svc Creator) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{Service: svc, Logger: logger.NewTestLogger(t)})
	require.NoError(t, err)
	return h
}

func TestNewHandler(t *testing.T) {
	t.Run("reads worker settings from app config", func(t *testing.T) {
		appCfg := &config.Config{Workers: map[string]config.WorkerConfig{
			TaskType: {Enabled: true, MaxJobsActive: 7, Timeout: 1500},
		}}
		h, err := NewHandler(HandlerOptions{AppConfig: appCfg, Service: newService(), Logger: logger.NewNoOpLogger()})
		require.NoError(t, err)
		assert.Equal(t, 7, h.Config().MaxJobsActive)
		assert.Equal(t, 1500*time.Millisecond, h.Config().Timeout)
	})

	t.Run("missing service", func(t *testing.T) {
		_, err := NewHandler(HandlerOptions{})
		assert.ErrorContains(t, err, "template service is required")
	})

	t.Run("invalid custom config", func(t *testing.T) {
		_, err := NewHandler(HandlerOptions{Service: newService(), CustomConfig: &templates.WorkerConfig{Enabled: true}})
		assert.ErrorContains(t, err, "invalid configuration")
	})
}

func TestHandler_Execute_DefaultDraft(t *testing.T) {
	h := createTestHandler(t, newService())

	out, err := h.Execute(context.Background(), &Input{
		Name: "welcome", Channel: "email", OrgID: "org-1", WorkspaceID: "ws-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "id-2", out.TemplateID)
	assert.Equal(t, "id-1", out.VersionID)
	assert.Equal(t, "1.0.0", out.Version)
	assert.Equal(t, "EMAIL", out.Template.Channel)
	assert.Equal(t, "ACTIVE", out.Template.Status)
	require.NotNil(t, out.Template.LatestVersion)
	assert.Equal(t, "DRAFT", out.Template.LatestVersion.State)
	assert.Equal(t, "New template: welcome", out.Template.LatestVersion.Subject)
	assert.Equal(t, "Hello {{name}}", out.Template.LatestVersion.Body)
}

func TestHandler_Execute_ProvidedContent(t *testing.T) {
	h := createTestHandler(t, newService())

	out, err := h.Execute(context.Background(), &Input{
		Name: "otp", Channel: "SMS", OrgID: "org-1", WorkspaceID: "ws-1",
		Body:        "Your code is {{ code }}",
		InputSchema: []templates.InputVariableInput{{Name: "code", Type: "number", Required: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Your code is {{ code }}", out.Template.LatestVersion.Body)
	assert.Equal(t, domain.InputSchema{{Name: "code", Type: domain.VariableTypeNumber, Required: true}},
		domain.InputSchema(out.Template.LatestVersion.InputSchema))
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input *Input
		code  errors.ErrorCode
	}{
		{"unknown channel", &Input{Name: "n", Channel: "FAX", OrgID: "o", WorkspaceID: "w"}, errors.ErrCodeInvalidInput},
		{"unknown variable type", &Input{
			Name: "n", Channel: "PUSH", OrgID: "o", WorkspaceID: "w", Body: "x",
			InputSchema: []templates.InputVariableInput{{Name: "a", Type: "LIST"}},
		}, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createTestHandler(t, newService())
			_, err := h.Execute(context.Background(), tt.input)
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
}

func TestHandler_Execute_PropagatesServiceError(t *testing.T) {
	svc := new(MockCreator)
	svc.On("CreateTemplate", mock.Anything, mock.MatchedBy(func(cmd service.CreateTemplateCommand) bool {
		return cmd.Channel == domain.ChannelWebhook && cmd.Name == "hook"
	})).Return(nil, errors.NewDatabaseConnectionFailedError(fmt.Errorf("dial tcp: refused")))

	h := createTestHandler(t, svc)
	_, err := h.Execute(context.Background(), &Input{Name: "hook", Channel: "WEBHOOK", OrgID: "o", WorkspaceID: "w"})

	assert.Equal(t, errors.ErrCodeDatabaseConnectionFailed, errors.CodeOf(err))
	svc.AssertExpectations(t)
}

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, newService())

	t.Run("valid payload", func(t *testing.T) {
		input, err := h.ParseInput(createMockJob(1, map[string]interface{}{
			"name": "welcome", "channel": "EMAIL", "orgId": "o", "workspaceId": "w",
			"inputSchema": []map[string]interface{}{{"name": "name", "type": "STRING", "required": true}},
		}))
		require.NoError(t, err)
		assert.Equal(t, "welcome", input.Name)
		require.Len(t, input.InputSchema, 1)
		assert.True(t, input.InputSchema[0].Required)
	})

	t.Run("missing tenant", func(t *testing.T) {
		_, err := h.ParseInput(createMockJob(2, map[string]interface{}{"name": "welcome", "channel": "EMAIL"}))
		assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
	})

	t.Run("channel outside the enum", func(t *testing.T) {
		_, err := h.ParseInput(createMockJob(3, map[string]interface{}{
			"name": "welcome", "channel": "PIGEON", "orgId": "o", "workspaceId": "w",
		}))
		assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
	})
}

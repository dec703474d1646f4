package executetemplate

import (
	"context"
	"fmt"
	"time"

	"template-engine/internal/common/config"
	"template-engine/internal/common/logger"
	"template-engine/internal/common/observability"
	"template-engine/internal/common/validation"
	"template-engine/internal/domain"
	"template-engine/internal/service"
	"template-engine/internal/workers/templates"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "execute-template"

var inputSchema = validation.MustCompile(inputSchemaJSON)

type Executor interface {
	ExecuteTemplate(ctx context.Context, cmd service.ExecuteCommand) (*domain.NotificationExecution, error)
}

type HandlerOptions struct {
	AppConfig     *config.Config
	Service       Executor
	CustomConfig  *templates.WorkerConfig
	Logger        logger.Logger
	Observability *observability.Observability
}

type Handler struct {
	config  *templates.WorkerConfig
	service Executor
	runner  *templates.Runner
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := templates.ConfigFor(TaskType, opts.AppConfig, opts.CustomConfig)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Service == nil {
		return nil, fmt.Errorf("%s: template service is required", TaskType)
	}
	return &Handler{
		config:  cfg,
		service: opts.Service,
		runner:  templates.NewRunner(TaskType, inputSchema, cfg, opts.Logger, opts.Observability),
	}, nil
}

func (h *Handler) Config() *templates.WorkerConfig { return h.config }

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.runner.Run(client, job, func(ctx context.Context, vars map[string]interface{}) (interface{}, error) {
		var input Input
		if err := templates.Decode(vars, &input); err != nil {
			return nil, err
		}
		return h.Execute(ctx, &input)
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	exec, err := h.service.ExecuteTemplate(ctx, service.ExecuteCommand{
		TemplateID: input.TemplateID,
		VersionID:  input.VersionID,
		Recipients: input.Recipients,
		Variables:  input.Variables,
	})
	if err != nil {
		return nil, err
	}

	return &Output{
		ExecutionID:     exec.ID,
		TemplateID:      exec.TemplateID,
		VersionID:       exec.VersionID,
		Version:         exec.Version,
		Channel:         string(exec.Channel),
		Status:          string(exec.Status),
		ErrorCode:       exec.ErrorCode,
		RenderedSubject: exec.RenderedSubject,
		RenderedContent: exec.RenderedContent,
		Rendered:        exec.Status == domain.ExecutionStatusSuccess,
		ExecutedOn:      exec.ExecutedOn.Format(time.RFC3339),
	}, nil
}

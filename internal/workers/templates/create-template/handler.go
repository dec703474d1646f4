package createtemplate

import (
	"context"
	"fmt"

	"template-engine/internal/common/config"
	"template-engine/internal/common/errors"
	"template-engine/internal/common/logger"
	"template-engine/internal/common/observability"
	"template-engine/internal/common/validation"
	"template-engine/internal/domain"
	"template-engine/internal/service"
	"template-engine/internal/workers/templates"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "create-template"

var inputSchema = validation.MustCompile(inputSchemaJSON)

type Creator interface {
	CreateTemplate(ctx context.Context, cmd service.CreateTemplateCommand) (*domain.NotificationTemplate, error)
}

type HandlerOptions struct {
	AppConfig     *config.Config
	Service       Creator
	CustomConfig  *templates.WorkerConfig
	Logger        logger.Logger
	Observability *observability.Observability
}

type Handler struct {
	config  *templates.WorkerConfig
	service Creator
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
		input, err := decode(vars)
		if err != nil {
			return nil, err
		}
		return h.Execute(ctx, input)
	})
}

func (h *Handler) ParseInput(job entities.Job) (*Input, error) {
	vars, err := h.runner.Variables(job)
	if err != nil {
		return nil, err
	}
	return decode(vars)
}

func decode(vars map[string]interface{}) (*Input, error) {
	var input Input
	if err := templates.Decode(vars, &input); err != nil {
		return nil, err
	}
	return &input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	channel, err := domain.ParseChannel(input.Channel)
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	schema, err := templates.SchemaFromVariables(input.InputSchema)
	if err != nil {
		return nil, err
	}

	tpl, err := h.service.CreateTemplate(ctx, service.CreateTemplateCommand{
		Name:        input.Name,
		Description: input.Description,
		Channel:     channel,
		OrgID:       input.OrgID,
		WorkspaceID: input.WorkspaceID,
		Subject:     input.Subject,
		Body:        input.Body,
		InputSchema: schema,
		Changelog:   input.Changelog,
	})
	if err != nil {
		return nil, err
	}

	view := templates.NewTemplateView(tpl, false)
	return &Output{
		TemplateID: tpl.ID(),
		VersionID:  view.LatestVersion.VersionID,
		Version:    view.LatestVersion.Version,
		Template:   view,
	}, nil
}

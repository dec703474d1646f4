package saveversion

import (
	"context"
	"fmt"

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

const TaskType = "save-version"

var inputSchema = validation.MustCompile(inputSchemaJSON)

// Saver edits the latest draft or appends the next draft.
type Saver interface {
	SaveVersion(ctx context.Context, cmd service.SaveVersionCommand) (*domain.TemplateVersion, error)
}

type HandlerOptions struct {
	AppConfig     *config.Config
	Service       Saver
	CustomConfig  *templates.WorkerConfig
	Logger        logger.Logger
	Observability *observability.Observability
}

type Handler struct {
	config  *templates.WorkerConfig
	service Saver
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
	schema, err := templates.SchemaFromVariables(input.InputSchema)
	if err != nil {
		return nil, err
	}

	v, err := h.service.SaveVersion(ctx, service.SaveVersionCommand{
		TemplateID:  input.TemplateID,
		Subject:     input.Subject,
		Body:        input.Body,
		InputSchema: schema,
		Changelog:   input.Changelog,
	})
	if err != nil {
		return nil, err
	}

	return &Output{
		TemplateID: input.TemplateID,
		VersionID:  v.ID(),
		Version:    v.Version().String(),
		Draft:      templates.NewVersionView(v),
	}, nil
}

package archivetemplate

import (
	"context"
	"fmt"
	"time"

	"template-engine/internal/common/config"
	"template-engine/internal/common/logger"
	"template-engine/internal/common/observability"
	"template-engine/internal/common/validation"
	"template-engine/internal/domain"
	"template-engine/internal/workers/templates"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "archive-template"

var inputSchema = validation.MustCompile(inputSchemaJSON)

type Archiver interface {
	ArchiveTemplate(ctx context.Context, templateID string) (*domain.NotificationTemplate, error)
}

type HandlerOptions struct {
	AppConfig     *config.Config
	Service       Archiver
	CustomConfig  *templates.WorkerConfig
	Logger        logger.Logger
	Observability *observability.Observability
}

type Handler struct {
	config  *templates.WorkerConfig
	service Archiver
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

// Execute archives the template. Repeating it on an archived template
// completes with the original archive time.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	tpl, err := h.service.ArchiveTemplate(ctx, input.TemplateID)
	if err != nil {
		return nil, err
	}
	out := &Output{TemplateID: tpl.ID(), Status: string(tpl.Status())}
	if at := tpl.DeletedAt(); at != nil {
		out.ArchivedAt = at.Format(time.RFC3339)
	}
	return out, nil
}

package gettemplate

import (
	"context"
	"fmt"

	"template-engine/internal/common/config"
	"template-engine/internal/common/logger"
	"template-engine/internal/common/observability"
	"template-engine/internal/common/validation"
	"template-engine/internal/domain"
	"template-engine/internal/workers/templates"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "get-template"

var inputSchema = validation.MustCompile(inputSchemaJSON)

type Reader interface {
	GetTemplate(ctx context.Context, templateID string) (*domain.NotificationTemplate, error)
	GetStats(ctx context.Context, templateID string) (*domain.TemplateStats, error)
}

type HandlerOptions struct {
	AppConfig     *config.Config
	Service       Reader
	CustomConfig  *templates.WorkerConfig
	Logger        logger.Logger
	Observability *observability.Observability
}

type Handler struct {
	config  *templates.WorkerConfig
	service Reader
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

// Execute returns the template with every version. Stats are read after the
// template so a missing template reports TEMPLATE_NOT_FOUND, not a stats error.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	tpl, err := h.service.GetTemplate(ctx, input.TemplateID)
	if err != nil {
		return nil, err
	}

	out := &Output{Template: templates.NewTemplateView(tpl, true)}
	if input.IncludeStats {
		stats, err := h.service.GetStats(ctx, tpl.ID())
		if err != nil {
			return nil, err
		}
		out.Stats = stats
	}
	return out, nil
}

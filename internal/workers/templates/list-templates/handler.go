package listtemplates

import (
	"context"
	"fmt"

	"template-engine/internal/common/config"
	"template-engine/internal/common/errors"
	"template-engine/internal/common/logger"
	"template-engine/internal/common/observability"
	"template-engine/internal/common/validation"
	"template-engine/internal/domain"
	"template-engine/internal/workers/templates"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "list-templates"

var inputSchema = validation.MustCompile(inputSchemaJSON)

type Lister interface {
	ListTemplates(ctx context.Context, q domain.TemplateQuery) (*domain.TemplatePage, error)
}

type HandlerOptions struct {
	AppConfig     *config.Config
	Service       Lister
	CustomConfig  *templates.WorkerConfig
	Logger        logger.Logger
	Observability *observability.Observability
}

type Handler struct {
	config  *templates.WorkerConfig
	service Lister
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
	q, err := buildQuery(input)
	if err != nil {
		return nil, err
	}

	page, err := h.service.ListTemplates(ctx, q)
	if err != nil {
		return nil, err
	}

	out := &Output{
		Items: make([]templates.TemplateView, 0, len(page.Items)),
		Total: page.Total,
		Page:  page.Page,
		Size:  page.Size,
	}
	for _, t := range page.Items {
		out.Items = append(out.Items, templates.NewTemplateView(t, false))
	}
	return out, nil
}

func buildQuery(input *Input) (domain.TemplateQuery, error) {
	q := domain.TemplateQuery{
		OrgID:       input.OrgID,
		WorkspaceID: input.WorkspaceID,
		Page:        input.Page,
		Size:        input.Size,
	}
	if input.Channel != "" {
		c, err := domain.ParseChannel(input.Channel)
		if err != nil {
			return q, errors.NewInvalidInputError(err.Error())
		}
		q.Channel = &c
	}
	if input.Status != "" {
		s, err := domain.ParseTemplateStatus(input.Status)
		if err != nil {
			return q, errors.NewInvalidInputError(err.Error())
		}
		q.Status = &s
	}
	return q, nil
}

package publishversion

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

const TaskType = "publish-version"

var inputSchema = validation.MustCompile(inputSchemaJSON)

type Publisher interface {
	PublishVersion(ctx context.Context, templateID, versionID string) (*domain.TemplateVersion, error)
}

type HandlerOptions struct {
	AppConfig     *config.Config
	Service       Publisher
	CustomConfig  *templates.WorkerConfig
	Logger        logger.Logger
	Observability *observability.Observability
}

type Handler struct {
	config  *templates.WorkerConfig
	service Publisher
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
	v, err := h.service.PublishVersion(ctx, input.TemplateID, input.VersionID)
	if err != nil {
		return nil, err
	}

	out := &Output{
		TemplateID: input.TemplateID,
		VersionID:  v.ID(),
		Version:    v.Version().String(),
		Published:  templates.NewVersionView(v),
	}
	if at := v.PublishedAt(); at != nil {
		out.PublishedAt = at.Format(time.RFC3339)
	}
	return out, nil
}

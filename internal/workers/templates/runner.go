// Package templates holds the plumbing shared by the template job workers:
// payload validation, completion, failure routing and job metrics.
package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"template-engine/internal/common/config"
	"template-engine/internal/common/errors"
	"template-engine/internal/common/logger"
	"template-engine/internal/common/metrics"
	"template-engine/internal/common/observability"
	"template-engine/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultTimeout = 30 * time.Second

// WorkerConfig is the per-task setting block shared by every template worker.
type WorkerConfig struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
}

// ConfigFor reads workers.<taskType> from the application config. A custom
// config wins when given.
func ConfigFor(taskType string, appCfg *config.Config, custom *WorkerConfig) *WorkerConfig {
	if custom != nil {
		return custom
	}
	cfg := &WorkerConfig{Enabled: true, MaxJobsActive: 5, Timeout: DefaultTimeout}
	if appCfg == nil {
		return cfg
	}
	if wc, ok := appCfg.Workers[taskType]; ok {
		cfg.Enabled = wc.Enabled
		if wc.MaxJobsActive > 0 {
			cfg.MaxJobsActive = wc.MaxJobsActive
		}
		if wc.Timeout > 0 {
			cfg.Timeout = time.Duration(wc.Timeout) * time.Millisecond
		}
	}
	return cfg
}

func (c *WorkerConfig) Validate() error {
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// Step runs the use case for already validated job variables.
type Step func(ctx context.Context, vars map[string]interface{}) (interface{}, error)

// Runner drives one activated job from variables to completion.
type Runner struct {
	TaskType string
	Schema   *validation.PayloadSchema
	Config   *WorkerConfig
	Logger   logger.Logger
	Errors   *errors.ErrorHandler
	Obs      *observability.Observability
}

func NewRunner(taskType string, schema *validation.PayloadSchema, cfg *WorkerConfig, log logger.Logger, obs *observability.Observability) *Runner {
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"taskType": taskType})
	return &Runner{
		TaskType: taskType,
		Schema:   schema,
		Config:   cfg,
		Logger:   log,
		Errors:   errors.NewErrorHandler(log),
		Obs:      obs,
	}
}

func (r *Runner) Run(client worker.JobClient, job entities.Job, step Step) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(r.TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(r.TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), r.Config.Timeout)
	defer cancel()

	ctx, span := r.Obs.StartSpan(ctx, r.TaskType,
		attribute.Int64("job.key", job.GetKey()),
		attribute.Int64("process.instance.key", job.GetProcessInstanceKey()),
	)
	defer span.End()

	r.Logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	output, err := r.execute(ctx, job, step)
	if err != nil {
		code := string(errors.CodeOf(err))
		span.SetStatus(codes.Error, code)
		metrics.WorkerJobsFailed.WithLabelValues(r.TaskType, code).Inc()
		r.Obs.RecordJob(ctx, r.TaskType, "failed", time.Since(start))
		r.Errors.HandleJobError(ctx, client, job, err)
		return
	}

	if err := r.complete(ctx, client, job, output); err != nil {
		r.Logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		r.Obs.RecordJob(ctx, r.TaskType, "complete_failed", time.Since(start))
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(r.TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(r.TaskType).Observe(time.Since(start).Seconds())
	r.Obs.RecordJob(ctx, r.TaskType, "completed", time.Since(start))
}

func (r *Runner) execute(ctx context.Context, job entities.Job, step Step) (interface{}, error) {
	if !r.Config.Enabled {
		return nil, errors.NewInvalidInputError(r.TaskType + " worker is disabled")
	}
	vars, err := r.Variables(job)
	if err != nil {
		return nil, err
	}
	return step(ctx, vars)
}

// Variables parses and validates the job payload.
func (r *Runner) Variables(job entities.Job) (map[string]interface{}, error) {
	vars, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInvalidInputError("job variables are not a JSON object: " + err.Error())
	}
	if r.Schema != nil {
		if result := r.Schema.Validate(vars); !result.Valid {
			return nil, errors.NewInvalidInputError(strings.Join(result.GetErrorMessages(), "; "))
		}
	}
	return vars, nil
}

func (r *Runner) complete(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		return fmt.Errorf("build complete command: %w", err)
	}
	if _, err := cmd.Send(ctx); err != nil {
		return fmt.Errorf("send complete command: %w", err)
	}
	r.Logger.Info("job completed", map[string]interface{}{"jobKey": job.GetKey()})
	return nil
}

// Decode copies validated variables into a typed input.
func Decode(vars map[string]interface{}, dst interface{}) error {
	data, err := json.Marshal(vars)
	if err != nil {
		return errors.NewInvalidInputError("encode job variables: " + err.Error())
	}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return errors.NewInvalidInputError("decode job variables: " + err.Error())
	}
	return nil
}

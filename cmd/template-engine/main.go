// cmd/template-engine/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"template-engine/internal/common/camunda"
	"template-engine/internal/common/config"
	"template-engine/internal/common/logger"
	"template-engine/internal/common/metrics"
	"template-engine/internal/common/observability"
	"template-engine/internal/service"
	"template-engine/internal/workers/templates"

	at "template-engine/internal/workers/templates/archive-template"
	ct "template-engine/internal/workers/templates/create-template"
	et "template-engine/internal/workers/templates/execute-template"
	gt "template-engine/internal/workers/templates/get-template"
	lt "template-engine/internal/workers/templates/list-templates"
	pv "template-engine/internal/workers/templates/publish-version"
	sv "template-engine/internal/workers/templates/save-version"

	"github.com/prometheus/client_golang/prometheus"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, envFile, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting template engine...",
		zap.String("environment", cfg.App.Environment),
		zap.String("envFile", envFile),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("events", cfg.Events.Driver),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	infra := &infrastructure{cfg: cfg, zapLog: zapLog, log: log}
	defer infra.Close()

	store, executions, err := infra.storage(ctx)
	if err != nil {
		zapLog.Fatal("storage init failed", zap.Error(err))
	}
	publisher, err := infra.events(ctx)
	if err != nil {
		zapLog.Fatal("event publisher init failed", zap.Error(err))
	}

	deps := service.Dependencies{
		Store:      store,
		Executions: executions,
		Events:     publisher,
		Metrics:    metrics.NewPrometheusRecorder(prometheus.DefaultRegisterer),
		Logger:     log.WithFields(map[string]interface{}{"component": "template-service"}),
		CacheTTL:   cfg.CacheTTL(),
	}
	if err := infra.readModels(ctx, &deps); err != nil {
		zapLog.Fatal("cache/stats init failed", zap.Error(err))
	}
	svc := service.NewTemplateService(deps)

	zeebe, err := camunda.Connect(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
	}, log)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	workers, err := registerWorkers(zeebe, cfg, svc, log, obs)
	if err != nil {
		zapLog.Fatal("worker registration failed", zap.Error(err))
	}
	zapLog.Info("workers registered", zap.Int("count", len(workers)))

	server := startHealthServer(cfg.Metrics.Address, zeebe, zapLog)

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error flushing observability", zap.Error(err))
	}

	zapLog.Info("Template engine stopped gracefully")
}

type configuredHandler interface {
	camunda.JobHandler
	Config() *templates.WorkerConfig
}

func registerWorkers(zeebe *camunda.Client, cfg *config.Config, svc *service.TemplateService, log logger.Logger, obs *observability.Observability) ([]*camunda.Worker, error) {
	build := []struct {
		taskType string
		create   func() (configuredHandler, error)
	}{
		{ct.TaskType, func() (configuredHandler, error) {
			return ct.NewHandler(ct.HandlerOptions{AppConfig: cfg, Service: svc, Logger: log, Observability: obs})
		}},
		{sv.TaskType, func() (configuredHandler, error) {
			return sv.NewHandler(sv.HandlerOptions{AppConfig: cfg, Service: svc, Logger: log, Observability: obs})
		}},
		{pv.TaskType, func() (configuredHandler, error) {
			return pv.NewHandler(pv.HandlerOptions{AppConfig: cfg, Service: svc, Logger: log, Observability: obs})
		}},
		{at.TaskType, func() (configuredHandler, error) {
			return at.NewHandler(at.HandlerOptions{AppConfig: cfg, Service: svc, Logger: log, Observability: obs})
		}},
		{et.TaskType, func() (configuredHandler, error) {
			return et.NewHandler(et.HandlerOptions{AppConfig: cfg, Service: svc, Logger: log, Observability: obs})
		}},
		{lt.TaskType, func() (configuredHandler, error) {
			return lt.NewHandler(lt.HandlerOptions{AppConfig: cfg, Service: svc, Logger: log, Observability: obs})
		}},
		{gt.TaskType, func() (configuredHandler, error) {
			return gt.NewHandler(gt.HandlerOptions{AppConfig: cfg, Service: svc, Logger: log, Observability: obs})
		}},
	}

	var workers []*camunda.Worker
	for _, b := range build {
		handler, err := b.create()
		if err != nil {
			return workers, fmt.Errorf("create %s handler: %w", b.taskType, err)
		}
		wc := handler.Config()
		if !wc.Enabled {
			log.Info("worker disabled", map[string]interface{}{"taskType": b.taskType})
			continue
		}
		workers = append(workers, camunda.StartWorker(zeebe.Zeebe(), camunda.WorkerOptions{
			TaskType:      b.taskType,
			MaxJobsActive: wc.MaxJobsActive,
			Timeout:       wc.Timeout,
		}, handler, log))
	}
	return workers, nil
}

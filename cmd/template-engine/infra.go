package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	awsclient "template-engine/internal/common/aws"
	"template-engine/internal/common/config"
	"template-engine/internal/common/database"
	"template-engine/internal/common/logger"
	"template-engine/internal/events"
	"template-engine/internal/service"
	"template-engine/internal/stats"
	"template-engine/internal/storage/memory"

	"github.com/IBM/sarama"
)

// infrastructure opens the backing services named by the config and closes
// them in reverse order on shutdown.
type infrastructure struct {
	cfg     *config.Config
	zapLog  *zap.Logger
	log     logger.Logger
	closers []func() error
	redis   *database.RedisClient
}

func (i *infrastructure) onClose(fn func() error) {
	i.closers = append(i.closers, fn)
}

func (i *infrastructure) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		if err := i.closers[n](); err != nil {
			i.zapLog.Error("close failed", zap.Error(err))
		}
	}
}

func (i *infrastructure) storage(ctx context.Context) (service.TemplateStore, service.ExecutionLog, error) {
	if i.cfg.Storage.Driver == config.StorageDriverMemory {
		i.zapLog.Warn("using in-memory storage; templates are lost on restart")
		return memory.NewTemplateStore(), memory.NewExecutionLog(), nil
	}

	var pg *database.PostgresClient
	err := retryWithBackoff(func() error {
		var err error
		pg, err = database.OpenPostgres(ctx, i.cfg.Database.Postgres)
		return err
	}, 15, 2*time.Second, i.zapLog, "PostgreSQL connection")
	if err != nil {
		return nil, nil, err
	}
	i.onClose(pg.Close)
	i.zapLog.Info("PostgreSQL connected successfully")

	store, err := pg.TemplateStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	var es *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		es, err = database.NewElasticsearch(i.cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return es.Ping(ctx)
	}, 15, 2*time.Second, i.zapLog, "Elasticsearch connection")
	if err != nil {
		return nil, nil, err
	}
	i.zapLog.Info("Elasticsearch connected successfully")

	executions, err := es.ExecutionLog(ctx, i.cfg.Database.Elasticsearch.ExecutionIndex, i.log)
	if err != nil {
		return nil, nil, err
	}
	return store, executions, nil
}

func (i *infrastructure) events(ctx context.Context) (service.EventPublisher, error) {
	switch i.cfg.Events.Driver {
	case config.EventsDriverKafka:
		kc := i.cfg.Events.Kafka
		var producer sarama.SyncProducer
		err := retryWithBackoff(func() error {
			var err error
			producer, err = sarama.NewSyncProducer(kc.Brokers, events.NewProducerConfig(kc.ClientID))
			return err
		}, 10, 2*time.Second, i.zapLog, "Kafka producer")
		if err != nil {
			return nil, err
		}
		publisher := events.NewKafkaPublisher(producer, kc.TopicPrefix, i.log)
		i.onClose(publisher.Close)
		i.zapLog.Info("Kafka producer connected", zap.Strings("brokers", kc.Brokers))
		return publisher, nil

	case config.EventsDriverSNS:
		client, err := awsclient.NewSNSClient(ctx, i.cfg.Events.AWS.Region, i.cfg.Events.AWS.SNSEndpoint)
		if err != nil {
			return nil, err
		}
		if err := client.CheckFIFOTopic(ctx, i.cfg.Events.SNS.TopicARN); err != nil {
			return nil, err
		}
		i.zapLog.Info("SNS publisher ready", zap.String("topicArn", i.cfg.Events.SNS.TopicARN))
		return events.NewSNSPublisher(client, i.cfg.Events.SNS.TopicARN, i.log), nil

	default:
		i.zapLog.Warn("domain events are disabled")
		return events.Noop{}, nil
	}
}

func (i *infrastructure) redisClient(ctx context.Context) (*database.RedisClient, error) {
	if i.redis != nil {
		return i.redis, nil
	}
	var rc *database.RedisClient
	err := retryWithBackoff(func() error {
		var err error
		rc, err = database.OpenRedis(ctx, i.cfg.Database.Redis)
		return err
	}, 10, 2*time.Second, i.zapLog, "Redis connection")
	if err != nil {
		return nil, err
	}
	i.onClose(rc.Close)
	i.redis = rc
	i.zapLog.Info("Redis connected successfully")
	return rc, nil
}

// readModels attaches the template cache and the stats projection. The
// projection is fed by a consumer group on the kafka event topics.
func (i *infrastructure) readModels(ctx context.Context, deps *service.Dependencies) error {
	if i.cfg.Cache.Enabled {
		rc, err := i.redisClient(ctx)
		if err != nil {
			return err
		}
		deps.Cache = rc.TemplateCache()
	}

	if !i.cfg.Stats.Enabled {
		return nil
	}
	rc, err := i.redisClient(ctx)
	if err != nil {
		return err
	}
	projector := rc.StatsProjector()
	deps.Stats = projector

	kc := i.cfg.Events.Kafka
	group, err := sarama.NewConsumerGroup(kc.Brokers, i.cfg.Stats.GroupID, stats.NewConsumerConfig(kc.ClientID+"-stats"))
	if err != nil {
		return fmt.Errorf("create stats consumer group: %w", err)
	}

	// Run closes the group once ctx is cancelled; shutdown only waits for it.
	consumer := stats.NewConsumer(stats.Topics(kc.TopicPrefix), group, projector, i.log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			i.zapLog.Error("stats consumer stopped", zap.Error(err))
		}
	}()
	i.onClose(func() error {
		select {
		case <-done:
			return nil
		case <-time.After(10 * time.Second):
			return fmt.Errorf("stats consumer did not stop within 10s")
		}
	})
	i.zapLog.Info("stats projection consuming", zap.String("groupId", i.cfg.Stats.GroupID))
	return nil
}

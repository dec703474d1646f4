package events

import (
	"context"

	apperrors "template-engine/internal/common/errors"
	"template-engine/internal/common/logger"
	"template-engine/internal/domain"

	"github.com/IBM/sarama"
)

const typeHeader = "event-type"

// KafkaPublisher sends one message per event to <prefix><event type>. The
// aggregate id is the message key, so events about one template land on one
// partition in submission order.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	prefix   string
	logger   logger.Logger
}

// NewProducerConfig returns the sarama settings the publisher relies on for
// per-key ordering: idempotent writes with a single in-flight request.
func NewProducerConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Version = sarama.V2_1_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true
	cfg.Producer.Idempotent = true
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

func NewKafkaPublisher(producer sarama.SyncProducer, topicPrefix string, log logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		prefix:   topicPrefix,
		logger:   log.WithFields(map[string]interface{}{"component": "kafka-publisher"}),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event domain.Event) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewEventPublishFailedError(string(event.Type()), err)
	}

	data, err := Encode(event)
	if err != nil {
		return apperrors.NewEventPublishFailedError(string(event.Type()), err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     Topic(p.prefix, event.Type()),
		Key:       sarama.StringEncoder(event.AggregateID()),
		Value:     sarama.ByteEncoder(data),
		Timestamp: event.OccurredAt(),
		Headers: []sarama.RecordHeader{
			{Key: []byte(typeHeader), Value: []byte(event.Type())},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return apperrors.NewEventPublishFailedError(string(event.Type()), err)
	}

	p.logger.Debug("event delivered", map[string]interface{}{
		"topic":      msg.Topic,
		"templateId": event.AggregateID(),
		"partition":  partition,
		"offset":     offset,
	})
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

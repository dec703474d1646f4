package stats

import (
	"context"
	"errors"
	"time"

	"template-engine/internal/common/logger"
	"template-engine/internal/domain"
	"template-engine/internal/events"

	"github.com/IBM/sarama"
)

// Applier folds one event into a read model.
type Applier interface {
	Apply(ctx context.Context, event domain.Event) error
}

// Consumer feeds the projection from the template event topics through a
// Kafka consumer group.
type Consumer struct {
	topics  []string
	group   sarama.ConsumerGroup
	applier Applier
	logger  logger.Logger
}

// Topics lists the event topics the projection reads under a prefix.
func Topics(prefix string) []string {
	return []string{
		events.Topic(prefix, domain.EventTemplateCreated),
		events.Topic(prefix, domain.EventNotificationDispatched),
	}
}

func NewConsumer(topics []string, group sarama.ConsumerGroup, applier Applier, log logger.Logger) *Consumer {
	return &Consumer{
		topics:  topics,
		group:   group,
		applier: applier,
		logger:  log.WithFields(map[string]interface{}{"component": "stats-consumer"}),
	}
}

// NewConsumerConfig starts new groups at the oldest offset so a fresh
// projection replays the retained history.
func NewConsumerConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategySticky()}
	return cfg
}

// Run consumes until ctx is cancelled or the group is closed. Transient
// errors back off up to 30 seconds.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.group.Close(); err != nil {
			c.logger.Warn("failed to close consumer group", map[string]interface{}{"error": err.Error()})
		}
	}()

	c.logger.Info("stats consumer started", map[string]interface{}{"topics": c.topics})

	backoff := time.Second
	for {
		err := c.group.Consume(ctx, c.topics, c)
		if err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return err
			}
			c.logger.Error("consume failed", map[string]interface{}{"error": err.Error(), "backoff": backoff.String()})
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		if ctx.Err() != nil {
			c.logger.Info("stats consumer stopped", nil)
			return ctx.Err()
		}
		backoff = time.Second
	}
}

func (c *Consumer) Setup(session sarama.ConsumerGroupSession) error {
	for topic, partitions := range session.Claims() {
		c.logger.Info("partition assignment", map[string]interface{}{"topic": topic, "partitions": partitions})
	}
	return nil
}

func (c *Consumer) Cleanup(_ sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim marks a message only once it is applied or known to be
// undecodable. A failed apply stops the claim so the offset is redelivered
// after the next rebalance.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		event, err := events.Decode(msg.Value)
		if err != nil {
			c.logger.Warn("skipping undecodable event", map[string]interface{}{
				"topic": msg.Topic, "partition": msg.Partition, "offset": msg.Offset, "error": err.Error(),
			})
			session.MarkMessage(msg, "")
			continue
		}

		if err := c.applier.Apply(session.Context(), event); err != nil {
			c.logger.Error("projection update failed", map[string]interface{}{
				"templateId": event.AggregateID(), "offset": msg.Offset, "error": err.Error(),
			})
			return err
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

package events

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	apperrors "template-engine/internal/common/errors"
	"template-engine/internal/common/logger"
	"template-engine/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSAPI is the slice of the SNS client the publisher needs.
type SNSAPI interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// SNSPublisher targets a FIFO topic. MessageGroupId is the aggregate id, so
// SNS keeps per-template order; the deduplication id is derived from the
// event itself.
type SNSPublisher struct {
	client   SNSAPI
	topicARN string
	logger   logger.Logger
}

func NewSNSPublisher(client SNSAPI, topicARN string, log logger.Logger) *SNSPublisher {
	return &SNSPublisher{
		client:   client,
		topicARN: topicARN,
		logger:   log.WithFields(map[string]interface{}{"component": "sns-publisher"}),
	}
}

func (p *SNSPublisher) Publish(ctx context.Context, event domain.Event) error {
	data, err := Encode(event)
	if err != nil {
		return apperrors.NewEventPublishFailedError(string(event.Type()), err)
	}

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn:               aws.String(p.topicARN),
		Message:                aws.String(string(data)),
		MessageGroupId:         aws.String(event.AggregateID()),
		MessageDeduplicationId: aws.String(dedupID(event)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventType": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(event.Type())),
			},
		},
	})
	if err != nil {
		return apperrors.NewEventPublishFailedError(string(event.Type()), err)
	}

	p.logger.Debug("event delivered", map[string]interface{}{
		"eventType":  string(event.Type()),
		"templateId": event.AggregateID(),
		"messageId":  aws.ToString(out.MessageId),
	})
	return nil
}

func dedupID(event domain.Event) string {
	id := string(event.Type()) + ":" + event.AggregateID() + ":" + event.OccurredAt().Format("20060102T150405.000000000")
	switch e := event.(type) {
	case domain.TemplateVersionPublished:
		id += ":" + e.VersionID
	case domain.NotificationDispatched:
		id += ":" + e.ExecutionID
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}
